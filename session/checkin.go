package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"parking-terminal-cli/model"
	"parking-terminal-cli/service"
	"parking-terminal-cli/store"
)

// CheckinState names the steps of the check-in workflow.
type CheckinState int

const (
	CheckinIdle CheckinState = iota
	CheckinZoneSelected
	CheckinSubmitting
	CheckinSucceeded
	CheckinFailed
)

func (s CheckinState) String() string {
	switch s {
	case CheckinIdle:
		return "idle"
	case CheckinZoneSelected:
		return "zone-selected"
	case CheckinSubmitting:
		return "submitting"
	case CheckinSucceeded:
		return "succeeded"
	case CheckinFailed:
		return "failed"
	default:
		return fmt.Sprintf("checkin-state(%d)", int(s))
	}
}

// Operator-facing messages. The conflict text is deliberately distinct from
// the generic one; tests pin both.
const (
	MsgAlreadyCheckedIn      = "This subscription is already checked in"
	MsgCheckinFailed         = "Check-in failed. Please try again."
	MsgSelectZone            = "Please select a zone"
	MsgVerifySubscription    = "Please verify your subscription first"
	MsgCategoryMismatch      = "Selected zone doesn't match your subscription category"
	MsgZoneClosed            = "Selected zone is closed"
	MsgZoneFull              = "Selected zone has no visitor spots available"
	MsgZoneNoSubCapacity     = "Selected zone has no subscriber spots available"
	MsgSubscriptionInactive  = "Subscription is not active"
	MsgSubscriptionNotFound  = "Subscription not found"
	MsgSubscriptionLookupErr = "Error verifying subscription"
)

// ErrSuperseded marks a network result that arrived after the session moved
// on (operator cancelled or reset). The result is discarded, never applied.
var ErrSuperseded = errors.New("session state superseded while request was in flight")

// ValidationError is a client-side rejection raised before any network
// call leaves the terminal.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// CheckinFlow drives one gate terminal's check-in workflow:
//
//	Idle -> ZoneSelected -> Submitting -> Succeeded | back to ZoneSelected
//
// Failures return to ZoneSelected, not Idle, so the operator keeps the
// picked zone. The mutex is required because the UI issues Submit from a
// background goroutine while key handling mutates selection; the epoch
// counter discards in-flight responses after Cancel.
type CheckinFlow struct {
	client *service.Client
	zones  *store.ZoneStore
	gateID string
	policy CapacityPolicy

	mu           sync.Mutex
	epoch        uint64
	state        CheckinState
	kind         string
	zoneID       string
	subscription *model.Subscription
	ticket       *model.Ticket
	message      string
}

func NewCheckinFlow(client *service.Client, zones *store.ZoneStore, gateID string, policy CapacityPolicy) *CheckinFlow {
	return &CheckinFlow{
		client: client,
		zones:  zones,
		gateID: gateID,
		policy: policy,
		kind:   model.TicketTypeVisitor,
	}
}

func (f *CheckinFlow) State() CheckinState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Message returns the operator-facing message for the last outcome.
func (f *CheckinFlow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

func (f *CheckinFlow) SelectedZone() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.zoneID
}

func (f *CheckinFlow) Subscription() *model.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscription
}

func (f *CheckinFlow) Ticket() *model.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticket
}

// SetKind switches between the visitor and subscriber tabs. Switching
// clears the zone selection and any stale message, like the original
// screens do.
func (f *CheckinFlow) SetKind(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind != model.TicketTypeVisitor && kind != model.TicketTypeSubscriber {
		return
	}
	f.kind = kind
	f.zoneID = ""
	f.message = ""
	if f.state != CheckinSucceeded {
		f.state = CheckinIdle
	}
}

func (f *CheckinFlow) Kind() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

// SelectZone records the operator's zone choice and moves to ZoneSelected.
// No-op while a submit is in flight.
func (f *CheckinFlow) SelectZone(zoneID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == CheckinSubmitting {
		return
	}
	f.zoneID = zoneID
	f.message = ""
	f.state = CheckinZoneSelected
}

// VerifySubscription fetches and pins the subscription for the subscriber
// path. Subscriptions are never cached across sessions; every check-in
// re-verifies.
func (f *CheckinFlow) VerifySubscription(ctx context.Context, id string) (model.Subscription, error) {
	f.mu.Lock()
	epoch := f.epoch
	f.mu.Unlock()

	sub, err := f.client.GetSubscription(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return model.Subscription{}, ErrSuperseded
	}
	if err != nil {
		f.subscription = nil
		if service.IsNotFound(err) {
			f.message = MsgSubscriptionNotFound
		} else {
			f.message = MsgSubscriptionLookupErr
		}
		return model.Subscription{}, err
	}
	f.subscription = &sub
	f.message = ""
	return sub, nil
}

// Submit validates the current selection client-side, then commits the
// check-in. Validation failures never leave the terminal. A 409 conflict
// keeps the zone selection and surfaces the conflict-specific message.
func (f *CheckinFlow) Submit(ctx context.Context) (model.Ticket, error) {
	f.mu.Lock()
	req, err := f.buildRequestLocked()
	if err != nil {
		f.mu.Unlock()
		return model.Ticket{}, err
	}
	f.state = CheckinSubmitting
	f.message = ""
	epoch := f.epoch
	f.mu.Unlock()

	res, err := f.client.Checkin(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return model.Ticket{}, ErrSuperseded
	}
	if err != nil {
		// Retry stays possible without re-picking the zone.
		f.state = CheckinZoneSelected
		if service.IsConflict(err) {
			f.message = MsgAlreadyCheckedIn
		} else {
			f.message = service.ErrorMessage(err, MsgCheckinFailed)
		}
		return model.Ticket{}, err
	}

	ticket := res.Ticket
	f.ticket = &ticket
	f.state = CheckinSucceeded
	return ticket, nil
}

func (f *CheckinFlow) buildRequestLocked() (model.CheckinRequest, error) {
	fail := func(reason string) (model.CheckinRequest, error) {
		f.message = reason
		return model.CheckinRequest{}, &ValidationError{Reason: reason}
	}

	if f.state == CheckinSubmitting {
		return model.CheckinRequest{}, &ValidationError{Reason: "a check-in is already in flight"}
	}

	req := model.CheckinRequest{GateId: f.gateID, Type: f.kind}

	switch f.kind {
	case model.TicketTypeVisitor:
		if f.zoneID == "" {
			return fail(MsgSelectZone)
		}
		if zone, ok := f.zones.Get(f.zoneID); ok {
			if !zone.Open {
				return fail(MsgZoneClosed)
			}
			if !VisitorEligible(zone) {
				return fail(MsgZoneFull)
			}
		}
		req.ZoneId = f.zoneID

	case model.TicketTypeSubscriber:
		if f.subscription == nil {
			return fail(MsgVerifySubscription)
		}
		if !f.subscription.Active {
			return fail(MsgSubscriptionInactive)
		}
		if f.zoneID == "" {
			return fail(MsgSelectZone)
		}
		if zone, ok := f.zones.Get(f.zoneID); ok {
			if zone.CategoryId != f.subscription.Category {
				return fail(MsgCategoryMismatch)
			}
			if !zone.Open {
				return fail(MsgZoneClosed)
			}
			if !SubscriberEligible(zone, *f.subscription, f.policy) {
				return fail(MsgZoneNoSubCapacity)
			}
		}
		req.ZoneId = f.zoneID
		req.SubscriptionId = f.subscription.Id

	default:
		return model.CheckinRequest{}, &ValidationError{Reason: "unknown check-in type"}
	}

	return req, nil
}

// Reset returns to Idle after the ticket was presented, clearing the
// selection and the verified subscription.
func (f *CheckinFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

// Cancel aborts the workflow. An in-flight submit is not interrupted, but
// its result is discarded when it lands.
func (f *CheckinFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *CheckinFlow) resetLocked() {
	f.epoch++
	f.state = CheckinIdle
	f.zoneID = ""
	f.subscription = nil
	f.ticket = nil
	f.message = ""
}
