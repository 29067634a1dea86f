package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"parking-terminal-cli/model"
	"parking-terminal-cli/service"
)

// CheckoutState names the steps of the check-out workflow.
type CheckoutState int

// Loading the subscription is what arms the verification gate, so there is
// no distinct subscription-loaded state: a subscriber ticket goes straight
// from TicketLoaded to VerificationPending once the subscription arrives.
const (
	CheckoutIdle CheckoutState = iota
	CheckoutTicketLoaded
	CheckoutVerificationPending
	CheckoutCommitted
	CheckoutFailed
)

func (s CheckoutState) String() string {
	switch s {
	case CheckoutIdle:
		return "idle"
	case CheckoutTicketLoaded:
		return "ticket-loaded"
	case CheckoutVerificationPending:
		return "verification-pending"
	case CheckoutCommitted:
		return "committed"
	case CheckoutFailed:
		return "failed"
	default:
		return fmt.Sprintf("checkout-state(%d)", int(s))
	}
}

const (
	MsgEnterTicketID     = "Please enter a ticket ID"
	MsgTicketNotFound    = "Ticket not found"
	MsgTicketAlreadyOut  = "Ticket is already checked out"
	MsgSubscriptionFetch = "Could not fetch subscription information"
	MsgResolveVehicle    = "Confirm the vehicle verification first"
	MsgCheckoutFailed    = "Checkout failed"
	MsgCheckoutSuccess   = "Ticket checked out successfully!"
)

// CheckoutFlow drives one checkpoint terminal's check-out workflow:
//
//	Idle -> TicketLoaded -> (SubscriptionLoaded -> VerificationPending) -> Committed | Failed
//
// Subscriber tickets pass through a mandatory vehicle-plate verification:
// the operator confirms a match, or flags a mismatch which converts the
// checkout to visitor pricing server-side. Commit failures keep the ticket
// loaded so the operator can retry or cancel explicitly.
type CheckoutFlow struct {
	client *service.Client

	mu            sync.Mutex
	epoch         uint64
	state         CheckoutState
	ticket        *model.Ticket
	subscription  *model.Subscription
	plateResolved bool
	forceConvert  bool
	result        *model.CheckoutResult
	message       string
}

func NewCheckoutFlow(client *service.Client) *CheckoutFlow {
	return &CheckoutFlow{client: client}
}

func (f *CheckoutFlow) State() CheckoutState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *CheckoutFlow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

func (f *CheckoutFlow) Ticket() *model.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticket
}

func (f *CheckoutFlow) Subscription() *model.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscription
}

func (f *CheckoutFlow) Result() *model.CheckoutResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// PlateMismatch reports whether the operator flagged the vehicle as not
// matching the registered cars.
func (f *CheckoutFlow) PlateMismatch() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plateResolved && f.forceConvert
}

// LookupTicket loads a ticket and, for subscriber tickets, the associated
// subscription. It resets any previously loaded session first.
func (f *CheckoutFlow) LookupTicket(ctx context.Context, ticketID string) (model.Ticket, error) {
	ticketID = strings.TrimSpace(ticketID)

	f.mu.Lock()
	f.resetLocked()
	if ticketID == "" {
		f.message = MsgEnterTicketID
		f.mu.Unlock()
		return model.Ticket{}, &ValidationError{Reason: MsgEnterTicketID}
	}
	epoch := f.epoch
	f.mu.Unlock()

	ticket, err := f.client.GetTicket(ctx, ticketID)

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		return model.Ticket{}, ErrSuperseded
	}
	if err != nil {
		if service.IsNotFound(err) {
			f.message = MsgTicketNotFound
		} else {
			f.message = service.ErrorMessage(err, MsgTicketNotFound)
		}
		f.mu.Unlock()
		return model.Ticket{}, err
	}
	if !ticket.Open() {
		f.message = MsgTicketAlreadyOut
		f.mu.Unlock()
		return model.Ticket{}, &ValidationError{Reason: MsgTicketAlreadyOut}
	}

	f.ticket = &ticket
	f.state = CheckoutTicketLoaded
	needsSubscription := ticket.Type == model.TicketTypeSubscriber && ticket.SubscriptionId != ""
	f.mu.Unlock()

	if !needsSubscription {
		return ticket, nil
	}

	sub, subErr := f.client.GetSubscription(ctx, ticket.SubscriptionId)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return model.Ticket{}, ErrSuperseded
	}
	if subErr != nil {
		// The ticket stays usable; verification is simply unavailable
		// without the registered-car list.
		f.message = MsgSubscriptionFetch
		return ticket, nil
	}
	f.subscription = &sub
	// The operator must resolve the plate check before commit unlocks.
	f.state = CheckoutVerificationPending
	return ticket, nil
}

// ResolvePlate records the operator's verification decision. match=false
// flags a mismatch: the commit will carry forceConvertToVisitor and the
// server re-prices the stay as a visitor.
func (f *CheckoutFlow) ResolvePlate(match bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != CheckoutVerificationPending && f.state != CheckoutFailed {
		return &ValidationError{Reason: "no vehicle verification pending"}
	}
	f.plateResolved = true
	f.forceConvert = !match
	return nil
}

// CanCommit reports whether the commit action is currently allowed.
func (f *CheckoutFlow) CanCommit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canCommitLocked() == nil
}

func (f *CheckoutFlow) canCommitLocked() error {
	switch f.state {
	case CheckoutTicketLoaded, CheckoutFailed:
		return nil
	case CheckoutVerificationPending:
		if !f.plateResolved {
			return &ValidationError{Reason: MsgResolveVehicle}
		}
		return nil
	default:
		return &ValidationError{Reason: "no ticket loaded"}
	}
}

// Commit closes the ticket. On success the session clears; on failure the
// ticket stays loaded and the server's message is surfaced. There is no
// automatic retry: checkout moves money.
func (f *CheckoutFlow) Commit(ctx context.Context) (model.CheckoutResult, error) {
	f.mu.Lock()
	if err := f.canCommitLocked(); err != nil {
		f.message = err.Error()
		f.mu.Unlock()
		return model.CheckoutResult{}, err
	}
	req := model.CheckoutRequest{
		TicketId:              f.ticket.Id,
		ForceConvertToVisitor: f.forceConvert,
	}
	epoch := f.epoch
	f.mu.Unlock()

	result, err := f.client.Checkout(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return model.CheckoutResult{}, ErrSuperseded
	}
	if err != nil {
		f.state = CheckoutFailed
		f.message = service.ErrorMessage(err, MsgCheckoutFailed)
		return model.CheckoutResult{}, err
	}

	f.result = &result
	f.ticket = nil
	f.subscription = nil
	f.plateResolved = false
	f.forceConvert = false
	f.state = CheckoutCommitted
	f.message = MsgCheckoutSuccess
	return result, nil
}

// Cancel discards the in-progress session from any non-terminal state. An
// in-flight lookup or commit is not aborted, but its result is dropped.
func (f *CheckoutFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *CheckoutFlow) resetLocked() {
	f.epoch++
	f.state = CheckoutIdle
	f.ticket = nil
	f.subscription = nil
	f.plateResolved = false
	f.forceConvert = false
	f.result = nil
	f.message = ""
}
