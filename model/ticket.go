package model

import "time"

const (
	TicketTypeVisitor    = "visitor"
	TicketTypeSubscriber = "subscriber"
)

type Ticket struct {
	Id             string     `json:"id"`
	Type           string     `json:"type"`
	ZoneId         string     `json:"zoneId"`
	GateId         string     `json:"gateId"`
	SubscriptionId string     `json:"subscriptionId,omitempty"`
	CheckinAt      time.Time  `json:"checkinAt"`
	CheckoutAt     *time.Time `json:"checkoutAt"`
}

// Open reports whether the ticket still represents a parked vehicle.
func (t Ticket) Open() bool {
	return t.CheckoutAt == nil
}

type CheckinRequest struct {
	GateId         string `json:"gateId"`
	Type           string `json:"type"`
	ZoneId         string `json:"zoneId,omitempty"`
	SubscriptionId string `json:"subscriptionId,omitempty"`
}

type CheckinResponse struct {
	Ticket  Ticket `json:"ticket"`
	Message string `json:"message"`
}
