package model

import "time"

const (
	RateModeNormal  = "normal"
	RateModeSpecial = "special"
)

type CheckoutRequest struct {
	TicketId              string `json:"ticketId"`
	ForceConvertToVisitor bool   `json:"forceConvertToVisitor,omitempty"`
}

type CheckoutResult struct {
	TicketId      string             `json:"ticketId"`
	CheckinAt     time.Time          `json:"checkinAt"`
	CheckoutAt    time.Time          `json:"checkoutAt"`
	DurationHours float64            `json:"durationHours"`
	Amount        float64            `json:"amount"`
	Breakdown     []BreakdownSegment `json:"breakdown"`
}

// BreakdownSegment is one contiguous slice of the stay billed at a single
// rate mode. Segments are ordered and tile [checkinAt, checkoutAt] exactly.
type BreakdownSegment struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Hours    float64   `json:"hours"`
	RateMode string    `json:"rateMode"`
	Rate     float64   `json:"rate"`
	Amount   float64   `json:"amount"`
}
