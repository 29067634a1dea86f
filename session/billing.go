package session

import (
	"fmt"
	"math"
	"time"

	"parking-terminal-cli/model"
)

const (
	// Hours and amounts are floats computed server-side; comparisons use a
	// small absolute tolerance.
	billingTolerance = 1e-6
	// Segment boundaries are timestamps; allow up to a second of rounding.
	tilingTolerance = time.Second
)

// BillingReport is the outcome of validating a server-computed checkout
// breakdown. The server is authoritative, so a failed check is a display
// concern (warn the operator), never a blocked checkout.
type BillingReport struct {
	SegmentHours  float64
	SegmentAmount float64
	HoursMatch    bool
	AmountMatch   bool
	Ordered       bool
	Tiled         bool
	Problems      []string
}

// OK reports whether every consistency check passed.
func (r BillingReport) OK() bool {
	return r.HoursMatch && r.AmountMatch && r.Ordered && r.Tiled && len(r.Problems) == 0
}

// ReconcileBilling verifies that the breakdown segments sum to the stated
// duration and amount, are chronologically ordered and non-overlapping, and
// tile [checkinAt, checkoutAt] exactly with no gaps.
func ReconcileBilling(result model.CheckoutResult) BillingReport {
	report := BillingReport{Ordered: true, Tiled: true}

	for _, segment := range result.Breakdown {
		report.SegmentHours += segment.Hours
		report.SegmentAmount += segment.Amount
	}
	report.HoursMatch = math.Abs(report.SegmentHours-result.DurationHours) <= billingTolerance
	if !report.HoursMatch {
		report.Problems = append(report.Problems,
			fmt.Sprintf("segment hours sum to %.4f, expected %.4f", report.SegmentHours, result.DurationHours))
	}
	report.AmountMatch = math.Abs(report.SegmentAmount-result.Amount) <= billingTolerance
	if !report.AmountMatch {
		report.Problems = append(report.Problems,
			fmt.Sprintf("segment amounts sum to %.2f, expected %.2f", report.SegmentAmount, result.Amount))
	}

	if len(result.Breakdown) == 0 {
		if result.DurationHours > billingTolerance {
			report.Tiled = false
			report.Problems = append(report.Problems, "no breakdown segments for a non-zero stay")
		}
		return report
	}

	first := result.Breakdown[0]
	last := result.Breakdown[len(result.Breakdown)-1]
	if !within(first.From, result.CheckinAt, tilingTolerance) {
		report.Tiled = false
		report.Problems = append(report.Problems, "first segment does not start at check-in")
	}
	if !within(last.To, result.CheckoutAt, tilingTolerance) {
		report.Tiled = false
		report.Problems = append(report.Problems, "last segment does not end at check-out")
	}

	for i, segment := range result.Breakdown {
		if segment.To.Before(segment.From) {
			report.Ordered = false
			report.Problems = append(report.Problems, fmt.Sprintf("segment %d ends before it starts", i+1))
		}
		if i == 0 {
			continue
		}
		prev := result.Breakdown[i-1]
		if segment.From.Before(prev.To.Add(-tilingTolerance)) {
			report.Ordered = false
			report.Problems = append(report.Problems, fmt.Sprintf("segment %d overlaps segment %d", i+1, i))
		}
		if !within(segment.From, prev.To, tilingTolerance) {
			report.Tiled = false
			report.Problems = append(report.Problems, fmt.Sprintf("gap between segment %d and %d", i, i+1))
		}
	}

	return report
}

func within(a, b time.Time, tolerance time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
