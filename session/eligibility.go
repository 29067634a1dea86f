package session

import "parking-terminal-cli/model"

// CapacityPolicy decides whether subscriber eligibility also gates on
// remaining subscriber capacity client-side, or trusts the commit call to
// enforce it. The observed terminal behavior is permissive; strict is kept
// as a substitution point.
type CapacityPolicy int

const (
	// CapacityPermissive admits on category + open; the server remains the
	// authority on capacity at commit time.
	CapacityPermissive CapacityPolicy = iota
	// CapacityStrict additionally requires free subscriber capacity.
	CapacityStrict
)

// VisitorEligible reports whether a zone may admit a visitor: the zone is
// open and has visitor capacity left.
func VisitorEligible(zone model.Zone) bool {
	return zone.Open && zone.AvailableForVisitors > 0
}

// SubscriberEligible reports whether a zone may admit a subscription: the
// subscription is active, the zone is open, and the categories match.
// Under CapacityStrict, subscriber capacity must also be available.
func SubscriberEligible(zone model.Zone, sub model.Subscription, policy CapacityPolicy) bool {
	if !sub.Active {
		return false
	}
	if !zone.Open {
		return false
	}
	if sub.Category != zone.CategoryId {
		return false
	}
	if policy == CapacityStrict && zone.AvailableForSubscribers <= 0 {
		return false
	}
	return true
}
