package store

import (
	"sync"

	"parking-terminal-cli/model"
)

// ZoneStore is the terminal's cached view of zone occupancy for one gate.
// It is seeded by a REST fetch and kept current by zone-update frames. The
// socket read goroutine writes while the UI goroutine reads, hence the
// mutex; within one terminal those are the only two parties.
//
// The protocol carries no sequence numbers, so conflicting out-of-order
// updates resolve last-received-wins. Updates are treated as idempotent
// merges, never as deltas that must arrive in order.
type ZoneStore struct {
	mu    sync.RWMutex
	order []string
	zones map[string]model.Zone
}

func NewZoneStore() *ZoneStore {
	return &ZoneStore{zones: make(map[string]model.Zone)}
}

// Seed replaces the whole collection with a fresh server snapshot,
// preserving the server's ordering.
func (s *ZoneStore) Seed(zones []model.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.zones = make(map[string]model.Zone, len(zones))
	for _, zone := range zones {
		if zone.Id == "" {
			continue
		}
		if _, exists := s.zones[zone.Id]; !exists {
			s.order = append(s.order, zone.Id)
		}
		s.zones[zone.Id] = zone
	}
}

// Apply merges one zone-update into the collection. Unknown ids are
// inserted; known ids get a field-by-field overwrite where absent fields
// leave the cached value untouched, so partial deltas never lose data.
// Applying the same update twice is a no-op the second time.
func (s *ZoneStore) Apply(update model.ZoneUpdate) {
	if update.Id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	zone, exists := s.zones[update.Id]
	if !exists {
		zone = model.Zone{Id: update.Id}
		s.order = append(s.order, update.Id)
	}
	mergeZone(&zone, update)
	s.zones[update.Id] = zone
}

func mergeZone(zone *model.Zone, update model.ZoneUpdate) {
	if update.Name != nil {
		zone.Name = *update.Name
	}
	if update.CategoryId != nil {
		zone.CategoryId = *update.CategoryId
	}
	if update.GateIds != nil {
		zone.GateIds = update.GateIds
	}
	if update.TotalSlots != nil {
		zone.TotalSlots = *update.TotalSlots
	}
	if update.Occupied != nil {
		zone.Occupied = *update.Occupied
	}
	if update.Free != nil {
		zone.Free = *update.Free
	}
	if update.Reserved != nil {
		zone.Reserved = *update.Reserved
	}
	if update.AvailableForVisitors != nil {
		zone.AvailableForVisitors = *update.AvailableForVisitors
	}
	if update.AvailableForSubscribers != nil {
		zone.AvailableForSubscribers = *update.AvailableForSubscribers
	}
	if update.RateNormal != nil {
		zone.RateNormal = *update.RateNormal
	}
	if update.RateSpecial != nil {
		zone.RateSpecial = *update.RateSpecial
	}
	if update.Open != nil {
		zone.Open = *update.Open
	}
}

// Snapshot returns the zones in insertion order. The slice is a copy; the
// caller may hold it across renders.
func (s *ZoneStore) Snapshot() []model.Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Zone, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.zones[id])
	}
	return out
}

// Get returns one zone by id.
func (s *ZoneStore) Get(id string) (model.Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zone, ok := s.zones[id]
	return zone, ok
}

// Invalidate empties the store. Used after a checkout commits, when the
// cached counts are known stale and a refetch is on its way.
func (s *ZoneStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.zones = make(map[string]model.Zone)
}

// Len reports the number of cached zones.
func (s *ZoneStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
