package store

import (
	"reflect"
	"testing"

	"parking-terminal-cli/model"
)

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func f64Ptr(v float64) *float64 { return &v }

func seededStore() *ZoneStore {
	s := NewZoneStore()
	s.Seed([]model.Zone{
		{
			Id: "zone_a", Name: "Zone A", CategoryId: "cat_premium",
			TotalSlots: 100, Occupied: 60, Free: 40, Reserved: 15,
			AvailableForVisitors: 25, AvailableForSubscribers: 40,
			RateNormal: 5.0, RateSpecial: 8.0, Open: true,
		},
		{
			Id: "zone_b", Name: "Zone B", CategoryId: "cat_regular",
			TotalSlots: 50, Occupied: 50, Free: 0,
			AvailableForVisitors: 0, AvailableForSubscribers: 0,
			RateNormal: 3.0, RateSpecial: 5.0, Open: true,
		},
	})
	return s
}

func TestApply_PartialUpdateKeepsOtherFields(t *testing.T) {
	s := seededStore()

	s.Apply(model.ZoneUpdate{Id: "zone_a", Occupied: intPtr(61)})

	zone, ok := s.Get("zone_a")
	if !ok {
		t.Fatal("zone_a missing")
	}
	if zone.Occupied != 61 {
		t.Fatalf("expected occupied=61, got %d", zone.Occupied)
	}
	if zone.Name != "Zone A" || zone.CategoryId != "cat_premium" {
		t.Fatalf("partial update erased fields: %+v", zone)
	}
	if zone.RateSpecial != 8.0 || !zone.Open {
		t.Fatalf("partial update erased fields: %+v", zone)
	}
}

func TestApply_Idempotent(t *testing.T) {
	s := seededStore()
	update := model.ZoneUpdate{
		Id:       "zone_a",
		Occupied: intPtr(70),
		Free:     intPtr(30),
		Open:     boolPtr(false),
	}

	s.Apply(update)
	once := s.Snapshot()

	s.Apply(update)
	twice := s.Snapshot()

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("applying the same update twice changed state:\n%+v\n%+v", once, twice)
	}
}

func TestApply_InsertsUnknownZone(t *testing.T) {
	s := seededStore()

	s.Apply(model.ZoneUpdate{
		Id:         "zone_c",
		Name:       strPtr("Zone C"),
		CategoryId: strPtr("cat_vip"),
		Occupied:   intPtr(1),
		RateNormal: f64Ptr(10.0),
		Open:       boolPtr(true),
	})

	if s.Len() != 3 {
		t.Fatalf("expected 3 zones, got %d", s.Len())
	}
	zone, ok := s.Get("zone_c")
	if !ok {
		t.Fatal("zone_c missing")
	}
	if zone.Name != "Zone C" || zone.Occupied != 1 || !zone.Open {
		t.Fatalf("unexpected inserted zone: %+v", zone)
	}

	snapshot := s.Snapshot()
	if snapshot[2].Id != "zone_c" {
		t.Fatalf("expected zone_c appended last, got order %v", snapshot)
	}
}

func TestApply_MissingIdIgnored(t *testing.T) {
	s := seededStore()
	s.Apply(model.ZoneUpdate{Occupied: intPtr(99)})
	if s.Len() != 2 {
		t.Fatalf("expected 2 zones, got %d", s.Len())
	}
}

func TestSnapshot_PreservesSeedOrder(t *testing.T) {
	s := seededStore()
	snapshot := s.Snapshot()
	if len(snapshot) != 2 || snapshot[0].Id != "zone_a" || snapshot[1].Id != "zone_b" {
		t.Fatalf("unexpected order: %+v", snapshot)
	}
}

func TestInvalidate_EmptiesStore(t *testing.T) {
	s := seededStore()
	s.Invalidate()
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d zones", s.Len())
	}
	if _, ok := s.Get("zone_a"); ok {
		t.Fatal("expected zone_a gone after invalidate")
	}
}

func TestSeed_ReplacesPreviousContent(t *testing.T) {
	s := seededStore()
	s.Seed([]model.Zone{{Id: "zone_z", Name: "Zone Z"}})

	if s.Len() != 1 {
		t.Fatalf("expected 1 zone after reseed, got %d", s.Len())
	}
	if _, ok := s.Get("zone_a"); ok {
		t.Fatal("reseed must drop stale zones")
	}
}
