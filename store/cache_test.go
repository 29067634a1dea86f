package store

import (
	"testing"

	"parking-terminal-cli/model"
)

func setTestDirs(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", root)
	t.Setenv("XDG_CACHE_HOME", root)
}

func TestZoneCache_RoundTrip(t *testing.T) {
	setTestDirs(t)

	zones, fresh, err := LoadZoneCache("gate_1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if fresh || len(zones) != 0 {
		t.Fatalf("expected empty stale cache, got fresh=%v zones=%+v", fresh, zones)
	}

	saved := []model.Zone{{Id: "zone_a", Name: "Zone A", Occupied: 7, Open: true}}
	if err := SaveZoneCache("gate_1", saved); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	zones, fresh, err = LoadZoneCache("gate_1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !fresh {
		t.Fatal("expected a just-saved cache to be fresh")
	}
	if len(zones) != 1 || zones[0].Id != "zone_a" || zones[0].Occupied != 7 {
		t.Fatalf("unexpected zones: %+v", zones)
	}
}

func TestSaveZoneCache_RequiresGateID(t *testing.T) {
	setTestDirs(t)
	if err := SaveZoneCache("  ", nil); err == nil {
		t.Fatal("expected error for blank gate id")
	}
}

func TestRememberGate_DeduplicatesAndCaps(t *testing.T) {
	setTestDirs(t)

	if err := RememberGate(model.Gate{Id: "g1", Name: "North Gate"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := RememberGate(model.Gate{Id: "g2", Name: "South Gate"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := RememberGate(model.Gate{Id: "g1", Name: "North Gate"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	gates, err := LoadRecentGates()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(gates) != 2 {
		t.Fatalf("expected 2 gates, got %d", len(gates))
	}
	if gates[0].ID != "g1" || gates[1].ID != "g2" {
		t.Fatalf("unexpected order: %+v", gates)
	}
}
