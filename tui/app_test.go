package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"parking-terminal-cli/config"
	"parking-terminal-cli/model"
	"parking-terminal-cli/service"
	"parking-terminal-cli/session"
)

func testConfig() config.Config {
	return config.Config{
		APIBaseURL: "http://localhost:0",
		WSURL:      "ws://localhost:0",
	}
}

func newGateModel(t *testing.T) appModel {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return New(Options{Config: testConfig(), Screen: ScreenGate, GateID: "g1"}).(appModel)
}

func seedZones() []model.Zone {
	return []model.Zone{
		{Id: "z1", Name: "Zone 1", CategoryId: "cat_premium", Open: true, Free: 4, AvailableForVisitors: 2, AvailableForSubscribers: 3},
		{Id: "z2", Name: "Zone 2", CategoryId: "cat_regular", Open: false, Free: 0},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestBootStates(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cases := []struct {
		screen string
		gateID string
		want   appState
	}{
		{screen: ScreenGate, gateID: "g1", want: stateLoadingZones},
		{screen: ScreenGate, want: stateLoadingGates},
		{screen: ScreenCheckpoint, want: stateCheckpoint},
		{screen: ScreenAdmin, want: stateLoadingGates},
		{screen: "", want: stateHome},
	}
	for _, tc := range cases {
		m := New(Options{Config: testConfig(), Screen: tc.screen, GateID: tc.gateID}).(appModel)
		if m.state != tc.want {
			t.Errorf("screen %q gate %q: expected state %d, got %d", tc.screen, tc.gateID, tc.want, m.state)
		}
	}
}

func TestHandleZones_EntersGateScreen(t *testing.T) {
	m := newGateModel(t)

	next, _ := m.Update(zonesMsg{zones: seedZones()})
	m = next.(appModel)

	if m.state != stateGateCheckin {
		t.Fatalf("expected gate check-in state, got %d", m.state)
	}
	if m.zones.Len() != 2 {
		t.Fatalf("expected 2 zones in the store, got %d", m.zones.Len())
	}
	if m.checkin == nil {
		t.Fatal("expected the check-in flow to be created")
	}
	if m.conn == nil {
		t.Fatal("expected the connection manager to be created")
	}
	if m.zonesFromCache {
		t.Fatal("fresh fetch must not be marked cached")
	}
}

func TestHandleZones_CacheHitSchedulesRefetch(t *testing.T) {
	m := newGateModel(t)

	next, cmd := m.Update(zonesMsg{zones: seedZones(), fromCache: true})
	m = next.(appModel)

	if !m.zonesFromCache {
		t.Fatal("expected the cached flag to be set")
	}
	if cmd == nil {
		t.Fatal("cache hit must schedule the authoritative refetch")
	}
}

func TestGateKeys_TabSwitchesTicketKind(t *testing.T) {
	m := newGateModel(t)
	next, _ := m.Update(zonesMsg{zones: seedZones()})
	m = next.(appModel)

	next, _ = m.Update(key("tab"))
	m = next.(appModel)
	if m.checkinTab != checkinTabSubscriber || m.checkin.Kind() != model.TicketTypeSubscriber {
		t.Fatal("tab must switch to the subscriber kind")
	}

	next, _ = m.Update(key("tab"))
	m = next.(appModel)
	if m.checkinTab != checkinTabVisitor || m.checkin.Kind() != model.TicketTypeVisitor {
		t.Fatal("tab must switch back to the visitor kind")
	}
}

func TestGateKeys_SpaceSelectsZoneUnderCursor(t *testing.T) {
	m := newGateModel(t)
	next, _ := m.Update(zonesMsg{zones: seedZones()})
	m = next.(appModel)

	next, _ = m.Update(key(" "))
	m = next.(appModel)
	if got := m.checkin.SelectedZone(); got != "z1" {
		t.Fatalf("expected z1 selected, got %q", got)
	}

	next, _ = m.Update(key("down"))
	m = next.(appModel)
	next, _ = m.Update(key(" "))
	m = next.(appModel)
	if got := m.checkin.SelectedZone(); got != "z2" {
		t.Fatalf("expected z2 selected, got %q", got)
	}
}

func TestErrMsg_RemembersAndRestoresState(t *testing.T) {
	m := newGateModel(t)
	next, _ := m.Update(zonesMsg{zones: seedZones()})
	m = next.(appModel)

	next, _ = m.Update(errMsg{err: context.DeadlineExceeded})
	m = next.(appModel)
	if m.state != stateError {
		t.Fatalf("expected error state, got %d", m.state)
	}

	next, _ = m.Update(key("enter"))
	m = next.(appModel)
	if m.state != stateGateCheckin {
		t.Fatalf("enter must restore the previous screen, got %d", m.state)
	}
	if m.err != nil {
		t.Fatal("recovery must clear the error")
	}
}

func TestConnChanged_TracksIndicatorAndRearms(t *testing.T) {
	m := newGateModel(t)
	next, _ := m.Update(zonesMsg{zones: seedZones()})
	m = next.(appModel)

	next, cmd := m.Update(connChangedMsg{gateID: "g1", connected: true})
	m = next.(appModel)
	if !m.wsConnected {
		t.Fatal("expected the indicator to go up")
	}
	if cmd == nil {
		t.Fatal("realtime messages must re-arm the listener")
	}

	next, _ = m.Update(connChangedMsg{gateID: "g1", connected: false})
	m = next.(appModel)
	if m.wsConnected {
		t.Fatal("expected the indicator to go down")
	}
}

func TestZoneStoreChanged_ClampsCursor(t *testing.T) {
	m := newGateModel(t)
	next, _ := m.Update(zonesMsg{zones: seedZones()})
	m = next.(appModel)
	m.zoneIndex = 5

	next, _ = m.Update(zoneStoreChangedMsg{})
	m = next.(appModel)
	if m.zoneIndex != 1 {
		t.Fatalf("expected cursor clamped to the last zone, got %d", m.zoneIndex)
	}
}

func TestAdminFeed_NewestFirstAndCapped(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m := New(Options{Config: testConfig(), Screen: ScreenAdmin}).(appModel)

	for i := 0; i < maxAdminFeed+10; i++ {
		next, _ := m.Update(adminEventMsg{update: model.AdminUpdate{
			Action:    "zone-open",
			TargetId:  "z1",
			Timestamp: time.Date(2026, 8, 28, 10, 0, i, 0, time.UTC),
		}})
		m = next.(appModel)
	}

	if len(m.adminFeed) != maxAdminFeed {
		t.Fatalf("expected feed capped at %d, got %d", maxAdminFeed, len(m.adminFeed))
	}
	if !m.adminFeed[0].Timestamp.After(m.adminFeed[1].Timestamp) {
		t.Fatal("expected newest event first")
	}
}

func TestCheckpointKeys_PlateDecisionAndCommitGate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tickets/t_010":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"t_010","type":"subscriber","subscriptionId":"sub_002","zoneId":"z1","gateId":"g1","checkinAt":"2026-08-28T08:00:00Z","checkoutAt":null}`))
		case "/subscriptions/sub_002":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"sub_002","userName":"Grace","category":"cat_premium","active":true,"cars":[{"plate":"ABC-123"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m := New(Options{Config: testConfig(), Screen: ScreenCheckpoint}).(appModel)
	m.checkout = session.NewCheckoutFlow(service.NewClient(server.Client(), server.URL))
	m.ticketInput.Blur()

	if _, err := m.checkout.LookupTicket(context.Background(), "t_010"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	// Commit stays locked until the operator answers the plate question.
	next, cmd := m.Update(key("c"))
	m = next.(appModel)
	if cmd != nil {
		t.Fatal("commit must not fire before the plate decision")
	}

	next, _ = m.Update(key("n"))
	m = next.(appModel)
	if !m.checkout.PlateMismatch() {
		t.Fatal("expected the mismatch recorded")
	}

	next, cmd = m.Update(key("c"))
	m = next.(appModel)
	if cmd == nil {
		t.Fatal("commit must fire once the plate decision is made")
	}
}

func TestView_GateScreenRendersZones(t *testing.T) {
	m := newGateModel(t)
	next, _ := m.Update(zonesMsg{zones: seedZones()})
	m = next.(appModel)

	view := m.View()
	if !strings.Contains(view, "Zone 1") || !strings.Contains(view, "Zone 2") {
		t.Fatalf("expected zones rendered, got:\n%s", view)
	}
	if !strings.Contains(view, "closed") {
		t.Fatalf("expected the closed zone marked, got:\n%s", view)
	}
}

func TestView_ReceiptShowsBreakdownAndTotal(t *testing.T) {
	checkin := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)
	checkout := checkin.Add(2 * time.Hour)
	result := model.CheckoutResult{
		TicketId:      "t_001",
		CheckinAt:     checkin,
		CheckoutAt:    checkout,
		DurationHours: 2.0,
		Amount:        4.0,
		Breakdown: []model.BreakdownSegment{
			{From: checkin, To: checkin.Add(90 * time.Minute), Hours: 1.5, RateMode: model.RateModeNormal, Rate: 2.0, Amount: 3.0},
			{From: checkin.Add(90 * time.Minute), To: checkout, Hours: 0.5, RateMode: model.RateModeSpecial, Rate: 2.0, Amount: 1.0},
		},
	}

	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m := New(Options{Config: testConfig(), Screen: ScreenCheckpoint}).(appModel)
	view := m.receiptViewFor(result)

	if !strings.Contains(view, "t_001") || !strings.Contains(view, "TOTAL") {
		t.Fatalf("expected the receipt rendered, got:\n%s", view)
	}
	if !strings.Contains(view, "normal") || !strings.Contains(view, "special") {
		t.Fatalf("expected both rate modes in the breakdown, got:\n%s", view)
	}
}
