package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"parking-terminal-cli/model"
)

func TestGetJSON_Non2xxReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	client.maxAttempts = 1

	var out map[string]any
	err := client.getJSON(context.Background(), server.URL+"/fail", &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetJSON_RetriesTransientServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&attempts, 1)
		if current < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("retry later"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	client.maxAttempts = 3
	client.retryBase = time.Millisecond
	client.retryCap = 2 * time.Millisecond

	var out map[string]any
	if err := client.getJSON(context.Background(), server.URL+"/retry", &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPostJSON_NeverRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"try later"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	client.retryBase = time.Millisecond
	client.retryCap = 2 * time.Millisecond

	_, err := client.Checkin(context.Background(), model.CheckinRequest{
		GateId: "g1", Type: model.TicketTypeVisitor, ZoneId: "z1",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a mutation, got %d", attempts)
	}
}

func TestGetZonesByGate_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/master/zones" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("gateId") != "gate_1" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
  {"id": "zone_a", "name": "Zone A", "categoryId": "cat_premium", "totalSlots": 100, "occupied": 60, "free": 40, "reserved": 15, "availableForVisitors": 25, "availableForSubscribers": 40, "rateNormal": 5.0, "rateSpecial": 8.0, "open": true}
]`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)

	zones, err := client.GetZonesByGate(context.Background(), "gate_1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(zones) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(zones))
	}
	if zones[0].AvailableForVisitors != 25 || !zones[0].Open {
		t.Fatalf("unexpected zone: %+v", zones[0])
	}
}

func TestGetSubscription_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"subscription not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)

	_, err := client.GetSubscription(context.Background(), "sub_missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if got := ErrorMessage(err, "fallback"); got != "subscription not found" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestCheckin_VisitorHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tickets/checkin" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req model.CheckinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.GateId != "g1" || req.Type != "visitor" || req.ZoneId != "z1" {
			t.Fatalf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "ticket": {"id": "t_001", "type": "visitor", "zoneId": "z1", "gateId": "g1", "checkinAt": "2026-08-28T09:00:00Z", "checkoutAt": null},
  "message": "checked in"
}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)

	res, err := client.Checkin(context.Background(), model.CheckinRequest{
		GateId: "g1", Type: model.TicketTypeVisitor, ZoneId: "z1",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Ticket.Type != model.TicketTypeVisitor {
		t.Fatalf("unexpected ticket type: %s", res.Ticket.Type)
	}
	if !res.Ticket.Open() {
		t.Fatal("expected an open ticket (null checkoutAt)")
	}
}

func TestCheckin_ConflictDetectable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"subscription already has an open check-in"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)

	_, err := client.Checkin(context.Background(), model.CheckinRequest{
		GateId: "g1", Type: model.TicketTypeSubscriber, ZoneId: "z1", SubscriptionId: "sub_001",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCheckout_ForwardsForceConvert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tickets/checkout" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req model.CheckoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.TicketId != "t_010" || !req.ForceConvertToVisitor {
			t.Fatalf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "ticketId": "t_010",
  "checkinAt": "2026-08-28T08:00:00Z",
  "checkoutAt": "2026-08-28T10:00:00Z",
  "durationHours": 2.0,
  "amount": 4.0,
  "breakdown": [
    {"from": "2026-08-28T08:00:00Z", "to": "2026-08-28T09:30:00Z", "hours": 1.5, "rateMode": "normal", "rate": 2.0, "amount": 3.0},
    {"from": "2026-08-28T09:30:00Z", "to": "2026-08-28T10:00:00Z", "hours": 0.5, "rateMode": "special", "rate": 2.0, "amount": 1.0}
  ]
}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)

	res, err := client.Checkout(context.Background(), model.CheckoutRequest{
		TicketId: "t_010", ForceConvertToVisitor: true,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(res.Breakdown) != 2 || res.Amount != 4.0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
