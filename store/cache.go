package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"parking-terminal-cli/model"
)

// Occupancy goes stale in minutes; the zone cache exists only to paint the
// first frame before the seed fetch lands.
const (
	zoneCacheTTL   = 5 * time.Minute
	maxRecentGates = 8
)

type cacheEnvelope[T any] struct {
	UpdatedAt time.Time `json:"updated_at"`
	Data      T         `json:"data"`
}

type RecentGate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type gateHistory struct {
	Gates []RecentGate `json:"gates"`
}

// LoadZoneCache returns the last persisted zone snapshot for a gate and
// whether it is still fresh enough to display.
func LoadZoneCache(gateID string) ([]model.Zone, bool, error) {
	path, err := cachePath(fmt.Sprintf("zones_%s.json", gateID))
	if err != nil {
		return nil, false, err
	}
	cache, err := loadCache[[]model.Zone](path)
	if err != nil {
		return nil, false, err
	}
	return cache.Data, time.Since(cache.UpdatedAt) <= zoneCacheTTL, nil
}

func SaveZoneCache(gateID string, zones []model.Zone) error {
	if strings.TrimSpace(gateID) == "" {
		return errors.New("gate id is required")
	}
	path, err := cachePath(fmt.Sprintf("zones_%s.json", gateID))
	if err != nil {
		return err
	}
	return saveCache(path, zones)
}

// LoadRecentGates returns the gates this terminal served most recently,
// newest first.
func LoadRecentGates() ([]RecentGate, error) {
	path, err := configPath("gates.json")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var history gateHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, errors.New("invalid gate history format")
	}
	return history.Gates, nil
}

// RememberGate moves a gate to the front of the recency list, dropping
// duplicates and anything past the cap.
func RememberGate(gate model.Gate) error {
	history, _ := LoadRecentGates()
	next := []RecentGate{{ID: gate.Id, Name: gate.Name, Location: gate.Location}}

	for _, existing := range history {
		if existing.ID == gate.Id && existing.ID != "" {
			continue
		}
		next = append(next, existing)
		if len(next) >= maxRecentGates {
			break
		}
	}

	return saveRecentGates(next)
}

func loadCache[T any](path string) (cacheEnvelope[T], error) {
	var cache cacheEnvelope[T]
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache, nil
		}
		return cache, err
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return cache, err
	}
	return cache, nil
}

func saveCache[T any](path string, data T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cache := cacheEnvelope[T]{
		UpdatedAt: time.Now(),
		Data:      data,
	}
	payload, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func saveRecentGates(gates []RecentGate) error {
	path, err := configPath("gates.json")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	history := gateHistory{Gates: gates}
	payload, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func configPath(name string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parking-terminal-cli", name), nil
}

func cachePath(name string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parking-terminal-cli", name), nil
}
