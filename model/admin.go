package model

import "time"

// AdminUpdate is an observability-only event pushed to subscribed terminals
// when an admin changes something (zone opened, rate changed, ...). It is
// displayed, never applied to local state.
type AdminUpdate struct {
	Action     string    `json:"action"`
	TargetType string    `json:"targetType"`
	TargetId   string    `json:"targetId"`
	Timestamp  time.Time `json:"timestamp"`
	AdminId    string    `json:"adminId"`
}
