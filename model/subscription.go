package model

import "time"

type Subscription struct {
	Id              string        `json:"id"`
	UserName        string        `json:"userName"`
	Category        string        `json:"category"`
	Active          bool          `json:"active"`
	Cars            []Car         `json:"cars"`
	StartsAt        time.Time     `json:"startsAt"`
	ExpiresAt       time.Time     `json:"expiresAt"`
	CurrentCheckins []OpenCheckin `json:"currentCheckins"`
}

type Car struct {
	Plate string `json:"plate"`
	Brand string `json:"brand"`
	Model string `json:"model"`
	Color string `json:"color"`
}

type OpenCheckin struct {
	TicketId  string    `json:"ticketId"`
	ZoneId    string    `json:"zoneId"`
	CheckinAt time.Time `json:"checkinAt"`
}
