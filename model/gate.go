package model

type Gate struct {
	Id       string   `json:"id"`
	Name     string   `json:"name"`
	Location string   `json:"location"`
	ZoneIds  []string `json:"zoneIds"`
}
