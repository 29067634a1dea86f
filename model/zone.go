package model

type Zone struct {
	Id                      string   `json:"id"`
	Name                    string   `json:"name"`
	CategoryId              string   `json:"categoryId"`
	GateIds                 []string `json:"gateIds"`
	TotalSlots              int      `json:"totalSlots"`
	Occupied                int      `json:"occupied"`
	Free                    int      `json:"free"`
	Reserved                int      `json:"reserved"`
	AvailableForVisitors    int      `json:"availableForVisitors"`
	AvailableForSubscribers int      `json:"availableForSubscribers"`
	RateNormal              float64  `json:"rateNormal"`
	RateSpecial             float64  `json:"rateSpecial"`
	Open                    bool     `json:"open"`
}

// ZoneUpdate is the wire form of a zone-update frame. The server may push
// full rows or partial deltas; pointer fields keep "absent" distinguishable
// from a genuine zero so a partial payload never erases cached values.
type ZoneUpdate struct {
	Id                      string   `json:"id"`
	Name                    *string  `json:"name"`
	CategoryId              *string  `json:"categoryId"`
	GateIds                 []string `json:"gateIds"`
	TotalSlots              *int     `json:"totalSlots"`
	Occupied                *int     `json:"occupied"`
	Free                    *int     `json:"free"`
	Reserved                *int     `json:"reserved"`
	AvailableForVisitors    *int     `json:"availableForVisitors"`
	AvailableForSubscribers *int     `json:"availableForSubscribers"`
	RateNormal              *float64 `json:"rateNormal"`
	RateSpecial             *float64 `json:"rateSpecial"`
	Open                    *bool    `json:"open"`
}
