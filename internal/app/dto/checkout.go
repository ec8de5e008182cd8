package dto

type CheckoutResult struct {
	URL           string `json:"url"`
	SessionID     string `json:"session_id"`
	ReservationID string `json:"reservation_id"`
}

// Fulfillment reports what a payment event or a manual retry did.
type Fulfillment struct {
	SessionID     string `json:"session_id"`
	ReservationID string `json:"reservation_id,omitempty"`
	Status        string `json:"status"`
	Transitioned  bool   `json:"transitioned"`
	EmailsSent    int    `json:"emails_sent"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	Ignored       bool   `json:"ignored,omitempty"`
}
