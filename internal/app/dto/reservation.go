package dto

import (
	"encoding/json"
	"time"

	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
)

type Reservation struct {
	ID         string      `json:"id"`
	PropertyID string      `json:"property_id"`
	CheckIn    string      `json:"checkin"`
	CheckOut   string      `json:"checkout"`
	Nights     int         `json:"nights"`
	Guests     int         `json:"guests"`
	GuestName  string      `json:"guest_name"`
	GuestEmail string      `json:"guest_email"`
	GuestPhone string      `json:"guest_phone,omitempty"`
	Total      json.Number `json:"total"`
	Currency   string      `json:"currency"`
	SessionID  string      `json:"session_id"`
	Status     string      `json:"status"`
	PaidAt     *time.Time  `json:"paid_at,omitempty"`
}

func MapReservation(r *reservation.Reservation) Reservation {
	out := Reservation{
		ID:         string(r.ID),
		PropertyID: string(r.PropertyID),
		CheckIn:    daterange.FormatDay(r.Range.CheckIn),
		CheckOut:   daterange.FormatDay(r.Range.CheckOut),
		Nights:     r.Nights,
		Guests:     r.Guests,
		GuestName:  r.Guest.Name,
		GuestEmail: r.Guest.Email,
		GuestPhone: r.Guest.Phone,
		Total:      Amount(r.Total),
		Currency:   r.Total.Currency,
		SessionID:  r.SessionID,
		Status:     string(r.Status),
	}
	if !r.PaidAt.IsZero() {
		paid := r.PaidAt
		out.PaidAt = &paid
	}
	return out
}

type ExpireResult struct {
	Expired int `json:"expired"`
}
