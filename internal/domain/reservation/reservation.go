package reservation

import (
	"context"
	"errors"
	"strings"
	"time"

	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/events"
	"realty/internal/domain/shared/money"
)

var (
	ErrNotFound         = errors.New("reservation: not found")
	ErrInvalidState     = errors.New("reservation: invalid state transition")
	ErrSessionRequired  = errors.New("reservation: payment session id required")
	ErrInvalidGuests    = errors.New("reservation: guests count must be positive")
	ErrGuestRequired    = errors.New("reservation: guest name and email required")
	ErrInvalidTotal     = errors.New("reservation: total must be positive")
	ErrPropertyRequired = errors.New("reservation: property required")
	ErrConcurrentUpdate = errors.New("reservation: concurrent update detected")
)

type ID string

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusExpired Status = "expired"
)

type Guest struct {
	Name  string
	Email string
	Phone string
}

// Reservation is one booking attempt over [checkin, checkout), keyed by its payment session.
type Reservation struct {
	ID          ID
	PropertyID  property.ID
	Range       daterange.DateRange
	Nights      int
	Guests      int
	Guest       Guest
	Notes       string
	Total       money.Money
	SessionID   string
	CheckoutKey string
	Status      Status
	PaidAt      time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Version guards Save against lost updates; 0 means never stored.
	Version int64
	events.Recorder
}

type Repository interface {
	BySessionID(ctx context.Context, sessionID string) (*Reservation, error)
	ByCheckoutKey(ctx context.Context, key string) (*Reservation, error)
	// UpsertPending inserts a pending row or refreshes the booking fields of the row with the
	// same session id. It never changes the status of an existing row.
	UpsertPending(ctx context.Context, r *Reservation) (*Reservation, error)
	// Save writes r if the stored version still equals r.Version, else ErrConcurrentUpdate.
	Save(ctx context.Context, r *Reservation) error
	ListPaidByProperty(ctx context.Context, id property.ID) ([]*Reservation, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*Reservation, error)
}

type PendingParams struct {
	ID          ID
	PropertyID  property.ID
	Range       daterange.DateRange
	Guests      int
	Guest       Guest
	Notes       string
	Total       money.Money
	SessionID   string
	CheckoutKey string
	Now         time.Time
}

func NewPending(params PendingParams) (*Reservation, error) {
	if strings.TrimSpace(params.SessionID) == "" {
		return nil, ErrSessionRequired
	}
	if strings.TrimSpace(string(params.PropertyID)) == "" {
		return nil, ErrPropertyRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	guest := Guest{
		Name:  strings.TrimSpace(params.Guest.Name),
		Email: strings.ToLower(strings.TrimSpace(params.Guest.Email)),
		Phone: strings.TrimSpace(params.Guest.Phone),
	}
	if guest.Name == "" || guest.Email == "" {
		return nil, ErrGuestRequired
	}
	if params.Total.Amount <= 0 || params.Total.Currency == "" {
		return nil, ErrInvalidTotal
	}
	now := params.Now.UTC()
	r := &Reservation{
		ID:          params.ID,
		PropertyID:  params.PropertyID,
		Range:       params.Range,
		Nights:      params.Range.Nights(),
		Guests:      params.Guests,
		Guest:       guest,
		Notes:       strings.TrimSpace(params.Notes),
		Total:       params.Total,
		SessionID:   params.SessionID,
		CheckoutKey: params.CheckoutKey,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.Record(PendingCreated{ReservationID: r.ID, PropertyID: r.PropertyID, SessionID: r.SessionID, Range: r.Range, Total: r.Total, At: now})
	return r, nil
}

// MarkPaid moves the reservation to paid. It reports false without error when it already is,
// so redelivered payment events cause no side effects.
func (r *Reservation) MarkPaid(now time.Time) (bool, error) {
	switch r.Status {
	case StatusPaid:
		return false, nil
	case StatusPending, StatusExpired:
	default:
		return false, ErrInvalidState
	}
	from := r.Status
	now = now.UTC()
	r.Status = StatusPaid
	r.PaidAt = now
	r.UpdatedAt = now
	r.Record(Paid{ReservationID: r.ID, PropertyID: r.PropertyID, SessionID: r.SessionID, Range: r.Range, Total: r.Total, From: from, At: now})
	return true, nil
}

// Expire abandons a pending reservation whose checkout was never completed.
func (r *Reservation) Expire(now time.Time) (bool, error) {
	switch r.Status {
	case StatusExpired:
		return false, nil
	case StatusPending:
	default:
		return false, ErrInvalidState
	}
	now = now.UTC()
	r.Status = StatusExpired
	r.UpdatedAt = now
	r.Record(Expired{ReservationID: r.ID, SessionID: r.SessionID, At: now})
	return true, nil
}

// FillContact completes missing guest details, e.g. from the payment provider.
func (r *Reservation) FillContact(g Guest, now time.Time) bool {
	changed := false
	if r.Guest.Name == "" && strings.TrimSpace(g.Name) != "" {
		r.Guest.Name = strings.TrimSpace(g.Name)
		changed = true
	}
	if r.Guest.Email == "" && strings.TrimSpace(g.Email) != "" {
		r.Guest.Email = strings.ToLower(strings.TrimSpace(g.Email))
		changed = true
	}
	if r.Guest.Phone == "" && strings.TrimSpace(g.Phone) != "" {
		r.Guest.Phone = strings.TrimSpace(g.Phone)
		changed = true
	}
	if changed {
		r.UpdatedAt = now.UTC()
	}
	return changed
}

func (r *Reservation) IsPaid() bool {
	return r.Status == StatusPaid
}
