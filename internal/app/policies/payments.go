package policies

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProviderUnavailable is a transient provider failure; the caller may retry.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrDuplicateSession means the idempotency key already created a session.
	ErrDuplicateSession = errors.New("payments: checkout session already exists for key")
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	ErrSessionNotFound  = errors.New("payments: checkout session not found")
)

// LineItem is one priced row of the hosted checkout page, in minor units.
type LineItem struct {
	Name   string
	Amount int64
}

type CheckoutSessionRequest struct {
	Currency       string
	LineItems      []LineItem
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
	ExpiresAt      time.Time
	IdempotencyKey string
	ClientRef      string
	Metadata       map[string]string
}

// Contact is what the provider collected from the payer.
type Contact struct {
	Name  string
	Email string
	Phone string
}

type CheckoutSession struct {
	ID          string
	URL         string
	Paid        bool
	Expired     bool
	AmountTotal int64
	Currency    string
	Metadata    map[string]string
	Customer    Contact
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (CheckoutSession, error)
}

type PaymentEventType string

const (
	EventCheckoutCompleted PaymentEventType = "checkout.completed"
	EventCheckoutExpired   PaymentEventType = "checkout.expired"
	EventIgnored           PaymentEventType = "ignored"
)

type PaymentEvent struct {
	ID      string
	Type    PaymentEventType
	Session CheckoutSession
}

// PaymentEventVerifier authenticates and decodes a raw webhook delivery.
type PaymentEventVerifier interface {
	Verify(payload []byte, signature string) (PaymentEvent, error)
}

// Inbox remembers provider event ids that were fully processed.
type Inbox interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Session metadata keys shared by checkout and fulfillment.
const (
	MetaPropertyID  = "property_id"
	MetaCheckIn     = "checkin"
	MetaCheckOut    = "checkout"
	MetaGuests      = "guests"
	MetaGuestName   = "guest_name"
	MetaGuestEmail  = "guest_email"
	MetaGuestPhone  = "guest_phone"
	MetaTotal       = "total"
	MetaCurrency    = "currency"
	MetaCheckoutKey = "checkout_key"
	MetaNotes       = "notes"
)
