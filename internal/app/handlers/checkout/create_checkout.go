package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/handlers/quotes"
	"realty/internal/app/handlers/reservations"
	"realty/internal/app/middleware"
	"realty/internal/app/policies"
	"realty/internal/app/uow"
	"realty/internal/domain/availability"
	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
)

const (
	createCheckoutKey = "checkout.create"
	// metadataValueLimit is the provider's cap on one metadata value, in characters.
	metadataValueLimit = 500
)

var ErrInvalidRequest = errors.New("checkout: invalid request")

// CreateCheckoutCommand starts a hosted payment for a stay priced server side.
type CreateCheckoutCommand struct {
	PropertyID      string `validate:"required"`
	CheckIn         string `validate:"required"`
	CheckOut        string `validate:"required"`
	Guests          int    `validate:"gte=1,lte=50"`
	GuestName       string `validate:"required,max=200"`
	GuestEmail      string `validate:"required,email"`
	GuestPhone      string `validate:"max=40"`
	Notes           string `validate:"max=2000"`
	IdempotencyKeyV string
}

func (CreateCheckoutCommand) Key() string { return createCheckoutKey }

func (c CreateCheckoutCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (CreateCheckoutCommand) ResultPrototype() any { return &dto.CheckoutResult{} }

// ManagesOwnTransaction is true: no transaction may stay open across the provider call.
func (CreateCheckoutCommand) ManagesOwnTransaction() bool { return true }

type CreateCheckoutHandler struct {
	UoWFactory          uow.UoWFactory
	Gateway             policies.PaymentGateway
	Commands            commands.Bus
	SuccessURL          string
	CancelURL           string
	SessionTTL          time.Duration
	EnforceAvailability bool
	Logger              *slog.Logger
	Now                 func() time.Time
}

func (h *CreateCheckoutHandler) Handle(ctx context.Context, cmd CreateCheckoutCommand) (*dto.CheckoutResult, error) {
	if h.Gateway == nil || h.Commands == nil {
		return nil, policies.ErrProviderUnavailable
	}
	dr, err := daterange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	priced, err := h.price(ctx, property.ID(strings.TrimSpace(cmd.PropertyID)), dr)
	if err != nil {
		return nil, err
	}
	if !priced.Property.AllowsGuests(cmd.Guests) {
		return nil, fmt.Errorf("%w: property accepts at most %d guests", ErrInvalidRequest, priced.Property.MaxGuests)
	}
	if h.EnforceAvailability && !priced.Available() {
		return nil, availability.ErrDatesUnavailable
	}

	checkoutKey := strings.TrimSpace(cmd.IdempotencyKeyV)
	if checkoutKey == "" {
		checkoutKey = uuid.NewString()
	}
	req := h.sessionRequest(cmd, priced, checkoutKey)
	session, err := h.Gateway.CreateCheckoutSession(ctx, req)
	if errors.Is(err, policies.ErrDuplicateSession) {
		return h.recoverDuplicate(ctx, checkoutKey, err)
	}
	if err != nil {
		return nil, err
	}

	pending, err := commands.Dispatch[reservations.CreatePendingCommand, *dto.Reservation](ctx, h.Commands, reservations.CreatePendingCommand{
		PropertyID:  string(priced.Property.ID),
		Range:       dr,
		Guests:      cmd.Guests,
		Guest:       reservation.Guest{Name: cmd.GuestName, Email: cmd.GuestEmail, Phone: cmd.GuestPhone},
		Notes:       cmd.Notes,
		Total:       priced.Quote.Total,
		SessionID:   session.ID,
		CheckoutKey: checkoutKey,
	})
	if err != nil {
		// The session exists; the webhook can still rebuild the row from metadata.
		if h.Logger != nil {
			h.Logger.Error("pending reservation not stored", "session_id", session.ID, "error", err)
		}
		return nil, err
	}
	return &dto.CheckoutResult{URL: session.URL, SessionID: session.ID, ReservationID: pending.ID}, nil
}

func (h *CreateCheckoutHandler) price(ctx context.Context, id property.ID, dr daterange.DateRange) (quotes.Priced, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return quotes.Priced{}, err
	}
	defer scope.Close()
	return quotes.Price(scope.Ctx, scope.Unit, id, dr)
}

func (h *CreateCheckoutHandler) sessionRequest(cmd CreateCheckoutCommand, priced quotes.Priced, checkoutKey string) policies.CheckoutSessionRequest {
	q := priced.Quote
	items := []policies.LineItem{{Name: lodgingLabel(priced.Property, q), Amount: q.BaseSubtotal.Amount}}
	if q.CleaningFee.Amount > 0 {
		items = append(items, policies.LineItem{Name: "Cleaning fee", Amount: q.CleaningFee.Amount})
	}
	if q.TaxAmount.Amount > 0 {
		items = append(items, policies.LineItem{Name: "Taxes", Amount: q.TaxAmount.Amount})
	}
	ttl := h.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	at := time.Now().UTC()
	if h.Now != nil {
		at = h.Now().UTC()
	}
	return policies.CheckoutSessionRequest{
		Currency:       q.Currency(),
		LineItems:      items,
		SuccessURL:     h.SuccessURL,
		CancelURL:      h.CancelURL,
		CustomerEmail:  strings.TrimSpace(cmd.GuestEmail),
		ExpiresAt:      at.Add(ttl),
		IdempotencyKey: checkoutKey,
		ClientRef:      string(priced.Property.ID),
		Metadata: map[string]string{
			policies.MetaPropertyID:  string(priced.Property.ID),
			policies.MetaCheckIn:     daterange.FormatDay(q.Range.CheckIn),
			policies.MetaCheckOut:    daterange.FormatDay(q.Range.CheckOut),
			policies.MetaGuests:      strconv.Itoa(cmd.Guests),
			policies.MetaGuestName:   strings.TrimSpace(cmd.GuestName),
			policies.MetaGuestEmail:  strings.TrimSpace(cmd.GuestEmail),
			policies.MetaGuestPhone:  strings.TrimSpace(cmd.GuestPhone),
			policies.MetaTotal:       strconv.FormatInt(q.Total.Amount, 10),
			policies.MetaCurrency:    q.Currency(),
			policies.MetaCheckoutKey: checkoutKey,
			policies.MetaNotes:       truncate(strings.TrimSpace(cmd.Notes), metadataValueLimit),
		},
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func lodgingLabel(p *property.Property, q pricing.Quote) string {
	nights := "nights"
	if q.NightCount() == 1 {
		nights = "night"
	}
	return fmt.Sprintf("%s, %d %s (%s to %s)", p.Name, q.NightCount(), nights,
		daterange.FormatDay(q.Range.CheckIn), daterange.FormatDay(q.Range.CheckOut))
}

// recoverDuplicate answers a repeated checkout with the session the key already created.
func (h *CreateCheckoutHandler) recoverDuplicate(ctx context.Context, checkoutKey string, cause error) (*dto.CheckoutResult, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	existing, err := scope.Unit.Reservations().ByCheckoutKey(scope.Ctx, checkoutKey)
	scope.Close()
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return nil, cause
		}
		return nil, err
	}
	session, err := h.Gateway.RetrieveCheckoutSession(ctx, existing.SessionID)
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("checkout replay resolved to existing session", "session_id", session.ID, "reservation_id", existing.ID)
	}
	return &dto.CheckoutResult{URL: session.URL, SessionID: session.ID, ReservationID: string(existing.ID)}, nil
}

var _ commands.Handler[CreateCheckoutCommand, *dto.CheckoutResult] = (*CreateCheckoutHandler)(nil)
var _ middleware.IdempotentCommand = CreateCheckoutCommand{}
var _ middleware.SelfManaged = CreateCheckoutCommand{}
