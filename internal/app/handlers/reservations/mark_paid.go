package reservations

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
	"realty/internal/app/outbox"
	"realty/internal/app/policies"
	"realty/internal/app/uow"
	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

const markPaidKey = "reservations.mark_paid"

var ErrIncompleteMetadata = errors.New("reservations: session metadata cannot describe a reservation")

// MarkPaidCommand records a completed payment. Session is used to rebuild the reservation
// when no pending row exists for the session id.
type MarkPaidCommand struct {
	SessionID string `validate:"required"`
	Session   *policies.CheckoutSession
}

func (MarkPaidCommand) Key() string { return markPaidKey }

type MarkPaidResult struct {
	Reservation   *reservation.Reservation
	Transitioned  bool
	Reconstructed bool
}

type MarkPaidHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *MarkPaidHandler) Handle(ctx context.Context, cmd MarkPaidCommand) (*MarkPaidResult, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	repo := scope.Unit.Reservations()
	at := now(h.Now)

	res := &MarkPaidResult{}
	r, err := repo.BySessionID(scope.Ctx, cmd.SessionID)
	switch {
	case errors.Is(err, reservation.ErrNotFound):
		if cmd.Session == nil {
			return nil, err
		}
		r, err = Reconstruct(*cmd.Session, at)
		if err != nil {
			return nil, err
		}
		res.Reconstructed = true
		if h.Logger != nil {
			h.Logger.Warn("reservation rebuilt from payment session", "session_id", cmd.SessionID, "property_id", r.PropertyID)
		}
	case err != nil:
		return nil, err
	}

	// Status is checked before any write so a redelivery is a no-op.
	if r.IsPaid() {
		res.Reservation = r
		return res, nil
	}
	from := r.Status
	if _, err := r.MarkPaid(at); err != nil {
		return nil, err
	}
	if from == reservation.StatusExpired && h.Logger != nil {
		h.Logger.Warn("payment completed for an expired reservation", "session_id", r.SessionID, "reservation_id", r.ID)
	}
	if cmd.Session != nil {
		r.FillContact(reservation.Guest{Name: cmd.Session.Customer.Name, Email: cmd.Session.Customer.Email, Phone: cmd.Session.Customer.Phone}, at)
	}
	if err := repo.Save(scope.Ctx, r); err != nil {
		return nil, err
	}
	if err := outbox.Record(scope.Ctx, h.Outbox, h.Encoder, r.Drain()); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}
	res.Reservation = r
	res.Transitioned = true
	return res, nil
}

// Reconstruct rebuilds a pending reservation from the metadata attached at checkout.
func Reconstruct(s policies.CheckoutSession, at time.Time) (*reservation.Reservation, error) {
	meta := s.Metadata
	if meta == nil {
		return nil, ErrIncompleteMetadata
	}
	dr, err := daterange.Parse(meta[policies.MetaCheckIn], meta[policies.MetaCheckOut])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteMetadata, err)
	}
	guests, err := strconv.Atoi(strings.TrimSpace(meta[policies.MetaGuests]))
	if err != nil || guests <= 0 {
		guests = 1
	}
	currency := firstNonEmpty(meta[policies.MetaCurrency], s.Currency)
	amount := s.AmountTotal
	if raw := strings.TrimSpace(meta[policies.MetaTotal]); raw != "" {
		if v, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			amount = v
		}
	}
	total, err := money.New(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteMetadata, err)
	}
	r, err := reservation.NewPending(reservation.PendingParams{
		ID:         reservation.ID(uuid.NewString()),
		PropertyID: property.ID(meta[policies.MetaPropertyID]),
		Range:      dr,
		Guests:     guests,
		Guest: reservation.Guest{
			Name:  firstNonEmpty(meta[policies.MetaGuestName], s.Customer.Name),
			Email: firstNonEmpty(meta[policies.MetaGuestEmail], s.Customer.Email),
			Phone: firstNonEmpty(meta[policies.MetaGuestPhone], s.Customer.Phone),
		},
		Notes:       meta[policies.MetaNotes],
		Total:       total,
		SessionID:   s.ID,
		CheckoutKey: meta[policies.MetaCheckoutKey],
		Now:         at,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteMetadata, err)
	}
	return r, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var _ commands.Handler[MarkPaidCommand, *MarkPaidResult] = (*MarkPaidHandler)(nil)
