package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/outbox"
	"realty/internal/app/uow"
	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

const createPendingKey = "reservations.create_pending"

// CreatePendingCommand records a checkout attempt under its payment session id.
type CreatePendingCommand struct {
	PropertyID  string `validate:"required"`
	Range       daterange.DateRange
	Guests      int `validate:"gte=1"`
	Guest       reservation.Guest
	Notes       string
	Total       money.Money
	SessionID   string `validate:"required"`
	CheckoutKey string
}

func (CreatePendingCommand) Key() string { return createPendingKey }

type CreatePendingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

// Handle inserts the pending row, or refreshes the booking fields of an existing row with
// the same session id. The stored status always wins, so a late call never undoes paid.
func (h *CreatePendingHandler) Handle(ctx context.Context, cmd CreatePendingCommand) (*dto.Reservation, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	draft, err := reservation.NewPending(reservation.PendingParams{
		ID:          reservation.ID(uuid.NewString()),
		PropertyID:  property.ID(cmd.PropertyID),
		Range:       cmd.Range,
		Guests:      cmd.Guests,
		Guest:       cmd.Guest,
		Notes:       cmd.Notes,
		Total:       cmd.Total,
		SessionID:   cmd.SessionID,
		CheckoutKey: cmd.CheckoutKey,
		Now:         now(h.Now),
	})
	if err != nil {
		return nil, err
	}
	stored, err := scope.Unit.Reservations().UpsertPending(scope.Ctx, draft)
	if err != nil {
		return nil, err
	}
	if stored.ID == draft.ID {
		if err := outbox.Record(scope.Ctx, h.Outbox, h.Encoder, draft.Drain()); err != nil {
			return nil, err
		}
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}
	out := dto.MapReservation(stored)
	return &out, nil
}

func now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CreatePendingCommand, *dto.Reservation] = (*CreatePendingHandler)(nil)
