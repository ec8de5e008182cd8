package reservations

import (
	"context"
	"errors"
	"time"

	"realty/internal/app/commands"
	"realty/internal/app/outbox"
	"realty/internal/app/uow"
	"realty/internal/domain/reservation"
)

const expireSessionKey = "reservations.expire_session"

// ExpireSessionCommand reacts to the provider abandoning a checkout session.
type ExpireSessionCommand struct {
	SessionID string `validate:"required"`
}

func (ExpireSessionCommand) Key() string { return expireSessionKey }

type ExpireSessionHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

// Handle reports whether a pending reservation was expired; unknown or paid
// reservations are left alone.
func (h *ExpireSessionHandler) Handle(ctx context.Context, cmd ExpireSessionCommand) (bool, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return false, err
	}
	defer scope.Close()

	r, err := scope.Unit.Reservations().BySessionID(scope.Ctx, cmd.SessionID)
	if errors.Is(err, reservation.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	changed, err := r.Expire(now(h.Now))
	if errors.Is(err, reservation.ErrInvalidState) || (err == nil && !changed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := scope.Unit.Reservations().Save(scope.Ctx, r); err != nil {
		return false, err
	}
	if err := outbox.Record(scope.Ctx, h.Outbox, h.Encoder, r.Drain()); err != nil {
		return false, err
	}
	if err := scope.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

var _ commands.Handler[ExpireSessionCommand, bool] = (*ExpireSessionHandler)(nil)
