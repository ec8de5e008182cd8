package reservations

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/outbox"
	"realty/internal/app/uow"
	"realty/internal/domain/reservation"
)

const expireStaleKey = "reservations.expire_stale"

const defaultSweepLimit = 200

// ExpireStaleCommand abandons pending reservations older than the handler TTL.
type ExpireStaleCommand struct {
	Limit int `validate:"gte=0"`
}

func (ExpireStaleCommand) Key() string { return expireStaleKey }

type ExpireStaleHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	TTL        time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *ExpireStaleHandler) Handle(ctx context.Context, cmd ExpireStaleCommand) (*dto.ExpireResult, error) {
	if h.TTL <= 0 {
		return &dto.ExpireResult{}, nil
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	at := now(h.Now)
	stale, err := scope.Unit.Reservations().ListStalePending(scope.Ctx, at.Add(-h.TTL), limit)
	if err != nil {
		return nil, err
	}
	expired := 0
	for _, r := range stale {
		changed, err := r.Expire(at)
		if err != nil || !changed {
			continue
		}
		if err := scope.Unit.Reservations().Save(scope.Ctx, r); err != nil {
			// A payment may have landed meanwhile; it wins.
			if errors.Is(err, reservation.ErrConcurrentUpdate) {
				continue
			}
			return nil, err
		}
		if err := outbox.Record(scope.Ctx, h.Outbox, h.Encoder, r.Drain()); err != nil {
			return nil, err
		}
		expired++
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}
	if expired > 0 && h.Logger != nil {
		h.Logger.Info("stale reservations expired", "count", expired)
	}
	return &dto.ExpireResult{Expired: expired}, nil
}

var _ commands.Handler[ExpireStaleCommand, *dto.ExpireResult] = (*ExpireStaleHandler)(nil)
