package middleware

import (
	"context"
	"log/slog"

	"realty/internal/app/commands"
	"realty/internal/app/outbox"
)

// OutboxFlush flushes the outbox once a command has succeeded. Flush failures are
// logged only: the records are already durable and the relay retries them.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
