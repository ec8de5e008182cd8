package main

import (
	"context"
	"log/slog"

	"realty/internal/app/bootstrap"
	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/handlers/calendarsync"
	"realty/internal/app/handlers/reservations"
	"realty/internal/app/schedule"
	"realty/internal/infra/config"
)

func scheduler(app *bootstrap.App, cfg config.Config, logger *slog.Logger) *schedule.Ticker {
	return &schedule.Ticker{
		Logger: logger,
		Jobs: []schedule.Job{
			{
				Name:     "calendar-sync",
				Interval: cfg.SyncInterval,
				Run: func(ctx context.Context) error {
					res, err := commands.Dispatch[calendarsync.SyncAllCommand, *dto.SyncAllResult](ctx, app.Commands, calendarsync.SyncAllCommand{})
					if err != nil {
						return err
					}
					logger.Info("calendar sync finished", "properties", res.Properties, "failed", res.Failed, "imported", res.Imported)
					return nil
				},
			},
			{
				Name:     "expire-pending",
				Interval: cfg.ExpiryInterval,
				Run: func(ctx context.Context) error {
					res, err := commands.Dispatch[reservations.ExpireStaleCommand, *dto.ExpireResult](ctx, app.Commands, reservations.ExpireStaleCommand{})
					if err != nil {
						return err
					}
					if res.Expired > 0 {
						logger.Info("stale reservations expired", "count", res.Expired)
					}
					return nil
				},
			},
		},
	}
}
