// Package bootstrap registers every handler on the command and query buses and wraps
// them in the middleware pipeline. Adapters are passed in, so the same wiring serves
// the process entrypoint and end to end tests.
package bootstrap

import (
	"errors"
	"log/slog"
	"time"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/handlers/availability"
	"realty/internal/app/handlers/calendarsync"
	"realty/internal/app/handlers/checkout"
	"realty/internal/app/handlers/payments"
	"realty/internal/app/handlers/properties"
	"realty/internal/app/handlers/quotes"
	"realty/internal/app/handlers/reservations"
	"realty/internal/app/middleware"
	"realty/internal/app/outbox"
	"realty/internal/app/policies"
	"realty/internal/app/queries"
	"realty/internal/app/uow"
)

var ErrMissingDependency = errors.New("bootstrap: required dependency missing")

// Settings are the tunables the handlers read.
type Settings struct {
	SuccessURL          string
	CancelURL           string
	CheckoutSessionTTL  time.Duration
	PendingTTL          time.Duration
	EnforceAvailability bool
	CalendarDomain      string
	SyncLockTTL         time.Duration
}

type Deps struct {
	UoWFactory  uow.UoWFactory
	Outbox      outbox.Outbox
	Idempotency middleware.IdempotencyStore
	Validator   middleware.Validator
	Gateway     policies.PaymentGateway
	Verifier    policies.PaymentEventVerifier
	Inbox       policies.Inbox
	Notifier    policies.Notifier
	Fetcher     policies.FeedFetcher
	Codec       policies.CalendarCodec
	Locker      policies.Locker
	// Publisher is optional; without it publishing answers ErrPublisherDisabled.
	Publisher policies.CalendarPublisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// App holds the decorated buses.
type App struct {
	Commands commands.Bus
	Queries  queries.Bus
}

func Build(deps Deps, settings Settings) (*App, error) {
	if deps.UoWFactory == nil || deps.Outbox == nil || deps.Idempotency == nil || deps.Validator == nil {
		return nil, ErrMissingDependency
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	encoder := outbox.JSONEventEncoder{}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()

	// Handlers that dispatch nested commands go through the decorated bus, so the
	// nested write gets its own transaction and outbox flush.
	cmds := middleware.ChainCommands(commandBus,
		middleware.Validation(deps.Validator),
		middleware.Idempotency(deps.Idempotency, nil),
		middleware.Transaction(deps.UoWFactory, nil),
		middleware.OutboxFlush(deps.Outbox, logger),
	)
	qs := middleware.ChainQueries(queryBus, middleware.QueryValidation(deps.Validator))

	queries.Register[quotes.GetQuoteQuery, dto.Quote](queryBus, &quotes.GetQuoteHandler{UoWFactory: deps.UoWFactory})

	commands.Register[reservations.CreatePendingCommand, *dto.Reservation](commandBus, &reservations.CreatePendingHandler{
		UoWFactory: deps.UoWFactory,
		Outbox:     deps.Outbox,
		Encoder:    encoder,
		Now:        now,
	})
	commands.Register[reservations.MarkPaidCommand, *reservations.MarkPaidResult](commandBus, &reservations.MarkPaidHandler{
		UoWFactory: deps.UoWFactory,
		Outbox:     deps.Outbox,
		Encoder:    encoder,
		Logger:     logger,
		Now:        now,
	})
	commands.Register[reservations.ExpireSessionCommand, bool](commandBus, &reservations.ExpireSessionHandler{
		UoWFactory: deps.UoWFactory,
		Outbox:     deps.Outbox,
		Encoder:    encoder,
		Now:        now,
	})
	commands.Register[reservations.ExpireStaleCommand, *dto.ExpireResult](commandBus, &reservations.ExpireStaleHandler{
		UoWFactory: deps.UoWFactory,
		Outbox:     deps.Outbox,
		Encoder:    encoder,
		TTL:        settings.PendingTTL,
		Logger:     logger,
		Now:        now,
	})

	commands.Register[checkout.CreateCheckoutCommand, *dto.CheckoutResult](commandBus, &checkout.CreateCheckoutHandler{
		UoWFactory:          deps.UoWFactory,
		Gateway:             deps.Gateway,
		Commands:            cmds,
		SuccessURL:          settings.SuccessURL,
		CancelURL:           settings.CancelURL,
		SessionTTL:          settings.CheckoutSessionTTL,
		EnforceAvailability: settings.EnforceAvailability,
		Logger:              logger,
		Now:                 now,
	})

	fulfiller := payments.Fulfiller{Commands: cmds, Notifier: deps.Notifier, Logger: logger}
	commands.Register[payments.HandleWebhookCommand, *dto.Fulfillment](commandBus, &payments.HandleWebhookHandler{
		Verifier:  deps.Verifier,
		Inbox:     deps.Inbox,
		Fulfiller: fulfiller,
	})
	commands.Register[payments.RetryFulfillmentCommand, *dto.Fulfillment](commandBus, &payments.RetryFulfillmentHandler{
		Gateway:    deps.Gateway,
		UoWFactory: deps.UoWFactory,
		Now:        now,
		Fulfiller:  fulfiller,
	})

	sync := &calendarsync.Handler{
		UoWFactory: deps.UoWFactory,
		Fetcher:    deps.Fetcher,
		Codec:      deps.Codec,
		Locker:     deps.Locker,
		LockTTL:    settings.SyncLockTTL,
		Outbox:     deps.Outbox,
		Encoder:    encoder,
		Logger:     logger,
		Now:        now,
	}
	commands.Register[calendarsync.SyncCalendarsCommand, *dto.SyncResult](commandBus, sync)
	commands.Register[calendarsync.SyncAllCommand, *dto.SyncAllResult](commandBus, calendarsync.AllHandler{Handler: sync})

	export := &availability.ExportCalendarHandler{
		UoWFactory: deps.UoWFactory,
		Codec:      deps.Codec,
		Domain:     settings.CalendarDomain,
		Now:        now,
	}
	queries.Register[availability.ExportCalendarQuery, dto.CalendarFile](queryBus, export)
	queries.Register[availability.GetBlockedDatesQuery, dto.BlockedDates](queryBus, &availability.GetBlockedDatesHandler{UoWFactory: deps.UoWFactory})
	commands.Register[availability.PublishCalendarCommand, *dto.PublishedCalendar](commandBus, &availability.PublishCalendarHandler{
		Export:    export,
		Publisher: deps.Publisher,
	})

	(&properties.Handlers{UoWFactory: deps.UoWFactory, Now: now}).Register(commandBus)
	(&properties.Queries{UoWFactory: deps.UoWFactory}).Register(queryBus)

	return &App{Commands: cmds, Queries: qs}, nil
}
