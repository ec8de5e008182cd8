package calendarsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/middleware"
	"realty/internal/app/outbox"
	"realty/internal/app/policies"
	"realty/internal/app/uow"
	"realty/internal/domain/availability"
	"realty/internal/domain/property"
	"realty/internal/domain/shared/events"
)

const (
	syncCalendarsKey = "calendars.sync"
	syncAllKey       = "calendars.sync_all"

	defaultLockTTL = 5 * time.Minute
)

var ErrSyncInProgress = errors.New("calendarsync: a sync for this property is already running")

// SyncCalendarsCommand imports every configured feed of one property.
type SyncCalendarsCommand struct {
	PropertyID string `validate:"required"`
}

func (SyncCalendarsCommand) Key() string { return syncCalendarsKey }

func (SyncCalendarsCommand) ManagesOwnTransaction() bool { return true }

// SyncAllCommand runs SyncCalendarsCommand semantics for every property.
type SyncAllCommand struct{}

func (SyncAllCommand) Key() string { return syncAllKey }

func (SyncAllCommand) ManagesOwnTransaction() bool { return true }

type Handler struct {
	UoWFactory uow.UoWFactory
	Fetcher    policies.FeedFetcher
	Codec      policies.CalendarCodec
	Locker     policies.Locker
	LockTTL    time.Duration
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *Handler) Handle(ctx context.Context, cmd SyncCalendarsCommand) (*dto.SyncResult, error) {
	p, err := h.loadProperty(ctx, property.ID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	return h.sync(ctx, p)
}

func (h *Handler) HandleAll(ctx context.Context, _ SyncAllCommand) (*dto.SyncAllResult, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	props, err := scope.Unit.Properties().List(scope.Ctx)
	scope.Close()
	if err != nil {
		return nil, err
	}
	out := &dto.SyncAllResult{}
	for _, p := range props {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		res, err := h.sync(ctx, p)
		if err != nil {
			if !errors.Is(err, ErrSyncInProgress) {
				out.Failed++
				h.log().Error("calendar sync failed", "property_id", p.ID, "error", err)
			}
			continue
		}
		out.Properties++
		out.Imported += res.Imported
	}
	return out, nil
}

func (h *Handler) loadProperty(ctx context.Context, id property.ID) (*property.Property, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	return scope.Unit.Properties().ByID(scope.Ctx, id)
}

func (h *Handler) sync(ctx context.Context, p *property.Property) (*dto.SyncResult, error) {
	if h.Locker != nil {
		ttl := h.LockTTL
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		release, err := h.Locker.Acquire(ctx, "calendar-sync:"+string(p.ID), ttl)
		if errors.Is(err, policies.ErrLockHeld) {
			return nil, ErrSyncInProgress
		}
		if err != nil {
			return nil, err
		}
		defer release()
	}

	out := &dto.SyncResult{OK: true}
	for _, feed := range p.FeedURLs {
		imported, err := h.importFeed(ctx, p, feed)
		if err != nil {
			if errors.Is(err, errFeedUnavailable) {
				out.Skipped++
				continue
			}
			return nil, err
		}
		out.Feeds++
		out.Imported += imported
	}

	pruned, err := h.finish(ctx, p, out)
	if err != nil {
		return nil, err
	}
	out.Pruned = pruned
	h.log().Info("calendar sync finished", "property_id", p.ID, "feeds", out.Feeds, "imported", out.Imported, "skipped", out.Skipped, "pruned", pruned)
	return out, nil
}

var errFeedUnavailable = errors.New("calendarsync: feed unavailable")

// importFeed replaces the blocks of one source in a single unit of work so readers
// never observe the source half written.
func (h *Handler) importFeed(ctx context.Context, p *property.Property, feed string) (int, error) {
	if h.Fetcher == nil || h.Codec == nil {
		return 0, errFeedUnavailable
	}
	body, err := h.Fetcher.Fetch(ctx, feed)
	if err != nil {
		h.log().Warn("calendar feed skipped", "property_id", p.ID, "feed", feed, "error", err)
		return 0, errFeedUnavailable
	}
	at := h.now()
	parsed := h.Codec.Parse(body)
	blocks := make([]availability.ExternalBlock, 0, len(parsed))
	seen := make(map[string]struct{}, len(parsed))
	for _, ev := range parsed {
		b, err := availability.NewExternalBlock(p.ID, feed, ev.UID, ev.Summary, ev.Start, ev.End, at)
		if err != nil {
			continue
		}
		// Feeds repeat events; the first copy wins.
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		blocks = append(blocks, b)
	}

	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer scope.Close()
	if err := scope.Unit.Blocks().ReplaceForSource(scope.Ctx, p.ID, feed, blocks); err != nil {
		return 0, err
	}
	if err := scope.Commit(); err != nil {
		return 0, err
	}
	return len(blocks), nil
}

func (h *Handler) finish(ctx context.Context, p *property.Property, res *dto.SyncResult) (int, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer scope.Close()
	pruned, err := scope.Unit.Blocks().DeleteSourcesExcept(scope.Ctx, p.ID, p.FeedURLs)
	if err != nil {
		return 0, err
	}
	ev := availability.CalendarSynced{PropertyID: p.ID, Feeds: res.Feeds, Skipped: res.Skipped, Imported: res.Imported, Pruned: pruned, At: h.now()}
	if err := outbox.Record(scope.Ctx, h.Outbox, h.Encoder, []events.DomainEvent{ev}); err != nil {
		return 0, err
	}
	return pruned, scope.Commit()
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *Handler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// AllHandler exposes HandleAll as a bus handler.
type AllHandler struct{ *Handler }

func (a AllHandler) Handle(ctx context.Context, cmd SyncAllCommand) (*dto.SyncAllResult, error) {
	return a.HandleAll(ctx, cmd)
}

var _ commands.Handler[SyncCalendarsCommand, *dto.SyncResult] = (*Handler)(nil)
var _ commands.Handler[SyncAllCommand, *dto.SyncAllResult] = AllHandler{}
var _ middleware.SelfManaged = SyncCalendarsCommand{}
