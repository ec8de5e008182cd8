package availability

import (
	"context"
	"fmt"
	"time"

	"realty/internal/app/dto"
	"realty/internal/app/handlers/quotes"
	"realty/internal/app/policies"
	"realty/internal/app/queries"
	"realty/internal/app/uow"
	domainavailability "realty/internal/domain/availability"
	"realty/internal/domain/property"
)

const exportCalendarKey = "availability.export"

// ExportCalendarQuery renders the blocked dates of a property as an iCal feed.
type ExportCalendarQuery struct {
	PropertyID string `validate:"required"`
}

func (ExportCalendarQuery) Key() string { return exportCalendarKey }

type ExportCalendarHandler struct {
	UoWFactory uow.UoWFactory
	Codec      policies.CalendarCodec
	// Domain qualifies event UIDs, e.g. reservation-42@realty.example.
	Domain string
	Now    func() time.Time
}

func (h *ExportCalendarHandler) Handle(ctx context.Context, q ExportCalendarQuery) (dto.CalendarFile, error) {
	p, evs, err := h.events(ctx, property.ID(q.PropertyID))
	if err != nil {
		return dto.CalendarFile{}, err
	}
	body, err := h.Codec.Encode(p.Name, evs)
	if err != nil {
		return dto.CalendarFile{}, err
	}
	return dto.CalendarFile{Name: p.Slug + ".ics", ContentType: "text/calendar; charset=utf-8", Body: body}, nil
}

func (h *ExportCalendarHandler) events(ctx context.Context, id property.ID) (*property.Property, []policies.ExportEvent, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer scope.Close()

	p, err := scope.Unit.Properties().ByID(scope.Ctx, id)
	if err != nil {
		return nil, nil, err
	}
	blocked, err := quotes.LoadBlocked(scope.Ctx, scope.Unit, p.ID)
	if err != nil {
		return nil, nil, err
	}
	stamp := time.Now().UTC()
	if h.Now != nil {
		stamp = h.Now().UTC()
	}
	evs := make([]policies.ExportEvent, 0, len(blocked.Ranges))
	for _, r := range blocked.Ranges {
		evs = append(evs, policies.ExportEvent{
			UID:     h.uid(r),
			Summary: r.Summary,
			Start:   r.Start,
			End:     r.End,
			Stamp:   stamp,
		})
	}
	return p, evs, nil
}

func (h *ExportCalendarHandler) uid(r domainavailability.BlockedRange) string {
	domain := h.Domain
	if domain == "" {
		domain = "realty.local"
	}
	prefix := "block"
	if r.Kind == domainavailability.KindReservation {
		prefix = "reservation"
	}
	return fmt.Sprintf("%s-%s@%s", prefix, r.Reference, domain)
}

var _ queries.Handler[ExportCalendarQuery, dto.CalendarFile] = (*ExportCalendarHandler)(nil)
