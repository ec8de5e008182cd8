package availability

import (
	"context"
	"errors"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/policies"
	"realty/internal/domain/property"
)

const publishCalendarKey = "availability.publish"

var ErrPublisherDisabled = errors.New("availability: calendar publishing is not configured")

// PublishCalendarCommand uploads the current export to object storage.
type PublishCalendarCommand struct {
	PropertyID string `validate:"required"`
}

func (PublishCalendarCommand) Key() string { return publishCalendarKey }

func (PublishCalendarCommand) ManagesOwnTransaction() bool { return true }

type PublishCalendarHandler struct {
	Export    *ExportCalendarHandler
	Publisher policies.CalendarPublisher
}

func (h *PublishCalendarHandler) Handle(ctx context.Context, cmd PublishCalendarCommand) (*dto.PublishedCalendar, error) {
	if h.Publisher == nil || h.Export == nil {
		return nil, ErrPublisherDisabled
	}
	p, evs, err := h.Export.events(ctx, property.ID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	body, err := h.Export.Codec.Encode(p.Name, evs)
	if err != nil {
		return nil, err
	}
	url, err := h.Publisher.Publish(ctx, "calendars/"+p.Slug+".ics", body)
	if err != nil {
		return nil, err
	}
	return &dto.PublishedCalendar{PropertyID: string(p.ID), URL: url, Events: len(evs)}, nil
}

var _ commands.Handler[PublishCalendarCommand, *dto.PublishedCalendar] = (*PublishCalendarHandler)(nil)
