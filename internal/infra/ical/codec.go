// Package ical reads external availability feeds and renders the property export.
package ical

import (
	"bytes"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"realty/internal/app/policies"
	"realty/internal/domain/shared/daterange"
)

const (
	timestampLayout    = "20060102T150405"
	timestampUTCLayout = "20060102T150405Z"

	defaultProductID = "-//Realty//Availability//EN"
)

// Codec implements policies.CalendarCodec on top of golang-ical.
type Codec struct {
	ProductID string
}

// Parse returns the VEVENTs of data as inclusive UTC days. A feed that cannot be
// tokenised yields no events; events without a usable start are dropped.
func (c Codec) Parse(data []byte) []policies.FeedEvent {
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil || cal == nil {
		return nil
	}
	var out []policies.FeedEvent
	for _, ev := range cal.Events() {
		start, ok := dayOf(ev.GetProperty(ics.ComponentPropertyDtStart))
		if !ok {
			continue
		}
		end := start
		if exclusive, ok := dayOf(ev.GetProperty(ics.ComponentPropertyDtEnd)); ok && exclusive.After(start) {
			end = daterange.AddDays(exclusive, -1)
		}
		out = append(out, policies.FeedEvent{
			UID:     value(ev.GetProperty(ics.ComponentPropertyUniqueId)),
			Summary: value(ev.GetProperty(ics.ComponentPropertySummary)),
			Start:   start,
			End:     end,
		})
	}
	return out
}

// Encode writes one all-day VEVENT per event with an exclusive DTEND.
func (c Codec) Encode(name string, evs []policies.ExportEvent) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	productID := c.ProductID
	if productID == "" {
		productID = defaultProductID
	}
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	for _, e := range evs {
		ev := cal.AddEvent(e.UID)
		ev.SetDtStampTime(e.Stamp.UTC())
		ev.SetAllDayStartAt(daterange.Day(e.Start))
		ev.SetAllDayEndAt(daterange.AddDays(e.End, 1))
		if e.Summary != "" {
			ev.SetSummary(e.Summary)
		}
	}
	return []byte(cal.Serialize()), nil
}

func value(p *ics.IANAProperty) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Value)
}

// dayOf normalises DATE values, UTC timestamps and zoned or floating timestamps
// to the UTC calendar day they fall on.
func dayOf(p *ics.IANAProperty) (time.Time, bool) {
	raw := value(p)
	if raw == "" {
		return time.Time{}, false
	}
	if len(raw) == len(daterange.CompactLayout) {
		t, err := time.Parse(daterange.CompactLayout, raw)
		return t, err == nil
	}
	if strings.HasSuffix(raw, "Z") {
		t, err := time.Parse(timestampUTCLayout, raw)
		if err != nil {
			return time.Time{}, false
		}
		return daterange.Day(t), true
	}
	loc := time.UTC
	if tzids := p.ICalParameters[string(ics.ParameterTzid)]; len(tzids) > 0 {
		if l, err := time.LoadLocation(strings.Trim(tzids[0], `"`)); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(timestampLayout, raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return daterange.Day(t), true
}

var _ policies.CalendarCodec = Codec{}
