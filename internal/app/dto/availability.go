package dto

import (
	"realty/internal/domain/availability"
	"realty/internal/domain/shared/daterange"
)

type BlockedRange struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
	Summary   string `json:"summary"`
}

type Span struct {
	CheckIn  string `json:"start"`
	CheckOut string `json:"end_exclusive"`
}

type BlockedDates struct {
	PropertyID string         `json:"property_id"`
	Ranges     []BlockedRange `json:"ranges"`
	Merged     []Span         `json:"merged"`
	Days       []string       `json:"days"`
}

func MapBlocked(propertyID string, b availability.Blocked) BlockedDates {
	out := BlockedDates{
		PropertyID: propertyID,
		Ranges:     make([]BlockedRange, 0, len(b.Ranges)),
		Merged:     []Span{},
		Days:       []string{},
	}
	for _, r := range b.Ranges {
		out.Ranges = append(out.Ranges, BlockedRange{
			Start:     daterange.FormatDay(r.Start),
			End:       daterange.FormatDay(r.End),
			Kind:      string(r.Kind),
			Reference: r.Reference,
			Summary:   r.Summary,
		})
	}
	for _, span := range b.Union() {
		out.Merged = append(out.Merged, Span{CheckIn: daterange.FormatDay(span.CheckIn), CheckOut: daterange.FormatDay(span.CheckOut)})
	}
	for _, d := range b.Days() {
		out.Days = append(out.Days, daterange.FormatDay(d))
	}
	return out
}

// CalendarFile is an exported iCal document.
type CalendarFile struct {
	Name        string
	ContentType string
	Body        []byte
}

type PublishedCalendar struct {
	PropertyID string `json:"property_id"`
	URL        string `json:"url"`
	Events     int    `json:"events"`
}

type SyncResult struct {
	OK       bool `json:"ok"`
	Feeds    int  `json:"feeds"`
	Imported int  `json:"imported"`
	Skipped  int  `json:"skipped"`
	Pruned   int  `json:"pruned,omitempty"`
}

type SyncAllResult struct {
	Properties int `json:"properties"`
	Failed     int `json:"failed"`
	Imported   int `json:"imported"`
}
