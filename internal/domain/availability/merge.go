package availability

import (
	"sort"
	"time"

	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
)

type Kind string

const (
	KindReservation Kind = "reservation"
	KindExternal    Kind = "external"
)

// BlockedRange is one unavailable span with inclusive Start and End days.
type BlockedRange struct {
	Start     time.Time
	End       time.Time
	Kind      Kind
	Reference string
	Summary   string
}

func (b BlockedRange) Range() daterange.DateRange {
	return daterange.FromInclusive(b.Start, b.End)
}

// Blocked is the union of paid reservations and external blocks for one property.
type Blocked struct {
	Ranges []BlockedRange
}

// Merge builds the blocked view; only paid reservations block dates.
func Merge(reservations []*reservation.Reservation, blocks []ExternalBlock) Blocked {
	ranges := make([]BlockedRange, 0, len(reservations)+len(blocks))
	for _, r := range reservations {
		if r == nil || !r.IsPaid() {
			continue
		}
		ranges = append(ranges, BlockedRange{
			Start:     daterange.Day(r.Range.CheckIn),
			End:       r.Range.LastNight(),
			Kind:      KindReservation,
			Reference: string(r.ID),
			Summary:   "Reserved",
		})
	}
	for _, b := range blocks {
		summary := b.Summary
		if summary == "" {
			summary = "Blocked"
		}
		ranges = append(ranges, BlockedRange{
			Start:     b.Start,
			End:       b.End,
			Kind:      KindExternal,
			Reference: b.ID,
			Summary:   summary,
		})
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		if !ranges[i].Start.Equal(ranges[j].Start) {
			return ranges[i].Start.Before(ranges[j].Start)
		}
		if !ranges[i].End.Equal(ranges[j].End) {
			return ranges[i].End.Before(ranges[j].End)
		}
		return ranges[i].Reference < ranges[j].Reference
	})
	return Blocked{Ranges: ranges}
}

// Overlaps reports whether a requested stay touches any blocked night.
func (b Blocked) Overlaps(dr daterange.DateRange) bool {
	for _, r := range b.Ranges {
		if r.Range().Overlaps(dr) {
			return true
		}
	}
	return false
}

// Union collapses overlapping or adjacent spans into half-open ranges.
func (b Blocked) Union() []daterange.DateRange {
	out := make([]daterange.DateRange, 0, len(b.Ranges))
	for _, r := range b.Ranges {
		current := r.Range()
		if n := len(out); n > 0 {
			if merged, ok := out[n-1].Merge(current); ok {
				out[n-1] = merged
				continue
			}
		}
		out = append(out, current)
	}
	return out
}

// Days flattens the union into individual blocked nights.
func (b Blocked) Days() []time.Time {
	var out []time.Time
	for _, r := range b.Union() {
		out = append(out, r.Days()...)
	}
	return out
}
