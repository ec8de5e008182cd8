package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidDay   = errors.New("daterange: date must be formatted as YYYY-MM-DD")
)

const (
	// DayLayout is the ISO calendar date used by the HTTP API and storage.
	DayLayout = "2006-01-02"
	// CompactLayout is the basic calendar date used by iCal DATE values.
	CompactLayout = "20060102"
)

// Day truncates t to UTC midnight of its UTC calendar date.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC midnight.
func ParseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDay
	}
	t, err := time.Parse(DayLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, raw)
	}
	return t, nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// AddDays steps n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// DateRange represents a half-open interval [checkIn, checkOut) of UTC calendar days.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDay(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDay(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

// FromInclusive converts an inclusive [start, end] span into a half-open range.
func FromInclusive(start, end time.Time) DateRange {
	return DateRange{CheckIn: Day(start), CheckOut: AddDays(end, 1)}
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts calendar days between checkin and checkout.
func (dr DateRange) Nights() int {
	return dayNumber(dr.CheckOut) - dayNumber(dr.CheckIn)
}

// dayNumber is the count of days from 1970-01-01 to t's UTC date, valid for any year.
func dayNumber(t time.Time) int {
	t = t.UTC()
	y, m, d := t.Year(), int(t.Month()), t.Day()
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// Days lists every night of the stay, from checkin up to but excluding checkout.
func (dr DateRange) Days() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := Day(dr.CheckIn); d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// LastNight returns the inclusive end of the range.
func (dr DateRange) LastNight() time.Time {
	return AddDays(dr.CheckOut, -1)
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Contains(other DateRange) bool {
	return (dr.CheckIn.Before(other.CheckIn) || dr.CheckIn.Equal(other.CheckIn)) &&
		(dr.CheckOut.After(other.CheckOut) || dr.CheckOut.Equal(other.CheckOut))
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = t.UTC()
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

func (dr DateRange) Merge(other DateRange) (DateRange, bool) {
	if !(dr.Overlaps(other) || dr.Adjacent(other)) {
		return DateRange{}, false
	}
	start := dr.CheckIn
	if other.CheckIn.Before(start) {
		start = other.CheckIn
	}
	end := dr.CheckOut
	if other.CheckOut.After(end) {
		end = other.CheckOut
	}
	return DateRange{CheckIn: start, CheckOut: end}, true
}

func (dr DateRange) String() string {
	return FormatDay(dr.CheckIn) + "/" + FormatDay(dr.CheckOut)
}
