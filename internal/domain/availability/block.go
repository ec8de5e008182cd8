package availability

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
)

var (
	ErrDatesUnavailable = errors.New("availability: requested dates overlap an existing booking or block")
	ErrBlockRange       = errors.New("availability: block end must not precede start")
)

// ExternalBlock is a date span imported from one external calendar feed (its source).
// Start and End are inclusive calendar days.
type ExternalBlock struct {
	ID         string
	PropertyID property.ID
	Start      time.Time
	End        time.Time
	Source     string
	UID        string
	Summary    string
	ImportedAt time.Time
}

type Repository interface {
	ListByProperty(ctx context.Context, id property.ID) ([]ExternalBlock, error)
	// ReplaceForSource atomically swaps every block of (property, source) for blocks.
	ReplaceForSource(ctx context.Context, id property.ID, source string, blocks []ExternalBlock) error
	// DeleteSourcesExcept drops blocks whose source is not listed and reports how many were removed.
	DeleteSourcesExcept(ctx context.Context, id property.ID, keep []string) (int, error)
}

// NewExternalBlock normalizes the span to UTC days and derives a stable id.
func NewExternalBlock(id property.ID, source, uid, summary string, start, end time.Time, now time.Time) (ExternalBlock, error) {
	start, end = daterange.Day(start), daterange.Day(end)
	if start.IsZero() || end.Before(start) {
		return ExternalBlock{}, ErrBlockRange
	}
	return ExternalBlock{
		ID:         blockID(id, source, uid, start, end),
		PropertyID: id,
		Start:      start,
		End:        end,
		Source:     source,
		UID:        uid,
		Summary:    summary,
		ImportedAt: now.UTC(),
	}, nil
}

func (b ExternalBlock) Range() daterange.DateRange {
	return daterange.FromInclusive(b.Start, b.End)
}

// blockID is deterministic so the export keeps the same UID across syncs.
func blockID(id property.ID, source, uid string, start, end time.Time) string {
	h := sha1.New()
	h.Write([]byte(string(id)))
	h.Write([]byte{0})
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(uid))
	h.Write([]byte{0})
	h.Write([]byte(daterange.FormatDay(start)))
	h.Write([]byte(daterange.FormatDay(end)))
	return hex.EncodeToString(h.Sum(nil))[:20]
}
