package availability

import (
	"time"

	"realty/internal/domain/property"
)

type CalendarSynced struct {
	PropertyID property.ID
	Feeds      int
	Skipped    int
	Imported   int
	Pruned     int
	At         time.Time
}

func (e CalendarSynced) EventName() string     { return "calendar.synced" }
func (e CalendarSynced) AggregateID() string   { return string(e.PropertyID) }
func (e CalendarSynced) OccurredAt() time.Time { return e.At }
