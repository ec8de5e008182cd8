package reservation

import (
	"time"

	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

type PendingCreated struct {
	ReservationID ID
	PropertyID    property.ID
	SessionID     string
	Range         daterange.DateRange
	Total         money.Money
	At            time.Time
}

func (e PendingCreated) EventName() string     { return "reservation.pending" }
func (e PendingCreated) AggregateID() string   { return string(e.ReservationID) }
func (e PendingCreated) OccurredAt() time.Time { return e.At }

type Paid struct {
	ReservationID ID
	PropertyID    property.ID
	SessionID     string
	Range         daterange.DateRange
	Total         money.Money
	From          Status
	At            time.Time
}

func (e Paid) EventName() string     { return "reservation.paid" }
func (e Paid) AggregateID() string   { return string(e.ReservationID) }
func (e Paid) OccurredAt() time.Time { return e.At }

type Expired struct {
	ReservationID ID
	SessionID     string
	At            time.Time
}

func (e Expired) EventName() string     { return "reservation.expired" }
func (e Expired) AggregateID() string   { return string(e.ReservationID) }
func (e Expired) OccurredAt() time.Time { return e.At }
