package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "realty/internal/app/outbox"
	infraoutbox "realty/internal/infra/outbox"
)

// Outbox queues records in memory for the relay worker.
type Outbox struct {
	mu      sync.Mutex
	records []*infraoutbox.EventDocument
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(_ context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	o.records = append(o.records, &infraoutbox.EventDocument{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       infraoutbox.StateNew,
		NextAttempt: now,
		CreatedAt:   now,
	})
	return nil
}

// Flush compacts records that were already relayed.
func (o *Outbox) Flush(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.records[:0]
	for _, rec := range o.records {
		if rec.State != infraoutbox.StateSent {
			kept = append(kept, rec)
		}
	}
	o.records = kept
	return nil
}

func (o *Outbox) Claim(_ context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, rec := range o.records {
		if (rec.State == infraoutbox.StateNew || rec.State == infraoutbox.StateFailed) && !rec.NextAttempt.After(now) {
			rec.State = infraoutbox.StateClaimed
			rec.ClaimedBy = workerID
			rec.ClaimedAt = now
			doc := *rec
			return &doc, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	return o.update(id, func(rec *infraoutbox.EventDocument) {
		rec.State = infraoutbox.StateSent
		rec.SentAt = time.Now().UTC()
	})
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	return o.update(id, func(rec *infraoutbox.EventDocument) {
		rec.State = infraoutbox.StateFailed
		rec.NextAttempt = next
		rec.LastError = errMsg
		rec.Attempts++
	})
}

func (o *Outbox) update(id string, fn func(*infraoutbox.EventDocument)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range o.records {
		if rec.ID == id {
			fn(rec)
			return nil
		}
	}
	return nil
}

// Pending lists event names not yet relayed, oldest first.
func (o *Outbox) Pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, rec := range o.records {
		if rec.State != infraoutbox.StateSent {
			out = append(out, rec.Name)
		}
	}
	return out
}

var _ appoutbox.Outbox = (*Outbox)(nil)
var _ infraoutbox.Source = (*Outbox)(nil)
