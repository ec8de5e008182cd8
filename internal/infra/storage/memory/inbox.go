package memory

import (
	"context"
	"sync"

	"realty/internal/app/policies"
)

type Inbox struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{seen: make(map[string]struct{})}
}

func (i *Inbox) Processed(_ context.Context, eventID string) (bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.seen[eventID]
	return ok, nil
}

func (i *Inbox) MarkProcessed(_ context.Context, eventID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[eventID] = struct{}{}
	return nil
}

var _ policies.Inbox = (*Inbox)(nil)
