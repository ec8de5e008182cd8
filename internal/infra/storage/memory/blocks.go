package memory

import (
	"context"
	"sort"
	"sync"

	"realty/internal/domain/availability"
	"realty/internal/domain/property"
)

type BlockRepository struct {
	mu    sync.RWMutex
	items map[property.ID]map[string][]availability.ExternalBlock
}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{items: make(map[property.ID]map[string][]availability.ExternalBlock)}
}

func (r *BlockRepository) ListByProperty(_ context.Context, id property.ID) ([]availability.ExternalBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []availability.ExternalBlock
	for _, blocks := range r.items[id] {
		out = append(out, blocks...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ReplaceForSource swaps the slice under the lock, so readers see old or new, never empty.
func (r *BlockRepository) ReplaceForSource(_ context.Context, id property.ID, source string, blocks []availability.ExternalBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sources, ok := r.items[id]
	if !ok {
		sources = make(map[string][]availability.ExternalBlock)
		r.items[id] = sources
	}
	if len(blocks) == 0 {
		delete(sources, source)
		return nil
	}
	sources[source] = append([]availability.ExternalBlock(nil), blocks...)
	return nil
}

func (r *BlockRepository) DeleteSourcesExcept(_ context.Context, id property.ID, keep []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		allowed[k] = struct{}{}
	}
	removed := 0
	for source, blocks := range r.items[id] {
		if _, ok := allowed[source]; ok {
			continue
		}
		removed += len(blocks)
		delete(r.items[id], source)
	}
	return removed, nil
}
