package memory

import (
	"context"
	"sort"
	"sync"

	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
)

// PropertyRepository keeps properties in a map; callers get copies.
type PropertyRepository struct {
	mu    sync.RWMutex
	items map[property.ID]property.Property
}

func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{items: make(map[property.ID]property.Property)}
}

func (r *PropertyRepository) ByID(_ context.Context, id property.ID) (*property.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, property.ErrNotFound
	}
	return cloneProperty(p), nil
}

func (r *PropertyRepository) List(_ context.Context) ([]*property.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*property.Property, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, cloneProperty(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *PropertyRepository) Save(_ context.Context, p *property.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = *cloneProperty(*p)
	return nil
}

func cloneProperty(p property.Property) *property.Property {
	p.FeedURLs = append([]string(nil), p.FeedURLs...)
	if p.Pricing.WeekendRate != nil {
		w := *p.Pricing.WeekendRate
		p.Pricing.WeekendRate = &w
	}
	return &p
}

type RateRuleRepository struct {
	mu    sync.RWMutex
	items map[property.ID][]pricing.RateRule
}

func NewRateRuleRepository() *RateRuleRepository {
	return &RateRuleRepository{items: make(map[property.ID][]pricing.RateRule)}
}

func (r *RateRuleRepository) ListByProperty(_ context.Context, id property.ID) ([]pricing.RateRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]pricing.RateRule(nil), r.items[id]...), nil
}

func (r *RateRuleRepository) Save(_ context.Context, rule pricing.RateRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rules := r.items[rule.PropertyID]
	for i := range rules {
		if rules[i].ID == rule.ID {
			rules[i] = rule
			return nil
		}
	}
	r.items[rule.PropertyID] = append(rules, rule)
	return nil
}

func (r *RateRuleRepository) Delete(_ context.Context, propertyID property.ID, id pricing.RuleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rules := r.items[propertyID]
	for i := range rules {
		if rules[i].ID == id {
			r.items[propertyID] = append(rules[:i:i], rules[i+1:]...)
			return nil
		}
	}
	return pricing.ErrRuleNotFound
}
