package property

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"realty/internal/domain/shared/money"
)

var (
	ErrNotFound        = errors.New("property: not found")
	ErrIDRequired      = errors.New("property: id required")
	ErrNameRequired    = errors.New("property: name required")
	ErrInvalidSlug     = errors.New("property: slug must be lowercase letters, digits and dashes")
	ErrInvalidBaseRate = errors.New("property: base rate must be positive")
	ErrInvalidPricing  = errors.New("property: pricing amounts cannot be negative")
	ErrInvalidFeedURL  = errors.New("property: feed url must be an absolute http(s) url")
	ErrInvalidGuests   = errors.New("property: max guests cannot be negative")
	ErrInvalidMaxStay  = errors.New("property: max stay nights cannot be negative")
)

const (
	DefaultCurrency = "USD"
	// DefaultMaxStayNights caps a stay when the operator sets no limit.
	DefaultMaxStayNights = 365
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type ID string

// Pricing is the validated nightly pricing configuration of a property.
type Pricing struct {
	BaseRate    money.Money
	WeekendRate *money.Money
	CleaningFee money.Money
	TaxRate     money.Rate
}

type Property struct {
	ID            ID
	Name          string
	Slug          string
	Currency      string
	Pricing       Pricing
	FeedURLs      []string
	DamageDeposit money.Money
	MaxGuests     int
	MaxStayNights int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Property, error)
	List(ctx context.Context) ([]*Property, error)
	Save(ctx context.Context, p *Property) error
}

// Params carries raw operator input; amounts are in minor units.
type Params struct {
	ID                 ID
	Name               string
	Slug               string
	Currency           string
	BaseRateCents      int64
	WeekendRateCents   *int64
	CleaningFeeCents   int64
	TaxRate            float64
	FeedURLs           []string
	DamageDepositCents int64
	MaxGuests          int
	MaxStayNights      int
	Now                time.Time
}

// New validates and defaults operator input into a Property.
func New(params Params) (*Property, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	slug := strings.TrimSpace(params.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidSlug
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	base, err := money.New(params.BaseRateCents, currency)
	if err != nil {
		return nil, err
	}
	if base.Amount <= 0 {
		return nil, ErrInvalidBaseRate
	}
	if params.CleaningFeeCents < 0 || params.DamageDepositCents < 0 {
		return nil, ErrInvalidPricing
	}
	if params.MaxGuests < 0 {
		return nil, ErrInvalidGuests
	}
	maxStay := params.MaxStayNights
	if maxStay < 0 {
		return nil, ErrInvalidMaxStay
	}
	if maxStay == 0 {
		maxStay = DefaultMaxStayNights
	}
	taxRate, err := money.RateFromFloat(params.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("property: %w", err)
	}
	pricing := Pricing{
		BaseRate:    base,
		CleaningFee: money.Money{Amount: params.CleaningFeeCents, Currency: base.Currency},
		TaxRate:     taxRate,
	}
	if params.WeekendRateCents != nil && *params.WeekendRateCents > 0 {
		weekend := money.Money{Amount: *params.WeekendRateCents, Currency: base.Currency}
		pricing.WeekendRate = &weekend
	}
	feeds, err := NormalizeFeedURLs(params.FeedURLs)
	if err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &Property{
		ID:            params.ID,
		Name:          name,
		Slug:          slug,
		Currency:      base.Currency,
		Pricing:       pricing,
		FeedURLs:      feeds,
		DamageDeposit: money.Money{Amount: params.DamageDepositCents, Currency: base.Currency},
		MaxGuests:     params.MaxGuests,
		MaxStayNights: maxStay,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Replace applies new operator input while keeping identity and creation time.
func (p *Property) Replace(params Params) error {
	params.ID = p.ID
	next, err := New(params)
	if err != nil {
		return err
	}
	next.CreatedAt = p.CreatedAt
	*p = *next
	return nil
}

// AllowsGuests reports whether the guest count fits the property.
func (p *Property) AllowsGuests(n int) bool {
	if n <= 0 {
		return false
	}
	return p.MaxGuests == 0 || n <= p.MaxGuests
}

// StayLimit returns the longest bookable stay in nights.
func (p *Property) StayLimit() int {
	if p.MaxStayNights <= 0 {
		return DefaultMaxStayNights
	}
	return p.MaxStayNights
}

// NormalizeFeedURLs trims, validates and deduplicates feed urls keeping their order.
func NormalizeFeedURLs(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, candidate := range raw {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		// webcal:// is how most platforms advertise their feeds.
		if strings.HasPrefix(strings.ToLower(candidate), "webcal://") {
			candidate = "https://" + candidate[len("webcal://"):]
		}
		u, err := url.Parse(candidate)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFeedURL, candidate)
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out, nil
}

func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
