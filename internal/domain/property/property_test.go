package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsAndNormalizes(t *testing.T) {
	weekend := int64(15000)
	p, err := New(Params{
		ID:               "cabin",
		Name:             "Lakeside Cabin #2",
		BaseRateCents:    10000,
		WeekendRateCents: &weekend,
		CleaningFeeCents: 5000,
		TaxRate:          0.1,
		FeedURLs: []string{
			" https://www.airbnb.com/calendar/ical/1.ics ",
			"webcal://example.com/feed.ics",
			"https://www.airbnb.com/calendar/ical/1.ics",
			"",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "lakeside-cabin-2", p.Slug)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, int64(10000), p.Pricing.BaseRate.Amount)
	require.NotNil(t, p.Pricing.WeekendRate)
	assert.Equal(t, "USD", p.Pricing.WeekendRate.Currency)
	assert.Equal(t, []string{"https://www.airbnb.com/calendar/ical/1.ics", "https://example.com/feed.ics"}, p.FeedURLs)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, DefaultMaxStayNights, p.StayLimit())
}

func TestNewValidation(t *testing.T) {
	base := Params{ID: "x", Name: "X", BaseRateCents: 100}

	p := base
	p.BaseRateCents = 0
	_, err := New(p)
	assert.ErrorIs(t, err, ErrInvalidBaseRate)

	p = base
	p.Name = " "
	_, err = New(p)
	assert.ErrorIs(t, err, ErrNameRequired)

	p = base
	p.FeedURLs = []string{"ftp://host/feed"}
	_, err = New(p)
	assert.ErrorIs(t, err, ErrInvalidFeedURL)

	p = base
	p.TaxRate = 1.5
	_, err = New(p)
	assert.Error(t, err)

	p = base
	p.MaxStayNights = -1
	_, err = New(p)
	assert.ErrorIs(t, err, ErrInvalidMaxStay)

	p = base
	p.Slug = "Not A Slug"
	_, err = New(p)
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func TestReplaceKeepsIdentity(t *testing.T) {
	p, err := New(Params{ID: "x", Name: "X", BaseRateCents: 100})
	require.NoError(t, err)
	created := p.CreatedAt

	require.NoError(t, p.Replace(Params{ID: "other", Name: "Y", BaseRateCents: 200, MaxGuests: 4}))
	assert.Equal(t, ID("x"), p.ID)
	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, int64(200), p.Pricing.BaseRate.Amount)
	assert.True(t, p.AllowsGuests(4))
	assert.False(t, p.AllowsGuests(5))
	assert.False(t, p.AllowsGuests(0))
}
