package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"realty/internal/app/bootstrap"
	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/handlers/properties"
	"realty/internal/app/queries"
)

type propertyFixture struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Slug               string        `json:"slug"`
	Currency           string        `json:"currency"`
	BaseRateCents      int64         `json:"base_rate_cents"`
	WeekendRateCents   *int64        `json:"weekend_rate_cents"`
	CleaningFeeCents   int64         `json:"cleaning_fee_cents"`
	TaxRate            float64       `json:"tax_rate"`
	FeedURLs           []string      `json:"feed_urls"`
	DamageDepositCents int64         `json:"damage_deposit_cents"`
	MaxGuests          int           `json:"max_guests"`
	MaxStayNights      int           `json:"max_stay_nights"`
	Rates              []rateFixture `json:"rates"`
}

type rateFixture struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	RateCents int64  `json:"rate_cents"`
	MinNights int    `json:"min_nights"`
	Priority  int    `json:"priority"`
	Notes     string `json:"notes"`
}

// loadPropertyFixtures saves each property through the command bus. Rate rules are
// added only to properties that have none yet.
func loadPropertyFixtures(ctx context.Context, app *bootstrap.App, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	for _, fx := range fixtures {
		_, err := commands.Dispatch[properties.SavePropertyCommand, *dto.Property](ctx, app.Commands, properties.SavePropertyCommand{
			ID:                 fx.ID,
			Name:               fx.Name,
			Slug:               fx.Slug,
			Currency:           fx.Currency,
			BaseRateCents:      fx.BaseRateCents,
			WeekendRateCents:   fx.WeekendRateCents,
			CleaningFeeCents:   fx.CleaningFeeCents,
			TaxRate:            fx.TaxRate,
			FeedURLs:           fx.FeedURLs,
			DamageDepositCents: fx.DamageDepositCents,
			MaxGuests:          fx.MaxGuests,
			MaxStayNights:      fx.MaxStayNights,
		})
		if err != nil {
			return fmt.Errorf("fixture %s: %w", fx.ID, err)
		}
		existing, err := queries.Ask[properties.ListRateRulesQuery, []dto.RateRule](ctx, app.Queries, properties.ListRateRulesQuery{PropertyID: fx.ID})
		if err != nil {
			return fmt.Errorf("fixture %s: %w", fx.ID, err)
		}
		if len(existing) > 0 {
			continue
		}
		for _, r := range fx.Rates {
			_, err := commands.Dispatch[properties.AddRateRuleCommand, *dto.RateRule](ctx, app.Commands, properties.AddRateRuleCommand{
				PropertyID: fx.ID,
				Start:      r.Start,
				End:        r.End,
				RateCents:  r.RateCents,
				MinNights:  r.MinNights,
				Priority:   r.Priority,
				Notes:      r.Notes,
			})
			if err != nil {
				return fmt.Errorf("fixture %s rate %s..%s: %w", fx.ID, r.Start, r.End, err)
			}
		}
	}
	logger.Info("property fixtures loaded", "count", len(fixtures), "path", path)
	return nil
}
