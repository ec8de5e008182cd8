package properties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/uow"
	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

const (
	savePropertyKey   = "properties.save"
	addRateRuleKey    = "properties.add_rate_rule"
	deleteRateRuleKey = "properties.delete_rate_rule"
)

// SavePropertyCommand creates the property or replaces its configuration.
type SavePropertyCommand struct {
	ID                 string `validate:"required,max=64"`
	Name               string `validate:"required,max=200"`
	Slug               string `validate:"max=80"`
	Currency           string `validate:"omitempty,len=3"`
	BaseRateCents      int64  `validate:"gt=0"`
	WeekendRateCents   *int64 `validate:"omitempty,gte=0"`
	CleaningFeeCents   int64  `validate:"gte=0"`
	TaxRate            float64
	FeedURLs           []string `validate:"dive,max=2048"`
	DamageDepositCents int64    `validate:"gte=0"`
	MaxGuests          int      `validate:"gte=0"`
	MaxStayNights      int      `validate:"gte=0"`
}

func (SavePropertyCommand) Key() string { return savePropertyKey }

type AddRateRuleCommand struct {
	PropertyID string `validate:"required"`
	Start      string `validate:"required"`
	End        string `validate:"required"`
	RateCents  int64  `validate:"gt=0"`
	MinNights  int    `validate:"gte=0"`
	Priority   int
	Notes      string `validate:"max=500"`
}

func (AddRateRuleCommand) Key() string { return addRateRuleKey }

type DeleteRateRuleCommand struct {
	PropertyID string `validate:"required"`
	RuleID     string `validate:"required"`
}

func (DeleteRateRuleCommand) Key() string { return deleteRateRuleKey }

type Handlers struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *Handlers) SaveProperty(ctx context.Context, cmd SavePropertyCommand) (*dto.Property, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	params := property.Params{
		ID:                 property.ID(strings.TrimSpace(cmd.ID)),
		Name:               cmd.Name,
		Slug:               cmd.Slug,
		Currency:           strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		BaseRateCents:      cmd.BaseRateCents,
		WeekendRateCents:   cmd.WeekendRateCents,
		CleaningFeeCents:   cmd.CleaningFeeCents,
		TaxRate:            cmd.TaxRate,
		FeedURLs:           cmd.FeedURLs,
		DamageDepositCents: cmd.DamageDepositCents,
		MaxGuests:          cmd.MaxGuests,
		MaxStayNights:      cmd.MaxStayNights,
		Now:                h.now(),
	}
	repo := scope.Unit.Properties()
	p, err := repo.ByID(scope.Ctx, params.ID)
	switch {
	case errors.Is(err, property.ErrNotFound):
		p, err = property.New(params)
	case err == nil:
		err = p.Replace(params)
	}
	if err != nil {
		return nil, err
	}
	if err := repo.Save(scope.Ctx, p); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}
	out := dto.MapProperty(p)
	return &out, nil
}

func (h *Handlers) AddRateRule(ctx context.Context, cmd AddRateRuleCommand) (*dto.RateRule, error) {
	start, err := daterange.ParseDay(cmd.Start)
	if err != nil {
		return nil, err
	}
	end, err := daterange.ParseDay(cmd.End)
	if err != nil {
		return nil, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	p, err := scope.Unit.Properties().ByID(scope.Ctx, property.ID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	rule := pricing.RateRule{
		ID:         pricing.RuleID(uuid.NewString()),
		PropertyID: p.ID,
		Start:      start,
		End:        end,
		Rate:       money.Money{Amount: cmd.RateCents, Currency: p.Currency},
		MinNights:  cmd.MinNights,
		Priority:   cmd.Priority,
		Notes:      strings.TrimSpace(cmd.Notes),
		CreatedAt:  h.now(),
	}
	if err := rule.ValidateFor(p); err != nil {
		return nil, err
	}
	if err := scope.Unit.Rates().Save(scope.Ctx, rule); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}
	out := dto.MapRateRule(rule)
	return &out, nil
}

func (h *Handlers) DeleteRateRule(ctx context.Context, cmd DeleteRateRuleCommand) (bool, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return false, err
	}
	defer scope.Close()
	if err := scope.Unit.Rates().Delete(scope.Ctx, property.ID(cmd.PropertyID), pricing.RuleID(cmd.RuleID)); err != nil {
		return false, fmt.Errorf("delete rule %s: %w", cmd.RuleID, err)
	}
	return true, scope.Commit()
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// Register binds the operator commands and queries to their buses.
func (h *Handlers) Register(cmds *commands.InMemoryBus) {
	commands.Register[SavePropertyCommand, *dto.Property](cmds, commands.HandlerFunc[SavePropertyCommand, *dto.Property](h.SaveProperty))
	commands.Register[AddRateRuleCommand, *dto.RateRule](cmds, commands.HandlerFunc[AddRateRuleCommand, *dto.RateRule](h.AddRateRule))
	commands.Register[DeleteRateRuleCommand, bool](cmds, commands.HandlerFunc[DeleteRateRuleCommand, bool](h.DeleteRateRule))
}
