package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	availabilityapp "realty/internal/app/handlers/availability"
	"realty/internal/app/handlers/calendarsync"
	"realty/internal/app/handlers/payments"
	"realty/internal/app/handlers/properties"
	"realty/internal/app/handlers/reservations"
	"realty/internal/app/queries"
)

// AdminHandler serves the operator surface; routes sit behind OperatorAuth.
type AdminHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type propertyRequest struct {
	Name               string   `json:"name"`
	Slug               string   `json:"slug"`
	Currency           string   `json:"currency"`
	BaseRateCents      int64    `json:"base_rate_cents"`
	WeekendRateCents   *int64   `json:"weekend_rate_cents"`
	CleaningFeeCents   int64    `json:"cleaning_fee_cents"`
	TaxRate            float64  `json:"tax_rate"`
	FeedURLs           []string `json:"feed_urls"`
	DamageDepositCents int64    `json:"damage_deposit_cents"`
	MaxGuests          int      `json:"max_guests"`
	MaxStayNights      int      `json:"max_stay_nights"`
}

func (h AdminHandler) SaveProperty(c *gin.Context) {
	var req propertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	cmd := properties.SavePropertyCommand{
		ID:                 c.Param("id"),
		Name:               req.Name,
		Slug:               req.Slug,
		Currency:           req.Currency,
		BaseRateCents:      req.BaseRateCents,
		WeekendRateCents:   req.WeekendRateCents,
		CleaningFeeCents:   req.CleaningFeeCents,
		TaxRate:            req.TaxRate,
		FeedURLs:           req.FeedURLs,
		DamageDepositCents: req.DamageDepositCents,
		MaxGuests:          req.MaxGuests,
		MaxStayNights:      req.MaxStayNights,
	}
	result, err := commands.Dispatch[properties.SavePropertyCommand, *dto.Property](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) GetProperty(c *gin.Context) {
	result, err := queries.Ask[properties.GetPropertyQuery, dto.Property](c.Request.Context(), h.Queries, properties.GetPropertyQuery{PropertyID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) ListRates(c *gin.Context) {
	result, err := queries.Ask[properties.ListRateRulesQuery, []dto.RateRule](c.Request.Context(), h.Queries, properties.ListRateRulesQuery{PropertyID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": result})
}

type rateRuleRequest struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	RateCents int64  `json:"rate_cents"`
	MinNights int    `json:"min_nights"`
	Priority  int    `json:"priority"`
	Notes     string `json:"notes"`
}

func (h AdminHandler) AddRate(c *gin.Context) {
	var req rateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	cmd := properties.AddRateRuleCommand{
		PropertyID: c.Param("id"),
		Start:      req.Start,
		End:        req.End,
		RateCents:  req.RateCents,
		MinNights:  req.MinNights,
		Priority:   req.Priority,
		Notes:      req.Notes,
	}
	result, err := commands.Dispatch[properties.AddRateRuleCommand, *dto.RateRule](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h AdminHandler) DeleteRate(c *gin.Context) {
	cmd := properties.DeleteRateRuleCommand{PropertyID: c.Param("id"), RuleID: c.Param("rule_id")}
	if _, err := commands.Dispatch[properties.DeleteRateRuleCommand, bool](c.Request.Context(), h.Commands, cmd); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h AdminHandler) Sync(c *gin.Context) {
	result, err := commands.Dispatch[calendarsync.SyncCalendarsCommand, *dto.SyncResult](c.Request.Context(), h.Commands, calendarsync.SyncCalendarsCommand{PropertyID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) PublishCalendar(c *gin.Context) {
	result, err := commands.Dispatch[availabilityapp.PublishCalendarCommand, *dto.PublishedCalendar](c.Request.Context(), h.Commands, availabilityapp.PublishCalendarCommand{PropertyID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) RetryFulfillment(c *gin.Context) {
	result, err := commands.Dispatch[payments.RetryFulfillmentCommand, *dto.Fulfillment](c.Request.Context(), h.Commands, payments.RetryFulfillmentCommand{SessionID: c.Param("session_id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type expireRequest struct {
	Limit int `json:"limit"`
}

func (h AdminHandler) ExpireStale(c *gin.Context) {
	var req expireRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
	}
	result, err := commands.Dispatch[reservations.ExpireStaleCommand, *dto.ExpireResult](c.Request.Context(), h.Commands, reservations.ExpireStaleCommand{Limit: req.Limit})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
