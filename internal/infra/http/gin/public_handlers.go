package ginserver

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	availabilityapp "realty/internal/app/handlers/availability"
	checkoutapp "realty/internal/app/handlers/checkout"
	"realty/internal/app/handlers/payments"
	"realty/internal/app/handlers/quotes"
	"realty/internal/app/queries"
)

const (
	idempotencyHeader = "Idempotency-Key"
	signatureHeader   = "Stripe-Signature"
	maxWebhookBytes   = 1 << 20
)

type QuoteHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

type quoteRequest struct {
	PropertyID string `json:"property_id"`
	CheckIn    string `json:"checkin"`
	CheckOut   string `json:"checkout"`
}

func (h QuoteHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	q := quotes.GetQuoteQuery{PropertyID: req.PropertyID, CheckIn: req.CheckIn, CheckOut: req.CheckOut}
	result, err := queries.Ask[quotes.GetQuoteQuery, dto.Quote](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type CheckoutHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type checkoutRequest struct {
	PropertyID string `json:"property_id"`
	CheckIn    string `json:"checkin"`
	CheckOut   string `json:"checkout"`
	Guests     int    `json:"guests"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	GuestPhone string `json:"guest_phone"`
	Notes      string `json:"notes"`
}

func (h CheckoutHandler) Create(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	cmd := checkoutapp.CreateCheckoutCommand{
		PropertyID:      strings.TrimSpace(req.PropertyID),
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		GuestName:       strings.TrimSpace(req.GuestName),
		GuestEmail:      strings.TrimSpace(req.GuestEmail),
		GuestPhone:      strings.TrimSpace(req.GuestPhone),
		Notes:           req.Notes,
		IdempotencyKeyV: strings.TrimSpace(c.GetHeader(idempotencyHeader)),
	}
	result, err := commands.Dispatch[checkoutapp.CreateCheckoutCommand, *dto.CheckoutResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type WebhookHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

// Payments verifies the raw body; it must not be re-encoded before the signature check.
func (h WebhookHandler) Payments(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "payload too large"})
		return
	}
	cmd := payments.HandleWebhookCommand{Payload: body, Signature: c.GetHeader(signatureHeader)}
	result, err := commands.Dispatch[payments.HandleWebhookCommand, *dto.Fulfillment](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		if h.Logger != nil && statusFor(err) != http.StatusInternalServerError {
			h.Logger.Warn("webhook rejected", "error", err)
		}
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Blocked(c *gin.Context) {
	q := availabilityapp.GetBlockedDatesQuery{PropertyID: c.Param("id")}
	result, err := queries.Ask[availabilityapp.GetBlockedDatesQuery, dto.BlockedDates](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	q := availabilityapp.ExportCalendarQuery{PropertyID: c.Param("id")}
	file, err := queries.Ask[availabilityapp.ExportCalendarQuery, dto.CalendarFile](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+file.Name+`"`)
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
