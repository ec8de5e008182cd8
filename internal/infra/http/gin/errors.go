package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"realty/internal/app/commands"
	"realty/internal/app/handlers/availability"
	"realty/internal/app/handlers/calendarsync"
	"realty/internal/app/handlers/checkout"
	"realty/internal/app/handlers/reservations"
	"realty/internal/app/middleware"
	"realty/internal/app/policies"
	"realty/internal/app/queries"
	domainavailability "realty/internal/domain/availability"
	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
	"realty/internal/infra/obs"
	"realty/internal/infra/validation"
)

const (
	providerRetryMessage  = "The payment provider is temporarily unavailable. Please try again in a minute."
	duplicateRetryMessage = "This checkout is already being set up. Please try again in a moment."
)

type errorClass struct {
	status int
	errs   []error
}

var errorClasses = []errorClass{
	{http.StatusBadRequest, []error{
		validation.ErrInvalid,
		daterange.ErrInvalidRange,
		daterange.ErrInvalidDay,
		pricing.ErrMinimumStay,
		pricing.ErrStayTooLong,
		pricing.ErrRuleRange,
		pricing.ErrRuleRate,
		pricing.ErrRuleMinNights,
		pricing.ErrRuleCurrency,
		pricing.ErrRulePropertyUnset,
		checkout.ErrInvalidRequest,
		property.ErrIDRequired,
		property.ErrNameRequired,
		property.ErrInvalidSlug,
		property.ErrInvalidBaseRate,
		property.ErrInvalidPricing,
		property.ErrInvalidFeedURL,
		property.ErrInvalidGuests,
		property.ErrInvalidMaxStay,
		money.ErrInvalidCurrency,
		money.ErrInvalidRate,
		reservation.ErrInvalidGuests,
		reservation.ErrGuestRequired,
		policies.ErrInvalidSignature,
	}},
	{http.StatusNotFound, []error{
		property.ErrNotFound,
		reservation.ErrNotFound,
		pricing.ErrRuleNotFound,
		policies.ErrSessionNotFound,
	}},
	{http.StatusConflict, []error{
		domainavailability.ErrDatesUnavailable,
		calendarsync.ErrSyncInProgress,
		middleware.ErrIdempotencyKeyReused,
		reservation.ErrConcurrentUpdate,
		reservation.ErrInvalidState,
		policies.ErrDuplicateSession,
	}},
	{http.StatusUnprocessableEntity, []error{
		reservations.ErrIncompleteMetadata,
	}},
	{http.StatusBadGateway, []error{
		policies.ErrProviderUnavailable,
	}},
	{http.StatusServiceUnavailable, []error{
		availability.ErrPublisherDisabled,
		commands.ErrHandlerNotFound,
		queries.ErrHandlerNotFound,
	}},
}

// statusFor maps an application error to its HTTP status; unknown errors are 500.
func statusFor(err error) int {
	for _, class := range errorClasses {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				return class.status
			}
		}
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusBadGateway:
		msg = providerRetryMessage
	case http.StatusConflict:
		if errors.Is(err, policies.ErrDuplicateSession) {
			msg = duplicateRetryMessage
		}
	case http.StatusInternalServerError:
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "request_id", obs.RequestIDFromContext(c.Request.Context()), "error", err)
		}
		msg = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg})
}
