package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type booking struct {
	PropertyID string `validate:"required"`
	GuestEmail string `json:"guest_email" validate:"required,email"`
	Guests     int    `validate:"gte=1"`
}

func TestValidateReportsFieldsWithSnakeNames(t *testing.T) {
	err := New().Validate(context.Background(), booking{GuestEmail: "nope"})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "property_id is required")
	assert.Contains(t, err.Error(), "guest_email must be a valid email")
	assert.Contains(t, err.Error(), "guests must satisfy gte=1")
}

func TestValidateAcceptsValidAndNonStructMessages(t *testing.T) {
	v := New()
	require.NoError(t, v.Validate(context.Background(), &booking{PropertyID: "villa", GuestEmail: "a@example.com", Guests: 2}))
	require.NoError(t, v.Validate(context.Background(), "plain"))
	require.NoError(t, v.Validate(context.Background(), nil))
	var nilPtr *booking
	require.NoError(t, v.Validate(context.Background(), nilPtr))
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "property_id", toSnake("PropertyID"))
	assert.Equal(t, "check_in", toSnake("CheckIn"))
	assert.Equal(t, "base_rate_cents", toSnake("BaseRateCents"))
}
