package dto

import (
	"encoding/json"

	"realty/internal/domain/shared/money"
)

// Amount renders minor units as an exact JSON decimal, e.g. 715.00.
func Amount(m money.Money) json.Number {
	return json.Number(m.Decimal())
}
