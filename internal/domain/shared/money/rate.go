package money

import (
	"math"
	"strconv"
)

// RateScale is the number of rate units in 1.0.
const RateScale = 1_000_000

// Rate is a fraction stored in parts per million so tax math stays in integers.
type Rate int64

// RateFromFloat converts a fraction such as 0.10 into a Rate.
func RateFromFloat(f float64) (Rate, error) {
	if math.IsNaN(f) || f < 0 || f >= 1 {
		return 0, ErrInvalidRate
	}
	return Rate(math.Round(f * RateScale)), nil
}

// MustRate is a fixture helper.
func MustRate(f float64) Rate {
	r, err := RateFromFloat(f)
	if err != nil {
		panic(err)
	}
	return r
}

// Float is used only at presentation boundaries.
func (r Rate) Float() float64 {
	return float64(r) / RateScale
}

func (r Rate) String() string {
	return strconv.FormatFloat(r.Float(), 'f', -1, 64)
}
