package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrOperatorKeyMissing = errors.New("security: operator key required")
	ErrOperatorKeyInvalid = errors.New("security: operator key invalid")
	ErrOperatorDisabled   = errors.New("security: operator surface disabled")
)

// OperatorKey checks the presented API key against a bcrypt hash.
type OperatorKey struct {
	Hash string
}

func (k OperatorKey) Check(presented string) error {
	if strings.TrimSpace(k.Hash) == "" {
		return ErrOperatorDisabled
	}
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return ErrOperatorKeyMissing
	}
	if err := bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(presented)); err != nil {
		return ErrOperatorKeyInvalid
	}
	return nil
}

// HashOperatorKey produces a value for OPERATOR_KEY_HASH.
func HashOperatorKey(key string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
