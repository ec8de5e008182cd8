package security

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestOperatorKeyCheck(t *testing.T) {
	hash, err := HashOperatorKey("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	k := OperatorKey{Hash: hash}

	require.NoError(t, k.Check("s3cret"))
	require.ErrorIs(t, k.Check("wrong"), ErrOperatorKeyInvalid)
	require.ErrorIs(t, k.Check(" "), ErrOperatorKeyMissing)
	require.ErrorIs(t, OperatorKey{}.Check("s3cret"), ErrOperatorDisabled)
}
