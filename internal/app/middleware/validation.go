package middleware

import (
	"context"
	"fmt"

	"realty/internal/app/commands"
	"realty/internal/app/queries"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Validation rejects a command before it reaches idempotency or a transaction. The
// returned error is prefixed with the command key and still matches the validator's
// sentinel under errors.Is.
func Validation(v Validator) CommandMiddleware {
	requireValidator(v)
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, v, cmd.Key(), cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	requireValidator(v)
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, v, q.Key(), q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

func check(ctx context.Context, v Validator, key string, message any) error {
	if err := v.Validate(ctx, message); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func requireValidator(v Validator) {
	if v == nil {
		panic("middleware: validator required")
	}
}
