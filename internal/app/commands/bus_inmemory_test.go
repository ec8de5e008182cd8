package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoCommand struct{ Value string }

func (echoCommand) Key() string { return "test.echo" }

type otherCommand struct{}

func (otherCommand) Key() string { return "test.other" }

func TestDispatchTyped(t *testing.T) {
	bus := NewInMemoryBus()
	Register[echoCommand, string](bus, HandlerFunc[echoCommand, string](func(_ context.Context, cmd echoCommand) (string, error) {
		return "echo:" + cmd.Value, nil
	}))

	got, err := Dispatch[echoCommand, string](context.Background(), bus, echoCommand{Value: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", got)
	assert.Equal(t, []string{"test.echo"}, bus.Keys())

	_, err = Dispatch[echoCommand, int](context.Background(), bus, echoCommand{})
	assert.ErrorIs(t, err, ErrResultType)

	_, err = bus.Dispatch(context.Background(), otherCommand{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = Dispatch[echoCommand, string](context.Background(), nil, echoCommand{})
	assert.ErrorIs(t, err, ErrNilBus)
}

func TestRegisterTwicePanics(t *testing.T) {
	bus := NewInMemoryBus()
	h := HandlerFunc[echoCommand, string](func(context.Context, echoCommand) (string, error) { return "", nil })
	Register[echoCommand, string](bus, h)
	assert.Panics(t, func() { Register[echoCommand, string](bus, h) })
}
