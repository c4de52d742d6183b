package gateway

import (
	"context"

	"github.com/mgmu/greenlog/internal/plants"
)

// Null is the gateway used when no backend is configured. Every call fails
// immediately with an Unavailable error.
type Null struct{}

func fail(op string) error {
	return &Error{Op: op, Kind: Unavailable, Err: ErrUnavailable}
}

func (Null) Authenticate(context.Context) (Identity, error) {
	return Identity{}, fail("authenticate")
}

func (Null) Subscribe(context.Context, string) (<-chan Event, error) {
	return nil, fail("subscribe")
}

func (Null) Insert(context.Context, string, plants.Plant) (string, error) {
	return "", fail("insert")
}

func (Null) Mutate(context.Context, string, string, Patch) error {
	return fail("mutate")
}

func (Null) Remove(context.Context, string, string) error {
	return fail("remove")
}

func (Null) Close() error {
	return nil
}
