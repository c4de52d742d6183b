// Package gateway defines the persistence capability used by GreenLog and
// its implementations: Postgres and SQLite document stores, and a Null
// gateway that fails every call.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/mgmu/greenlog/internal/plants"
)

var (
	// ErrUnavailable is the cause of every failure of the Null gateway.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrNoUser is returned by Authenticate when no user is configured.
	ErrNoUser = errors.New("no user configured")
	// ErrNotFound is returned when a mutation targets a missing plant.
	ErrNotFound = errors.New("plant not found")
)

// Kind classifies gateway failures.
type Kind int

const (
	// Unavailable: the backend could not be reached.
	Unavailable Kind = iota + 1
	// Unauthenticated: the backend did not resolve an identity.
	Unauthenticated
	// Rejected: the backend refused the request.
	Rejected
	// NotFound: the targeted document does not exist.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case Unauthenticated:
		return "unauthenticated"
	case Rejected:
		return "rejected"
	case NotFound:
		return "not found"
	}
	return "unknown"
}

// Error is the error returned by every Gateway method.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err if it is a gateway error, 0 otherwise.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}

// Identity is the user owning a plant collection.
type Identity struct {
	Uid   string
	Guest bool
}

// Guest returns the identity used when the backend cannot authenticate us.
func Guest() Identity {
	return Identity{Uid: plants.GuestUid, Guest: true}
}

// Event is pushed on a subscription: either a full snapshot of the
// collection or an access error. The stream ends after an error.
type Event struct {
	Plants []plants.Plant
	Err    error
}

// Patch lists the plant fields to overwrite. Nil fields are left untouched.
type Patch struct {
	Name    *string
	Species *string
	Image   *plants.ImageRef
	Logs    *[]plants.LogEntry
}

// LogsPatch returns a patch replacing the whole log sequence.
func LogsPatch(logs []plants.LogEntry) Patch {
	return Patch{Logs: &logs}
}

// Gateway defines the API to authenticate against the document store and to
// read and write a user's plant collection.
type Gateway interface {
	Authenticate(ctx context.Context) (Identity, error)
	Subscribe(ctx context.Context, uid string) (<-chan Event, error)
	Insert(ctx context.Context, uid string, p plants.Plant) (string, error)
	Mutate(ctx context.Context, uid, id string, patch Patch) error
	Remove(ctx context.Context, uid, id string) error
	Close() error
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func nonNilLogs(logs []plants.LogEntry) []plants.LogEntry {
	if logs == nil {
		return []plants.LogEntry{}
	}
	return logs
}
