// Package resource implements a client-side cache for one REST collection.
//
// A Store holds the last server representation of every entity it has seen and
// changes only in response to a completed call: a successful list replaces the
// collection, a successful create appends, a successful update replaces the
// element with the same id and a successful remove drops it. Failed calls
// record the error and leave the items untouched.
package resource

import (
	"context"

	"github.com/grovetools/bnb/pkg/api"
)

// Entity is a server-identified record.
type Entity interface {
	EntityID() int64
}

// Doer performs one API call. *api.Client implements it.
type Doer interface {
	Do(ctx context.Context, req api.Request, out any) error
}

// Phase is the state of a store's most recent activity.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Op identifies what caused an Event.
type Op string

const (
	OpList   Op = "list"
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpReset  Op = "reset"
)

// Snapshot is a point-in-time copy of a store's collection state.
type Snapshot[T Entity] struct {
	Items     []T
	Loading   bool
	LastError error
	Phase     Phase
}

// Event is published to subscribers on every state transition.
type Event[T Entity] struct {
	Op       Op
	ID       int64 // zero for list and reset
	Err      error
	Snapshot Snapshot[T]
}
