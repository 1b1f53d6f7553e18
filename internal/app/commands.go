package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// coordinatorCmd is the command interface for the Coordinator actor.
type coordinatorCmd interface{ isCoordinatorCmd() }

type baseCmd struct{}

func (baseCmd) isCoordinatorCmd() {}

type result[T any] struct {
	value T
	err   error
}

type none = struct{}

type initCmd struct {
	baseCmd
	ctx   context.Context
	reply chan result[none]
}

type toggleCmd struct {
	baseCmd
	reply chan result[domain.PlacementMode]
}

type placeCmd struct {
	baseCmd
	ctx         context.Context
	containerID string
	reply       chan result[PlaceResult]
}

type persistCmd struct {
	baseCmd
	ctx         context.Context
	localID     uuid.UUID
	containerID string
	name        string
	reply       chan result[domain.AnchorRecord]
}

type downloadCmd struct {
	baseCmd
	ctx         context.Context
	containerID string
	ids         []string
	reply       chan result[DownloadReport]
}

type unpersistCmd struct {
	baseCmd
	ctx     context.Context
	localID uuid.UUID
	reply   chan result[none]
}

type removeCmd struct {
	baseCmd
	localID uuid.UUID
	reply   chan result[none]
}

type trackingCmd struct {
	baseCmd
	pause bool
	reply chan result[none]
}

type subscription struct {
	id int
	ch chan Snapshot
}

type subscribeCmd struct {
	baseCmd
	reply chan result[subscription]
}

type unsubscribeCmd struct {
	baseCmd
	id int
}

// completionCmd carries the result of a worker back to the actor. discard runs
// instead of apply when the coordinator has already shut down.
type completionCmd struct {
	baseCmd
	apply   func()
	discard func()
}

type stopCmd struct {
	baseCmd
}

func newReply[T any]() chan result[T] {
	return make(chan result[T], 1)
}

func respond[T any](ch chan result[T], v T, err error) {
	ch <- result[T]{value: v, err: err}
}

func fail[T any](ch chan result[T], err error) {
	var zero T
	ch <- result[T]{value: zero, err: err}
}
