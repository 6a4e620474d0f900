package core

import (
	"context"

	"pkt.systems/chatdeck/internal/clock"
	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/internal/tempfiles"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// Registry is the persisted tab registry contract the compositor relies on.
type Registry interface {
	Load(ctx context.Context) (schema.TabState, bool, error)
	// Update runs one read-compute-write cycle and writes at most once.
	Update(ctx context.Context, source string, fn func(schema.TabState) (schema.TabState, error)) (schema.TabState, error)
}

// ThreadStore is the thread collaborator used for snapshots and purges.
type ThreadStore interface {
	Create(ctx context.Context, title string, private bool) (schema.Thread, error)
	Get(ctx context.Context, id schema.ThreadID) (schema.Thread, error)
	Delete(ctx context.Context, id schema.ThreadID) error
	MessageCount(ctx context.Context, id schema.ThreadID) (int, error)
	Snapshot(ctx context.Context, id schema.ThreadID) (schema.ThreadSnapshot, error)
}

// ServiceDeps captures the collaborators of the compositor.
type ServiceDeps struct {
	Runtime   platform.Runtime
	Registry  Registry
	Threads   ThreadStore
	TempFiles *tempfiles.Registry
	// Pointer is optional; without it drag tracking never reports a target.
	Pointer   platform.PointerSource
	Clock     clock.Clock
	EventSink EventSink
	Logger    pslog.Logger
}
