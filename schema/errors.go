package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidWindow indicates an invalid window identifier.
	ErrInvalidWindow = errors.New("invalid window")
	// ErrInvalidTab indicates an invalid tab identifier.
	ErrInvalidTab = errors.New("invalid tab")
	// ErrInvalidTabType indicates an unknown tab type.
	ErrInvalidTabType = errors.New("invalid tab type")
	// ErrInvalidKey indicates a storage key that cannot be stored.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrWindowNotFound indicates a requested window could not be found.
	ErrWindowNotFound = errors.New("window not found")
	// ErrThreadNotFound indicates a requested thread could not be found.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrSurfaceGone indicates the surface backing a tab no longer exists.
	ErrSurfaceGone = errors.New("surface destroyed")
	// ErrRegistryCorrupt indicates the persisted tab registry failed to parse.
	ErrRegistryCorrupt = errors.New("tab registry corrupt")
	// ErrSnapshotCorrupt indicates a thread snapshot failed to parse.
	ErrSnapshotCorrupt = errors.New("thread snapshot corrupt")
	// ErrReparentUnsupported indicates the runtime cannot move a live surface between windows.
	ErrReparentUnsupported = errors.New("surface reparent unsupported")
)
