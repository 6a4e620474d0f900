package schema

// WindowPhase is the lifecycle phase of a window.
type WindowPhase int

const (
	// WindowCreated is a window that exists but was never shown.
	WindowCreated WindowPhase = iota
	// WindowShown is a visible window.
	WindowShown
	// WindowHidden is a window hidden instead of closed.
	WindowHidden
	// WindowClosing is a window whose close was accepted.
	WindowClosing
	// WindowDestroyed is a window that no longer exists.
	WindowDestroyed
)

func (p WindowPhase) String() string {
	switch p {
	case WindowCreated:
		return "created"
	case WindowShown:
		return "shown"
	case WindowHidden:
		return "hidden"
	case WindowClosing:
		return "closing"
	case WindowDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// WindowInfo summarizes a live window.
type WindowInfo struct {
	ID     WindowID `json:"id"`
	Main   bool     `json:"main"`
	Phase  string   `json:"phase"`
	Bounds Rect     `json:"bounds"`
}
