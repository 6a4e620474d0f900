package schema

// Point is a position in global screen coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is a screen rectangle. It contains points on its top and left edges
// but not on its bottom and right edges.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// InsertTarget is the live drop location computed during a drag.
type InsertTarget struct {
	WindowID    WindowID `json:"windowId"`
	InsertIndex int      `json:"insertIndex"`
}

// DropAction describes how a drop was resolved.
type DropAction string

const (
	// DropMerged means the tab moved into an existing window.
	DropMerged DropAction = "merged"
	// DropDetached means the tab moved into a new window.
	DropDetached DropAction = "detached"
)

// DropResult is returned by drop resolution.
type DropResult struct {
	Action         DropAction `json:"action"`
	TargetWindowID WindowID   `json:"targetWindowId,omitempty"`
	NewWindowID    WindowID   `json:"newWindowId,omitempty"`
}
