package schema

// NewTabRequest creates a fresh tab, and a fresh thread for thread-bound types.
type NewTabRequest struct {
	WindowID  WindowID
	Title     string
	Type      TabType
	Active    bool
	Href      string
	Content   string
	PreviewID PreviewID
	// Private marks the new thread as ephemeral.
	Private bool
}

// NewTabWithThreadRequest opens a tab bound to an existing thread.
type NewTabWithThreadRequest struct {
	WindowID WindowID
	ThreadID ThreadID
	Title    string
	Type     TabType
	Active   bool
}

// NewTabResponse returns the created or reused tab.
type NewTabResponse struct {
	Tab *Tab `json:"tab"`
	// Reused is set when an existing tab for the thread was activated instead.
	Reused bool `json:"reused,omitempty"`
}

// ActivateTabRequest activates a tab.
type ActivateTabRequest struct {
	WindowID WindowID
	TabID    TabID
}

// ActivateTabResponse is returned after activation.
type ActivateTabResponse struct {
	WindowID WindowID `json:"windowId,omitempty"`
}

// GetActiveTabRequest reads the active tab of a window.
type GetActiveTabRequest struct {
	WindowID WindowID
}

// GetActiveTabResponse returns the active tab, if any.
type GetActiveTabResponse struct {
	Tab *Tab `json:"tab"`
}

// ListWindowTabsRequest lists the tabs of a window.
type ListWindowTabsRequest struct {
	WindowID WindowID
}

// ListAllTabsRequest lists tabs across all windows.
type ListAllTabsRequest struct{}

// ListTabsResponse returns tabs in registry order.
type ListTabsResponse struct {
	Tabs []Tab `json:"tabs"`
}

// CloseTabRequest closes a tab.
type CloseTabRequest struct {
	WindowID WindowID
	TabID    TabID
	// FallbackActiveTabID is activated when the closed tab was active.
	FallbackActiveTabID TabID
}

// CloseTabResponse is returned after close.
type CloseTabResponse struct{}

// CloseOthersRequest closes every listed tab and keeps TabID.
type CloseOthersRequest struct {
	WindowID   WindowID
	TabID      TabID
	IDsToClose []TabID
}

// CloseOffsideRequest closes the tabs on one side of TabID.
type CloseOffsideRequest struct {
	WindowID           WindowID
	TabID              TabID
	IDsToClose         []TabID
	RemainingIDs       []TabID
	ShouldSwitchActive bool
}

// CloseManyResponse is returned by bulk close operations.
type CloseManyResponse struct {
	Closed int `json:"closed"`
}

// OpenSettingsWindowRequest opens or focuses settings.
type OpenSettingsWindowRequest struct {
	WindowID WindowID
	Route    string
}

// OpenSettingsWindowResponse reports the window hosting settings.
type OpenSettingsWindowResponse struct {
	WindowID WindowID `json:"windowId"`
}

// FocusWindowRequest focuses a window and optionally a tab in it.
type FocusWindowRequest struct {
	WindowID WindowID
	TabID    TabID
}

// FocusWindowResponse is returned after focus.
type FocusWindowResponse struct{}

// DropAtPointerRequest resolves a tab drop at a global pointer position.
type DropAtPointerRequest struct {
	WindowID WindowID
	TabID    TabID
	Pointer  Point
}

// DropAtPointerResponse returns the drop outcome; nil when nothing happened.
type DropAtPointerResponse struct {
	Result *DropResult `json:"result"`
}

// SplitWindowRequest moves a tab into a new window.
type SplitWindowRequest struct {
	WindowID WindowID
	TabID    TabID
}

// SplitWindowResponse returns the new window; zero when nothing happened.
type SplitWindowResponse struct {
	NewWindowID WindowID `json:"newWindowId,omitempty"`
}

// MoveTabRequest moves a tab into an existing window.
type MoveTabRequest struct {
	WindowID       WindowID
	TabID          TabID
	TargetWindowID WindowID
	InsertIndex    *int
}

// MoveTabResponse reports whether the tab was moved.
type MoveTabResponse struct {
	Moved bool `json:"moved"`
}

// StartTrackingRequest starts drag pointer tracking.
type StartTrackingRequest struct {
	WindowID     WindowID
	DraggedWidth int
}

// StopTrackingRequest stops drag pointer tracking.
type StopTrackingRequest struct {
	WindowID WindowID
}

// UpdateInsertTargetRequest stores the live insertion target.
type UpdateInsertTargetRequest struct {
	WindowID WindowID
	Target   InsertTarget
}

// DragResponse is returned by drag tracking commands.
type DragResponse struct {
	Tracking bool `json:"tracking"`
}
