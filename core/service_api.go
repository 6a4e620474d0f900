package core

import (
	"context"

	"pkt.systems/chatdeck/schema"
)

// TabService manages tabs and the surfaces backing them.
type TabService interface {
	NewTab(ctx context.Context, req schema.NewTabRequest) (schema.NewTabResponse, error)
	NewTabWithThread(ctx context.Context, req schema.NewTabWithThreadRequest) (schema.NewTabResponse, error)
	ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error)
	GetActiveTab(ctx context.Context, req schema.GetActiveTabRequest) (schema.GetActiveTabResponse, error)
	GetAllTabsForWindow(ctx context.Context, req schema.ListWindowTabsRequest) (schema.ListTabsResponse, error)
	GetAllTabs(ctx context.Context, req schema.ListAllTabsRequest) (schema.ListTabsResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	CloseOthers(ctx context.Context, req schema.CloseOthersRequest) (schema.CloseManyResponse, error)
	CloseOffside(ctx context.Context, req schema.CloseOffsideRequest) (schema.CloseManyResponse, error)
}

// WindowService manages top-level windows and tab moves between them.
type WindowService interface {
	OpenSettingsWindow(ctx context.Context, req schema.OpenSettingsWindowRequest) (schema.OpenSettingsWindowResponse, error)
	FocusWindow(ctx context.Context, req schema.FocusWindowRequest) (schema.FocusWindowResponse, error)
	HandleDropAtPointer(ctx context.Context, req schema.DropAtPointerRequest) (schema.DropAtPointerResponse, error)
	SplitWindow(ctx context.Context, req schema.SplitWindowRequest) (schema.SplitWindowResponse, error)
	MoveTabIntoExistingWindow(ctx context.Context, req schema.MoveTabRequest) (schema.MoveTabResponse, error)
	Windows(ctx context.Context) []schema.WindowInfo
}

// DragService drives the drag pointer tracker.
type DragService interface {
	StartTracking(ctx context.Context, req schema.StartTrackingRequest) (schema.DragResponse, error)
	StopTracking(ctx context.Context, req schema.StopTrackingRequest) (schema.DragResponse, error)
	UpdateInsertTarget(ctx context.Context, req schema.UpdateInsertTargetRequest) (schema.DragResponse, error)
}

// Service is the transport-agnostic command surface of the compositor.
type Service interface {
	TabService
	WindowService
	DragService
}
