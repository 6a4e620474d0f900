package eventbus

import (
	"context"
	"sync"

	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventStorageSync carries a committed storage value.
	EventStorageSync EventType = "storage-sync"
	// EventHover carries a drag hover over a window's tab strip.
	EventHover EventType = "hover"
	// EventHoverClear clears a previous hover.
	EventHoverClear EventType = "hover-clear"
	// EventTab carries tab lifecycle updates.
	EventTab EventType = "tab"
	// EventWindow carries window lifecycle updates.
	EventWindow EventType = "window"
)

// Event is a UI-facing broadcast delivered to window subscribers.
type Event struct {
	Type        EventType                `json:"type"`
	StorageSync *schema.StorageSyncEvent `json:"storageSync,omitempty"`
	Hover       *schema.HoverEvent       `json:"hover,omitempty"`
	HoverClear  *schema.HoverClearEvent  `json:"hoverClear,omitempty"`
	Tab         *schema.TabEvent         `json:"tab,omitempty"`
	Window      *schema.WindowEvent      `json:"window,omitempty"`
}

// Bus fans events out to per-window subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.WindowID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.WindowID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the window and returns a channel + cancel.
func (b *Bus) Subscribe(windowID schema.WindowID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	windowSubs := b.subs[windowID]
	if windowSubs == nil {
		windowSubs = make(map[chan Event]struct{})
		b.subs[windowID] = windowSubs
	}
	windowSubs[ch] = struct{}{}
	count := len(windowSubs)
	b.mu.Unlock()
	b.log.With("window", windowID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[windowID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, windowID)
				}
			}
			b.mu.Unlock()
			close(ch)
			b.log.With("window", windowID).Debug("eventbus unsubscribe")
		})
	}
}

// OnStorageSync publishes a storage change to every window.
func (b *Bus) OnStorageSync(event schema.StorageSyncEvent) {
	b.publishAll(Event{Type: EventStorageSync, StorageSync: &event})
}

// OnHover publishes a hover to the hovered window.
func (b *Bus) OnHover(event schema.HoverEvent) {
	b.publish(event.WindowID, Event{Type: EventHover, Hover: &event})
}

// OnHoverClear publishes a hover clear to the previously hovered window.
func (b *Bus) OnHoverClear(event schema.HoverClearEvent) {
	b.publish(event.WindowID, Event{Type: EventHoverClear, HoverClear: &event})
}

// OnTabEvent publishes a tab event to the window it happened in.
func (b *Bus) OnTabEvent(event schema.TabEvent) {
	b.publish(event.WindowID, Event{Type: EventTab, Tab: &event})
}

// OnWindowEvent publishes a window event to every window.
func (b *Bus) OnWindowEvent(event schema.WindowEvent) {
	b.publishAll(Event{Type: EventWindow, Window: &event})
}

func (b *Bus) publish(windowID schema.WindowID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	dropped := b.sendLocked(b.subs[windowID], event)
	b.mu.Unlock()
	b.logDropped(event, dropped)
}

func (b *Bus) publishAll(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	dropped := 0
	for _, windowSubs := range b.subs {
		dropped += b.sendLocked(windowSubs, event)
	}
	b.mu.Unlock()
	b.logDropped(event, dropped)
}

// sendLocked never blocks; a closed channel is always removed from subs
// under the same lock first.
func (b *Bus) sendLocked(subs map[chan Event]struct{}, event Event) int {
	dropped := 0
	for sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	return dropped
}

func (b *Bus) logDropped(event Event, dropped int) {
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
