package core

import "pkt.systems/chatdeck/schema"

// EventSink receives broadcasts produced by the compositor.
type EventSink interface {
	OnHover(event schema.HoverEvent)
	OnHoverClear(event schema.HoverClearEvent)
	OnTabEvent(event schema.TabEvent)
	OnWindowEvent(event schema.WindowEvent)
}

type nopSink struct{}

func (nopSink) OnHover(schema.HoverEvent)           {}
func (nopSink) OnHoverClear(schema.HoverClearEvent) {}
func (nopSink) OnTabEvent(schema.TabEvent)          {}
func (nopSink) OnWindowEvent(schema.WindowEvent)    {}
