package chatdeck

import (
	"pkt.systems/chatdeck/core"
	"pkt.systems/chatdeck/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnHover(event schema.HoverEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnHover(event)
	}
}

func (f eventFanout) OnHoverClear(event schema.HoverClearEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnHoverClear(event)
	}
}

func (f eventFanout) OnTabEvent(event schema.TabEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabEvent(event)
	}
}

func (f eventFanout) OnWindowEvent(event schema.WindowEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnWindowEvent(event)
	}
}
