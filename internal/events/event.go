package events

import "context"

// Event is a typed envelope for streams that carry several kinds of value.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Forward copies every value published on src to dst as an Event of the
// given type until ctx is cancelled. It subscribes under id and blocks, so
// callers run it on its own goroutine.
func Forward[T any](ctx context.Context, src *Bus[T], dst *Bus[Event], id, typ string) {
	ch := src.Subscribe(id)
	defer src.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			dst.Publish(Event{Type: typ, Data: v})
		}
	}
}
