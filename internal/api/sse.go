package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/finsight-labs/finsight-go/internal/events"
)

// Event types on the stream.
const (
	EventSettings   = "settings"
	EventDashboard  = "dashboard"
	EventOperations = "operations"
	EventRisk       = "risk"
	EventBackend    = "backend"
)

// sseEvents handles the SSE (Server-Sent Events) endpoint.
// Clients receive the current settings and dashboard immediately, then
// stream updates as they happen.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		writeError(w, unavailable("event stream"))
		return
	}
	// Verify the client supports streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.Events.Subscribe(id)
	defer h.Events.Unsubscribe(id)

	if h.Settings != nil {
		sendSSE(w, flusher, events.Event{Type: EventSettings, Data: h.Settings.Settings()})
	}
	if h.Dashboard != nil {
		sendSSE(w, flusher, events.Event{Type: EventDashboard, Data: h.Dashboard.Current()})
	}
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, ev)
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
