package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const eventsKeepAlive = 30 * time.Second

// Events streams committed-change notifications as server-sent events.
// Clients that fall behind the feed's buffer miss events and should refetch.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the response header goes out so a client that saw
	// the stream open cannot miss a change committed right after.
	changes, cancel := h.st.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(eventsKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case change, open := <-changes:
			if !open {
				return
			}
			payload, err := json.Marshal(change)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
