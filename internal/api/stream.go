package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"countdown.share/internal/log"
	"countdown.share/internal/timer"
)

// StreamCountdown pushes the countdown toward ?target= as Server-Sent
// Events: one "tick" per second, then a single "complete". The engine stops
// when the client goes away.
func (h *Handler) StreamCountdown(w http.ResponseWriter, r *http.Request) {
	target, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("target"))
	if err != nil {
		h.error(w, http.StatusBadRequest, "target must be an ISO-8601 instant", "validation")
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	activeStreams.Inc()
	defer activeStreams.Dec()

	send := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return
		}
		_ = rc.Flush()
	}

	opts := []timer.Option{}
	if h.tickInterval > 0 {
		opts = append(opts, timer.WithInterval(h.tickInterval))
	}

	handle := timer.Start(r.Context(), target,
		func(rem timer.Remaining) { send("tick", rem) },
		func() { send("complete", struct{}{}) },
		opts...,
	)
	<-handle.Done()

	l := log.WithContext(r.Context(), h.logger)
	l.Debug().Time("target", target).Msg("countdown stream closed")
}
