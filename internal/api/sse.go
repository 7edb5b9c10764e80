// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/vidgrab/internal/bus"
	"github.com/ManuGH/vidgrab/internal/log"
)

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	streamSSE(w, r, s.jobs.Progress(), s.heartbeat, strconv.Itoa)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	streamSSE(w, r, s.jobs.Logs(), s.heartbeat, func(line string) string { return line })
}

// streamSSE relays bus events as Server-Sent Events until the bus closes the
// subscription (job reached a terminal state) or the client disconnects.
// A disconnect only detaches this subscriber.
func streamSSE[T any](w http.ResponseWriter, r *http.Request, b *bus.Bus[T], heartbeat time.Duration, format func(T) string) {
	sub := b.Subscribe()
	defer sub.Close()

	logger := log.WithComponentFromContext(r.Context(), "api")
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Warn().Err(err).Str("topic", b.Topic()).Msg("response does not support streaming")
		return
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
		case v, ok := <-sub.C():
			if !ok {
				return
			}
			if _, err := w.Write(sseEvent(format(v))); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// sseEvent frames data as one event; embedded newlines become extra data fields.
func sseEvent(data string) []byte {
	var sb strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n") {
		sb.WriteString("data: ")
		sb.WriteString(strings.TrimSuffix(line, "\r"))
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
