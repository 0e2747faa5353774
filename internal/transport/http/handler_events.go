package httptransport

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"chain-roulette/internal/events"
)

// SettlementsSSEHandler streams settlement events. Clients resume with the
// standard Last-Event-ID header; everything after that id still held in the
// buffer is replayed before live delivery starts.
func SettlementsSSEHandler(buf *events.Buffer, pingInterval time.Duration) http.HandlerFunc {
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		events.SetSSEHeaders(w)
		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("settlement stream opened")

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)

		for _, ev := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if err := events.WriteSSE(w, "settlement", ev.EventID, ev); err != nil {
				return
			}
		}
		flusher.Flush()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				log.Info().
					Str("request_id", chimw.GetReqID(r.Context())).
					Err(r.Context().Err()).
					Msg("settlement stream closed")
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := events.WriteSSE(w, "settlement", ev.EventID, ev); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				ping := map[string]any{"ts": time.Now().UnixMilli()}
				if err := events.WriteSSE(w, "ping", "", ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
