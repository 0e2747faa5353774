package events

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Content-Type-Options", "nosniff")
}

// WriteSSE frames one settlement as a server-sent event. Pings carry no id
// so clients never resume from them.
func WriteSSE(w http.ResponseWriter, event string, eventID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if eventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", eventID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
