package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chain-roulette/internal/bettype"
	"chain-roulette/internal/events"
)

func serveSSE(t *testing.T, buf *events.Buffer, lastEventID string, wait time.Duration) string {
	t.Helper()
	handler := SettlementsSSEHandler(buf, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events/settlements", nil).WithContext(ctx)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr.Body.String()
}

func TestSettlementsSSEReplay(t *testing.T) {
	buf := events.NewBuffer(16)
	first := buf.Append(1, bettype.Outcome(7), nil)
	second := buf.Append(2, bettype.Outcome(0), nil)

	body := serveSSE(t, buf, "", 50*time.Millisecond)
	if !strings.Contains(body, "id: "+first.EventID) || !strings.Contains(body, "id: "+second.EventID) {
		t.Fatalf("replay missing events:\n%s", body)
	}
	if !strings.Contains(body, `"round_number":"1"`) {
		t.Fatalf("replay payload missing round number:\n%s", body)
	}

	// resume after the first event replays only the second
	body = serveSSE(t, buf, first.EventID, 50*time.Millisecond)
	if strings.Contains(body, "id: "+first.EventID) {
		t.Fatalf("resume replayed acknowledged event:\n%s", body)
	}
	if !strings.Contains(body, "id: "+second.EventID) {
		t.Fatalf("resume missing newer event:\n%s", body)
	}
}

func TestSettlementsSSELiveDelivery(t *testing.T) {
	buf := events.NewBuffer(16)
	go func() {
		time.Sleep(20 * time.Millisecond)
		buf.Append(5, bettype.Outcome(17), nil)
	}()

	body := serveSSE(t, buf, "", 200*time.Millisecond)
	if !strings.Contains(body, "event: settlement") {
		t.Fatalf("live event not delivered:\n%s", body)
	}
	if !strings.Contains(body, `"round_number":"5"`) {
		t.Fatalf("live payload wrong:\n%s", body)
	}
}
