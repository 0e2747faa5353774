package events

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBufferOrderAndReplay(t *testing.T) {
	buf := NewBuffer(10)
	won := decimal.NewFromInt(35000)
	ev1 := buf.Append(1, 17, &won)
	ev2 := buf.Append(2, 0, nil)
	ev3 := buf.Append(3, 37, nil)

	if !(ev1.EventID < ev2.EventID && ev2.EventID < ev3.EventID) {
		t.Fatalf("event ids not ordered: %s %s %s", ev1.EventID, ev2.EventID, ev3.EventID)
	}

	replay := buf.ReplayAfter(ev1.EventID)
	if len(replay) != 2 {
		t.Fatalf("expected 2 replay events, got %d", len(replay))
	}
	if replay[0].RoundNumber != 2 || replay[1].RoundNumber != 3 {
		t.Fatalf("unexpected replay order: %+v", replay)
	}

	all := buf.ReplayAfter("")
	if len(all) != 3 {
		t.Fatalf("expected full replay, got %d", len(all))
	}
}

func TestBufferBounded(t *testing.T) {
	buf := NewBuffer(2)
	buf.Append(1, 5, nil)
	buf.Append(2, 6, nil)
	buf.Append(3, 7, nil)

	all := buf.ReplayAfter("")
	if len(all) != 2 || all[0].RoundNumber != 2 || all[1].RoundNumber != 3 {
		t.Fatalf("expected last two events, got %+v", all)
	}
}

func TestBufferSubscribe(t *testing.T) {
	buf := NewBuffer(10)
	ch := buf.Subscribe()
	buf.Append(5, 17, nil)

	ev := <-ch
	if ev.RoundNumber != 5 || ev.Outcome != 17 {
		t.Fatalf("unexpected event %+v", ev)
	}

	buf.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}

	// append after unsubscribe must not panic or deliver
	buf.Append(6, 3, nil)
}

func TestBufferClose(t *testing.T) {
	buf := NewBuffer(10)
	ch := buf.Subscribe()
	buf.Close()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Close")
	}
	if ev := buf.Append(9, 1, nil); ev.EventID != "" {
		t.Fatalf("append after close should be a no-op, got %+v", ev)
	}
}
