package events

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"chain-roulette/internal/bettype"
)

// Settlement is emitted once per settled round. WonAmount is nil unless the
// local player held a winning bet on the round; it is a decimal so the
// payout can exceed the u64 range without rounding.
type Settlement struct {
	EventID     string           `json:"event_id"`
	RoundNumber uint64           `json:"round_number,string"`
	Outcome     bettype.Outcome  `json:"outcome"`
	WonAmount   *decimal.Decimal `json:"won_amount"`
	ServerTS    int64            `json:"server_ts"`
}

// Buffer keeps a bounded replayable history of settlements and fans them out
// to subscriber channels. Slow subscribers drop events rather than block the
// reconciler.
type Buffer struct {
	mu       sync.Mutex
	entropy  *ulid.MonotonicEntropy
	max      int
	events   []Settlement
	watchers map[chan Settlement]struct{}
	closed   bool
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 500
	}
	return &Buffer{
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		max:      max,
		watchers: map[chan Settlement]struct{}{},
	}
}

func (b *Buffer) Append(roundNumber uint64, outcome bettype.Outcome, wonAmount *decimal.Decimal) Settlement {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Settlement{}
	}
	now := time.Now()
	ev := Settlement{
		EventID:     ulid.MustNew(ulid.Timestamp(now), b.entropy).String(),
		RoundNumber: roundNumber,
		Outcome:     outcome,
		WonAmount:   wonAmount,
		ServerTS:    now.UnixMilli(),
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// ReplayAfter returns buffered settlements newer than lastEventID. ULIDs are
// lexicographically ordered, so a plain string compare suffices.
func (b *Buffer) ReplayAfter(lastEventID string) []Settlement {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	if lastEventID == "" {
		out := make([]Settlement, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]Settlement, 0, len(b.events))
	for _, ev := range b.events {
		if ev.EventID > lastEventID {
			out = append(out, ev)
		}
	}
	return out
}

func (b *Buffer) Subscribe() chan Settlement {
	ch := make(chan Settlement, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *Buffer) Unsubscribe(ch chan Settlement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}
