package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chain-roulette/internal/account"
	"chain-roulette/internal/bettype"
	"chain-roulette/internal/chain"
	"chain-roulette/internal/rounds"
)

const testProgram = "TestRouletteProgram"

type stubSub struct {
	addr string
	ch   chan []byte

	mu     sync.Mutex
	closed bool
}

func (s *stubSub) Updates() <-chan []byte { return s.ch }
func (s *stubSub) Address() string       { return s.addr }

func (s *stubSub) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *stubSub) push(t *testing.T, data []byte) {
	t.Helper()
	select {
	case s.ch <- data:
	case <-time.After(time.Second):
		t.Fatal("push timed out")
	}
}

var errWatchRefused = errors.New("watch_refused")

type stubWatcher struct {
	mu       sync.Mutex
	subs     map[string]*stubSub
	failAddr string
}

func newStubWatcher() *stubWatcher {
	return &stubWatcher{subs: map[string]*stubSub{}}
}

func (w *stubWatcher) Watch(_ context.Context, address string) (chain.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if address == w.failAddr {
		return nil, errWatchRefused
	}
	s := &stubSub{addr: address, ch: make(chan []byte, 8)}
	w.subs[address] = s
	return s, nil
}

func (w *stubWatcher) sub(t *testing.T, address string) *stubSub {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		s, ok := w.subs[address]
		w.mu.Unlock()
		if ok {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no subscription for %s", address)
	return nil
}

func encodeRound(t *testing.T, r account.Round) []byte {
	t.Helper()
	data, err := account.EncodeRound(r)
	if err != nil {
		t.Fatalf("encode round: %v", err)
	}
	return data
}

func seededReconciler(t *testing.T, currentRound uint64, cached ...uint64) *rounds.Reconciler {
	t.Helper()
	rec := rounds.NewReconciler(testProgram, "", nil, nil)
	table := account.Table{
		Address:            account.TableAddress(testProgram),
		CurrentRoundNumber: currentRound,
		NextRoundTs:        1700000060,
		RoundPeriodTs:      60,
	}
	roundList := make([]account.Round, 0, len(cached))
	for _, n := range cached {
		roundList = append(roundList, account.Round{RoundNumber: n})
	}
	rec.Reseed(&table, roundList)
	return rec
}

func startManager(t *testing.T, w *stubWatcher, rec *rounds.Reconciler) (chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(w, rec, account.TableAddress(testProgram))
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	return errCh, cancel
}

func waitErr(t *testing.T, errCh chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestManagerAppliesRoundDelta(t *testing.T) {
	w := newStubWatcher()
	rec := seededReconciler(t, 1, 1)
	errCh, cancel := startManager(t, w, rec)
	defer cancel()

	roundAddr := account.RoundAddress(testProgram, 1)
	sub := w.sub(t, roundAddr)
	sub.push(t, encodeRound(t, account.Round{RoundNumber: 1, PoolAmount: 500}))

	waitFor(t, func() bool {
		rd, ok := rec.RoundByNumber(1)
		return ok && rd.PoolAmount == 500
	})

	cancel()
	if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestManagerRetargetsAfterSettlement(t *testing.T) {
	w := newStubWatcher()
	rec := seededReconciler(t, 1, 1)
	_, cancel := startManager(t, w, rec)
	defer cancel()

	oldAddr := account.RoundAddress(testProgram, 1)
	sub := w.sub(t, oldAddr)
	outcome := bettype.Outcome(17)
	sub.push(t, encodeRound(t, account.Round{RoundNumber: 1, IsSpun: true, Outcome: &outcome}))

	nextAddr := account.RoundAddress(testProgram, 2)
	next := w.sub(t, nextAddr)
	if next.Address() != nextAddr {
		t.Fatalf("retarget watched %s, want %s", next.Address(), nextAddr)
	}

	sub.mu.Lock()
	closed := sub.closed
	sub.mu.Unlock()
	if !closed {
		t.Fatal("settled round subscription was not torn down")
	}

	// the new round subscription is live: a pool delta lands in the cache
	next.push(t, encodeRound(t, account.Round{RoundNumber: 2, PoolAmount: 42}))
	waitFor(t, func() bool {
		rd, ok := rec.RoundByNumber(2)
		return ok && rd.PoolAmount == 42
	})
}

func TestManagerTableUpdateRetargets(t *testing.T) {
	w := newStubWatcher()
	rec := seededReconciler(t, 1, 1, 2)
	_, cancel := startManager(t, w, rec)
	defer cancel()

	tableAddr := account.TableAddress(testProgram)
	tableSub := w.sub(t, tableAddr)
	data, err := account.EncodeTable(account.Table{
		CurrentRoundNumber: 2,
		NextRoundTs:        1700000120,
		RoundPeriodTs:      60,
	})
	if err != nil {
		t.Fatalf("encode table: %v", err)
	}
	tableSub.push(t, data)

	waitFor(t, func() bool {
		table, ok := rec.Table()
		return ok && table.CurrentRoundNumber == 2
	})
	w.sub(t, account.RoundAddress(testProgram, 2))
}

func TestManagerFatalOnUncachedSettlement(t *testing.T) {
	w := newStubWatcher()
	// table points at round 5 but only round 1 is cached, so a settlement
	// for round 5 has no entry to apply against
	rec := seededReconciler(t, 5, 1)
	errCh, cancel := startManager(t, w, rec)
	defer cancel()

	sub := w.sub(t, account.RoundAddress(testProgram, 5))
	outcome := bettype.Outcome(0)
	sub.push(t, encodeRound(t, account.Round{RoundNumber: 5, IsSpun: true, Outcome: &outcome}))

	if err := waitErr(t, errCh); !errors.Is(err, rounds.ErrMissingRoundEntry) {
		t.Fatalf("want ErrMissingRoundEntry, got %v", err)
	}
}

func TestManagerRetargetWatchFailure(t *testing.T) {
	w := newStubWatcher()
	w.failAddr = account.RoundAddress(testProgram, 2)
	rec := seededReconciler(t, 1, 1)
	errCh, cancel := startManager(t, w, rec)
	defer cancel()

	// settlement advances the table to round 2, whose watch is refused;
	// Run must surface the error so the caller can reseed
	sub := w.sub(t, account.RoundAddress(testProgram, 1))
	outcome := bettype.Outcome(8)
	sub.push(t, encodeRound(t, account.Round{RoundNumber: 1, IsSpun: true, Outcome: &outcome}))

	if err := waitErr(t, errCh); !errors.Is(err, errWatchRefused) {
		t.Fatalf("want errWatchRefused, got %v", err)
	}
}

func TestManagerStreamClosed(t *testing.T) {
	w := newStubWatcher()
	rec := seededReconciler(t, 1, 1)
	errCh, cancel := startManager(t, w, rec)
	defer cancel()

	w.sub(t, account.RoundAddress(testProgram, 1)).Unsubscribe()
	if err := waitErr(t, errCh); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("want ErrStreamClosed, got %v", err)
	}
}
