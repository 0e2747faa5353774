package rounds

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"chain-roulette/internal/account"
	"chain-roulette/internal/bettype"
	"chain-roulette/internal/events"
)

var ErrMissingRoundEntry = errors.New("missing_round_entry")

// BetSource is the read-only sibling bets collection, queried only to find
// the local player's bet in a settling round.
type BetSource interface {
	BetFor(player, roundAddress string) (account.Bet, bool)
}

// Reconciler owns the in-memory Table singleton and rounds collection for
// the session. A single mutex serializes transitions; every mutation is a
// read-modify-write against the latest cached entry, so a local optimistic
// write racing a remote push in the same tick cannot lose fields it did not
// touch. Readers only ever see deep-copied snapshots.
type Reconciler struct {
	programID string
	player    string
	bets      BetSource
	buf       *events.Buffer
	now       func() time.Time

	mu        sync.Mutex
	table     *account.Table
	rounds    map[uint64]*account.Round
	byAddress map[string]uint64
}

func NewReconciler(programID, player string, bets BetSource, buf *events.Buffer) *Reconciler {
	return &Reconciler{
		programID: programID,
		player:    player,
		bets:      bets,
		buf:       buf,
		now:       time.Now,
		rounds:    map[uint64]*account.Round{},
		byAddress: map[string]uint64{},
	}
}

// View is an immutable snapshot for presentation layers.
type View struct {
	Table        *account.Table  `json:"table"`
	Rounds       []account.Round `json:"rounds"`
	CurrentRound *account.Round  `json:"currentRound"`
}

// ApplyTransition runs one classified transition to completion. Errors are
// fatal to the cache: the caller is expected to Reseed from a full fetch.
func (r *Reconciler) ApplyTransition(t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch t.Kind {
	case TransitionSeeded:
		if _, ok := r.rounds[t.Round.RoundNumber]; ok {
			return nil
		}
		r.insertLocked(t.Round.Clone())
		return nil

	case TransitionPoolChanged:
		entry, err := r.entryLocked(t.Round)
		if err != nil || entry == nil {
			return err
		}
		// partial update: only the pool moves, concurrent writes to other
		// fields survive
		entry.PoolAmount = t.PoolAmount
		return nil

	case TransitionSpinStarted:
		entry, err := r.entryLocked(t.Round)
		if err != nil || entry == nil {
			return err
		}
		entry.IsSpun = true
		return nil

	case TransitionSettled:
		entry, ok := r.lookupLocked(t.Round)
		if !ok {
			return fmt.Errorf("%w: settled round %d not cached", ErrMissingRoundEntry, t.Round.RoundNumber)
		}
		if entry.Outcome != nil {
			// settlement is terminal, a duplicate never rewrites it
			return nil
		}
		outcome := t.Outcome
		entry.IsSpun = true
		entry.Outcome = &outcome

		wonAmount, err := r.settleLocalBet(entry.Address, outcome)
		if err != nil {
			return err
		}
		if r.buf != nil {
			r.buf.Append(entry.RoundNumber, outcome, wonAmount)
		}

		r.advanceLocked(entry.RoundNumber)
		return nil

	case TransitionNoOp:
		return nil

	default:
		return fmt.Errorf("unknown transition kind %q", t.Kind)
	}
}

// entryLocked resolves the round a delta transition targets. A delta against
// an unknown round with a non-empty cache is an invariant violation; with an
// empty cache the update is dropped until the seed arrives.
func (r *Reconciler) entryLocked(rd account.Round) (*account.Round, error) {
	entry, ok := r.lookupLocked(rd)
	if ok {
		return entry, nil
	}
	if len(r.rounds) > 0 {
		return nil, fmt.Errorf("%w: round %d not cached", ErrMissingRoundEntry, rd.RoundNumber)
	}
	log.Warn().Uint64("round", rd.RoundNumber).Msg("dropping update for unseeded cache")
	return nil, nil
}

func (r *Reconciler) lookupLocked(rd account.Round) (*account.Round, bool) {
	if entry, ok := r.rounds[rd.RoundNumber]; ok {
		return entry, true
	}
	if n, ok := r.byAddress[rd.Address]; ok {
		return r.rounds[n], true
	}
	return nil, false
}

func (r *Reconciler) insertLocked(rd account.Round) {
	if rd.Address == "" {
		rd.Address = account.RoundAddress(r.programID, rd.RoundNumber)
	}
	entry := rd
	r.rounds[entry.RoundNumber] = &entry
	r.byAddress[entry.Address] = entry.RoundNumber
}

// settleLocalBet evaluates the local player's bet on the settled round, if
// any. The won amount is betAmount x payoutMultiplier as a decimal, since the
// product can exceed the u64 range.
func (r *Reconciler) settleLocalBet(roundAddress string, outcome bettype.Outcome) (*decimal.Decimal, error) {
	if r.player == "" || r.bets == nil {
		return nil, nil
	}
	bet, ok := r.bets.BetFor(r.player, roundAddress)
	if !ok {
		return nil, nil
	}
	won, err := bettype.Evaluate(bet.BetType, outcome)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, nil
	}
	mult, err := bettype.PayoutMultiplier(bet.BetType)
	if err != nil {
		return nil, err
	}
	amount := decimal.NewFromUint64(bet.Amount).Mul(decimal.NewFromInt(mult))
	return &amount, nil
}

// advanceLocked opens the next round optimistically: bump the table pointer,
// predict nextRoundTs from the local clock, and insert a fresh open round at
// its derived address so the UI sees it before the network confirms it. The
// authoritative table write observed later corrects the prediction.
func (r *Reconciler) advanceLocked(settledRoundNumber uint64) {
	next := settledRoundNumber + 1
	if r.table != nil {
		r.table.CurrentRoundNumber = settledRoundNumber + 1
		r.table.NextRoundTs = r.now().Unix() + int64(r.table.RoundPeriodTs)
		next = r.table.CurrentRoundNumber
	}
	if _, ok := r.rounds[next]; !ok {
		r.insertLocked(account.Round{RoundNumber: next})
	}
}

// SetTable applies an authoritative remote table observation. The remote
// value always wins over the local optimistic prediction.
func (r *Reconciler) SetTable(t account.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := t
	r.table = &copied
}

func (r *Reconciler) Table() (account.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.table == nil {
		return account.Table{}, false
	}
	return *r.table, true
}

// HasRounds reports whether any round entry is cached.
func (r *Reconciler) HasRounds() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rounds) > 0
}

func (r *Reconciler) RoundByNumber(n uint64) (account.Round, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.rounds[n]
	if !ok {
		return account.Round{}, false
	}
	return entry.Clone(), true
}

func (r *Reconciler) RoundByAddress(addr string) (account.Round, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byAddress[addr]
	if !ok {
		return account.Round{}, false
	}
	return r.rounds[n].Clone(), true
}

// CurrentRoundAddress derives the address of the round the table currently
// points to.
func (r *Reconciler) CurrentRoundAddress() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.table == nil {
		return "", false
	}
	return account.RoundAddress(r.programID, r.table.CurrentRoundNumber), true
}

// RoundQuery filters ListRounds; nil fields match everything.
type RoundQuery struct {
	RoundNumber *uint64
	IsSpun      *bool
}

func (r *Reconciler) ListRounds(q RoundQuery) []account.Round {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]account.Round, 0, len(r.rounds))
	for _, entry := range r.rounds {
		if q.RoundNumber != nil && entry.RoundNumber != *q.RoundNumber {
			continue
		}
		if q.IsSpun != nil && entry.IsSpun != *q.IsSpun {
			continue
		}
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out
}

// Snapshot returns a deep copy of the whole view; readers never observe a
// partially-applied transition.
func (r *Reconciler) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	view := View{Rounds: make([]account.Round, 0, len(r.rounds))}
	if r.table != nil {
		copied := *r.table
		view.Table = &copied
		if entry, ok := r.rounds[r.table.CurrentRoundNumber]; ok {
			current := entry.Clone()
			view.CurrentRound = &current
		}
	}
	for _, entry := range r.rounds {
		view.Rounds = append(view.Rounds, entry.Clone())
	}
	sort.Slice(view.Rounds, func(i, j int) bool { return view.Rounds[i].RoundNumber < view.Rounds[j].RoundNumber })
	return view
}

// Reseed replaces the whole cache from a fresh full fetch. Used after a
// fatal cache error.
func (r *Reconciler) Reseed(table *account.Table, roundList []account.Round) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = nil
	if table != nil {
		copied := *table
		r.table = &copied
	}
	r.rounds = map[uint64]*account.Round{}
	r.byAddress = map[string]uint64{}
	for _, rd := range roundList {
		r.insertLocked(rd.Clone())
	}
}
