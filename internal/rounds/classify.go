package rounds

import (
	"chain-roulette/internal/account"
	"chain-roulette/internal/bettype"
)

type TransitionKind string

const (
	TransitionSeeded      TransitionKind = "seeded"
	TransitionPoolChanged TransitionKind = "pool_changed"
	TransitionSpinStarted TransitionKind = "spin_started"
	TransitionSettled     TransitionKind = "settled"
	TransitionNoOp        TransitionKind = "noop"
)

// Transition is the classified delta between the cached round snapshot and an
// incoming one. Round always carries the incoming snapshot so the reconciler
// can identify the entry.
type Transition struct {
	Kind       TransitionKind
	Round      account.Round
	PoolAmount uint64
	Outcome    bettype.Outcome
}

// Classify reduces a raw round delta to a single transition. The program
// writes pool changes, spin start and settlement as discrete account writes,
// so the checks are mutually exclusive and ordered; the first match wins.
// A first observation (prev == nil) is always Seeded, never a delta kind.
func Classify(prev *account.Round, incoming account.Round) Transition {
	if prev == nil {
		return Transition{Kind: TransitionSeeded, Round: incoming.Clone()}
	}
	if incoming.PoolAmount != prev.PoolAmount {
		return Transition{Kind: TransitionPoolChanged, Round: incoming.Clone(), PoolAmount: incoming.PoolAmount}
	}
	if incoming.IsSpun && !prev.IsSpun && incoming.Outcome == nil {
		return Transition{Kind: TransitionSpinStarted, Round: incoming.Clone()}
	}
	if incoming.Outcome != nil && prev.Outcome == nil {
		return Transition{Kind: TransitionSettled, Round: incoming.Clone(), Outcome: *incoming.Outcome}
	}
	return Transition{Kind: TransitionNoOp, Round: incoming.Clone()}
}
