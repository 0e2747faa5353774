package rounds

import (
	"testing"

	"chain-roulette/internal/account"
	"chain-roulette/internal/bettype"
)

func outcomePtr(o bettype.Outcome) *bettype.Outcome { return &o }

func TestClassifyFirstObservationIsSeeded(t *testing.T) {
	incoming := account.Round{RoundNumber: 5, PoolAmount: 100, IsSpun: true, Outcome: outcomePtr(17)}
	tr := Classify(nil, incoming)
	if tr.Kind != TransitionSeeded {
		t.Fatalf("kind = %s, want seeded", tr.Kind)
	}
	if tr.Round.RoundNumber != 5 || tr.Round.Outcome == nil {
		t.Fatalf("seeded transition lost the snapshot: %+v", tr.Round)
	}
}

func TestClassifyPoolChanged(t *testing.T) {
	prev := account.Round{RoundNumber: 5, PoolAmount: 100}
	incoming := account.Round{RoundNumber: 5, PoolAmount: 150}
	tr := Classify(&prev, incoming)
	if tr.Kind != TransitionPoolChanged || tr.PoolAmount != 150 {
		t.Fatalf("got %+v, want pool_changed(150)", tr)
	}
}

func TestClassifySpinStarted(t *testing.T) {
	prev := account.Round{RoundNumber: 5, PoolAmount: 100}
	incoming := account.Round{RoundNumber: 5, PoolAmount: 100, IsSpun: true}
	tr := Classify(&prev, incoming)
	if tr.Kind != TransitionSpinStarted {
		t.Fatalf("got %+v, want spin_started", tr)
	}
}

func TestClassifySettled(t *testing.T) {
	prev := account.Round{RoundNumber: 5, PoolAmount: 100, IsSpun: true}
	incoming := account.Round{RoundNumber: 5, PoolAmount: 100, IsSpun: true, Outcome: outcomePtr(17)}
	tr := Classify(&prev, incoming)
	if tr.Kind != TransitionSettled || tr.Outcome != 17 {
		t.Fatalf("got %+v, want settled(17)", tr)
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// pool change in the same write wins over settlement detection
	prev := account.Round{RoundNumber: 5, PoolAmount: 100, IsSpun: true}
	incoming := account.Round{RoundNumber: 5, PoolAmount: 200, IsSpun: true, Outcome: outcomePtr(3)}
	tr := Classify(&prev, incoming)
	if tr.Kind != TransitionPoolChanged {
		t.Fatalf("got %s, want pool_changed", tr.Kind)
	}
}

func TestClassifyNoOp(t *testing.T) {
	prev := account.Round{RoundNumber: 5, PoolAmount: 100, IsSpun: true, Outcome: outcomePtr(17)}
	incoming := prev.Clone()
	tr := Classify(&prev, incoming)
	if tr.Kind != TransitionNoOp {
		t.Fatalf("got %s, want noop", tr.Kind)
	}
}
