package account

import (
	"chain-roulette/internal/bettype"
)

// Schema tags the on-chain account layouts this client understands.
type Schema string

const (
	SchemaTable Schema = "table"
	SchemaRound Schema = "round"
	SchemaBet   Schema = "bet"
)

// Table is the singleton table account. 64-bit quantities serialize as
// decimal strings so downstream JSON consumers never see them as floats.
type Table struct {
	Address            string `json:"publicKey"`
	Admin              string `json:"admin"`
	MinimumBetAmount   uint64 `json:"minimumBetAmount,string"`
	CurrentRoundNumber uint64 `json:"currentRoundNumber,string"`
	NextRoundTs        int64  `json:"nextRoundTs,string"`
	RoundPeriodTs      uint64 `json:"roundPeriodTs,string"`
}

// Round is one spin cycle. Outcome is nil until the round settles; once set
// it never changes. IsClaimed is owned by the settlement transaction and is
// surfaced read-only.
type Round struct {
	Address     string           `json:"publicKey"`
	RoundNumber uint64           `json:"roundNumber,string"`
	PoolAmount  uint64           `json:"poolAmount,string"`
	IsSpun      bool             `json:"isSpun"`
	IsClaimed   bool             `json:"isClaimed"`
	Outcome     *bettype.Outcome `json:"outcome"`
}

// Bet is a single wager, unique per (player, round).
type Bet struct {
	Address   string          `json:"publicKey"`
	Player    string          `json:"player"`
	Round     string          `json:"round"`
	Amount    uint64          `json:"amount,string"`
	BetType   bettype.BetType `json:"betType"`
	IsClaimed bool            `json:"isClaimed"`
}

// Clone returns an independent copy, including the optional outcome.
func (r Round) Clone() Round {
	out := r
	if r.Outcome != nil {
		o := *r.Outcome
		out.Outcome = &o
	}
	return out
}
