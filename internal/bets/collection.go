// Package bets owns the read-only bets collection. The reconciler only ever
// queries it for the local player's bet in a settling round; the HTTP layer
// serves richer filtered listings straight from the chain.
package bets

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"chain-roulette/internal/account"
	"chain-roulette/internal/chain"
)

type Collection struct {
	fetcher chain.Fetcher
	player  string

	mu      sync.RWMutex
	byRound map[string]account.Bet // local player's bet per round address
}

func NewCollection(fetcher chain.Fetcher, player string) *Collection {
	return &Collection{
		fetcher: fetcher,
		player:  player,
		byRound: map[string]account.Bet{},
	}
}

// Refresh reloads the local player's bets from the chain. Called at startup
// and after the player submits a bet transaction.
func (c *Collection) Refresh(ctx context.Context) error {
	if c.player == "" {
		return nil
	}
	playerFilter, err := account.IdentityFilter(account.BetPlayerOffset, c.player)
	if err != nil {
		return err
	}
	raws, err := c.fetcher.GetAccountsByFilter(ctx, account.SchemaBet, []account.Filter{playerFilter})
	if err != nil {
		return err
	}
	fresh := make(map[string]account.Bet, len(raws))
	for _, r := range raws {
		bet, err := account.DecodeBet(r.Address, r.Data)
		if err != nil {
			return err
		}
		fresh[bet.Round] = bet
	}
	c.mu.Lock()
	c.byRound = fresh
	c.mu.Unlock()
	log.Debug().Int("bets", len(fresh)).Str("player", c.player).Msg("bets collection refreshed")
	return nil
}

// BetFor satisfies rounds.BetSource.
func (c *Collection) BetFor(player, roundAddress string) (account.Bet, bool) {
	if player != c.player {
		return account.Bet{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	bet, ok := c.byRound[roundAddress]
	return bet, ok
}

// Get fetches one bet account by address. ok=false means the account does
// not exist.
func (c *Collection) Get(ctx context.Context, address string) (account.Bet, bool, error) {
	data, ok, err := c.fetcher.GetAccount(ctx, address, account.SchemaBet)
	if err != nil || !ok {
		return account.Bet{}, false, err
	}
	bet, err := account.DecodeBet(address, data)
	if err != nil {
		return account.Bet{}, false, err
	}
	return bet, true, nil
}

// Query expresses the bet list filters the downstream surface accepts.
type Query struct {
	Player    string
	Round     string
	IsClaimed *bool
}

// List fetches matching bets from the chain using offset filters over the
// raw layout.
func (c *Collection) List(ctx context.Context, q Query) ([]account.Bet, error) {
	filters := []account.Filter{}
	if q.Player != "" {
		f, err := account.IdentityFilter(account.BetPlayerOffset, q.Player)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if q.Round != "" {
		f, err := account.IdentityFilter(account.BetRoundOffset, q.Round)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if q.IsClaimed != nil {
		filters = append(filters, account.BoolFilter(account.BetIsClaimedOffset, *q.IsClaimed))
	}
	raws, err := c.fetcher.GetAccountsByFilter(ctx, account.SchemaBet, filters)
	if err != nil {
		return nil, err
	}
	out := make([]account.Bet, 0, len(raws))
	for _, r := range raws {
		bet, err := account.DecodeBet(r.Address, r.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, bet)
	}
	return out, nil
}
