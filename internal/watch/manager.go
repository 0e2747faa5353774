// Package watch owns the long-lived account subscriptions: one on the table
// singleton and one on the current round. When a round settles, the round
// subscription is torn down and replaced before the next update is
// processed, so no orphaned callback can mutate a stale round.
package watch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"chain-roulette/internal/account"
	"chain-roulette/internal/chain"
	"chain-roulette/internal/rounds"
)

var ErrStreamClosed = errors.New("subscription_stream_closed")

type Manager struct {
	watcher      chain.Watcher
	rec          *rounds.Reconciler
	tableAddress string
}

func NewManager(watcher chain.Watcher, rec *rounds.Reconciler, tableAddress string) *Manager {
	return &Manager{watcher: watcher, rec: rec, tableAddress: tableAddress}
}

// Run blocks until the context is cancelled or a fatal cache error occurs.
// A fatal error leaves the cache corrupt; the caller reseeds and calls Run
// again.
func (m *Manager) Run(ctx context.Context) error {
	tableSub, err := m.watcher.Watch(ctx, m.tableAddress)
	if err != nil {
		return fmt.Errorf("watch table: %w", err)
	}
	defer tableSub.Unsubscribe()

	currentAddr, ok := m.rec.CurrentRoundAddress()
	if !ok {
		return errors.New("cache not seeded: no table singleton")
	}
	roundSub, err := m.watcher.Watch(ctx, currentAddr)
	if err != nil {
		return fmt.Errorf("watch round: %w", err)
	}
	// retarget can fail after the old subscription is torn down, leaving
	// roundSub nil
	defer func() {
		if roundSub != nil {
			roundSub.Unsubscribe()
		}
	}()

	log.Info().Str("table", m.tableAddress).Str("round", currentAddr).Msg("watching")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-tableSub.Updates():
			if !ok {
				return fmt.Errorf("%w: table", ErrStreamClosed)
			}
			table, err := account.DecodeTable(m.tableAddress, raw)
			if err != nil {
				return err
			}
			m.rec.SetTable(table)
			roundSub, err = m.retarget(ctx, roundSub)
			if err != nil {
				return err
			}

		case raw, ok := <-roundSub.Updates():
			if !ok {
				return fmt.Errorf("%w: round", ErrStreamClosed)
			}
			incoming, err := account.DecodeRound(roundSub.Address(), raw)
			if err != nil {
				return err
			}
			var prev *account.Round
			if cached, ok := m.rec.RoundByAddress(roundSub.Address()); ok {
				prev = &cached
			}
			if prev == nil && incoming.Outcome != nil && m.rec.HasRounds() {
				// a round we never tracked settled: the cache missed the
				// whole round lifecycle and cannot be trusted
				return fmt.Errorf("%w: settled round %d not cached", rounds.ErrMissingRoundEntry, incoming.RoundNumber)
			}
			tr := rounds.Classify(prev, incoming)
			if err := m.rec.ApplyTransition(tr); err != nil {
				return err
			}
			if tr.Kind == rounds.TransitionSettled {
				roundSub, err = m.retarget(ctx, roundSub)
				if err != nil {
					return err
				}
			}
		}
	}
}

// retarget swaps the round subscription to the current round address
// if the table pointer moved. Teardown of the old watch completes before the
// new one is used.
func (m *Manager) retarget(ctx context.Context, current chain.Subscription) (chain.Subscription, error) {
	wantAddr, ok := m.rec.CurrentRoundAddress()
	if !ok || wantAddr == current.Address() {
		return current, nil
	}
	current.Unsubscribe()
	next, err := m.watcher.Watch(ctx, wantAddr)
	if err != nil {
		return nil, fmt.Errorf("watch round %s: %w", wantAddr, err)
	}
	log.Info().Str("round", wantAddr).Msg("round subscription advanced")
	return next, nil
}
