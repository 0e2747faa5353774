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

var ErrTableNotInitialized = errors.New("table_not_initialized")

// Bootstrap (re)seeds the reconciler from a full fetch: the table singleton
// plus every round account. Also used to recover after a fatal cache error.
func Bootstrap(ctx context.Context, fetcher chain.Fetcher, rec *rounds.Reconciler, programID string) error {
	tableAddr := account.TableAddress(programID)
	raw, ok, err := fetcher.GetAccount(ctx, tableAddr, account.SchemaTable)
	if err != nil {
		return fmt.Errorf("fetch table: %w", err)
	}
	if !ok {
		return ErrTableNotInitialized
	}
	table, err := account.DecodeTable(tableAddr, raw)
	if err != nil {
		return err
	}

	raws, err := fetcher.GetAccountsByFilter(ctx, account.SchemaRound, nil)
	if err != nil {
		return fmt.Errorf("fetch rounds: %w", err)
	}
	roundList := make([]account.Round, 0, len(raws))
	for _, r := range raws {
		rd, err := account.DecodeRound(r.Address, r.Data)
		if err != nil {
			return err
		}
		roundList = append(roundList, rd)
	}
	rec.Reseed(&table, roundList)

	// the current round account may not exist on chain yet right after a
	// spin; open it locally so the watch has an entry to diff against
	if _, ok := rec.RoundByNumber(table.CurrentRoundNumber); !ok {
		seed := rounds.Transition{
			Kind:  rounds.TransitionSeeded,
			Round: account.Round{RoundNumber: table.CurrentRoundNumber},
		}
		if err := rec.ApplyTransition(seed); err != nil {
			return err
		}
	}

	log.Info().
		Uint64("current_round", table.CurrentRoundNumber).
		Int("rounds", len(roundList)).
		Msg("cache seeded")
	return nil
}
