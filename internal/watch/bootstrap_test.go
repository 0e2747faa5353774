package watch

import (
	"context"
	"errors"
	"testing"

	"chain-roulette/internal/account"
	"chain-roulette/internal/bettype"
	"chain-roulette/internal/chain"
	"chain-roulette/internal/rounds"
)

type stubFetcher struct {
	accounts map[string][]byte
	rounds   []chain.Raw
}

func (f *stubFetcher) GetAccount(_ context.Context, address string, _ account.Schema) ([]byte, bool, error) {
	data, ok := f.accounts[address]
	return data, ok, nil
}

func (f *stubFetcher) GetAccountsByFilter(_ context.Context, schema account.Schema, _ []account.Filter) ([]chain.Raw, error) {
	if schema != account.SchemaRound {
		return nil, nil
	}
	return f.rounds, nil
}

func encodeRoundRaw(t *testing.T, r account.Round) chain.Raw {
	t.Helper()
	data, err := account.EncodeRound(r)
	if err != nil {
		t.Fatalf("encode round: %v", err)
	}
	return chain.Raw{Address: r.Address, Data: data}
}

func TestBootstrapSeedsCache(t *testing.T) {
	tableAddr := account.TableAddress(testProgram)
	tableRaw, err := account.EncodeTable(account.Table{
		MinimumBetAmount:   100,
		CurrentRoundNumber: 3,
		NextRoundTs:        1700000060,
		RoundPeriodTs:      60,
	})
	if err != nil {
		t.Fatalf("encode table: %v", err)
	}
	outcome := bettype.Outcome(12)
	fetcher := &stubFetcher{
		accounts: map[string][]byte{tableAddr: tableRaw},
		rounds: []chain.Raw{
			encodeRoundRaw(t, account.Round{
				Address: account.RoundAddress(testProgram, 2), RoundNumber: 2,
				PoolAmount: 700, IsSpun: true, Outcome: &outcome,
			}),
		},
	}

	rec := rounds.NewReconciler(testProgram, "", nil, nil)
	if err := Bootstrap(context.Background(), fetcher, rec, testProgram); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	table, ok := rec.Table()
	if !ok || table.CurrentRoundNumber != 3 {
		t.Fatalf("table = %+v, %v", table, ok)
	}
	if rd, ok := rec.RoundByNumber(2); !ok || rd.Outcome == nil || *rd.Outcome != 12 {
		t.Fatalf("settled round = %+v, %v", rd, ok)
	}
	// the current round account is not on chain yet; a local open entry is
	// seeded so the watch has something to diff against
	if rd, ok := rec.RoundByNumber(3); !ok || rd.IsSpun || rd.Outcome != nil {
		t.Fatalf("current round = %+v, %v", rd, ok)
	}
}

func TestBootstrapTableMissing(t *testing.T) {
	rec := rounds.NewReconciler(testProgram, "", nil, nil)
	err := Bootstrap(context.Background(), &stubFetcher{}, rec, testProgram)
	if !errors.Is(err, ErrTableNotInitialized) {
		t.Fatalf("error = %v, want ErrTableNotInitialized", err)
	}
}
