package bets

import (
	"context"
	"testing"

	"github.com/mr-tron/base58"

	"chain-roulette/internal/account"
	"chain-roulette/internal/bettype"
	"chain-roulette/internal/chain"
)

const testProgram = "TestRouletteProgram"

func identity(name string) string {
	var b [32]byte
	copy(b[:], name)
	return base58.Encode(b[:])
}

type stubFetcher struct {
	accounts map[string][]byte
	records  []chain.Raw
}

func (f *stubFetcher) GetAccount(_ context.Context, address string, _ account.Schema) ([]byte, bool, error) {
	data, ok := f.accounts[address]
	return data, ok, nil
}

func (f *stubFetcher) GetAccountsByFilter(_ context.Context, _ account.Schema, filters []account.Filter) ([]chain.Raw, error) {
	out := []chain.Raw{}
	for _, r := range f.records {
		matched := true
		for _, flt := range filters {
			if !flt.Match(r.Data) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, r)
		}
	}
	return out, nil
}

func encodeBet(t *testing.T, b account.Bet) chain.Raw {
	t.Helper()
	data, err := account.EncodeBet(b)
	if err != nil {
		t.Fatalf("encode bet: %v", err)
	}
	return chain.Raw{Address: b.Address, Data: data}
}

func TestRefreshAndBetFor(t *testing.T) {
	player := identity("local-player")
	other := identity("someone-else")
	round1 := account.RoundAddress(testProgram, 1)
	round2 := account.RoundAddress(testProgram, 2)

	fetcher := &stubFetcher{records: []chain.Raw{
		encodeBet(t, account.Bet{
			Address: account.BetAddress(testProgram, round1, player),
			Player:  player, Round: round1, Amount: 100, BetType: bettype.Red(),
		}),
		encodeBet(t, account.Bet{
			Address: account.BetAddress(testProgram, round2, player),
			Player:  player, Round: round2, Amount: 250, BetType: bettype.StraightUp(17),
		}),
		encodeBet(t, account.Bet{
			Address: account.BetAddress(testProgram, round1, other),
			Player:  other, Round: round1, Amount: 999, BetType: bettype.Black(),
		}),
	}}

	c := NewCollection(fetcher, player)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	bet, ok := c.BetFor(player, round1)
	if !ok {
		t.Fatal("BetFor() round1 not found")
	}
	if bet.Amount != 100 {
		t.Fatalf("Amount = %d, want 100", bet.Amount)
	}

	bet, ok = c.BetFor(player, round2)
	if !ok || bet.Amount != 250 {
		t.Fatalf("BetFor() round2 = %+v, %v", bet, ok)
	}

	// the other player's bet never lands in the local cache
	if _, ok := c.BetFor(other, round1); ok {
		t.Fatal("BetFor() must reject a foreign player")
	}
}

func TestRefreshSpectatorModeIsNoop(t *testing.T) {
	fetcher := &stubFetcher{}
	c := NewCollection(fetcher, "")
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if _, ok := c.BetFor("", "anything"); ok {
		t.Fatal("spectator mode should cache nothing")
	}
}

func TestListFilters(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	round1 := account.RoundAddress(testProgram, 1)
	round2 := account.RoundAddress(testProgram, 2)

	fetcher := &stubFetcher{records: []chain.Raw{
		encodeBet(t, account.Bet{
			Address: account.BetAddress(testProgram, round1, alice),
			Player:  alice, Round: round1, Amount: 100, BetType: bettype.Red(),
		}),
		encodeBet(t, account.Bet{
			Address: account.BetAddress(testProgram, round2, alice),
			Player:  alice, Round: round2, Amount: 200, BetType: bettype.Even(), IsClaimed: true,
		}),
		encodeBet(t, account.Bet{
			Address: account.BetAddress(testProgram, round1, bob),
			Player:  bob, Round: round1, Amount: 300, BetType: bettype.Column(2),
		}),
	}}
	c := NewCollection(fetcher, "")

	list, err := c.List(context.Background(), Query{Player: alice})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("player filter returned %d, want 2", len(list))
	}

	list, err = c.List(context.Background(), Query{Round: round1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("round filter returned %d, want 2", len(list))
	}

	claimed := true
	list, err = c.List(context.Background(), Query{Player: alice, IsClaimed: &claimed})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Amount != 200 {
		t.Fatalf("claimed filter returned %+v", list)
	}
}

func TestGet(t *testing.T) {
	alice := identity("alice")
	round := account.RoundAddress(testProgram, 1)
	addr := account.BetAddress(testProgram, round, alice)
	raw := encodeBet(t, account.Bet{
		Address: addr, Player: alice, Round: round, Amount: 42, BetType: bettype.Low(),
	})

	c := NewCollection(&stubFetcher{accounts: map[string][]byte{addr: raw.Data}}, "")
	bet, ok, err := c.Get(context.Background(), addr)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || bet.Amount != 42 {
		t.Fatalf("Get() = %+v, %v", bet, ok)
	}

	if _, ok, err := c.Get(context.Background(), "Missing"); err != nil || ok {
		t.Fatalf("missing account: ok=%v err=%v", ok, err)
	}
}
