package main

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"

	"chain-roulette/internal/account"
	"chain-roulette/internal/bettype"
)

type feed struct {
	programID string
	player    string
	period    time.Duration
	rnd       *rand.Rand
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	table   account.Table
	rounds  map[string]account.Round
	bets    map[string]account.Bet
	conns   map[*feedConn]struct{}
	nextSub int64
}

type feedConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	subs map[int64]string // server sub id -> address
}

func newFeed(programID, player string, period time.Duration) *feed {
	if player != "" {
		if raw, err := base58.Decode(player); err != nil || len(raw) != 32 {
			log.Fatalf("FEED_PLAYER %q is not a 32-byte base58 key", player)
		}
	}
	f := &feed{
		programID: programID,
		player:    player,
		period:    period,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		rounds:    map[string]account.Round{},
		bets:      map[string]account.Bet{},
		conns:     map[*feedConn]struct{}{},
	}
	f.table = account.Table{
		Address:            account.TableAddress(programID),
		MinimumBetAmount:   100,
		CurrentRoundNumber: 1,
		NextRoundTs:        time.Now().Add(period).Unix(),
		RoundPeriodTs:      uint64(period / time.Second),
	}
	f.openRound(1)
	return f
}

func (f *feed) openRound(n uint64) {
	addr := account.RoundAddress(f.programID, n)
	f.rounds[addr] = account.Round{Address: addr, RoundNumber: n}
	if f.player != "" {
		f.placeBet(addr)
	}
}

// placeBet drops a random wager by the configured player on the round, so a
// downstream view has bets and win notifications to exercise.
func (f *feed) placeBet(roundAddr string) {
	variants := []bettype.BetType{
		bettype.StraightUp(bettype.Outcome(f.rnd.Intn(37))),
		bettype.Red(),
		bettype.Black(),
		bettype.Odd(),
		bettype.Even(),
		bettype.Column(uint8(f.rnd.Intn(3) + 1)),
		bettype.Dozen(uint8(f.rnd.Intn(3) + 1)),
	}
	bet := account.Bet{
		Address: account.BetAddress(f.programID, roundAddr, f.player),
		Player:  f.player,
		Round:   roundAddr,
		Amount:  uint64(f.rnd.Intn(10)+1) * 100,
		BetType: variants[f.rnd.Intn(len(variants))],
	}
	f.bets[bet.Address] = bet
	round := f.rounds[roundAddr]
	round.PoolAmount += bet.Amount
	f.rounds[roundAddr] = round
}

func (f *feed) spinLoop() {
	for {
		time.Sleep(f.period)

		f.mu.Lock()
		currentAddr := account.RoundAddress(f.programID, f.table.CurrentRoundNumber)
		round := f.rounds[currentAddr]
		round.IsSpun = true
		f.rounds[currentAddr] = round
		f.mu.Unlock()
		f.broadcast(currentAddr)

		time.Sleep(500 * time.Millisecond)

		outcome := bettype.Outcome(f.rnd.Intn(38))
		f.mu.Lock()
		round = f.rounds[currentAddr]
		round.Outcome = &outcome
		f.rounds[currentAddr] = round

		f.table.CurrentRoundNumber++
		f.table.NextRoundTs = time.Now().Add(f.period).Unix()
		f.openRound(f.table.CurrentRoundNumber)
		nextAddr := account.RoundAddress(f.programID, f.table.CurrentRoundNumber)
		f.mu.Unlock()

		log.Printf("round %s settled on %s", currentAddr, outcome)
		f.broadcast(currentAddr)
		f.broadcast(f.table.Address)
		f.broadcast(nextAddr)
	}
}

// encodeAt serializes whatever account lives at address, or nil.
func (f *feed) encodeAt(address string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var (
		raw []byte
		err error
	)
	switch {
	case address == f.table.Address:
		raw, err = account.EncodeTable(f.table)
	default:
		if r, ok := f.rounds[address]; ok {
			raw, err = account.EncodeRound(r)
		} else if b, ok := f.bets[address]; ok {
			raw, err = account.EncodeBet(b)
		}
	}
	if err != nil {
		log.Printf("encode %s: %v", address, err)
		return nil
	}
	return raw
}

func (f *feed) allAccounts() []struct {
	address string
	raw     []byte
} {
	f.mu.Lock()
	addrs := make([]string, 0, len(f.rounds)+len(f.bets)+1)
	addrs = append(addrs, f.table.Address)
	for a := range f.rounds {
		addrs = append(addrs, a)
	}
	for a := range f.bets {
		addrs = append(addrs, a)
	}
	f.mu.Unlock()

	out := make([]struct {
		address string
		raw     []byte
	}, 0, len(addrs))
	for _, a := range addrs {
		if raw := f.encodeAt(a); raw != nil {
			out = append(out, struct {
				address string
				raw     []byte
			}{a, raw})
		}
	}
	return out
}

type rpcReq struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func b64Value(raw []byte) map[string]any {
	return map[string]any{"data": []string{base64.StdEncoding.EncodeToString(raw), "base64"}}
}

func (f *feed) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var result any
	switch req.Method {
	case "getAccountInfo":
		var address string
		_ = json.Unmarshal(req.Params[0], &address)
		if raw := f.encodeAt(address); raw != nil {
			result = map[string]any{"value": b64Value(raw)}
		} else {
			result = map[string]any{"value": nil}
		}
	case "getProgramAccounts":
		filters, err := parseFilters(req.Params)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entries := []map[string]any{}
		for _, acc := range f.allAccounts() {
			if account.Match(acc.raw, filters) {
				entries = append(entries, map[string]any{"pubkey": acc.address, "account": b64Value(acc.raw)})
			}
		}
		result = entries
	default:
		http.Error(w, "unknown method", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func parseFilters(params []json.RawMessage) ([]account.Filter, error) {
	if len(params) < 2 {
		return nil, nil
	}
	var opts struct {
		Filters []struct {
			Memcmp struct {
				Offset int    `json:"offset"`
				Bytes  string `json:"bytes"`
			} `json:"memcmp"`
		} `json:"filters"`
	}
	if err := json.Unmarshal(params[1], &opts); err != nil {
		return nil, err
	}
	out := make([]account.Filter, 0, len(opts.Filters))
	for _, flt := range opts.Filters {
		b, err := base58.Decode(flt.Memcmp.Bytes)
		if err != nil {
			return nil, err
		}
		out = append(out, account.Filter{Offset: flt.Memcmp.Offset, Bytes: b})
	}
	return out, nil
}

func (f *feed) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fc := &feedConn{conn: conn, subs: map[int64]string{}}
	f.mu.Lock()
	f.conns[fc] = struct{}{}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.conns, fc)
		f.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		switch req.Method {
		case "accountSubscribe":
			address, _ := req.Params[0].(string)
			f.mu.Lock()
			f.nextSub++
			id := f.nextSub
			f.mu.Unlock()
			fc.mu.Lock()
			fc.subs[id] = address
			fc.mu.Unlock()
			fc.send(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": id})
		case "accountUnsubscribe":
			id, _ := req.Params[0].(float64)
			fc.mu.Lock()
			delete(fc.subs, int64(id))
			fc.mu.Unlock()
			fc.send(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": true})
		}
	}
}

func (fc *feedConn) send(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	_ = fc.conn.WriteMessage(websocket.TextMessage, data)
}

// broadcast pushes the account at address to every subscription watching it.
func (f *feed) broadcast(address string) {
	raw := f.encodeAt(address)
	if raw == nil {
		return
	}
	f.mu.Lock()
	conns := make([]*feedConn, 0, len(f.conns))
	for fc := range f.conns {
		conns = append(conns, fc)
	}
	f.mu.Unlock()

	for _, fc := range conns {
		fc.mu.Lock()
		ids := make([]int64, 0, len(fc.subs))
		for id, a := range fc.subs {
			if a == address {
				ids = append(ids, id)
			}
		}
		fc.mu.Unlock()
		for _, id := range ids {
			fc.send(map[string]any{
				"jsonrpc": "2.0",
				"method":  "accountNotification",
				"params": map[string]any{
					"subscription": id,
					"result":       map[string]any{"value": b64Value(raw)},
				},
			})
		}
	}
}
