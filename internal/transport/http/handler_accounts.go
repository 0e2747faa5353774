package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"chain-roulette/internal/account"
	"chain-roulette/internal/bets"
	"chain-roulette/internal/bettype"
	"chain-roulette/internal/rounds"
)

// AccountHandlers serves the cached table view and on-demand account
// listings. Rounds come from the reconciler cache; bets are fetched from the
// chain per request since only the local player's bets are cached.
type AccountHandlers struct {
	rec  *rounds.Reconciler
	bets *bets.Collection
}

func NewAccountHandlers(rec *rounds.Reconciler, betsCol *bets.Collection) *AccountHandlers {
	return &AccountHandlers{rec: rec, bets: betsCol}
}

func (h *AccountHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *AccountHandlers) Table() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		table, ok := h.rec.Table()
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "table_not_found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"table": table})
	}
}

func (h *AccountHandlers) View() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.rec.Snapshot())
	}
}

func (h *AccountHandlers) Rounds() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAccountQueryTotal.Add(1)
		qs := r.URL.Query()

		if pda := qs.Get("pda"); pda != "" {
			out := []account.Round{}
			if rd, ok := h.rec.RoundByAddress(pda); ok {
				out = append(out, rd)
			}
			writeJSON(w, http.StatusOK, map[string]any{"rounds": out})
			return
		}

		var q rounds.RoundQuery
		if v := qs.Get("roundNumber"); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_argument")
				return
			}
			q.RoundNumber = &n
		}
		isSpun, ok := parseOptionalBool(qs.Get("isSpun"))
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_argument")
			return
		}
		q.IsSpun = isSpun
		writeJSON(w, http.StatusOK, map[string]any{"rounds": h.rec.ListRounds(q)})
	}
}

func (h *AccountHandlers) Bets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAccountQueryTotal.Add(1)
		qs := r.URL.Query()

		if pda := qs.Get("pda"); pda != "" {
			bet, ok, err := h.bets.Get(r.Context(), pda)
			if err != nil {
				metricAccountQueryErrors.Add(1)
				WriteHTTPError(w, http.StatusBadGateway, "upstream_unavailable")
				return
			}
			out := []account.Bet{}
			if ok {
				out = append(out, bet)
			}
			writeJSON(w, http.StatusOK, map[string]any{"bets": out})
			return
		}

		q := bets.Query{
			Player: qs.Get("player"),
			Round:  qs.Get("round"),
		}
		isClaimed, ok := parseOptionalBool(qs.Get("isClaimed"))
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_argument")
			return
		}
		q.IsClaimed = isClaimed
		isWinning, ok := parseOptionalBool(qs.Get("isWinning"))
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_argument")
			return
		}

		list, err := h.bets.List(r.Context(), q)
		if err != nil {
			metricAccountQueryErrors.Add(1)
			WriteHTTPError(w, http.StatusBadGateway, "upstream_unavailable")
			return
		}
		if isWinning != nil {
			list = h.filterWinning(list, *isWinning)
		}
		writeJSON(w, http.StatusOK, map[string]any{"bets": list})
	}
}

// filterWinning keeps bets on settled rounds whose evaluation matches want.
// Bets on open or unknown rounds have no win state yet and never match.
func (h *AccountHandlers) filterWinning(list []account.Bet, want bool) []account.Bet {
	out := make([]account.Bet, 0, len(list))
	for _, bet := range list {
		rd, ok := h.rec.RoundByAddress(bet.Round)
		if !ok || rd.Outcome == nil {
			continue
		}
		won, err := bettype.Evaluate(bet.BetType, *rd.Outcome)
		if err != nil {
			continue
		}
		if won == want {
			out = append(out, bet)
		}
	}
	return out
}

func parseOptionalBool(v string) (*bool, bool) {
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, false
	}
	return &b, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
