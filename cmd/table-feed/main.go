// table-feed is a dumb local stand-in for the RPC node: it simulates a
// roulette table spinning on a fixed period and serves the same JSON-RPC
// surface table-view consumes (getAccountInfo, getProgramAccounts,
// accountSubscribe over websocket). Point CHAIN_RPC_URL/CHAIN_WS_URL at it
// to run the view without a chain.
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

func main() {
	addr := getenv("FEED_ADDR", ":8899")
	programID := getenv("FEED_PROGRAM_ID", "LocalRouletteFeed")
	player := getenv("FEED_PLAYER", "")
	period := getenvInt("FEED_ROUND_SECONDS", 30)

	f := newFeed(programID, player, time.Duration(period)*time.Second)
	go f.spinLoop()

	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handleRPC)
	mux.HandleFunc("/ws", f.handleWS)

	log.Printf("table-feed listening on %s (program %s, round every %ds)", addr, programID, period)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
