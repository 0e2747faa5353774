package account

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// Deterministic address derivation: base58(sha256(seed0 || seed1 || ... ||
// programID)). The program derives its accounts the same way, so the client
// can name the next round before the network confirms its existence.

func derive(programID string, seeds ...[]byte) string {
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte(programID))
	return base58.Encode(h.Sum(nil))
}

// TableAddress derives the singleton table account address.
func TableAddress(programID string) string {
	return derive(programID, []byte("table"))
}

// VaultAddress derives the program vault address.
func VaultAddress(programID string) string {
	return derive(programID, []byte("vault"))
}

// RoundAddress derives a round account address from its sequence number.
func RoundAddress(programID string, roundNumber uint64) string {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], roundNumber)
	return derive(programID, []byte("round"), n[:])
}

// BetAddress derives a bet account address from the (round, player) pair.
func BetAddress(programID, roundAddress, playerAddress string) string {
	return derive(programID, []byte("bet"), []byte(roundAddress), []byte(playerAddress))
}
