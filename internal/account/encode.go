package account

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"chain-roulette/internal/bettype"
)

// Encoders mirror the decode layouts. They back the codec tests and local
// feed tooling; the real program is the only authoritative writer.

func encodeIdentity(buf []byte, addr string) ([]byte, error) {
	if addr == "" {
		return append(buf, zeroIdentity[:]...), nil
	}
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%w: identity %q is not a 32-byte key", ErrDecode, addr)
	}
	return append(buf, raw...), nil
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// EncodeTable serializes a table snapshot into its raw account layout.
func EncodeTable(t Table) ([]byte, error) {
	disc, err := Discriminator(SchemaTable)
	if err != nil {
		return nil, err
	}
	buf := append([]byte{}, disc...)
	if buf, err = encodeIdentity(buf, t.Admin); err != nil {
		return nil, err
	}
	buf = appendU64(buf, t.MinimumBetAmount)
	buf = appendU64(buf, t.CurrentRoundNumber)
	buf = appendU64(buf, uint64(t.NextRoundTs))
	buf = appendU64(buf, t.RoundPeriodTs)
	return buf, nil
}

// EncodeRound serializes a round snapshot into its raw account layout.
func EncodeRound(r Round) ([]byte, error) {
	disc, err := Discriminator(SchemaRound)
	if err != nil {
		return nil, err
	}
	buf := append([]byte{}, disc...)
	buf = appendU64(buf, r.RoundNumber)
	buf = appendU64(buf, r.PoolAmount)
	buf = appendBool(buf, r.IsSpun)
	buf = appendBool(buf, r.IsClaimed)
	if r.Outcome == nil {
		return append(buf, 0), nil
	}
	buf = append(buf, 1)
	return appendBetType(buf, bettype.StraightUp(*r.Outcome))
}

// EncodeBet serializes a bet snapshot into its raw account layout.
func EncodeBet(b Bet) ([]byte, error) {
	disc, err := Discriminator(SchemaBet)
	if err != nil {
		return nil, err
	}
	buf := append([]byte{}, disc...)
	if buf, err = encodeIdentity(buf, b.Player); err != nil {
		return nil, err
	}
	if buf, err = encodeIdentity(buf, b.Round); err != nil {
		return nil, err
	}
	buf = appendU64(buf, b.Amount)
	buf = append(buf, byte(b.BetType.Kind))
	buf = appendBool(buf, b.IsClaimed)
	return appendBetTypePayload(buf, b.BetType)
}

func appendBetType(buf []byte, bt bettype.BetType) ([]byte, error) {
	buf = append(buf, byte(bt.Kind))
	return appendBetTypePayload(buf, bt)
}

func appendBetTypePayload(buf []byte, bt bettype.BetType) ([]byte, error) {
	wantNumbers := map[bettype.Kind]int{
		bettype.KindStraightUp: 1,
		bettype.KindSplit:      2,
		bettype.KindStreet:     3,
		bettype.KindCorner:     4,
		bettype.KindLine:       6,
	}
	switch bt.Kind {
	case bettype.KindStraightUp, bettype.KindSplit, bettype.KindStreet,
		bettype.KindCorner, bettype.KindLine:
		if len(bt.Numbers) != wantNumbers[bt.Kind] {
			return nil, fmt.Errorf("%w: %v carries %d numbers", bettype.ErrInvalidBetType, bt.Kind, len(bt.Numbers))
		}
		for _, n := range bt.Numbers {
			buf = append(buf, byte(n))
		}
		return buf, nil
	case bettype.KindColumn, bettype.KindDozen:
		return append(buf, bt.Index), nil
	case bettype.KindFiveNumber, bettype.KindRed, bettype.KindBlack,
		bettype.KindEven, bettype.KindOdd, bettype.KindHigh, bettype.KindLow:
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: kind %d", bettype.ErrInvalidBetType, bt.Kind)
	}
}
