package account

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"chain-roulette/internal/bettype"
)

var (
	ErrDecode             = errors.New("decode_error")
	ErrUnknownAccountType = errors.New("unknown_account_type")
)

// DiscriminatorSize is the length of the layout tag prefixing every account.
const DiscriminatorSize = 8

var discriminators = map[Schema][]byte{
	SchemaTable: discriminator("Table"),
	SchemaRound: discriminator("Round"),
	SchemaBet:   discriminator("Bet"),
}

func discriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:DiscriminatorSize]
}

// Discriminator returns the 8-byte layout tag for a schema.
func Discriminator(schema Schema) ([]byte, error) {
	d, ok := discriminators[schema]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccountType, schema)
	}
	return d, nil
}

type reader struct {
	buf []byte
	pos int
}

func newReader(raw []byte, schema Schema) (*reader, error) {
	want, err := Discriminator(schema)
	if err != nil {
		return nil, err
	}
	if len(raw) < DiscriminatorSize {
		return nil, fmt.Errorf("%w: account record too short (%d bytes)", ErrDecode, len(raw))
	}
	if !bytes.Equal(raw[:DiscriminatorSize], want) {
		return nil, fmt.Errorf("%w: discriminator mismatch for %q", ErrUnknownAccountType, schema)
	}
	return &reader{buf: raw, pos: DiscriminatorSize}, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated record at offset %d", ErrDecode, r.pos)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool byte %d", ErrDecode, v)
	}
}

var zeroIdentity [32]byte

// identity reads a 32-byte public key. The all-zero sentinel the program
// writes for "no identity" normalizes to the empty string.
func (r *reader) identity() (string, error) {
	b, err := r.take(32)
	if err != nil {
		return "", err
	}
	if bytes.Equal(b, zeroIdentity[:]) {
		return "", nil
	}
	return base58.Encode(b), nil
}

// DecodeTable parses a raw table account record.
func DecodeTable(address string, raw []byte) (Table, error) {
	r, err := newReader(raw, SchemaTable)
	if err != nil {
		return Table{}, err
	}
	t := Table{Address: address}
	if t.Admin, err = r.identity(); err != nil {
		return Table{}, err
	}
	if t.MinimumBetAmount, err = r.u64(); err != nil {
		return Table{}, err
	}
	if t.CurrentRoundNumber, err = r.u64(); err != nil {
		return Table{}, err
	}
	if t.NextRoundTs, err = r.i64(); err != nil {
		return Table{}, err
	}
	if t.RoundPeriodTs, err = r.u64(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// DecodeRound parses a raw round account record. The program records the
// settled pocket as an optional straight-up winning bet; it surfaces here as
// a plain outcome number.
func DecodeRound(address string, raw []byte) (Round, error) {
	r, err := newReader(raw, SchemaRound)
	if err != nil {
		return Round{}, err
	}
	rd := Round{Address: address}
	if rd.RoundNumber, err = r.u64(); err != nil {
		return Round{}, err
	}
	if rd.PoolAmount, err = r.u64(); err != nil {
		return Round{}, err
	}
	if rd.IsSpun, err = r.boolean(); err != nil {
		return Round{}, err
	}
	if rd.IsClaimed, err = r.boolean(); err != nil {
		return Round{}, err
	}
	present, err := r.boolean()
	if err != nil {
		return Round{}, err
	}
	if present {
		bt, err := decodeBetType(r)
		if err != nil {
			return Round{}, err
		}
		if bt.Kind != bettype.KindStraightUp || len(bt.Numbers) != 1 {
			return Round{}, fmt.Errorf("%w: winning bet does not carry a settled pocket", ErrDecode)
		}
		outcome := bt.Numbers[0]
		rd.Outcome = &outcome
	}
	return rd, nil
}

// DecodeBet parses a raw bet account record.
func DecodeBet(address string, raw []byte) (Bet, error) {
	r, err := newReader(raw, SchemaBet)
	if err != nil {
		return Bet{}, err
	}
	b := Bet{Address: address}
	if b.Player, err = r.identity(); err != nil {
		return Bet{}, err
	}
	if b.Round, err = r.identity(); err != nil {
		return Bet{}, err
	}
	if b.Amount, err = r.u64(); err != nil {
		return Bet{}, err
	}
	tag, err := r.u8()
	if err != nil {
		return Bet{}, err
	}
	if b.IsClaimed, err = r.boolean(); err != nil {
		return Bet{}, err
	}
	if b.BetType, err = decodeBetTypePayload(r, tag); err != nil {
		return Bet{}, err
	}
	return b, nil
}

func decodeBetType(r *reader) (bettype.BetType, error) {
	tag, err := r.u8()
	if err != nil {
		return bettype.BetType{}, err
	}
	return decodeBetTypePayload(r, tag)
}

func decodeBetTypePayload(r *reader, tag uint8) (bettype.BetType, error) {
	kind := bettype.Kind(tag)
	numbers := func(n int) ([]bettype.Outcome, error) {
		raw, err := r.take(n)
		if err != nil {
			return nil, err
		}
		out := make([]bettype.Outcome, n)
		for i, v := range raw {
			out[i] = bettype.Outcome(v)
		}
		return out, nil
	}
	switch kind {
	case bettype.KindStraightUp:
		ns, err := numbers(1)
		if err != nil {
			return bettype.BetType{}, err
		}
		return bettype.StraightUp(ns[0]), nil
	case bettype.KindSplit, bettype.KindStreet, bettype.KindCorner, bettype.KindLine:
		size := map[bettype.Kind]int{
			bettype.KindSplit:  2,
			bettype.KindStreet: 3,
			bettype.KindCorner: 4,
			bettype.KindLine:   6,
		}[kind]
		ns, err := numbers(size)
		if err != nil {
			return bettype.BetType{}, err
		}
		return bettype.BetType{Kind: kind, Numbers: ns}, nil
	case bettype.KindColumn, bettype.KindDozen:
		idx, err := r.u8()
		if err != nil {
			return bettype.BetType{}, err
		}
		return bettype.BetType{Kind: kind, Index: idx}, nil
	case bettype.KindFiveNumber, bettype.KindRed, bettype.KindBlack,
		bettype.KindEven, bettype.KindOdd, bettype.KindHigh, bettype.KindLow:
		return bettype.BetType{Kind: kind}, nil
	default:
		return bettype.BetType{}, fmt.Errorf("%w: bet type tag %d", ErrDecode, tag)
	}
}
