package account

import "bytes"

// Filter is a byte-offset equality predicate over a raw account record,
// offsets counted from the start of the record (discriminator included).
type Filter struct {
	Offset int
	Bytes  []byte
}

// Field offsets used by callers building filters, matching the fixed
// account layouts.
const (
	BetPlayerOffset    = DiscriminatorSize
	BetRoundOffset     = DiscriminatorSize + 32
	BetIsClaimedOffset = DiscriminatorSize + 32 + 32 + 8 + 1

	RoundNumberOffset = DiscriminatorSize
	RoundIsSpunOffset = DiscriminatorSize + 8 + 8
)

// Match reports whether the filter's bytes equal the record at its offset.
// Records too short to contain the field never match.
func (f Filter) Match(raw []byte) bool {
	end := f.Offset + len(f.Bytes)
	if f.Offset < 0 || end > len(raw) {
		return false
	}
	return bytes.Equal(raw[f.Offset:end], f.Bytes)
}

// Match reports whether every filter matches the record.
func Match(raw []byte, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(raw) {
			return false
		}
	}
	return true
}

// IdentityFilter builds an equality filter over a 32-byte identity field.
func IdentityFilter(offset int, addr string) (Filter, error) {
	buf, err := encodeIdentity(nil, addr)
	if err != nil {
		return Filter{}, err
	}
	return Filter{Offset: offset, Bytes: buf}, nil
}

// U64Filter builds an equality filter over a little-endian u64 field.
func U64Filter(offset int, v uint64) Filter {
	return Filter{Offset: offset, Bytes: appendU64(nil, v)}
}

// BoolFilter builds an equality filter over a single bool byte.
func BoolFilter(offset int, v bool) Filter {
	return Filter{Offset: offset, Bytes: appendBool(nil, v)}
}
