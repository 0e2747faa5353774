package bettype

import "fmt"

// Standard American roulette payout odds, keyed by variant. Kept as an
// explicit table rather than derived from coverage.
var payoutMultipliers = map[Kind]int64{
	KindStraightUp: 35,
	KindSplit:      17,
	KindStreet:     11,
	KindCorner:     8,
	KindFiveNumber: 6,
	KindLine:       5,
	KindColumn:     2,
	KindDozen:      2,
	KindRed:        1,
	KindBlack:      1,
	KindEven:       1,
	KindOdd:        1,
	KindHigh:       1,
	KindLow:        1,
}

func PayoutMultiplier(b BetType) (int64, error) {
	mult, ok := payoutMultipliers[b.Kind]
	if !ok {
		return 0, fmt.Errorf("%w: kind %d", ErrInvalidBetType, b.Kind)
	}
	return mult, nil
}
