package bettype

import "fmt"

// Red pockets on the standard American layout.
var redNumbers = map[Outcome]struct{}{
	1: {}, 3: {}, 5: {}, 7: {}, 9: {}, 12: {}, 14: {}, 16: {}, 18: {},
	19: {}, 21: {}, 23: {}, 25: {}, 27: {}, 30: {}, 32: {}, 34: {}, 36: {},
}

var blackNumbers = map[Outcome]struct{}{
	2: {}, 4: {}, 6: {}, 8: {}, 10: {}, 11: {}, 13: {}, 15: {}, 17: {},
	20: {}, 22: {}, 24: {}, 26: {}, 28: {}, 29: {}, 31: {}, 33: {}, 35: {},
}

// Evaluate reports whether the bet covers the settled pocket. 0 and 00 (37)
// belong to no column, dozen, color or parity; only straight-up and the
// five-number bet can cover them. An unrecognized variant is an error, never
// a silent loss.
func Evaluate(b BetType, outcome Outcome) (bool, error) {
	switch b.Kind {
	case KindStraightUp:
		return len(b.Numbers) == 1 && b.Numbers[0] == outcome, nil
	case KindSplit, KindStreet, KindCorner, KindLine:
		for _, n := range b.Numbers {
			if n == outcome {
				return true, nil
			}
		}
		return false, nil
	case KindFiveNumber:
		return outcome == 0 || outcome == 1 || outcome == 2 || outcome == 3 || outcome == DoubleZero, nil
	case KindColumn:
		if outcome == 0 || outcome == DoubleZero {
			return false, nil
		}
		return (outcome-1)%3+1 == Outcome(b.Index), nil
	case KindDozen:
		switch {
		case outcome >= 1 && outcome <= 12:
			return b.Index == 1, nil
		case outcome >= 13 && outcome <= 24:
			return b.Index == 2, nil
		case outcome >= 25 && outcome <= 36:
			return b.Index == 3, nil
		default:
			return false, nil
		}
	case KindRed:
		_, ok := redNumbers[outcome]
		return ok, nil
	case KindBlack:
		_, ok := blackNumbers[outcome]
		return ok, nil
	case KindEven:
		return outcome >= 1 && outcome <= 36 && outcome%2 == 0, nil
	case KindOdd:
		return outcome >= 1 && outcome <= 36 && outcome%2 == 1, nil
	case KindHigh:
		return outcome >= 19 && outcome <= 36, nil
	case KindLow:
		return outcome >= 1 && outcome <= 18, nil
	default:
		return false, fmt.Errorf("%w: kind %d", ErrInvalidBetType, b.Kind)
	}
}
