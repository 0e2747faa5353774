package bettype

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidBetType = errors.New("invalid_bet_type")

// Outcome is the settled pocket number. American wheel: 0-36 plus 37 for
// the double-zero pocket.
type Outcome uint8

const DoubleZero Outcome = 37

func (o Outcome) String() string {
	if o == DoubleZero {
		return "00"
	}
	return strconv.Itoa(int(o))
}

type Kind uint8

const (
	KindStraightUp Kind = iota
	KindSplit
	KindStreet
	KindCorner
	KindFiveNumber
	KindLine
	KindColumn
	KindDozen
	KindRed
	KindBlack
	KindEven
	KindOdd
	KindHigh
	KindLow

	kindCount
)

var kindNames = map[Kind]string{
	KindStraightUp: "straightUp",
	KindSplit:      "split",
	KindStreet:     "street",
	KindCorner:     "corner",
	KindFiveNumber: "fiveNumber",
	KindLine:       "line",
	KindColumn:     "column",
	KindDozen:      "dozen",
	KindRed:        "red",
	KindBlack:      "black",
	KindEven:       "even",
	KindOdd:        "odd",
	KindHigh:       "high",
	KindLow:        "low",
}

var displayNames = map[Kind]string{
	KindStraightUp: "Straight Up",
	KindSplit:      "Split",
	KindStreet:     "Street",
	KindCorner:     "Corner",
	KindFiveNumber: "Five Number",
	KindLine:       "Line",
	KindColumn:     "Column",
	KindDozen:      "Dozen",
	KindRed:        "Red",
	KindBlack:      "Black",
	KindEven:       "Even",
	KindOdd:        "Odd",
	KindHigh:       "High",
	KindLow:        "Low",
}

// BetType is a closed tagged variant. Numbers carries the covered pockets for
// straight-up/split/street/corner/line; Index carries the column or dozen
// index (1-3). All other kinds are parameterless.
type BetType struct {
	Kind    Kind
	Numbers []Outcome
	Index   uint8
}

func StraightUp(n Outcome) BetType { return BetType{Kind: KindStraightUp, Numbers: []Outcome{n}} }

func Split(a, b Outcome) BetType { return BetType{Kind: KindSplit, Numbers: []Outcome{a, b}} }

func Street(a, b, c Outcome) BetType { return BetType{Kind: KindStreet, Numbers: []Outcome{a, b, c}} }

func Corner(a, b, c, d Outcome) BetType {
	return BetType{Kind: KindCorner, Numbers: []Outcome{a, b, c, d}}
}

func FiveNumber() BetType { return BetType{Kind: KindFiveNumber} }

func Line(numbers ...Outcome) BetType {
	return BetType{Kind: KindLine, Numbers: append([]Outcome(nil), numbers...)}
}

func Column(index uint8) BetType { return BetType{Kind: KindColumn, Index: index} }

func Dozen(index uint8) BetType { return BetType{Kind: KindDozen, Index: index} }

func Red() BetType { return BetType{Kind: KindRed} }

func Black() BetType { return BetType{Kind: KindBlack} }

func Even() BetType { return BetType{Kind: KindEven} }

func Odd() BetType { return BetType{Kind: KindOdd} }

func High() BetType { return BetType{Kind: KindHigh} }

func Low() BetType { return BetType{Kind: KindLow} }

func (b BetType) valid() bool { return b.Kind < kindCount }

func (b BetType) String() string {
	switch b.Kind {
	case KindStraightUp:
		if len(b.Numbers) == 1 {
			return "Straight Up " + b.Numbers[0].String()
		}
		return "Straight Up"
	case KindSplit, KindStreet, KindCorner, KindLine:
		parts := make([]string, 0, len(b.Numbers))
		for _, n := range b.Numbers {
			parts = append(parts, n.String())
		}
		return displayNames[b.Kind] + " " + strings.Join(parts, "-")
	case KindColumn:
		return "Column " + strconv.Itoa(int(b.Index))
	case KindDozen:
		return "Dozen " + strconv.Itoa(int(b.Index))
	default:
		name, ok := displayNames[b.Kind]
		if !ok {
			return "Unknown"
		}
		return name
	}
}

// MarshalJSON renders the variant as a single-key object, matching the wire
// shape used by the program's IDL, e.g. {"straightUp":{"number":17}}.
func (b BetType) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[b.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidBetType, b.Kind)
	}
	payload := map[string]any{}
	switch b.Kind {
	case KindStraightUp:
		if len(b.Numbers) == 1 {
			payload["number"] = b.Numbers[0]
		}
	case KindSplit, KindStreet, KindCorner, KindLine:
		payload["numbers"] = b.Numbers
	case KindColumn:
		payload["column"] = b.Index
	case KindDozen:
		payload["dozen"] = b.Index
	}
	return json.Marshal(map[string]any{name: payload})
}

func (b *BetType) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: expected single-key object", ErrInvalidBetType)
	}
	for name, payload := range raw {
		kind, ok := kindByName(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidBetType, name)
		}
		out := BetType{Kind: kind}
		switch kind {
		case KindStraightUp:
			var p struct {
				Number Outcome `json:"number"`
			}
			if err := json.Unmarshal(payload, &p); err != nil {
				return err
			}
			out.Numbers = []Outcome{p.Number}
		case KindSplit, KindStreet, KindCorner, KindLine:
			var p struct {
				Numbers []Outcome `json:"numbers"`
			}
			if err := json.Unmarshal(payload, &p); err != nil {
				return err
			}
			out.Numbers = p.Numbers
		case KindColumn:
			var p struct {
				Column uint8 `json:"column"`
			}
			if err := json.Unmarshal(payload, &p); err != nil {
				return err
			}
			out.Index = p.Column
		case KindDozen:
			var p struct {
				Dozen uint8 `json:"dozen"`
			}
			if err := json.Unmarshal(payload, &p); err != nil {
				return err
			}
			out.Index = p.Dozen
		}
		*b = out
	}
	return nil
}

func kindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}
