// internal/engine/card.go
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is the color of a card or of the table.
type Color uint8

const (
	ColorWild   Color = iota // 0: wild cards, and "no color chosen"
	ColorRed                 // 1
	ColorBlue                // 2
	ColorGreen               // 3
	ColorYellow              // 4
)

// Colors lists the four concrete colors in tie-break order.
var Colors = [...]Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

func (c Color) String() string {
	switch c {
	case ColorWild:
		return "wild"
	case ColorRed:
		return "red"
	case ColorBlue:
		return "blue"
	case ColorGreen:
		return "green"
	case ColorYellow:
		return "yellow"
	default:
		return "color(" + strconv.Itoa(int(c)) + ")"
	}
}

// Concrete reports whether c is one of the four playable colors.
func (c Color) Concrete() bool {
	return c >= ColorRed && c <= ColorYellow
}

// ParseColor parses the lower-case color name produced by String.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wild", "":
		return ColorWild, nil
	case "red":
		return ColorRed, nil
	case "blue":
		return ColorBlue, nil
	case "green":
		return ColorGreen, nil
	case "yellow":
		return ColorYellow, nil
	}
	return ColorWild, fmt.Errorf("invalid color %q", s)
}

func (c Color) MarshalText() ([]byte, error) {
	if c > ColorYellow {
		return nil, fmt.Errorf("invalid color %d", c)
	}
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Rank is the face of a card. Ranks 0–9 are the numbered cards.
type Rank uint8

const (
	RankZero Rank = iota
	RankOne
	RankTwo
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankSkip
	RankReverse
	RankDrawTwo
	RankWild
	RankWildDrawFour
)

var rankNames = [...]string{
	RankSkip:         "skip",
	RankReverse:      "reverse",
	RankDrawTwo:      "draw_two",
	RankWild:         "wild",
	RankWildDrawFour: "wild_draw_four",
}

func (r Rank) String() string {
	switch {
	case r <= RankNine:
		return strconv.Itoa(int(r))
	case r <= RankWildDrawFour:
		return rankNames[r]
	default:
		return "rank(" + strconv.Itoa(int(r)) + ")"
	}
}

// Numbered reports whether r is one of 0–9.
func (r Rank) Numbered() bool { return r <= RankNine }

// Wild reports whether r is Wild or WildDrawFour.
func (r Rank) Wild() bool { return r == RankWild || r == RankWildDrawFour }

// DrawAmount is the penalty a rank puts on the next player.
func (r Rank) DrawAmount() int {
	switch r {
	case RankDrawTwo:
		return 2
	case RankWildDrawFour:
		return 4
	}
	return 0
}

func parseRank(s string) (Rank, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 9 {
			return 0, fmt.Errorf("invalid rank %q", s)
		}
		return Rank(n), nil
	}
	for r := RankSkip; r <= RankWildDrawFour; r++ {
		if rankNames[r] == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("invalid rank %q", s)
}

func (r Rank) MarshalText() ([]byte, error) {
	if r > RankWildDrawFour {
		return nil, fmt.Errorf("invalid rank %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(b []byte) error {
	v, err := parseRank(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Card is an immutable UNO card. The zero value is not a valid card; build
// cards with NewCard or take them from StandardDeck.
type Card struct {
	color Color
	rank  Rank
}

// NewCard returns the card with the given color and rank. Wild ranks must be
// ColorWild and every other rank must carry a concrete color.
func NewCard(color Color, rank Rank) (Card, error) {
	if rank > RankWildDrawFour {
		return Card{}, fmt.Errorf("invalid rank %d", rank)
	}
	if rank.Wild() != (color == ColorWild) {
		return Card{}, fmt.Errorf("invalid card: %s %s", color, rank)
	}
	if color > ColorYellow {
		return Card{}, fmt.Errorf("invalid color %d", color)
	}
	return Card{color: color, rank: rank}, nil
}

// MustCard is NewCard for values known to be valid at compile time.
func MustCard(color Color, rank Rank) Card {
	c, err := NewCard(color, rank)
	if err != nil {
		panic(err)
	}
	return c
}

// Wild and WildDrawFour are the two colorless cards.
var (
	Wild         = Card{color: ColorWild, rank: RankWild}
	WildDrawFour = Card{color: ColorWild, rank: RankWildDrawFour}
)

func (c Card) Color() Color { return c.color }
func (c Card) Rank() Rank   { return c.rank }

// IsWild reports whether the card is a Wild or WildDrawFour.
func (c Card) IsWild() bool { return c.rank.Wild() }

// IsAction reports whether the card has a rule effect beyond matching.
func (c Card) IsAction() bool { return !c.rank.Numbered() }

// Valid reports whether c was built through NewCard (the zero Card is not).
func (c Card) Valid() bool {
	_, err := NewCard(c.color, c.rank)
	return err == nil
}

// Points is the value of the card when scoring a finished round.
func (c Card) Points() int {
	switch {
	case c.rank.Numbered():
		return int(c.rank)
	case c.rank.Wild():
		return 50
	default:
		return 20
	}
}

// String returns the wire name, e.g. "red_5", "blue_draw_two", "wild_draw_four".
func (c Card) String() string {
	if c.IsWild() {
		return c.rank.String()
	}
	return c.color.String() + "_" + c.rank.String()
}

// ParseCard parses the form produced by String.
func ParseCard(s string) (Card, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "wild":
		return Wild, nil
	case "wild_draw_four", "wild_draw4", "wilddraw4":
		return WildDrawFour, nil
	}
	colorName, rankName, ok := strings.Cut(s, "_")
	if !ok {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	color, err := ParseColor(colorName)
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	rank, err := parseRank(rankName)
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	return NewCard(color, rank)
}

// MarshalText encodes the zero Card as the empty string so that commands
// without a card still serialize.
func (c Card) MarshalText() ([]byte, error) {
	if c == (Card{}) {
		return []byte{}, nil
	}
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card %s %s", c.color, c.rank)
	}
	return []byte(c.String()), nil
}

func (c *Card) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = Card{}
		return nil
	}
	v, err := ParseCard(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

