// internal/engine/rules.go
package engine

import "fmt"

// OpeningCardRule decides what happens when the first flipped card is not a number.
type OpeningCardRule string

const (
	// OpeningRedraw buries action and wild cards and flips again.
	OpeningRedraw OpeningCardRule = "redraw"
	// OpeningApply applies the opening card's effect to the first seat.
	// WildDrawFour is still buried.
	OpeningApply OpeningCardRule = "apply"
)

// HouseRules are the per-session rule switches.
type HouseRules struct {
	HandSize              int             `json:"handSize"`
	MinPlayers            int             `json:"minPlayers"`
	MaxPlayers            int             `json:"maxPlayers"`
	StackDraws            bool            `json:"stackDraws"`            // DrawTwo on DrawTwo, WildDrawFour on WildDrawFour
	ChallengeWildDrawFour bool            `json:"challengeWildDrawFour"` // victim may challenge instead of drawing
	OpeningCard           OpeningCardRule `json:"openingCard"`
	TargetScore           int             `json:"targetScore"` // 0 = single round
}

// DefaultHouseRules returns the standard rules: seven cards, 2–10 players,
// no stacking, no challenges, single round.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		HandSize:    7,
		MinPlayers:  2,
		MaxPlayers:  10,
		OpeningCard: OpeningRedraw,
	}
}

// Validate checks that a deal is possible with these rules.
func (r HouseRules) Validate() error {
	if r.HandSize < 1 {
		return fmt.Errorf("hand size %d must be positive", r.HandSize)
	}
	if r.MinPlayers < 2 {
		return fmt.Errorf("min players %d must be at least 2", r.MinPlayers)
	}
	if r.MaxPlayers < r.MinPlayers {
		return fmt.Errorf("max players %d below min players %d", r.MaxPlayers, r.MinPlayers)
	}
	if r.HandSize > DeckSize || r.MaxPlayers > DeckSize {
		return fmt.Errorf("%d players with %d cards each do not fit in one deck", r.MaxPlayers, r.HandSize)
	}
	// The draw pile left after dealing must still hold a numbered card to flip.
	if r.HandSize*r.MaxPlayers >= DeckSize-actionCards {
		return fmt.Errorf("%d players with %d cards each do not fit in one deck", r.MaxPlayers, r.HandSize)
	}
	switch r.OpeningCard {
	case OpeningRedraw, OpeningApply:
	default:
		return fmt.Errorf("unknown opening card rule %q", r.OpeningCard)
	}
	if r.TargetScore < 0 {
		return fmt.Errorf("target score %d must not be negative", r.TargetScore)
	}
	return nil
}

// actionCards is the number of non-numbered cards in a standard deck.
const actionCards = 4*6 + 8

// Table is the public state every legality check runs against.
type Table struct {
	Color       Color     `json:"color"`
	Rank        Rank      `json:"rank"`
	Direction   Direction `json:"direction"`
	Seat        int       `json:"seat"`
	PendingDraw int       `json:"pendingDraw"`
	ColorSeat   int       `json:"colorSeat"` // seat owing a color choice, -1 if none
}

// IsLegalPlay reports whether card may be played on t.
//
// While a draw penalty is pending the only legal play is a stacking card of
// the same draw rank, and only when rules allow stacking. Otherwise a card is
// legal if it is wild, matches the current color or matches the current rank.
func IsLegalPlay(card Card, t Table, rules HouseRules) bool {
	if !card.Valid() {
		return false
	}
	if t.PendingDraw > 0 {
		return rules.StackDraws && card.rank.DrawAmount() > 0 && card.rank == t.Rank
	}
	return card.IsWild() || card.color == t.Color || card.rank == t.Rank
}

// LegalPlays returns the cards in hand that are legal on t, in hand order.
func LegalPlays(hand []Card, t Table, rules HouseRules) []Card {
	var out []Card
	for _, c := range hand {
		if IsLegalPlay(c, t, rules) {
			out = append(out, c)
		}
	}
	return out
}

// tableDelta is what a single play changes on the table.
type tableDelta struct {
	color      Color // ColorWild when a color is still owed
	rank       Rank
	reverse    bool
	penalty    int
	needsColor bool
}

// applyPlay computes the effect of card on the table. chosen is only
// consulted for wild cards.
func applyPlay(card Card, chosen Color) tableDelta {
	d := tableDelta{
		color:   card.color,
		rank:    card.rank,
		reverse: card.rank == RankReverse,
		penalty: card.rank.DrawAmount(),
	}
	if card.IsWild() {
		d.color = chosen
		d.needsColor = !chosen.Concrete()
	}
	return d
}

// hadAlternative reports whether hand, minus the card at skip, held a non-wild
// card that was legal on t.
func hadAlternative(hand []Card, skip int, t Table, rules HouseRules) bool {
	for i, c := range hand {
		if i == skip || c.IsWild() {
			continue
		}
		if IsLegalPlay(c, t, rules) {
			return true
		}
	}
	return false
}
