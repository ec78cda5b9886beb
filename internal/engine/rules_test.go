// internal/engine/rules_test.go
package engine

import (
	"math"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueCards() []Card {
	seen := map[Card]bool{}
	var out []Card
	for _, c := range StandardDeck() {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Every card against every table state a started game can show.
func TestIsLegalPlayExhaustive(t *testing.T) {
	rules := DefaultHouseRules()
	for _, card := range uniqueCards() {
		for _, color := range Colors {
			for rank := RankZero; rank <= RankWildDrawFour; rank++ {
				table := Table{Color: color, Rank: rank, Direction: Clockwise, ColorSeat: -1}
				want := card.IsWild() || card.Color() == color || card.Rank() == rank
				assert.Equal(t, want, IsLegalPlay(card, table, rules), "%s on %s %s", card, color, rank)

				table.PendingDraw = 2
				assert.False(t, IsLegalPlay(card, table, rules), "%s with a pending draw", card)
			}
		}
	}
}

func TestIsLegalPlayStacking(t *testing.T) {
	rules := DefaultHouseRules()
	rules.StackDraws = true
	drawTwo := Table{Color: ColorRed, Rank: RankDrawTwo, PendingDraw: 2}
	drawFour := Table{Color: ColorGreen, Rank: RankWildDrawFour, PendingDraw: 4}

	for _, card := range uniqueCards() {
		assert.Equal(t, card.Rank() == RankDrawTwo, IsLegalPlay(card, drawTwo, rules), "%s on draw two", card)
		assert.Equal(t, card == WildDrawFour, IsLegalPlay(card, drawFour, rules), "%s on draw four", card)
	}
}

// Every legal card is accepted by the session and every other card is
// rejected without changing it.
func TestPlayCardAgreesWithIsLegalPlay(t *testing.T) {
	rules := DefaultHouseRules()
	filler := MustCard(ColorYellow, RankNine)
	for _, card := range uniqueCards() {
		for _, top := range []Card{MustCard(ColorRed, RankFive), MustCard(ColorBlue, RankSkip), MustCard(ColorGreen, RankDrawTwo)} {
			s := rigged(t, rules, [][]Card{{card, filler}, {MustCard(ColorRed, RankOne)}}, top, top.Color())
			before := s.Table()
			chosen := ColorWild
			if card.IsWild() {
				chosen = ColorBlue
			}
			_, err := s.PlayCard(0, card, chosen)
			if IsLegalPlay(card, before, rules) {
				assert.NoError(t, err, "%s on %s", card, top)
			} else {
				assert.ErrorIs(t, err, ErrIllegalCard, "%s on %s", card, top)
				assert.Equal(t, before, s.Table())
				assert.Len(t, s.Hand(0), 2)
			}
		}
	}
}

func TestHouseRulesValidate(t *testing.T) {
	require.NoError(t, DefaultHouseRules().Validate())

	bad := []func(*HouseRules){
		func(r *HouseRules) { r.HandSize = 0 },
		func(r *HouseRules) { r.MinPlayers = 1 },
		func(r *HouseRules) { r.MaxPlayers = 1 },
		func(r *HouseRules) { r.HandSize = 8 },
		func(r *HouseRules) { r.OpeningCard = "shuffle" },
		func(r *HouseRules) { r.TargetScore = -1 },
		func(r *HouseRules) { r.HandSize = DeckSize + 1 },
		func(r *HouseRules) { r.MaxPlayers = DeckSize + 1 },
		// products that wrap around to a small number
		func(r *HouseRules) { r.HandSize, r.MaxPlayers = 1<<(bits.UintSize/2), 1<<(bits.UintSize/2) },
		func(r *HouseRules) { r.HandSize, r.MaxPlayers = math.MaxInt, math.MaxInt },
	}
	for i, mutate := range bad {
		r := DefaultHouseRules()
		mutate(&r)
		assert.Error(t, r.Validate(), "case %d", i)
	}
}

func TestNextSeatCyclesEverySeat(t *testing.T) {
	for n := 2; n <= 10; n++ {
		for _, dir := range []Direction{Clockwise, CounterClockwise} {
			seen := map[int]bool{}
			seat := 0
			for i := 0; i < n; i++ {
				assert.False(t, seen[seat], "n=%d dir=%s revisits %d", n, dir, seat)
				seen[seat] = true
				seat = NextSeat(seat, dir, n)
			}
			assert.Equal(t, 0, seat, "n=%d dir=%s returns to start", n, dir)
			assert.Len(t, seen, n)
		}
	}
	assert.Equal(t, 3, NextSeat(0, CounterClockwise, 4))
}

func TestOversizedRulesNeverDealEmptyHands(t *testing.T) {
	rules := DefaultHouseRules()
	rules.HandSize, rules.MaxPlayers = 1<<(bits.UintSize/2), 1<<(bits.UintSize/2)
	_, _, err := NewStartedSession(rules, 1, 2)
	require.Error(t, err)

	// the largest table Validate accepts still deals full hands and keeps every card
	rules = DefaultHouseRules()
	rules.MaxPlayers = (DeckSize - actionCards - 1) / rules.HandSize
	require.NoError(t, rules.Validate())
	s, _, err := NewStartedSession(rules, 1, rules.MaxPlayers)
	require.NoError(t, err)
	for seat := 0; seat < rules.MaxPlayers; seat++ {
		assert.Len(t, s.Hand(seat), rules.HandSize)
	}
	assert.Len(t, s.Cards(), DeckSize)
}
