// internal/engine/card_test.go
package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCardRejectsIllegalCombinations(t *testing.T) {
	_, err := NewCard(ColorWild, RankFive)
	assert.Error(t, err, "numbered card without a color")
	_, err = NewCard(ColorRed, RankWild)
	assert.Error(t, err, "colored wild")
	_, err = NewCard(ColorRed, Rank(99))
	assert.Error(t, err)
	_, err = NewCard(Color(9), RankOne)
	assert.Error(t, err)

	c, err := NewCard(ColorGreen, RankReverse)
	require.NoError(t, err)
	assert.Equal(t, ColorGreen, c.Color())
	assert.Equal(t, RankReverse, c.Rank())
	assert.False(t, Card{}.Valid())
}

func TestCardTextRoundTrip(t *testing.T) {
	seen := map[Card]bool{}
	for _, c := range StandardDeck() {
		if seen[c] {
			continue
		}
		seen[c] = true
		parsed, err := ParseCard(c.String())
		require.NoError(t, err, c.String())
		assert.Equal(t, c, parsed)
	}
	assert.Len(t, seen, 54)

	assert.Equal(t, "red_5", MustCard(ColorRed, RankFive).String())
	assert.Equal(t, "blue_draw_two", MustCard(ColorBlue, RankDrawTwo).String())
	assert.Equal(t, "wild_draw_four", WildDrawFour.String())

	_, err := ParseCard("purple_3")
	assert.Error(t, err)
	_, err = ParseCard("red")
	assert.Error(t, err)
}

func TestCardJSON(t *testing.T) {
	hand := []Card{MustCard(ColorYellow, RankSkip), Wild}
	b, err := json.Marshal(hand)
	require.NoError(t, err)
	assert.JSONEq(t, `["yellow_skip","wild"]`, string(b))

	var back []Card
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, hand, back)

	cmd, err := json.Marshal(Command{Kind: CmdDrawCard, Seat: 2})
	require.NoError(t, err, "commands without a card must still marshal")
	assert.JSONEq(t, `{"type":"draw_card","seat":2,"card":""}`, string(cmd))
}

func TestCardPoints(t *testing.T) {
	assert.Equal(t, 7, MustCard(ColorRed, RankSeven).Points())
	assert.Equal(t, 20, MustCard(ColorRed, RankSkip).Points())
	assert.Equal(t, 20, MustCard(ColorBlue, RankDrawTwo).Points())
	assert.Equal(t, 50, WildDrawFour.Points())
	assert.Equal(t, 57, HandPoints([]Card{MustCard(ColorRed, RankSeven), Wild}))
}

func TestParseColor(t *testing.T) {
	for _, c := range Colors {
		got, err := ParseColor(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
		assert.True(t, c.Concrete())
	}
	got, err := ParseColor("")
	require.NoError(t, err)
	assert.Equal(t, ColorWild, got)
	assert.False(t, ColorWild.Concrete())
	_, err = ParseColor("orange")
	assert.Error(t, err)
}
