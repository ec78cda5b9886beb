// internal/game/rules_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	rules, err := ParseRules(map[string]interface{}{
		"handSize":     float64(5),
		"stackDraws":   true,
		"turnTimerSec": float64(30),
		"openingCard":  "apply",
	}, DefaultHouseRules())
	require.NoError(t, err)
	assert.Equal(t, 5, rules.HandSize)
	assert.True(t, rules.StackDraws)
	assert.Equal(t, 30, rules.TurnTimerSec)
	assert.EqualValues(t, "apply", rules.OpeningCard)
	assert.Equal(t, 10, rules.MaxPlayers, "unset rules keep their defaults")
}

func TestParseRulesRejectsOutOfRange(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"wrapping product": {"handSize": float64(1 << 32), "maxPlayers": float64(1 << 32)},
		"huge hand":        {"handSize": float64(1e18)},
		"negative timer":   {"turnTimerSec": float64(-1)},
		"hand past deck":   {"handSize": float64(200)},
		"table past deck":  {"maxPlayers": float64(200)},
		"string hand":      {"handSize": "7"},
		"unknown opening":  {"openingCard": "shuffle"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules(raw, DefaultHouseRules())
			assert.Error(t, err)
		})
	}
}
