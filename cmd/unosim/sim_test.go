// cmd/unosim/sim_test.go
package main

import (
	"context"
	"testing"

	"github.com/jason-s-yu/uno/internal/bot"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(games int) Config {
	return Config{
		Games:    games,
		Seed:     7,
		Policies: []string{bot.KindGreedy, bot.KindFirstLegal},
		Rules:    engine.DefaultHouseRules(),
		Workers:  4,
	}
}

func TestSeatsRotate(t *testing.T) {
	p := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b", "c"}, seatsFor(p, 0))
	assert.Equal(t, []string{"b", "c", "a"}, seatsFor(p, 1))
	assert.Equal(t, []string{"a", "b", "c"}, seatsFor(p, 3))
}

func TestPlayGameIsDeterministic(t *testing.T) {
	cfg := testConfig(1)
	var first, second []engine.Event
	a := PlayGame(cfg, 0, 99, bot.NewPolicy, func(ev engine.Event) { first = append(first, ev) })
	b := PlayGame(cfg, 0, 99, bot.NewPolicy, func(ev engine.Event) { second = append(second, ev) })

	require.NoError(t, a.Err)
	assert.Equal(t, a, b)
	assert.Equal(t, first, second)
	require.NotEmpty(t, first)
	assert.Equal(t, engine.EventGameStarted, first[0].Type)
	if !a.Stalemate {
		assert.Equal(t, engine.EventGameOver, first[len(first)-1].Type)
		assert.Equal(t, 0, a.Standings[0].Cards, "the winner emptied their hand")
	}
}

func TestRunBatch(t *testing.T) {
	cfg := testConfig(40)
	calls := 0
	sum, err := RunBatch(context.Background(), cfg, bot.NewPolicy, func(GameResult) { calls++ })
	require.NoError(t, err)

	assert.Equal(t, 40, calls)
	assert.Equal(t, 40, sum.Games)
	assert.Zero(t, sum.Errors)
	total := sum.Stalemates
	for _, w := range sum.Wins {
		total += w
	}
	assert.Equal(t, 40, total)
	assert.Greater(t, sum.AvgTurns, 0.0)

	board := sum.Ladder.Leaderboard()
	require.Len(t, board, 2)
	assert.Equal(t, 40, board[0].Games, "stalemates are rated by cards left")
	assert.Equal(t, 40, board[1].Games)

	// worker count does not change the outcome
	cfg.Workers = 1
	again, err := RunBatch(context.Background(), cfg, bot.NewPolicy, nil)
	require.NoError(t, err)
	assert.Equal(t, sum.Wins, again.Wins)
	assert.Equal(t, sum.Ladder.Leaderboard(), again.Ladder.Leaderboard())
}

func TestRunBatchMultiRound(t *testing.T) {
	cfg := testConfig(4)
	cfg.Rules.TargetScore = 200
	sum, err := RunBatch(context.Background(), cfg, bot.NewPolicy, nil)
	require.NoError(t, err)
	assert.Zero(t, sum.Errors)
	for _, res := range sum.Results {
		if !res.Stalemate {
			assert.GreaterOrEqual(t, res.Standings[0].Score, 200)
		}
	}
}

func TestPolicyErrors(t *testing.T) {
	cfg := testConfig(2)
	cfg.Policies = []string{"oracle", bot.KindFirstLegal}
	sum, err := RunBatch(context.Background(), cfg, bot.NewPolicy, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Errors)

	_, err = RunBatch(context.Background(), Config{Policies: []string{"solo"}}, bot.NewPolicy, nil)
	assert.Error(t, err)
}

func TestIllegalChoiceFallsBack(t *testing.T) {
	cfg := testConfig(1)
	cheater := func(kind string) (engine.Policy, error) {
		if kind == "cheater" {
			return engine.PolicyFunc(func(v engine.PlayerView) engine.Command {
				return engine.Command{Kind: engine.CmdChallenge, Seat: v.Seat}
			}), nil
		}
		return bot.NewPolicy(kind)
	}
	cfg.Policies = []string{"cheater", bot.KindFirstLegal}
	res := PlayGame(cfg, 0, 5, cheater, nil)
	assert.NoError(t, res.Err)
	assert.Positive(t, res.Turns)
}

func TestMaxTurnsEndsInStalemate(t *testing.T) {
	cfg := testConfig(1)
	cfg.MaxTurns = 3
	res := PlayGame(cfg, 0, 11, bot.NewPolicy, nil)
	require.NoError(t, res.Err)
	assert.True(t, res.Stalemate)
	assert.Equal(t, -1, res.Winner)
	assert.Equal(t, 3, res.Turns)
}

func TestPlacementsShareTies(t *testing.T) {
	res := GameResult{
		Seats: []string{"a", "b", "c"},
		Standings: []engine.Standing{
			{Seat: 2, Score: 30, Cards: 0},
			{Seat: 0, Score: 0, Cards: 4},
			{Seat: 1, Score: 0, Cards: 4},
		},
	}
	p := placements(res)
	assert.Equal(t, "c", p[0].Name)
	assert.Equal(t, 0, p[0].Rank)
	assert.Equal(t, 1, p[1].Rank)
	assert.Equal(t, 1, p[2].Rank)
}

func TestDescribe(t *testing.T) {
	card := engine.MustCard(engine.ColorRed, engine.RankFive)
	line := describe(engine.Event{Type: engine.EventCardPlayed, Seat: 0, Card: &card}, []string{"greedy"})
	assert.Contains(t, line, "seat 0 (greedy) plays")
	assert.Contains(t, line, "red_5")

	assert.Empty(t, describe(engine.Event{Type: engine.EventTurnAdvanced, Seat: 1}, nil))
	assert.Contains(t, describe(engine.Event{Type: engine.EventCardDrawn, Seat: 1, Count: 2, Penalty: true}, nil), "draws 2 (penalty)")
}
