// cmd/unosim/sim.go
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/rating"
	"golang.org/x/sync/errgroup"
)

// defaultMaxTurns ends a game that has run away, e.g. two policies that
// keep drawing into a reshuffled pile.
const defaultMaxTurns = 5000

// PolicyFactory builds a fresh policy for one seat of one game.
type PolicyFactory func(kind string) (engine.Policy, error)

// Config describes a batch of self-play games.
type Config struct {
	Games    int
	Seed     uint64
	Policies []string // one per seat
	Rules    engine.HouseRules
	MaxTurns int
	Workers  int
}

// GameResult holds the outcome of a single game.
type GameResult struct {
	Index     int
	Seed      uint64
	Seats     []string // policy kind per seat
	Winner    int      // -1 when no one won
	Stalemate bool
	Turns     int
	Rounds    int
	Standings []engine.Standing
	Err       error
}

// Summary aggregates a batch.
type Summary struct {
	Games      int
	Wins       map[string]int
	Stalemates int
	Errors     int
	AvgTurns   float64
	AvgRounds  float64
	Ladder     *rating.Ladder
	Results    []GameResult
}

// seatsFor rotates the policy list so every policy plays from every seat.
func seatsFor(policies []string, game int) []string {
	n := len(policies)
	seats := make([]string, n)
	for i := range seats {
		seats[i] = policies[(i+game)%n]
	}
	return seats
}

// RunBatch plays cfg.Games games on cfg.Workers goroutines. Game seeds come
// from cfg.Seed, so a batch is reproducible regardless of worker count.
// progress is called once per finished game.
func RunBatch(ctx context.Context, cfg Config, newPolicy PolicyFactory, progress func(GameResult)) (Summary, error) {
	if len(cfg.Policies) < 2 {
		return Summary{}, errors.New("need at least two seats")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	seeds := gameSeeds(cfg.Seed, cfg.Games)

	results := make([]GameResult, cfg.Games)
	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Games; i++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := PlayGame(cfg, i, seeds[i], newPolicy, nil)
			results[i] = res
			if progress != nil {
				mu.Lock()
				progress(res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Summary{}, err
	}
	return summarize(results), nil
}

// gameSeeds derives the per-game seeds of a batch.
func gameSeeds(seed uint64, n int) []uint64 {
	seeder := rand.New(rand.NewPCG(seed, seed))
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = seeder.Uint64()
	}
	return seeds
}

func summarize(results []GameResult) Summary {
	sum := Summary{
		Games:   len(results),
		Wins:    make(map[string]int),
		Ladder:  rating.NewLadder(),
		Results: results,
	}
	finished := 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			sum.Errors++
			continue
		case res.Stalemate:
			sum.Stalemates++
		default:
			sum.Wins[res.Seats[res.Winner]]++
		}
		finished++
		sum.AvgTurns += float64(res.Turns)
		sum.AvgRounds += float64(res.Rounds)

		// Results are rated in game order so the ladder does not depend on scheduling.
		_ = sum.Ladder.RecordGame(placements(res))
	}
	if finished > 0 {
		sum.AvgTurns /= float64(finished)
		sum.AvgRounds /= float64(finished)
	}
	return sum
}

// placements converts standings into ladder ranks. Seats with the same score
// and card count tie.
func placements(res GameResult) []rating.Placement {
	out := make([]rating.Placement, len(res.Standings))
	rank := 0
	for i, st := range res.Standings {
		if i > 0 {
			prev := res.Standings[i-1]
			if st.Score != prev.Score || st.Cards != prev.Cards {
				rank = i
			}
		}
		out[i] = rating.Placement{Name: res.Seats[st.Seat], Rank: rank}
	}
	return out
}

// PlayGame plays one game to the end. trace, when set, sees every event.
func PlayGame(cfg Config, index int, seed uint64, newPolicy PolicyFactory, trace func(engine.Event)) GameResult {
	res := GameResult{Index: index, Seed: seed, Seats: seatsFor(cfg.Policies, index), Winner: -1}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	policies := make([]engine.Policy, len(res.Seats))
	for i, kind := range res.Seats {
		p, err := newPolicy(kind)
		if err != nil {
			res.Err = err
			return res
		}
		if c, ok := p.(interface{ Close() }); ok {
			defer c.Close()
		}
		policies[i] = p
	}

	s, events, err := engine.NewStartedSession(cfg.Rules, seed, len(policies))
	if err != nil {
		res.Err = err
		return res
	}
	emit := func(evs []engine.Event) {
		if trace == nil {
			return
		}
		for _, ev := range evs {
			trace(ev)
		}
	}
	emit(events)

	for res.Turns < maxTurns {
		switch s.Status() {
		case engine.StatusGameOver:
			res.Winner, _ = s.Winner()
			res.Rounds = s.Round()
			res.Standings = s.Standings()
			return res
		case engine.StatusRoundOver:
			events, err = s.NextRound()
			if err != nil {
				res.Err = err
				return res
			}
			emit(events)
			continue
		}

		seat := actingSeat(s)
		view, err := s.View(seat)
		if err != nil {
			res.Err = err
			return res
		}
		if len(view.Hand) == 1 && !view.HasCalledUno {
			if evs, err := s.CallUno(seat); err == nil {
				emit(evs)
			}
		}
		events, err = s.Apply(policies[seat].ChooseAction(view))
		if err != nil && !errors.Is(err, engine.ErrDeckExhausted) {
			// an illegal choice costs the policy its turn decision
			events, err = s.Apply(engine.FirstLegal{}.ChooseAction(view))
		}
		if errors.Is(err, engine.ErrDeckExhausted) {
			res.Stalemate = true
			res.Rounds = s.Round()
			res.Standings = s.Standings()
			return res
		}
		if err != nil {
			res.Err = fmt.Errorf("seat %d (%s): %w", seat, res.Seats[seat], err)
			return res
		}
		emit(events)
		res.Turns++
	}

	res.Stalemate = true
	res.Rounds = s.Round()
	res.Standings = s.Standings()
	return res
}

func actingSeat(s *engine.Session) int {
	t := s.Table()
	if s.Status() == engine.StatusAwaitingColorChoice {
		return t.ColorSeat
	}
	return t.Seat
}
