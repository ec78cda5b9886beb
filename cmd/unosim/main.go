// cmd/unosim/main.go plays seeded self-play batches between bot policies and
// rates them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/jason-s-yu/uno/internal/bot"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/pterm/pterm"
)

func main() {
	games := flag.Int("games", 200, "number of games to play")
	seed := flag.Uint64("seed", 1, "batch seed")
	seats := flag.String("seats", "greedy,first_legal", "comma separated policy per seat ("+strings.Join(bot.Kinds(), ", ")+", lua:<path>)")
	handSize := flag.Int("hand", 7, "cards dealt per seat")
	target := flag.Int("target", 0, "points to win a multi-round game; 0 plays single rounds")
	stack := flag.Bool("stack", false, "allow stacking draw cards")
	challenge := flag.Bool("challenge", false, "allow challenging Wild Draw Four")
	maxTurns := flag.Int("max-turns", defaultMaxTurns, "turn limit per game")
	workers := flag.Int("workers", runtime.NumCPU(), "parallel games")
	trace := flag.Bool("trace", false, "print every event of the first game")
	flag.Parse()

	rules := engine.DefaultHouseRules()
	rules.HandSize = *handSize
	rules.TargetScore = *target
	rules.StackDraws = *stack
	rules.ChallengeWildDrawFour = *challenge

	cfg := Config{
		Games:    *games,
		Seed:     *seed,
		Policies: strings.Split(*seats, ","),
		Rules:    rules,
		MaxTurns: *maxTurns,
		Workers:  *workers,
	}
	for i := range cfg.Policies {
		cfg.Policies[i] = strings.TrimSpace(cfg.Policies[i])
	}
	if err := rules.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid rules: %v\n", err)
		os.Exit(2)
	}
	if len(cfg.Policies) < rules.MinPlayers || len(cfg.Policies) > rules.MaxPlayers {
		fmt.Fprintf(os.Stderr, "need %d to %d seats, got %d\n", rules.MinPlayers, rules.MaxPlayers, len(cfg.Policies))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *trace && cfg.Games > 0 {
		seatKinds := seatsFor(cfg.Policies, 0)
		pterm.DefaultSection.Printfln("Game 0 (%s)", strings.Join(seatKinds, " vs "))
		res := PlayGame(cfg, 0, gameSeeds(cfg.Seed, 1)[0], bot.NewPolicy, func(ev engine.Event) {
			if line := describe(ev, seatKinds); line != "" {
				fmt.Println("  " + line)
			}
		})
		if res.Err != nil {
			pterm.Error.Printfln("game 0 failed: %v", res.Err)
		}
	}

	bar, err := pterm.DefaultProgressbar.WithTotal(cfg.Games).WithTitle("Playing").Start()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	sum, err := RunBatch(ctx, cfg, bot.NewPolicy, func(res GameResult) {
		if res.Err != nil {
			pterm.Warning.Printfln("game %d (seed %d): %v", res.Index, res.Seed, res.Err)
		}
		bar.Increment()
	})
	_, _ = bar.Stop()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	if err := renderSummary(cfg, sum); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
