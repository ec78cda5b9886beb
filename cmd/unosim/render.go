// cmd/unosim/render.go
package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/pterm/pterm"
)

var colorFuncs = map[engine.Color]func(format string, a ...interface{}) string{
	engine.ColorRed:    color.New(color.FgHiRed).SprintfFunc(),
	engine.ColorYellow: color.New(color.FgHiYellow).SprintfFunc(),
	engine.ColorGreen:  color.New(color.FgHiGreen).SprintfFunc(),
	engine.ColorBlue:   color.New(color.FgHiCyan).SprintfFunc(),
	engine.ColorWild:   color.New(color.FgHiMagenta, color.Bold).SprintfFunc(),
}

// cardLabel paints a card in its own color.
func cardLabel(c engine.Card) string {
	if fn, ok := colorFuncs[c.Color()]; ok {
		return fn("%s", c.String())
	}
	return c.String()
}

func colorLabel(c engine.Color) string {
	if fn, ok := colorFuncs[c]; ok {
		return fn("%s", c.String())
	}
	return c.String()
}

// describe renders one event as a trace line.
func describe(ev engine.Event, seats []string) string {
	who := fmt.Sprintf("seat %d", ev.Seat)
	if ev.Seat >= 0 && ev.Seat < len(seats) {
		who = fmt.Sprintf("seat %d (%s)", ev.Seat, seats[ev.Seat])
	}
	switch ev.Type {
	case engine.EventCardPlayed:
		line := who + " plays " + cardLabel(*ev.Card)
		if ev.Card.IsWild() && ev.Color.Concrete() {
			line += " as " + colorLabel(ev.Color)
		}
		return line
	case engine.EventCardDrawn:
		labels := make([]string, len(ev.Cards))
		for i, c := range ev.Cards {
			labels[i] = cardLabel(c)
		}
		line := fmt.Sprintf("%s draws %d", who, ev.Count)
		if ev.Penalty {
			line += " (penalty)"
		}
		if len(labels) > 0 {
			line += ": " + strings.Join(labels, " ")
		}
		return line
	case engine.EventOpeningCard:
		return "opening card " + cardLabel(*ev.Card)
	case engine.EventColorChosen:
		return who + " names " + colorLabel(ev.Color)
	case engine.EventRoundWon:
		return pterm.LightGreen(fmt.Sprintf("%s wins the round for %d points", who, ev.Points))
	case engine.EventGameOver:
		return pterm.LightGreen(who + " wins the game")
	case engine.EventTurnAdvanced, engine.EventCardsDealt:
		return ""
	}
	return fmt.Sprintf("%s %s", who, strings.ReplaceAll(string(ev.Type), "_", " "))
}

// renderSummary prints the win table and the policy ladder.
func renderSummary(cfg Config, sum Summary) error {
	pterm.DefaultSection.Println("Results")

	kinds := make([]string, 0, len(sum.Wins))
	seen := map[string]bool{}
	for _, k := range cfg.Policies {
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	sort.SliceStable(kinds, func(i, j int) bool { return sum.Wins[kinds[i]] > sum.Wins[kinds[j]] })

	wins := pterm.TableData{{"Policy", "Seats", "Wins", "Win %"}}
	for _, k := range kinds {
		seatsHeld := 0
		for _, p := range cfg.Policies {
			if p == k {
				seatsHeld++
			}
		}
		pct := 0.0
		if sum.Games > 0 {
			pct = 100 * float64(sum.Wins[k]) / float64(sum.Games)
		}
		wins = append(wins, []string{k, strconv.Itoa(seatsHeld), strconv.Itoa(sum.Wins[k]), fmt.Sprintf("%.1f", pct)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(wins).Render(); err != nil {
		return err
	}

	pterm.Info.Printfln("games %d  stalemates %d  errors %d  avg turns %.1f  avg rounds %.2f",
		sum.Games, sum.Stalemates, sum.Errors, sum.AvgTurns, sum.AvgRounds)

	board := pterm.TableData{{"Policy", "Rating", "RD", "Volatility", "Games", "Wins"}}
	for _, r := range sum.Ladder.Leaderboard() {
		board = append(board, []string{
			r.Name,
			strconv.Itoa(r.Elo),
			fmt.Sprintf("%.0f", r.RD),
			fmt.Sprintf("%.4f", r.Sigma),
			strconv.Itoa(r.Games),
			strconv.Itoa(r.Wins),
		})
	}
	pterm.DefaultSection.Println("Glicko-2 ladder")
	return pterm.DefaultTable.WithHasHeader().WithData(board).Render()
}
