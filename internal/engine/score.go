// internal/engine/score.go
package engine

import (
	"cmp"
	"slices"
)

// HandPoints is what a hand is worth to the round winner: face value for
// numbered cards, 20 for Skip, Reverse and DrawTwo, 50 for wilds.
func HandPoints(hand []Card) int {
	total := 0
	for _, c := range hand {
		total += c.Points()
	}
	return total
}

// Standing is one seat's place in the final ranking.
type Standing struct {
	Seat  int `json:"seat"`
	Score int `json:"score"`
	Cards int `json:"cards"`
}

// Standings ranks seats by cumulative score, then by fewest cards left, then
// by seat.
func (s *Session) Standings() []Standing {
	out := make([]Standing, len(s.players))
	for i, p := range s.players {
		out[i] = Standing{Seat: i, Score: s.scores[i], Cards: len(p.Hand)}
	}
	slices.SortFunc(out, compareStandings)
	return out
}

func compareStandings(a, b Standing) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Cards, b.Cards); c != 0 {
		return c
	}
	return cmp.Compare(a.Seat, b.Seat)
}
