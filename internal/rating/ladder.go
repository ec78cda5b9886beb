// internal/rating/ladder.go
package rating

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
)

// Rating is one competitor's standing on a Ladder.
type Rating struct {
	Name  string  `json:"name"`
	Elo   int     `json:"elo"`
	RD    float64 `json:"rd"`
	Sigma float64 `json:"sigma"`
	Games int     `json:"games"`
	Wins  int     `json:"wins"`

	r Glicko2Rating
}

// Placement is where a competitor finished. Rank 0 is the winner; equal
// ranks are ties.
type Placement struct {
	Name string
	Rank int
}

// Ladder keeps Glicko-2 ratings for named competitors, e.g. bot policies in
// self-play. Deviation and volatility carry over from game to game.
type Ladder struct {
	mu      sync.Mutex
	ratings map[string]*Rating
}

func NewLadder() *Ladder {
	return &Ladder{ratings: make(map[string]*Rating)}
}

func (l *Ladder) get(name string) *Rating {
	r, ok := l.ratings[name]
	if !ok {
		r = &Rating{Name: name, r: NewGlicko2Rating(DefaultMu, DefaultPhi, DefaultSigma)}
		r.sync()
		l.ratings[name] = r
	}
	return r
}

func (r *Rating) sync() {
	r.Elo = int(math.Round(r.r.ToElo()))
	r.RD = r.r.RD()
	r.Sigma = r.r.Sigma
}

// Get returns a copy of name's rating, creating it at the defaults.
func (l *Ladder) Get(name string) Rating {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.get(name)
}

// RankFractions turns placements into scores in [0..1]: the winner gets 1,
// last place 0, and ties share the average of the ranks they span. A name
// placed more than once (the same policy in several seats) gets the mean of
// its fractions.
func RankFractions(placements []Placement) map[string]float64 {
	if len(placements) < 2 {
		return nil
	}
	sorted := slices.Clone(placements)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Rank == sorted[i].Rank {
			j++
		}
		// players i..j-1 are tied
		avgRank := float64(i+(j-1)) / 2
		fr := 1.0 - avgRank/float64(len(sorted)-1)
		for k := i; k < j; k++ {
			sums[sorted[k].Name] += fr
			counts[sorted[k].Name]++
		}
		i = j
	}
	out := make(map[string]float64, len(sums))
	for name, s := range sums {
		out[name] = s / float64(counts[name])
	}
	return out
}

// RecordGame applies one Glicko-2 step per distinct competitor. Each one is
// rated against the average of the others, as a single pseudo-opponent.
func (l *Ladder) RecordGame(placements []Placement) error {
	fractions := RankFractions(placements)
	if len(fractions) < 2 {
		return fmt.Errorf("need at least two distinct competitors, got %d", len(fractions))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var totalMu, totalPhi float64
	for name := range fractions {
		r := l.get(name)
		totalMu += r.r.Mu
		totalPhi += r.r.Phi
	}
	n := float64(len(fractions))

	next := make(map[string]Glicko2Rating, len(fractions))
	for name, score := range fractions {
		r := l.get(name)
		opp := Glicko2Rating{
			Mu:    (totalMu - r.r.Mu) / (n - 1),
			Phi:   (totalPhi - r.r.Phi) / (n - 1),
			Sigma: DefaultSigma,
		}
		next[name] = updateGlicko(r.r, opp, score)
	}
	for name, nr := range next {
		r := l.ratings[name]
		r.r = nr
		r.Games++
		if fractions[name] == 1 {
			r.Wins++
		}
		r.sync()
	}
	return nil
}

// Leaderboard lists every rating, best first.
func (l *Ladder) Leaderboard() []Rating {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Rating, 0, len(l.ratings))
	for _, r := range l.ratings {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Elo != out[j].Elo {
			return out[i].Elo > out[j].Elo
		}
		return out[i].Name < out[j].Name
	})
	return out
}
