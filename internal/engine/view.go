// internal/engine/view.go
package engine

import (
	"fmt"
	"slices"
)

// OpponentView is what one seat can see of another.
type OpponentView struct {
	Seat         int  `json:"seat"`
	HandSize     int  `json:"handSize"`
	HasCalledUno bool `json:"hasCalledUno"`
}

// PlayerView is the projection of a session that one seat is entitled to see:
// its own hand, the table and every other seat's card count.
type PlayerView struct {
	Seat         int            `json:"seat"`
	Hand         []Card         `json:"hand"`
	HasCalledUno bool           `json:"hasCalledUno"`
	Status       Status         `json:"status"`
	Table        Table          `json:"table"`
	TopCard      *Card          `json:"topCard,omitempty"`
	DrawPile     int            `json:"drawPile"`
	DiscardPile  int            `json:"discardPile"`
	Opponents    []OpponentView `json:"opponents"`
	Rules        HouseRules     `json:"rules"`
	Round        int            `json:"round"`
	Scores       []int          `json:"scores"`
	Winner       int            `json:"winner"`
	CanChallenge bool           `json:"canChallenge"`
}

// MyTurn reports whether the viewing seat must act next, either to play or
// to choose a color.
func (v PlayerView) MyTurn() bool {
	switch v.Status {
	case StatusInProgress:
		return v.Table.Seat == v.Seat
	case StatusAwaitingColorChoice:
		return v.Table.ColorSeat == v.Seat
	}
	return false
}

// View projects the session for seat.
func (s *Session) View(seat int) (PlayerView, error) {
	if seat < 0 || seat >= len(s.players) {
		return PlayerView{}, fmt.Errorf("%w: %d", ErrInvalidSeat, seat)
	}
	p := s.players[seat]
	v := PlayerView{
		Seat:         seat,
		Hand:         slices.Clone(p.Hand),
		HasCalledUno: p.HasCalledUno,
		Status:       s.status,
		Table:        s.table,
		DrawPile:     s.deck.DrawLen(),
		DiscardPile:  s.deck.DiscardLen(),
		Rules:        s.rules,
		Round:        s.round,
		Scores:       slices.Clone(s.scores),
		Winner:       s.winner,
	}
	if top, ok := s.deck.Top(); ok {
		v.TopCard = &top
	}
	for i, o := range s.players {
		if i == seat {
			continue
		}
		v.Opponents = append(v.Opponents, OpponentView{Seat: i, HandSize: len(o.Hand), HasCalledUno: o.HasCalledUno})
	}
	v.CanChallenge = s.status == StatusInProgress && s.table.Seat == seat && s.canChallenge()
	return v, nil
}

func (s *Session) canChallenge() bool {
	return s.rules.ChallengeWildDrawFour && s.lastWildDrawFour != nil &&
		s.table.PendingDraw > 0 && s.table.Rank == RankWildDrawFour
}
