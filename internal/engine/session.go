// internal/engine/session.go
package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
)

// Status is the lifecycle phase of a session.
type Status uint8

const (
	StatusLobby Status = iota
	StatusDealing
	StatusInProgress
	StatusAwaitingColorChoice
	StatusRoundOver
	StatusGameOver
)

var statusNames = [...]string{
	StatusLobby:               "lobby",
	StatusDealing:             "dealing",
	StatusInProgress:          "in_progress",
	StatusAwaitingColorChoice: "awaiting_color_choice",
	StatusRoundOver:           "round_over",
	StatusGameOver:            "game_over",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("invalid status %d", s)
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("invalid status %q", b)
}

// Player is one seat at the table.
type Player struct {
	Seat         int    `json:"seat"`
	Hand         []Card `json:"hand"`
	HasCalledUno bool   `json:"hasCalledUno"`
}

// WildDrawFourRecord remembers the last WildDrawFour until its victim acts,
// for the challenge rule.
type WildDrawFourRecord struct {
	Seat           int  `json:"seat"`
	HadAlternative bool `json:"hadAlternative"`
}

// CommandKind names a player command. The values double as wire message types.
type CommandKind string

const (
	CmdPlayCard    CommandKind = "play_card"
	CmdDrawCard    CommandKind = "draw_card"
	CmdCallUno     CommandKind = "call_uno"
	CmdChooseColor CommandKind = "choose_color"
	CmdChallenge   CommandKind = "challenge"
)

// Command is a request from the player at Seat. Card is used by PlayCard,
// Color by PlayCard (wilds only) and ChooseColor.
type Command struct {
	Kind  CommandKind `json:"type"`
	Seat  int         `json:"seat"`
	Card  Card        `json:"card,omitempty"`
	Color Color       `json:"color,omitempty"`
}

// Session is one UNO game: the deck, the seats, the table and the status.
//
// A Session is not safe for concurrent use. Every command is validated before
// any state changes, so a rejected command leaves the session untouched.
type Session struct {
	rules   HouseRules
	status  Status
	players []Player
	deck    *Deck
	table   Table

	lastWildDrawFour *WildDrawFourRecord
	// openingColor marks an opening Wild: the first seat picks the color and
	// then plays, so the turn does not move.
	openingColor bool

	round   int
	starter int
	scores  []int
	winner  int

	src *rand.PCG
	rng *rand.Rand
}

// NewSession returns an empty session in the lobby. The seed fixes every
// shuffle, so two sessions with the same seed and commands play out identically.
func NewSession(rules HouseRules, seed uint64) (*Session, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Session{
		rules:  rules,
		status: StatusLobby,
		deck:   &Deck{draw: StandardDeck()},
		table:  Table{Direction: Clockwise, ColorSeat: -1},
		winner: -1,
		src:    src,
		rng:    rand.New(src),
	}, nil
}

// NewStartedSession joins players seats and starts the game.
func NewStartedSession(rules HouseRules, seed uint64, players int) (*Session, []Event, error) {
	s, err := NewSession(rules, seed)
	if err != nil {
		return nil, nil, err
	}
	for i := 0; i < players; i++ {
		if _, err := s.Join(); err != nil {
			return nil, nil, err
		}
	}
	events, err := s.Start()
	if err != nil {
		return nil, nil, err
	}
	return s, events, nil
}

func (s *Session) Rules() HouseRules { return s.rules }
func (s *Session) Status() Status    { return s.status }
func (s *Session) Table() Table      { return s.table }
func (s *Session) Players() int      { return len(s.players) }
func (s *Session) Round() int        { return s.round }

// Winner returns the seat that won the last finished round.
func (s *Session) Winner() (int, bool) {
	return s.winner, s.winner >= 0
}

// Scores returns the cumulative score per seat.
func (s *Session) Scores() []int { return slices.Clone(s.scores) }

// Hand returns a copy of the cards held by seat.
func (s *Session) Hand(seat int) []Card {
	if seat < 0 || seat >= len(s.players) {
		return nil
	}
	return slices.Clone(s.players[seat].Hand)
}

// HasCalledUno reports whether seat has called UNO on its current single card.
func (s *Session) HasCalledUno(seat int) bool {
	if seat < 0 || seat >= len(s.players) {
		return false
	}
	return s.players[seat].HasCalledUno
}

// TopCard returns the top of the discard pile.
func (s *Session) TopCard() (Card, bool) { return s.deck.Top() }

func (s *Session) DrawPileSize() int    { return s.deck.DrawLen() }
func (s *Session) DiscardPileSize() int { return s.deck.DiscardLen() }

// Cards returns every card the session holds: draw pile, discard pile and
// hands. It always has DeckSize entries.
func (s *Session) Cards() []Card {
	out := make([]Card, 0, DeckSize)
	out = append(out, s.deck.draw...)
	out = append(out, s.deck.discard...)
	for _, p := range s.players {
		out = append(out, p.Hand...)
	}
	return out
}

// Join seats a new player and returns its seat.
func (s *Session) Join() (int, error) {
	if s.status != StatusLobby {
		return -1, ErrAlreadyStarted
	}
	if len(s.players) >= s.rules.MaxPlayers {
		return -1, fmt.Errorf("%w: %d seats", ErrSessionFull, s.rules.MaxPlayers)
	}
	seat := len(s.players)
	s.players = append(s.players, Player{Seat: seat})
	s.scores = append(s.scores, 0)
	return seat, nil
}

// Start shuffles, deals and flips the opening card.
func (s *Session) Start() ([]Event, error) {
	switch s.status {
	case StatusLobby:
	case StatusGameOver:
		return nil, ErrSessionEnded
	default:
		return nil, ErrAlreadyStarted
	}
	if len(s.players) < s.rules.MinPlayers {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, len(s.players), s.rules.MinPlayers)
	}
	s.status = StatusDealing
	s.round = 1
	dealt, err := s.deal()
	if err != nil {
		s.status = StatusLobby
		s.round = 0
		return nil, err
	}
	return append([]Event{{Type: EventGameStarted, Seat: -1, Count: len(s.players)}}, dealt...), nil
}

// NextRound collects every card and deals the next round. The first seat
// moves one place clockwise each round.
func (s *Session) NextRound() ([]Event, error) {
	switch s.status {
	case StatusRoundOver:
	case StatusGameOver:
		return nil, ErrSessionEnded
	case StatusLobby, StatusDealing:
		return nil, ErrNotStarted
	default:
		return nil, ErrRoundInProgress
	}
	cards := s.deck.collect()
	for i := range s.players {
		cards = append(cards, s.players[i].Hand...)
		s.players[i].Hand = nil
		s.players[i].HasCalledUno = false
	}
	s.deck.draw = cards
	s.status = StatusDealing
	s.round++
	s.starter = NextSeat(s.starter, Clockwise, len(s.players))
	s.winner = -1
	dealt, err := s.deal()
	if err != nil {
		return nil, err
	}
	return append([]Event{{Type: EventRoundStarted, Seat: s.starter, Count: s.round}}, dealt...), nil
}

// deal shuffles the whole deck, deals every hand and resolves the opening card.
// The deck holds all cards when deal is called.
func (s *Session) deal() ([]Event, error) {
	Shuffle(s.deck.draw, s.rng)
	s.table = Table{Direction: Clockwise, Seat: s.starter, ColorSeat: -1}
	s.lastWildDrawFour = nil
	s.openingColor = false

	var events []Event
	for i := range s.players {
		hand, _, err := s.deck.Draw(s.rules.HandSize, s.rng)
		if err != nil {
			for j := 0; j < i; j++ {
				s.deck.draw = append(s.deck.draw, s.players[j].Hand...)
				s.players[j].Hand = nil
			}
			return nil, fmt.Errorf("dealing seat %d: %w", i, err)
		}
		s.players[i].Hand = hand
		events = append(events, Event{Type: EventCardsDealt, Seat: i, Cards: slices.Clone(hand), Count: len(hand)})
	}

	var open Card
	for tries := 0; tries <= DeckSize; tries++ {
		open, _ = s.deck.flip()
		if open.rank.Numbered() || (s.rules.OpeningCard == OpeningApply && open.rank != RankWildDrawFour) {
			break
		}
		s.deck.bury()
	}
	s.table.Color = open.color
	s.table.Rank = open.rank
	s.status = StatusInProgress
	events = append(events, Event{Type: EventOpeningCard, Seat: -1, Card: cardPtr(open), Color: open.color})

	n := len(s.players)
	switch open.rank {
	case RankSkip:
		events = append(events, Event{Type: EventTurnSkipped, Seat: s.starter})
		s.table.Seat = NextSeat(s.starter, Clockwise, n)
	case RankReverse:
		if n == 2 {
			events = append(events, Event{Type: EventTurnSkipped, Seat: s.starter})
			s.table.Seat = NextSeat(s.starter, Clockwise, n)
		} else {
			s.table.Direction = CounterClockwise
			events = append(events, Event{Type: EventDirectionReversed, Seat: -1, Direction: s.table.Direction})
			s.table.Seat = NextSeat(s.starter, CounterClockwise, n)
		}
	case RankDrawTwo:
		s.table.PendingDraw = 2
	case RankWild:
		s.status = StatusAwaitingColorChoice
		s.table.ColorSeat = s.starter
		s.openingColor = true
	}
	events = append(events, Event{Type: EventTurnAdvanced, Seat: s.table.Seat, Pending: s.table.PendingDraw})
	if s.status == StatusAwaitingColorChoice {
		events = append(events, Event{Type: EventColorChoiceRequired, Seat: s.starter})
	}
	return events, nil
}

// PlayCard plays card from seat's hand. chosen names the new color for a wild
// card and must be ColorWild otherwise; a wild played with ColorWild leaves the
// session awaiting ChooseColor from the same seat.
func (s *Session) PlayCard(seat int, card Card, chosen Color) ([]Event, error) {
	return s.Apply(Command{Kind: CmdPlayCard, Seat: seat, Card: card, Color: chosen})
}

// DrawCard draws one card, or the whole pending penalty, and ends the turn.
func (s *Session) DrawCard(seat int) ([]Event, error) {
	return s.Apply(Command{Kind: CmdDrawCard, Seat: seat})
}

// CallUno marks seat as having called UNO. Valid at any time while the seat
// holds exactly one card, once per card.
func (s *Session) CallUno(seat int) ([]Event, error) {
	return s.Apply(Command{Kind: CmdCallUno, Seat: seat})
}

// ChooseColor resolves a pending wild.
func (s *Session) ChooseColor(seat int, color Color) ([]Event, error) {
	return s.Apply(Command{Kind: CmdChooseColor, Seat: seat, Color: color})
}

// Challenge disputes the WildDrawFour that put a penalty on seat.
func (s *Session) Challenge(seat int) ([]Event, error) {
	return s.Apply(Command{Kind: CmdChallenge, Seat: seat})
}

// Apply validates cmd against the current status and seat and, if accepted,
// applies it and returns the resulting events.
func (s *Session) Apply(cmd Command) ([]Event, error) {
	switch s.status {
	case StatusGameOver:
		return nil, ErrSessionEnded
	case StatusLobby, StatusDealing:
		return nil, ErrNotStarted
	case StatusRoundOver:
		return nil, ErrRoundOver
	}
	if cmd.Seat < 0 || cmd.Seat >= len(s.players) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeat, cmd.Seat)
	}
	if cmd.Kind == CmdCallUno {
		return s.callUno(cmd.Seat)
	}

	if s.status == StatusAwaitingColorChoice {
		if cmd.Seat != s.table.ColorSeat {
			return nil, fmt.Errorf("%w: seat %d owes a color choice", ErrNotYourTurn, s.table.ColorSeat)
		}
		if cmd.Kind != CmdChooseColor {
			return nil, fmt.Errorf("%w: choose a color before %s", ErrColorChoiceNotAllowed, cmd.Kind)
		}
		return s.chooseColor(cmd.Seat, cmd.Color)
	}

	if cmd.Seat != s.table.Seat {
		return nil, fmt.Errorf("%w: seat %d is on turn", ErrNotYourTurn, s.table.Seat)
	}
	switch cmd.Kind {
	case CmdPlayCard:
		return s.playCard(cmd.Seat, cmd.Card, cmd.Color)
	case CmdDrawCard:
		return s.drawCard(cmd.Seat)
	case CmdChooseColor:
		return nil, fmt.Errorf("%w: no color is owed", ErrColorChoiceNotAllowed)
	case CmdChallenge:
		return s.challenge(cmd.Seat)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}

func (s *Session) playCard(seat int, card Card, chosen Color) ([]Event, error) {
	p := &s.players[seat]
	idx := slices.Index(p.Hand, card)
	if !card.Valid() || idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCardNotInHand, card)
	}
	if !card.IsWild() && chosen != ColorWild {
		return nil, fmt.Errorf("%w: %s is not wild", ErrColorChoiceNotAllowed, card)
	}
	if chosen != ColorWild && !chosen.Concrete() {
		return nil, fmt.Errorf("%w: got %s", ErrColorChoiceRequired, chosen)
	}
	if !IsLegalPlay(card, s.table, s.rules) {
		if s.table.PendingDraw > 0 {
			return nil, fmt.Errorf("%w: %s on a pending draw of %d", ErrIllegalCard, card, s.table.PendingDraw)
		}
		return nil, fmt.Errorf("%w: %s on %s %s", ErrIllegalCard, card, s.table.Color, s.table.Rank)
	}

	var record *WildDrawFourRecord
	if card.rank == RankWildDrawFour {
		record = &WildDrawFourRecord{Seat: seat, HadAlternative: hadAlternative(p.Hand, idx, s.table, s.rules)}
	}
	p.Hand = slices.Delete(p.Hand, idx, idx+1)
	if len(p.Hand) != 1 {
		p.HasCalledUno = false
	}
	s.deck.Discard(card)
	s.lastWildDrawFour = record

	d := applyPlay(card, chosen)
	s.table.Rank = d.rank
	if !d.needsColor {
		s.table.Color = d.color
	}
	events := []Event{{Type: EventCardPlayed, Seat: seat, Card: cardPtr(card), Color: d.color, Count: len(p.Hand)}}

	if len(p.Hand) == 0 {
		// The winning card's effect is never applied.
		return append(events, s.finishRound(seat)...), nil
	}

	s.table.PendingDraw += d.penalty
	if d.needsColor {
		s.status = StatusAwaitingColorChoice
		s.table.ColorSeat = seat
		return append(events, Event{Type: EventColorChoiceRequired, Seat: seat}), nil
	}
	return append(events, s.advance(seat, d.rank)...), nil
}

func (s *Session) chooseColor(seat int, color Color) ([]Event, error) {
	if !color.Concrete() {
		return nil, fmt.Errorf("%w: got %s", ErrColorChoiceRequired, color)
	}
	s.table.Color = color
	s.table.ColorSeat = -1
	s.status = StatusInProgress
	events := []Event{{Type: EventColorChosen, Seat: seat, Color: color}}
	if s.openingColor {
		s.openingColor = false
		return append(events, Event{Type: EventTurnAdvanced, Seat: s.table.Seat, Pending: s.table.PendingDraw}), nil
	}
	return append(events, s.advance(seat, s.table.Rank)...), nil
}

func (s *Session) drawCard(seat int) ([]Event, error) {
	n, penalty := 1, false
	if s.table.PendingDraw > 0 {
		n, penalty = s.table.PendingDraw, true
	}
	events, err := s.give(seat, n, penalty)
	if err != nil {
		return nil, err
	}
	if penalty {
		s.table.PendingDraw = 0
	}
	s.lastWildDrawFour = nil
	return append(events, s.advance(seat, RankZero)...), nil
}

// give moves n cards from the deck into seat's hand.
func (s *Session) give(seat, n int, penalty bool) ([]Event, error) {
	cards, reshuffled, err := s.deck.Draw(n, s.rng)
	if err != nil {
		return nil, err
	}
	var events []Event
	if reshuffled {
		events = append(events, Event{Type: EventDeckReshuffled, Seat: -1, Count: s.deck.DrawLen()})
	}
	p := &s.players[seat]
	p.Hand = append(p.Hand, cards...)
	p.HasCalledUno = false
	return append(events, Event{Type: EventCardDrawn, Seat: seat, Cards: cards, Count: len(cards), Penalty: penalty}), nil
}

func (s *Session) callUno(seat int) ([]Event, error) {
	p := &s.players[seat]
	if len(p.Hand) != 1 {
		return nil, fmt.Errorf("%w: seat %d holds %d cards", ErrUnoNotAllowed, seat, len(p.Hand))
	}
	if p.HasCalledUno {
		return nil, fmt.Errorf("%w: seat %d already called", ErrUnoNotAllowed, seat)
	}
	p.HasCalledUno = true
	return []Event{{Type: EventUnoCalled, Seat: seat}}, nil
}

// challenge resolves a WildDrawFour challenge by the seat it penalised. A
// guilty offender draws four and the challenger keeps the turn with whatever
// penalty remains; an innocent one makes the challenger draw the penalty plus
// two and pass.
func (s *Session) challenge(seat int) ([]Event, error) {
	rec := s.lastWildDrawFour
	if !s.canChallenge() {
		return nil, ErrChallengeNotAllowed
	}
	resolved := Event{Type: EventChallengeResolved, Seat: seat, Target: intPtr(rec.Seat), Guilty: rec.HadAlternative}

	if rec.HadAlternative {
		drawn, err := s.give(rec.Seat, 4, true)
		if err != nil {
			return nil, err
		}
		s.table.PendingDraw -= 4
		s.lastWildDrawFour = nil
		events := append([]Event{resolved}, drawn...)
		return append(events, Event{Type: EventTurnAdvanced, Seat: seat, Pending: s.table.PendingDraw}), nil
	}

	drawn, err := s.give(seat, s.table.PendingDraw+2, true)
	if err != nil {
		return nil, err
	}
	s.table.PendingDraw = 0
	s.lastWildDrawFour = nil
	events := append([]Event{resolved}, drawn...)
	return append(events, s.advance(seat, RankZero)...), nil
}

// finishRound scores the round for winner and moves to RoundOver or GameOver.
func (s *Session) finishRound(winner int) []Event {
	points := 0
	for i, p := range s.players {
		if i != winner {
			points += HandPoints(p.Hand)
		}
	}
	s.scores[winner] += points
	s.winner = winner
	s.lastWildDrawFour = nil
	s.table.PendingDraw = 0
	s.table.ColorSeat = -1
	events := []Event{{Type: EventRoundWon, Seat: winner, Points: points}}

	if s.rules.TargetScore > 0 && s.scores[winner] < s.rules.TargetScore {
		s.status = StatusRoundOver
		return events
	}
	s.status = StatusGameOver
	return append(events, Event{Type: EventGameOver, Seat: winner, Scores: slices.Clone(s.scores)})
}
