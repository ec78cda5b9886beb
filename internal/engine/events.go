// internal/engine/events.go
package engine

// EventType names an observable change to a session.
type EventType string

const (
	EventGameStarted         EventType = "game_started"
	EventRoundStarted        EventType = "round_started"
	EventCardsDealt          EventType = "cards_dealt"
	EventOpeningCard         EventType = "opening_card"
	EventCardPlayed          EventType = "card_played"
	EventCardDrawn           EventType = "card_drawn"
	EventTurnAdvanced        EventType = "turn_advanced"
	EventTurnSkipped         EventType = "turn_skipped"
	EventDirectionReversed   EventType = "direction_reversed"
	EventColorChoiceRequired EventType = "color_choice_required"
	EventColorChosen         EventType = "color_chosen"
	EventUnoCalled           EventType = "uno_called"
	EventDeckReshuffled      EventType = "deck_reshuffled"
	EventChallengeResolved   EventType = "challenge_resolved"
	EventRoundWon            EventType = "round_won"
	EventGameOver            EventType = "game_over"
)

// Event is emitted by every successful command, in the order things happened.
// Seat is -1 for table-level events.
type Event struct {
	Type      EventType `json:"type"`
	Seat      int       `json:"seat"`
	Card      *Card     `json:"card,omitempty"`
	Cards     []Card    `json:"cards,omitempty"` // private to Seat, see Redact
	Count     int       `json:"count,omitempty"`
	Color     Color     `json:"color,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Pending   int       `json:"pending,omitempty"`
	Penalty   bool      `json:"penalty,omitempty"`
	Target    *int      `json:"target,omitempty"`
	Guilty    bool      `json:"guilty,omitempty"`
	Points    int       `json:"points,omitempty"`
	Scores    []int     `json:"scores,omitempty"`
}

// Redact returns the event as viewer may see it. Card faces drawn or dealt to
// another seat are removed; the count stays.
func (e Event) Redact(viewer int) Event {
	switch e.Type {
	case EventCardDrawn, EventCardsDealt:
		if e.Seat != viewer {
			e.Cards = nil
		}
	}
	return e
}

// RedactAll applies Redact to every event.
func RedactAll(events []Event, viewer int) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Redact(viewer)
	}
	return out
}

func cardPtr(c Card) *Card { return &c }
func intPtr(i int) *int    { return &i }
