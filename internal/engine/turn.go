// internal/engine/turn.go
package engine

// Direction is the order seats take turns in.
type Direction int8

const (
	Clockwise        Direction = 1
	CounterClockwise Direction = -1
)

func (d Direction) String() string {
	if d == CounterClockwise {
		return "counter_clockwise"
	}
	return "clockwise"
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == CounterClockwise {
		return Clockwise
	}
	return CounterClockwise
}

// NextSeat returns the seat after seat when moving in dir around n seats.
func NextSeat(seat int, dir Direction, n int) int {
	if n <= 0 {
		return 0
	}
	return ((seat+int(dir))%n + n) % n
}

// advance moves the turn off from, applying the effect of the card just
// resolved. It returns the skip/reverse/turn events in order.
func (s *Session) advance(from int, rank Rank) []Event {
	n := len(s.players)
	var events []Event
	next := NextSeat(from, s.table.Direction, n)
	switch rank {
	case RankSkip:
		events = append(events, Event{Type: EventTurnSkipped, Seat: next})
		next = NextSeat(next, s.table.Direction, n)
	case RankReverse:
		if n == 2 {
			// Heads-up Reverse acts as a Skip; the direction is left alone.
			events = append(events, Event{Type: EventTurnSkipped, Seat: next})
			next = from
		} else {
			s.table.Direction = s.table.Direction.Flip()
			events = append(events, Event{Type: EventDirectionReversed, Seat: from, Direction: s.table.Direction})
			next = NextSeat(from, s.table.Direction, n)
		}
	}
	s.table.Seat = next
	events = append(events, Event{Type: EventTurnAdvanced, Seat: next, Pending: s.table.PendingDraw})
	return events
}
