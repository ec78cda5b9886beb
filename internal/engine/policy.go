// internal/engine/policy.go
package engine

// Policy chooses the next command for an automated seat. It only sees what
// View exposes to that seat.
type Policy interface {
	ChooseAction(view PlayerView) Command
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(view PlayerView) Command

func (f PolicyFunc) ChooseAction(view PlayerView) Command { return f(view) }

// FirstLegal plays the first legal card in hand order and draws when nothing
// is legal. Wilds take the color the rest of the hand holds most of.
type FirstLegal struct{}

func (FirstLegal) ChooseAction(v PlayerView) Command {
	if v.Status == StatusAwaitingColorChoice {
		return Command{Kind: CmdChooseColor, Seat: v.Seat, Color: MajorityColor(v.Hand)}
	}
	for i, c := range v.Hand {
		if !IsLegalPlay(c, v.Table, v.Rules) {
			continue
		}
		cmd := Command{Kind: CmdPlayCard, Seat: v.Seat, Card: c}
		if c.IsWild() {
			rest := make([]Card, 0, len(v.Hand)-1)
			rest = append(rest, v.Hand[:i]...)
			rest = append(rest, v.Hand[i+1:]...)
			cmd.Color = MajorityColor(rest)
		}
		return cmd
	}
	return Command{Kind: CmdDrawCard, Seat: v.Seat}
}

// MajorityColor returns the concrete color hand holds most of. Ties go to the
// first in Red, Blue, Green, Yellow order, which is also the answer for a hand
// without colored cards.
func MajorityColor(hand []Card) Color {
	var counts [ColorYellow + 1]int
	for _, c := range hand {
		counts[c.color]++
	}
	best := ColorRed
	for _, color := range Colors {
		if counts[color] > counts[best] {
			best = color
		}
	}
	return best
}
