// internal/engine/deck.go
package engine

import (
	"fmt"
	"math/rand/v2"
)

// DeckSize is the number of cards in a standard deck.
const DeckSize = 108

// StandardDeck returns the 108-card multiset in a fixed, unshuffled order.
// Per color: one 0, two each of 1–9, Skip, Reverse and DrawTwo. Then four
// Wild and four WildDrawFour.
func StandardDeck() []Card {
	cards := make([]Card, 0, DeckSize)
	for _, color := range Colors {
		cards = append(cards, Card{color: color, rank: RankZero})
		for rank := RankOne; rank <= RankDrawTwo; rank++ {
			c := Card{color: color, rank: rank}
			cards = append(cards, c, c)
		}
	}
	for i := 0; i < 4; i++ {
		cards = append(cards, Wild, WildDrawFour)
	}
	return cards
}

// Shuffle permutes cards in place with an unbiased Fisher–Yates shuffle.
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Deck holds the draw pile (top at index 0) and the discard pile (top last).
type Deck struct {
	draw    []Card
	discard []Card
}

// NewDeck returns a deck whose draw pile is a shuffled standard deck.
func NewDeck(rng *rand.Rand) *Deck {
	cards := StandardDeck()
	Shuffle(cards, rng)
	return &Deck{draw: cards}
}

// DrawLen is the number of cards left in the draw pile.
func (d *Deck) DrawLen() int { return len(d.draw) }

// DiscardLen is the number of cards in the discard pile.
func (d *Deck) DiscardLen() int { return len(d.discard) }

// Top returns the top of the discard pile.
func (d *Deck) Top() (Card, bool) {
	if len(d.discard) == 0 {
		return Card{}, false
	}
	return d.discard[len(d.discard)-1], true
}

// Discard puts c on top of the discard pile.
func (d *Deck) Discard(c Card) {
	d.discard = append(d.discard, c)
}

// Available is the number of cards Draw can hand out, counting the discard
// pile minus the top card that always stays face up.
func (d *Deck) Available() int {
	n := len(d.draw)
	if len(d.discard) > 1 {
		n += len(d.discard) - 1
	}
	return n
}

// Draw removes n cards from the top of the draw pile. When the draw pile runs
// out it is refilled from the discard pile (all but its top card), shuffled
// with rng. The draw is all-or-nothing: ErrDeckExhausted leaves the deck as
// it was.
func (d *Deck) Draw(n int, rng *rand.Rand) (cards []Card, reshuffled bool, err error) {
	if n < 0 {
		return nil, false, fmt.Errorf("draw %d cards: negative count", n)
	}
	if d.Available() < n {
		return nil, false, fmt.Errorf("%w: want %d, have %d", ErrDeckExhausted, n, d.Available())
	}
	cards = make([]Card, 0, n)
	for len(cards) < n {
		if len(d.draw) == 0 {
			d.reshuffle(rng)
			reshuffled = true
		}
		cards = append(cards, d.draw[0])
		d.draw = d.draw[1:]
	}
	return cards, reshuffled, nil
}

// reshuffle moves every discard except the top one into a new shuffled draw pile.
func (d *Deck) reshuffle(rng *rand.Rand) {
	if len(d.discard) < 2 {
		return
	}
	top := d.discard[len(d.discard)-1]
	refill := make([]Card, 0, len(d.draw)+len(d.discard)-1)
	refill = append(refill, d.draw...)
	refill = append(refill, d.discard[:len(d.discard)-1]...)
	Shuffle(refill, rng)
	d.draw = refill
	d.discard = []Card{top}
}

// flip moves the top draw card onto the discard pile and returns it. Used for
// the opening card, which never triggers a reshuffle.
func (d *Deck) flip() (Card, error) {
	if len(d.draw) == 0 {
		return Card{}, ErrDeckExhausted
	}
	c := d.draw[0]
	d.draw = d.draw[1:]
	d.discard = append(d.discard, c)
	return c, nil
}

// bury moves the top discard to the bottom of the draw pile.
func (d *Deck) bury() {
	if len(d.discard) == 0 {
		return
	}
	c := d.discard[len(d.discard)-1]
	d.discard = d.discard[:len(d.discard)-1]
	d.draw = append(d.draw, c)
}

// collect empties both piles, returning every card they held. Used to gather
// the deck back before a new round is dealt.
func (d *Deck) collect() []Card {
	cards := make([]Card, 0, len(d.draw)+len(d.discard))
	cards = append(cards, d.draw...)
	cards = append(cards, d.discard...)
	d.draw, d.discard = nil, nil
	return cards
}
