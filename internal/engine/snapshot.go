// internal/engine/snapshot.go
package engine

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

const snapshotVersion = 1

type snapshot struct {
	Version          int                 `json:"version"`
	Rules            HouseRules          `json:"rules"`
	Status           Status              `json:"status"`
	Players          []Player            `json:"players"`
	Draw             []Card              `json:"draw"`
	Discard          []Card              `json:"discard"`
	Table            Table               `json:"table"`
	LastWildDrawFour *WildDrawFourRecord `json:"lastWildDrawFour,omitempty"`
	OpeningColor     bool                `json:"openingColor,omitempty"`
	Round            int                 `json:"round"`
	Starter          int                 `json:"starter"`
	Scores           []int               `json:"scores"`
	Winner           int                 `json:"winner"`
	RNG              []byte              `json:"rng"`
}

// Snapshot serializes the complete session, random source included, so that
// Restore produces a session that behaves identically.
func (s *Session) Snapshot() ([]byte, error) {
	rng, err := s.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("snapshot rng: %w", err)
	}
	return json.Marshal(snapshot{
		Version:          snapshotVersion,
		Rules:            s.rules,
		Status:           s.status,
		Players:          s.players,
		Draw:             s.deck.draw,
		Discard:          s.deck.discard,
		Table:            s.table,
		LastWildDrawFour: s.lastWildDrawFour,
		OpeningColor:     s.openingColor,
		Round:            s.round,
		Starter:          s.starter,
		Scores:           s.scores,
		Winner:           s.winner,
		RNG:              rng,
	})
}

// Restore rebuilds a session from Snapshot output. It rejects snapshots whose
// cards are not exactly one standard deck or whose seats are inconsistent.
func Restore(blob []byte) (*Session, error) {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorruptSnapshot, snap.Version)
	}
	if err := snap.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Status > StatusGameOver {
		return nil, fmt.Errorf("%w: status %d", ErrCorruptSnapshot, snap.Status)
	}
	n := len(snap.Players)
	if n > snap.Rules.MaxPlayers || len(snap.Scores) != n {
		return nil, fmt.Errorf("%w: %d players, %d scores", ErrCorruptSnapshot, n, len(snap.Scores))
	}
	for i, p := range snap.Players {
		if p.Seat != i {
			return nil, fmt.Errorf("%w: player %d has seat %d", ErrCorruptSnapshot, i, p.Seat)
		}
	}
	if snap.Status != StatusLobby && (snap.Table.Seat < 0 || snap.Table.Seat >= n) {
		return nil, fmt.Errorf("%w: current seat %d", ErrCorruptSnapshot, snap.Table.Seat)
	}

	s := &Session{
		rules:            snap.Rules,
		status:           snap.Status,
		players:          snap.Players,
		deck:             &Deck{draw: snap.Draw, discard: snap.Discard},
		table:            snap.Table,
		lastWildDrawFour: snap.LastWildDrawFour,
		openingColor:     snap.OpeningColor,
		round:            snap.Round,
		starter:          snap.Starter,
		scores:           snap.Scores,
		winner:           snap.Winner,
		src:              &rand.PCG{},
	}
	if err := checkConservation(s.Cards()); err != nil {
		return nil, err
	}
	if err := s.src.UnmarshalBinary(snap.RNG); err != nil {
		return nil, fmt.Errorf("%w: rng: %v", ErrCorruptSnapshot, err)
	}
	s.rng = rand.New(s.src)
	return s, nil
}

// checkConservation verifies cards is exactly the standard deck multiset.
func checkConservation(cards []Card) error {
	if len(cards) != DeckSize {
		return fmt.Errorf("%w: %d cards, want %d", ErrCorruptSnapshot, len(cards), DeckSize)
	}
	counts := make(map[Card]int, 54)
	for _, c := range StandardDeck() {
		counts[c]++
	}
	for _, c := range cards {
		counts[c]--
		if counts[c] < 0 {
			return fmt.Errorf("%w: extra %s", ErrCorruptSnapshot, c)
		}
	}
	return nil
}
