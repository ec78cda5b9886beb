// internal/game/game_store.go
package game

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// GameStore keeps the live tables of this process.
type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*UnoGame
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*UnoGame),
	}
}

func (s *GameStore) AddGame(game *UnoGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *GameStore) GetGame(id uuid.UUID) (*UnoGame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[id]
	return g, exists
}

func (s *GameStore) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// List returns every game, oldest first.
func (s *GameStore) List() []*UnoGame {
	s.mu.Lock()
	out := make([]*UnoGame, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b *UnoGame) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
