// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/engine"
)

// ObfPlayerState is one seat as any player may see it: no cards, only a count.
type ObfPlayerState struct {
	PlayerID      uuid.UUID `json:"player_id"`
	Seat          int       `json:"seat"`
	Name          string    `json:"name"`
	Bot           string    `json:"bot,omitempty"`
	HandSize      int       `json:"hand_size"`
	HasCalledUno  bool      `json:"hasCalledUno"`
	Connected     bool      `json:"connected"`
	IsCurrentTurn bool      `json:"isCurrentTurn"`
}

// ObfGameState is the table from the perspective of one user. Only that
// user's own hand is revealed.
type ObfGameState struct {
	GameID          uuid.UUID        `json:"game_id"`
	Status          engine.Status    `json:"status"`
	Started         bool             `json:"started"`
	GameOver        bool             `json:"gameOver"`
	Round           int              `json:"round"`
	CurrentPlayerID uuid.UUID        `json:"currentPlayerId"`
	Seat            int              `json:"seat"` // -1 for spectators
	Hand            []engine.Card    `json:"hand,omitempty"`
	CanChallenge    bool             `json:"canChallenge"`
	Table           engine.Table     `json:"table"`
	TopCard         *engine.Card     `json:"topCard,omitempty"`
	DrawPileSize    int              `json:"drawPileSize"`
	DiscardPileSize int              `json:"discardPileSize"`
	Players         []ObfPlayerState `json:"players"`
	Scores          []int            `json:"scores"`
	Rules           HouseRules       `json:"rules"`
}

// GetCurrentObfuscatedGameState generates a snapshot of the game for the requesting user.
func (g *UnoGame) GetCurrentObfuscatedGameState(forUser uuid.UUID) ObfGameState {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.obfuscatedState(forUser)
}

// obfuscatedState assumes the lock is held.
func (g *UnoGame) obfuscatedState(forUser uuid.UUID) ObfGameState {
	acting := g.actingSeat()
	obf := ObfGameState{
		GameID:          g.ID,
		Status:          g.Session.Status(),
		Started:         g.Started,
		GameOver:        g.GameOver,
		Round:           g.Session.Round(),
		Seat:            -1,
		Table:           g.Session.Table(),
		DrawPileSize:    g.Session.DrawPileSize(),
		DiscardPileSize: g.Session.DiscardPileSize(),
		Scores:          g.Session.Scores(),
		Rules:           g.HouseRules,
	}
	if acting >= 0 && acting < len(g.Players) {
		obf.CurrentPlayerID = g.Players[acting].ID
	}
	if top, ok := g.Session.TopCard(); ok {
		obf.TopCard = &top
	}

	for _, pl := range g.Players {
		obf.Players = append(obf.Players, ObfPlayerState{
			PlayerID:      pl.ID,
			Seat:          pl.Seat,
			Name:          pl.Name,
			Bot:           pl.Bot,
			HandSize:      len(g.Session.Hand(pl.Seat)),
			HasCalledUno:  g.Session.HasCalledUno(pl.Seat),
			Connected:     pl.Connected,
			IsCurrentTurn: pl.Seat == acting,
		})
		if pl.ID == forUser {
			if view, err := g.Session.View(pl.Seat); err == nil {
				obf.Seat = pl.Seat
				obf.Hand = view.Hand
				obf.CanChallenge = view.CanChallenge
			}
		}
	}
	return obf
}

// sendSyncState sends a private_sync_state to one player. Assumes lock is held.
func (g *UnoGame) sendSyncState(playerID uuid.UUID) {
	state := g.obfuscatedState(playerID)
	g.fireEventToPlayer(playerID, GameEvent{Type: EventPrivateSyncState, State: &state})
}

// broadcastSyncStateToAll sends every connected human their own view. Assumes lock is held.
func (g *UnoGame) broadcastSyncStateToAll() {
	for _, p := range g.Players {
		if p.IsBot() || !p.Connected {
			continue
		}
		g.sendSyncState(p.ID)
	}
}
