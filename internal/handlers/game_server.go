// internal/handlers/game_server.go
package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/bot"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/sirupsen/logrus"
)

// GameServer is a high-level struct that holds a reference to a GameStore
// and wires new tables to the WebSocket clients.
type GameServer struct {
	GameStore *game.GameStore
	Logger    *logrus.Logger
	NewPolicy game.PolicyFactory

	// Retention is how long a finished game stays listed. Zero keeps it forever.
	Retention time.Duration

	// OriginPatterns is passed to websocket.Accept.
	OriginPatterns []string

	hub *hub
}

// NewGameServer builds a server with an empty store. A nil newPolicy seats
// only the built-in bot kinds.
func NewGameServer(logger *logrus.Logger, newPolicy game.PolicyFactory) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if newPolicy == nil {
		newPolicy = bot.NewBuiltinPolicy
	}
	return &GameServer{
		GameStore:      game.NewGameStore(),
		Logger:         logger,
		NewPolicy:      newPolicy,
		Retention:      10 * time.Minute,
		OriginPatterns: []string{"*"},
		hub:            newHub(logger),
	}
}

// Routes mounts the game endpoints, e.g. r.Route("/game", gs.Routes).
func (gs *GameServer) Routes(r chi.Router) {
	r.Post("/create", gs.CreateGameHandler)
	r.Post("/join/{id}", gs.JoinGameHandler)
	r.Post("/start/{id}", gs.StartGameHandler)
	r.Post("/restore/{id}", gs.RestoreGameHandler)
	r.Get("/list", gs.ListGamesHandler)
	r.Get("/snapshot/{id}", gs.SnapshotHandler)
	r.Get("/ws/{id}", gs.GameWSHandler)
}

// attach registers g with the store and points its event fan-out at the hub.
func (gs *GameServer) attach(g *game.UnoGame) {
	g.Mu.Lock()
	g.NewPolicy = gs.NewPolicy
	g.BroadcastFn = gs.createBroadcastFunc(g)
	g.BroadcastToPlayerFn = gs.createBroadcastToPlayerFunc()
	g.OnGameEnd = gs.onGameEnd
	g.Mu.Unlock()
	gs.GameStore.AddGame(g)
}

// createBroadcastFunc returns a function suitable for UnoGame.BroadcastFn.
// It runs with the game lock held, so it reads Players directly and only queues.
func (gs *GameServer) createBroadcastFunc(g *game.UnoGame) func(ev game.GameEvent) {
	return func(ev game.GameEvent) {
		data := game.EventBytes(ev)
		for _, p := range g.Players {
			if p.IsBot() || !p.Connected {
				continue
			}
			gs.hub.send(p.ID, data)
		}
	}
}

// createBroadcastToPlayerFunc returns a function suitable for UnoGame.BroadcastToPlayerFn.
func (gs *GameServer) createBroadcastToPlayerFunc() func(playerID uuid.UUID, ev game.GameEvent) {
	return func(playerID uuid.UUID, ev game.GameEvent) {
		gs.hub.send(playerID, game.EventBytes(ev))
	}
}

// onGameEnd runs with the game lock held.
func (gs *GameServer) onGameEnd(gameID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int) {
	gs.Logger.WithFields(logrus.Fields{
		"game_id": gameID,
		"winner":  winner,
		"scores":  scores,
	}).Info("game finished")
	if gs.Retention > 0 {
		time.AfterFunc(gs.Retention, func() { gs.GameStore.DeleteGame(gameID) })
	}
}
