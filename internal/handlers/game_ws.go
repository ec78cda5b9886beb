// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the WebSocket subprotocol clients must request.
const Subprotocol = "uno"

// GameMessage is an incoming WebSocket message: a command or a ping.
type GameMessage struct {
	Type  string `json:"type"`
	Card  string `json:"card,omitempty"`
	Color string `json:"color,omitempty"`
}

// GameWSHandler upgrades the HTTP connection to WebSocket for a specific game instance.
// It authenticates the seat token, registers the connection, and then starts
// the read loop to handle incoming game messages.
func (gs *GameServer) GameWSHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := gs.lookup(w, r)
	if !ok {
		return
	}
	playerID, tokenGame, err := auth.AuthenticateJWT(tokenFromRequest(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if tokenGame != g.ID {
		writeError(w, http.StatusForbidden, "token was issued for another game")
		return
	}
	p, seated := g.PlayerByID(playerID)
	if !seated || p.IsBot() {
		writeError(w, http.StatusForbidden, "not seated at this table")
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: gs.OriginPatterns,
	})
	if err != nil {
		gs.Logger.Warnf("WebSocket accept error for game %s: %v", g.ID, err)
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must use the 'uno' subprotocol")
		return
	}
	middleware.LogWebSocketConnect(gs.Logger, r.RemoteAddr, r.URL.Path)

	cl := gs.hub.register(playerID, c)
	g.HandleReconnect(playerID, c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	err = gs.readGameMessages(ctx, c, g, cl)

	if gs.hub.unregister(cl) {
		g.HandleDisconnect(playerID)
	}
	middleware.LogWebSocketDisconnect(gs.Logger, r.RemoteAddr, r.URL.Path, err)
}

// readGameMessages reads until the socket closes. Commands go to the game;
// rejections come back as private action_rejected events.
func (gs *GameServer) readGameMessages(ctx context.Context, c *websocket.Conn, g *game.UnoGame, cl *client) error {
	log := gs.Logger.WithFields(logrus.Fields{"game_id": g.ID, "player_id": cl.playerID})
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			log.Warn("ignoring non-text message")
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			gs.sendError(cl.playerID, "invalid JSON format")
			continue
		}
		log.Debugf("received %s", msg.Type)

		if msg.Type == "ping" {
			gs.hub.send(cl.playerID, []byte(`{"type":"pong"}`))
			continue
		}
		action := models.GameAction{ActionType: msg.Type, Card: msg.Card, Color: msg.Color}
		if err := g.HandlePlayerAction(cl.playerID, action); errors.Is(err, game.ErrUnknownPlayer) {
			return err
		}
	}
}

func (gs *GameServer) sendError(playerID uuid.UUID, msg string) {
	data, _ := json.Marshal(map[string]string{"type": "error", "message": msg})
	gs.hub.send(playerID, data)
}
