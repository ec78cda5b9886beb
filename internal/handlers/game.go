// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// SeatRequest asks for one seat. A non-empty Bot names the policy that plays it.
type SeatRequest struct {
	Name string `json:"name"`
	Bot  string `json:"bot,omitempty"`
}

// CreateGameRequest is the body of POST /game/create.
type CreateGameRequest struct {
	Players []SeatRequest          `json:"players"`
	Rules   map[string]interface{} `json:"rules,omitempty"`
	Seed    uint64                 `json:"seed,omitempty"`
	Start   bool                   `json:"start,omitempty"`
}

// SeatResponse describes a taken seat. Token is only set for human seats.
type SeatResponse struct {
	PlayerID uuid.UUID `json:"playerId"`
	Seat     int       `json:"seat"`
	Name     string    `json:"name"`
	Bot      string    `json:"bot,omitempty"`
	Token    string    `json:"token,omitempty"`
}

// CreateGameResponse is returned by POST /game/create.
type CreateGameResponse struct {
	GameID  uuid.UUID      `json:"gameId"`
	Seats   []SeatResponse `json:"seats"`
	Started bool           `json:"started"`
}

// GameSummary is one row of GET /game/list.
type GameSummary struct {
	GameID    uuid.UUID       `json:"gameId"`
	Status    engine.Status   `json:"status"`
	Round     int             `json:"round"`
	Players   []models.Player `json:"players"`
	Rules     game.HouseRules `json:"rules"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CreateGameHandler builds a table, seats the requested players and bots and
// returns a seat token for every human. The table starts when it is full or
// when the request asks for it.
func (gs *GameServer) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rules, err := game.ParseRules(req.Rules, game.DefaultHouseRules())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := game.NewUnoGame(rules, req.Seed, gs.Logger)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g.NewPolicy = gs.NewPolicy

	resp := CreateGameResponse{GameID: g.ID, Seats: make([]SeatResponse, 0, len(req.Players))}
	for _, seat := range req.Players {
		sr, err := gs.seat(g, seat)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp.Seats = append(resp.Seats, sr)
	}

	gs.attach(g)
	if req.Start || len(req.Players) == rules.MaxPlayers {
		if err := g.Start(); err != nil {
			gs.GameStore.DeleteGame(g.ID)
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp.Started = true
	}
	gs.Logger.WithFields(logrus.Fields{
		"game_id": g.ID,
		"seats":   len(resp.Seats),
		"started": resp.Started,
	}).Info("game created")
	writeJSON(w, http.StatusCreated, resp)
}

// seat adds one human or bot to g.
func (gs *GameServer) seat(g *game.UnoGame, req SeatRequest) (SeatResponse, error) {
	if req.Bot != "" {
		p, err := g.AddBot(req.Name, req.Bot)
		if err != nil {
			return SeatResponse{}, err
		}
		return SeatResponse{PlayerID: p.ID, Seat: p.Seat, Name: p.Name, Bot: p.Bot}, nil
	}
	p := &models.Player{ID: uuid.New(), Name: req.Name}
	if err := g.AddPlayer(p); err != nil {
		return SeatResponse{}, err
	}
	token, err := auth.CreateJWT(p.ID, g.ID)
	if err != nil {
		return SeatResponse{}, err
	}
	return SeatResponse{PlayerID: p.ID, Seat: p.Seat, Name: p.Name, Token: token}, nil
}

// JoinGameHandler seats one more player or bot at a table that has not started.
func (gs *GameServer) JoinGameHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := gs.lookup(w, r)
	if !ok {
		return
	}
	var req SeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sr, err := gs.seat(g, req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

// StartGameHandler deals the first round. Any seated human may start the table.
func (gs *GameServer) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := gs.lookup(w, r)
	if !ok {
		return
	}
	playerID, gameID, err := auth.AuthenticateJWT(tokenFromRequest(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if _, seated := g.PlayerByID(playerID); !seated || gameID != g.ID {
		writeError(w, http.StatusForbidden, "not seated at this table")
		return
	}
	if err := g.Start(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"gameId": g.ID, "started": true})
}

// ListGamesHandler lists the live tables, oldest first.
func (gs *GameServer) ListGamesHandler(w http.ResponseWriter, r *http.Request) {
	games := gs.GameStore.List()
	out := make([]GameSummary, 0, len(games))
	for _, g := range games {
		g.Mu.Lock()
		sum := GameSummary{
			GameID:    g.ID,
			Status:    g.Session.Status(),
			Round:     g.Session.Round(),
			Players:   make([]models.Player, 0, len(g.Players)),
			Rules:     g.HouseRules,
			CreatedAt: g.CreatedAt,
		}
		for _, p := range g.Players {
			sum.Players = append(sum.Players, *p)
		}
		g.Mu.Unlock()
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, out)
}

// SnapshotHandler returns the serialized table: live from memory, else the
// last persisted snapshot.
func (gs *GameServer) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := gameIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	var blob []byte
	if g, ok := gs.GameStore.GetGame(gameID); ok {
		blob, err = g.Snapshot()
	} else {
		blob, err = game.LoadSnapshot(r.Context(), gameID)
	}
	if errors.Is(err, database.ErrGameNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		gs.Logger.WithError(err).WithField("game_id", gameID).Error("snapshot failed")
		writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// RestoreGameHandler brings a persisted table back into memory and resumes it.
// Human seats reconnect with the tokens they already hold.
func (gs *GameServer) RestoreGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := gameIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	if _, ok := gs.GameStore.GetGame(gameID); ok {
		writeError(w, http.StatusConflict, "game is already live")
		return
	}
	blob, err := game.LoadSnapshot(r.Context(), gameID)
	if errors.Is(err, database.ErrGameNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}
	g, err := game.RestoreUnoGame(blob, gs.NewPolicy, gs.Logger)
	if err != nil {
		gs.Logger.WithError(err).WithField("game_id", gameID).Error("restore failed")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	status := g.Session.Status()
	gs.attach(g)
	g.Resume()
	gs.Logger.WithField("game_id", g.ID).Info("game restored")
	writeJSON(w, http.StatusOK, map[string]interface{}{"gameId": g.ID, "status": status})
}

// lookup resolves the {id} route parameter to a live game, writing the error response if it cannot.
func (gs *GameServer) lookup(w http.ResponseWriter, r *http.Request) (*game.UnoGame, bool) {
	gameID, err := gameIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return nil, false
	}
	g, ok := gs.GameStore.GetGame(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return nil, false
	}
	return g, true
}
