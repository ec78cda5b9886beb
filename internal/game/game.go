// internal/game/game.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrUnknownPlayer is returned for actions from an id that holds no seat.
var ErrUnknownPlayer = errors.New("player is not seated in this game")

// OnGameEndFunc handles a finished game. winner is uuid.Nil when the game
// ended without one.
type OnGameEndFunc func(gameID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int)

// PolicyFactory builds the opponent policy for a bot kind.
type PolicyFactory func(kind string) (engine.Policy, error)

// GameEventType is an enum-like type for broadcasting game actions.
// Engine events keep their own type names; these are the service-level ones.
type GameEventType string

const (
	EventPrivateSyncState   GameEventType = "private_sync_state"
	EventActionRejected     GameEventType = "action_rejected"
	EventPlayerJoined       GameEventType = "player_joined"
	EventPlayerTimeout      GameEventType = "player_timeout"
	EventPlayerDisconnected GameEventType = "player_disconnected"
	EventPlayerReconnected  GameEventType = "player_reconnected"
	EventGameEnd            GameEventType = "game_end"
)

// EventUser identifies the player an event is about.
type EventUser struct {
	ID   uuid.UUID `json:"id"`
	Seat int       `json:"seat"`
}

// GameEvent holds data about an event that can be broadcast to the clients in a consistent format.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Event   *engine.Event          `json:"event,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	State   *ObfGameState          `json:"state,omitempty"`
}

// UnoGame holds the entire state for a single table in memory: the engine
// session plus the identities, timers and fan-out around it.
//
// Mu guards every field. Broadcast functions are called with Mu held and must
// not block or call back into the game.
type UnoGame struct {
	ID         uuid.UUID
	HouseRules HouseRules
	Seed       uint64
	CreatedAt  time.Time

	Players []*models.Player // index == engine seat
	Session *engine.Session

	NewPolicy PolicyFactory
	policies  map[int]engine.Policy

	TurnID       int // increments on every transition, stale timers compare against it
	TurnDuration time.Duration
	BotDelay     time.Duration
	RoundBreak   time.Duration
	turnTimer    *time.Timer
	actionIndex  int

	Started  bool
	GameOver bool
	Mu       sync.Mutex

	// BroadcastFn is used to send events to all players. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to a single specific player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)

	OnGameEnd OnGameEndFunc

	// storeSnapshot writes one snapshot. Nil means Redis and Postgres, when connected.
	storeSnapshot func(ctx context.Context, w snapshotWrite) error
	// snapMu guards the pending snapshot slot, not the table.
	snapMu      sync.Mutex
	snapPending *snapshotWrite
	snapWriting bool

	log *logrus.Entry
}

// NewUnoGame builds an empty table. A zero seed picks one from the clock.
func NewUnoGame(rules HouseRules, seed uint64, logger *logrus.Logger) (*UnoGame, error) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	session, err := engine.NewSession(rules.HouseRules, seed)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id, _ := uuid.NewRandom()
	return &UnoGame{
		ID:           id,
		HouseRules:   rules,
		Seed:         seed,
		CreatedAt:    time.Now(),
		Session:      session,
		policies:     make(map[int]engine.Policy),
		TurnDuration: time.Duration(rules.TurnTimerSec) * time.Second,
		BotDelay:     time.Duration(rules.BotDelayMs) * time.Millisecond,
		RoundBreak:   3 * time.Second,
		log:          logger.WithField("game_id", id),
	}, nil
}

// AddPlayer seats a new player in the lobby, or reconnects one already seated.
func (g *UnoGame) AddPlayer(p *models.Player) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if existing := g.getPlayerByID(p.ID); existing != nil {
		existing.Conn = p.Conn
		existing.Connected = true
		g.log.WithField("player_id", p.ID).Info("player reconnected")
		g.logAction(existing, "player_add", map[string]interface{}{"reconnect": true})
		return nil
	}
	return g.seatLocked(p)
}

// AddBot seats a policy-driven player.
func (g *UnoGame) AddBot(name, kind string) (*models.Player, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if kind == "" {
		kind = "first_legal"
	}
	policy, err := g.resolvePolicy(kind)
	if err != nil {
		return nil, err
	}
	p := &models.Player{ID: uuid.New(), Name: name, Bot: kind, Connected: true}
	if err := g.seatLocked(p); err != nil {
		return nil, err
	}
	g.policies[p.Seat] = policy
	return p, nil
}

func (g *UnoGame) seatLocked(p *models.Player) error {
	if g.Started {
		return engine.ErrAlreadyStarted
	}
	seat, err := g.Session.Join()
	if err != nil {
		return err
	}
	p.Seat = seat
	g.Players = append(g.Players, p)
	g.log.WithFields(logrus.Fields{"player_id": p.ID, "seat": seat, "bot": p.Bot}).Info("player seated")
	g.logAction(p, "player_add", map[string]interface{}{"reconnect": false, "bot": p.Bot})
	g.fireEvent(GameEvent{
		Type:    EventPlayerJoined,
		User:    &EventUser{ID: p.ID, Seat: seat},
		Payload: map[string]interface{}{"name": p.Name, "bot": p.Bot},
	})
	return nil
}

func (g *UnoGame) resolvePolicy(kind string) (engine.Policy, error) {
	if g.NewPolicy != nil {
		return g.NewPolicy(kind)
	}
	if kind == "first_legal" {
		return engine.FirstLegal{}, nil
	}
	return nil, fmt.Errorf("unknown bot policy %q", kind)
}

// Start deals the first round and begins the turn cycle.
func (g *UnoGame) Start() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Started {
		return engine.ErrAlreadyStarted
	}
	events, err := g.Session.Start()
	if err != nil {
		return err
	}
	g.Started = true
	g.log.WithFields(logrus.Fields{"players": len(g.Players), "seed": g.Seed}).Info("game started")
	g.logAction(nil, "game_start", map[string]interface{}{"players": len(g.Players), "seed": g.Seed})
	if database.Enabled() {
		go func(id uuid.UUID, rules HouseRules, seed uint64) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.UpsertGame(ctx, id, "in_progress", rules, seed); err != nil {
				g.log.WithError(err).Error("failed to record game start")
			}
		}(g.ID, g.HouseRules, g.Seed)
	}

	g.dispatch(events)
	g.broadcastSyncStateToAll()
	g.afterTransition()
	return nil
}

// HandlePlayerAction converts a wire action into an engine command and applies it.
// A rejected action is reported privately to the sender and returned.
func (g *UnoGame) HandlePlayerAction(playerID uuid.UUID, action models.GameAction) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.getPlayerByID(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if g.GameOver {
		g.reject(p, engine.CommandKind(action.ActionType), engine.ErrSessionEnded)
		return engine.ErrSessionEnded
	}
	cmd, err := toCommand(p.Seat, action)
	if err != nil {
		g.reject(p, engine.CommandKind(action.ActionType), err)
		return err
	}
	return g.applyLocked(p, cmd)
}

func toCommand(seat int, action models.GameAction) (engine.Command, error) {
	cmd := engine.Command{Kind: engine.CommandKind(action.ActionType), Seat: seat}
	if action.Card != "" {
		card, err := engine.ParseCard(action.Card)
		if err != nil {
			return cmd, err
		}
		cmd.Card = card
	}
	color, err := engine.ParseColor(action.Color)
	if err != nil {
		return cmd, err
	}
	cmd.Color = color
	return cmd, nil
}

// applyLocked runs one command for p. Assumes lock is held.
func (g *UnoGame) applyLocked(p *models.Player, cmd engine.Command) error {
	events, err := g.Session.Apply(cmd)
	if errors.Is(err, engine.ErrDeckExhausted) {
		g.endStalemate(err)
		return err
	}
	if err != nil {
		g.reject(p, cmd.Kind, err)
		return err
	}
	g.commit(p, cmd, events)
	return nil
}

func (g *UnoGame) reject(p *models.Player, kind engine.CommandKind, err error) {
	g.log.WithFields(logrus.Fields{
		"player_id": p.ID,
		"seat":      p.Seat,
		"action":    kind,
	}).WithError(err).Warn("action rejected")
	g.fireEventToPlayer(p.ID, GameEvent{
		Type:    EventActionRejected,
		User:    &EventUser{ID: p.ID, Seat: p.Seat},
		Payload: map[string]interface{}{"action": string(kind), "reason": err.Error()},
	})
}

// commit logs, broadcasts and follows up an accepted command.
func (g *UnoGame) commit(p *models.Player, cmd engine.Command, events []engine.Event) {
	payload := map[string]interface{}{}
	if cmd.Card.Valid() {
		payload["card"] = cmd.Card.String()
	}
	if cmd.Color.Concrete() {
		payload["color"] = cmd.Color.String()
	}
	g.logAction(p, string(cmd.Kind), payload)
	g.dispatch(events)
	if cmd.Kind == engine.CmdCallUno && !p.IsBot() {
		// the turn has not moved, so its timer keeps running
		g.persistSnapshot()
		return
	}
	g.afterTransition()
}

// dispatch fans engine events out. Events carrying card faces go to each
// player separately, redacted for their seat.
func (g *UnoGame) dispatch(events []engine.Event) {
	for _, ev := range events {
		if len(ev.Cards) == 0 {
			g.fireEvent(g.wrap(ev))
			continue
		}
		for _, p := range g.Players {
			g.fireEventToPlayer(p.ID, g.wrap(ev.Redact(p.Seat)))
		}
	}
}

func (g *UnoGame) wrap(ev engine.Event) GameEvent {
	out := GameEvent{Type: GameEventType(ev.Type), Event: &ev}
	if ev.Seat >= 0 && ev.Seat < len(g.Players) {
		out.User = &EventUser{ID: g.Players[ev.Seat].ID, Seat: ev.Seat}
	}
	return out
}

// afterTransition moves the table on after any accepted command. Assumes lock is held.
func (g *UnoGame) afterTransition() {
	g.callUnoForBots()
	g.TurnID++
	if g.Session.Status() == engine.StatusGameOver {
		g.EndGame()
		return
	}
	g.persistSnapshot()

	switch g.Session.Status() {
	case engine.StatusRoundOver:
		g.scheduleNextRound()
		return
	}
	g.scheduleNextTurnTimer()
}

// callUnoForBots calls UNO for every bot holding a single card.
func (g *UnoGame) callUnoForBots() {
	for _, p := range g.Players {
		if !p.IsBot() || g.Session.HasCalledUno(p.Seat) || len(g.Session.Hand(p.Seat)) != 1 {
			continue
		}
		events, err := g.Session.CallUno(p.Seat)
		if err != nil {
			continue
		}
		g.logAction(p, string(engine.CmdCallUno), nil)
		g.dispatch(events)
	}
}

// actingSeat is the seat the table waits on, or -1.
func (g *UnoGame) actingSeat() int {
	t := g.Session.Table()
	switch g.Session.Status() {
	case engine.StatusInProgress:
		return t.Seat
	case engine.StatusAwaitingColorChoice:
		return t.ColorSeat
	}
	return -1
}

func (g *UnoGame) stopTimer() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
}

// onTimer returns a timer callback that runs f under the lock, unless the
// table moved on since it was scheduled.
func (g *UnoGame) onTimer(turnID int, f func()) func() {
	return func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.GameOver || g.TurnID != turnID {
			g.log.WithFields(logrus.Fields{"turn": turnID, "current": g.TurnID}).Debug("stale timer ignored")
			return
		}
		f()
	}
}

// scheduleNextTurnTimer starts the bot delay for bot seats or the turn timer
// for human seats. Assumes lock is held.
func (g *UnoGame) scheduleNextTurnTimer() {
	g.stopTimer()
	seat := g.actingSeat()
	if seat < 0 || seat >= len(g.Players) {
		return
	}
	p := g.Players[seat]
	if p.IsBot() {
		g.turnTimer = time.AfterFunc(g.BotDelay, g.onTimer(g.TurnID, func() { g.botAct(p) }))
		return
	}
	if g.TurnDuration <= 0 {
		return
	}
	g.turnTimer = time.AfterFunc(g.TurnDuration, g.onTimer(g.TurnID, func() { g.handleTimeout(p) }))
}

func (g *UnoGame) scheduleNextRound() {
	g.stopTimer()
	g.turnTimer = time.AfterFunc(g.RoundBreak, g.onTimer(g.TurnID, func() {
		events, err := g.Session.NextRound()
		if err != nil {
			g.log.WithError(err).Error("failed to start next round")
			return
		}
		g.log.WithField("round", g.Session.Round()).Info("round started")
		g.logAction(nil, "round_start", map[string]interface{}{"round": g.Session.Round()})
		g.dispatch(events)
		g.broadcastSyncStateToAll()
		g.afterTransition()
	}))
}

// botAct lets the seat's policy choose and apply an action. An illegal choice
// falls back to FirstLegal. Assumes lock is held.
func (g *UnoGame) botAct(p *models.Player) {
	view, err := g.Session.View(p.Seat)
	if err != nil {
		g.log.WithError(err).Error("bot view failed")
		return
	}
	policy := g.policies[p.Seat]
	if policy == nil {
		policy = engine.FirstLegal{}
	}
	cmd := policy.ChooseAction(view)
	cmd.Seat = p.Seat
	events, err := g.Session.Apply(cmd)
	if err != nil && !errors.Is(err, engine.ErrDeckExhausted) {
		g.log.WithFields(logrus.Fields{"seat": p.Seat, "bot": p.Bot, "action": cmd.Kind}).
			WithError(err).Warn("bot chose an illegal action, falling back to first legal")
		cmd = engine.FirstLegal{}.ChooseAction(view)
		cmd.Seat = p.Seat
		events, err = g.Session.Apply(cmd)
	}
	if err != nil {
		g.endStalemate(err)
		return
	}
	g.commit(p, cmd, events)
}

// handleTimeout forcibly acts for an idle human seat: a majority color while
// a color is owed, otherwise a draw. Assumes lock is held.
func (g *UnoGame) handleTimeout(p *models.Player) {
	g.log.WithFields(logrus.Fields{"player_id": p.ID, "seat": p.Seat}).Info("player timed out")
	g.fireEvent(GameEvent{Type: EventPlayerTimeout, User: &EventUser{ID: p.ID, Seat: p.Seat}})

	cmd := engine.Command{Kind: engine.CmdDrawCard, Seat: p.Seat}
	if g.Session.Status() == engine.StatusAwaitingColorChoice {
		cmd = engine.Command{Kind: engine.CmdChooseColor, Seat: p.Seat, Color: engine.MajorityColor(g.Session.Hand(p.Seat))}
	}
	events, err := g.Session.Apply(cmd)
	if err != nil {
		g.endStalemate(err)
		return
	}
	g.logAction(p, "player_timeout", map[string]interface{}{"forced": string(cmd.Kind)})
	g.dispatch(events)
	g.afterTransition()
}

// endStalemate ends a game that cannot continue, usually because every card
// is held in hand and nobody can draw.
func (g *UnoGame) endStalemate(cause error) {
	g.log.WithError(cause).Warn("game cannot continue, ending without a winner")
	g.EndGame()
}

// EndGame records results, notifies everyone and stops all timers. Assumes lock is held.
func (g *UnoGame) EndGame() {
	if g.GameOver {
		return
	}
	g.GameOver = true
	g.stopTimer()

	winnerSeat, hasWinner := g.Session.Winner()
	winnerID := uuid.Nil
	if hasWinner {
		winnerID = g.Players[winnerSeat].ID
	}

	scores := make(map[uuid.UUID]int, len(g.Players))
	results := make([]models.GameResult, 0, len(g.Players))
	standings := g.Session.Standings()
	for _, st := range standings {
		p := g.Players[st.Seat]
		scores[p.ID] = st.Score
		results = append(results, models.GameResult{
			GameID:   g.ID,
			PlayerID: p.ID,
			Seat:     st.Seat,
			Name:     p.Name,
			Score:    st.Score,
			Cards:    st.Cards,
			DidWin:   hasWinner && st.Seat == winnerSeat,
		})
	}

	g.log.WithFields(logrus.Fields{"winner": winnerID, "stalemate": !hasWinner}).Info("game ended")
	g.logAction(nil, "game_end", map[string]interface{}{"winner": winnerID.String(), "stalemate": !hasWinner})
	g.fireEvent(GameEvent{
		Type: EventGameEnd,
		Payload: map[string]interface{}{
			"winner":    winnerID.String(),
			"stalemate": !hasWinner,
			"results":   results,
		},
	})
	g.persistSnapshot()

	if database.Enabled() {
		go func(id uuid.UUID, rs []models.GameResult) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.RecordGameResults(ctx, id, rs); err != nil {
				g.log.WithError(err).Error("failed to record game results")
			}
		}(g.ID, results)
	}
	g.closePolicies()
	if g.OnGameEnd != nil {
		g.OnGameEnd(g.ID, winnerID, scores)
	}
}

// closePolicies releases bot policies that hold resources, such as a Lua state.
func (g *UnoGame) closePolicies() {
	for seat, policy := range g.policies {
		if c, ok := policy.(interface{ Close() }); ok {
			c.Close()
		}
		delete(g.policies, seat)
	}
}

// HandleDisconnect marks a player offline. Their seat keeps playing on the turn timer.
func (g *UnoGame) HandleDisconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.getPlayerByID(playerID)
	if p == nil || !p.Connected {
		return
	}
	p.Connected = false
	p.Conn = nil
	g.log.WithField("player_id", playerID).Info("player disconnected")
	g.logAction(p, "player_disconnect", nil)
	g.fireEvent(GameEvent{Type: EventPlayerDisconnected, User: &EventUser{ID: p.ID, Seat: p.Seat}})
}

// HandleReconnect marks a player online again and sends them the current state.
func (g *UnoGame) HandleReconnect(playerID uuid.UUID, conn *websocket.Conn) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.getPlayerByID(playerID)
	if p == nil {
		return
	}
	p.Conn = conn
	p.Connected = true
	g.log.WithField("player_id", playerID).Info("player reconnected")
	g.logAction(p, "player_reconnect", nil)
	g.fireEvent(GameEvent{Type: EventPlayerReconnected, User: &EventUser{ID: p.ID, Seat: p.Seat}})
	g.sendSyncState(playerID)
}

// Stop cancels pending timers without ending the game, e.g. on shutdown.
func (g *UnoGame) Stop() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.stopTimer()
}

func (g *UnoGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

func (g *UnoGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn != nil {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

func (g *UnoGame) getPlayerByID(playerID uuid.UUID) *models.Player {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// PlayerByID returns the seated player with the given id.
func (g *UnoGame) PlayerByID(playerID uuid.UUID) (*models.Player, bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.getPlayerByID(playerID)
	return p, p != nil
}

// logAction publishes one action record to the historian queue.
// actor may be nil for table-level actions.
func (g *UnoGame) logAction(actor *models.Player, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		ActorSeat:     -1,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	if actor != nil {
		record.ActorUserID = actor.ID
		record.ActorSeat = actor.Seat
	}
	if cache.Rdb == nil {
		return
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			g.log.WithError(err).WithField("action_index", rec.ActionIndex).Error("failed to publish game action")
		}
	}(record)
}
