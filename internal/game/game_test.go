// internal/game/game_test.go
package game

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent
	playerEvents map[uuid.UUID][]GameEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) public() []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]GameEvent(nil), mb.allEvents...)
}

func (mb *mockBroadcaster) private(playerID uuid.UUID) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]GameEvent(nil), mb.playerEvents[playerID]...)
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	events := mb.private(playerID)
	if len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

func (mb *mockBroadcaster) hasPublic(typ GameEventType) bool {
	for _, ev := range mb.public() {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func findEvent(events []GameEvent, typ GameEventType) *GameEvent {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

// setupTestGame seats humans then bots, lets configure adjust the game, and starts it.
func setupTestGame(t *testing.T, humans int, bots []string, configure func(g *UnoGame)) (*UnoGame, []*models.Player, *mockBroadcaster) {
	t.Helper()
	g, err := NewUnoGame(DefaultHouseRules(), 42, nil)
	require.NoError(t, err)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	g.TurnDuration = 0
	g.BotDelay = 0
	g.RoundBreak = 0
	if configure != nil {
		configure(g)
	}

	players := make([]*models.Player, 0, humans+len(bots))
	for i := 0; i < humans; i++ {
		p := &models.Player{ID: uuid.New(), Name: "human", Connected: true}
		require.NoError(t, g.AddPlayer(p))
		players = append(players, p)
	}
	for _, kind := range bots {
		p, err := g.AddBot("bot", kind)
		require.NoError(t, err)
		players = append(players, p)
	}
	require.NoError(t, g.Start())
	t.Cleanup(g.Stop)
	return g, players, mb
}

func onTurn(g *UnoGame) int {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.actingSeat()
}

func TestStartDealsPrivately(t *testing.T) {
	g, err := NewUnoGame(DefaultHouseRules(), 7, nil)
	require.NoError(t, err)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	g.TurnDuration = 0

	a := &models.Player{ID: uuid.New(), Connected: true}
	b := &models.Player{ID: uuid.New(), Connected: true}
	require.NoError(t, g.AddPlayer(a))
	require.NoError(t, g.AddPlayer(b))
	require.NoError(t, g.Start())
	assert.ErrorIs(t, g.Start(), engine.ErrAlreadyStarted)

	for _, p := range []*models.Player{a, b} {
		dealtOwn, dealtOther := 0, 0
		for _, ev := range mb.private(p.ID) {
			if ev.Type != GameEventType(engine.EventCardsDealt) {
				continue
			}
			require.NotNil(t, ev.Event)
			if ev.Event.Seat == p.Seat {
				dealtOwn++
				assert.Len(t, ev.Event.Cards, 7)
			} else {
				dealtOther++
				assert.Empty(t, ev.Event.Cards)
				assert.Equal(t, 7, ev.Event.Count)
			}
		}
		assert.Equal(t, 1, dealtOwn)
		assert.Equal(t, 1, dealtOther)

		st := findEvent(mb.private(p.ID), EventPrivateSyncState)
		require.NotNil(t, st)
		assert.Equal(t, p.Seat, st.State.Seat)
		assert.Len(t, st.State.Hand, 7)
	}
	assert.True(t, mb.hasPublic(GameEventType(engine.EventOpeningCard)))
	assert.Nil(t, findEvent(mb.public(), GameEventType(engine.EventCardsDealt)), "dealt cards never go public")

	late := &models.Player{ID: uuid.New()}
	assert.ErrorIs(t, g.AddPlayer(late), engine.ErrAlreadyStarted)
}

func TestRejectedActionIsPrivate(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil, nil)
	mb.clear()

	idle := players[1-onTurn(g)]
	err := g.HandlePlayerAction(idle.ID, models.GameAction{ActionType: "draw_card"})
	assert.ErrorIs(t, err, engine.ErrNotYourTurn)
	assert.Empty(t, mb.public())

	last := mb.getLastPlayerEvent(idle.ID)
	require.NotNil(t, last)
	assert.Equal(t, EventActionRejected, last.Type)
	assert.Equal(t, "draw_card", last.Payload["action"])
	assert.NotEmpty(t, last.Payload["reason"])

	active := players[onTurn(g)]
	err = g.HandlePlayerAction(active.ID, models.GameAction{ActionType: "play_card", Card: "purple_5"})
	assert.Error(t, err)
	assert.Equal(t, EventActionRejected, mb.getLastPlayerEvent(active.ID).Type)

	err = g.HandlePlayerAction(active.ID, models.GameAction{ActionType: "dance"})
	assert.ErrorIs(t, err, engine.ErrUnknownCommand)

	assert.ErrorIs(t, g.HandlePlayerAction(uuid.New(), models.GameAction{ActionType: "draw_card"}), ErrUnknownPlayer)
}

func TestDrawAdvancesTurn(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil, nil)
	mb.clear()

	seat := onTurn(g)
	active, other := players[seat], players[1-seat]
	require.NoError(t, g.HandlePlayerAction(active.ID, models.GameAction{ActionType: "draw_card"}))

	assert.Equal(t, other.Seat, onTurn(g))
	assert.Len(t, g.Session.Hand(active.Seat), 8)

	own := findEvent(mb.private(active.ID), GameEventType(engine.EventCardDrawn))
	require.NotNil(t, own)
	assert.Len(t, own.Event.Cards, 1)
	assert.Equal(t, active.ID, own.User.ID)

	theirs := findEvent(mb.private(other.ID), GameEventType(engine.EventCardDrawn))
	require.NotNil(t, theirs)
	assert.Empty(t, theirs.Event.Cards)
	assert.Equal(t, 1, theirs.Event.Count)

	assert.True(t, mb.hasPublic(GameEventType(engine.EventTurnAdvanced)))
}

func TestPlayCardFromWire(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil, nil)

	// Draw until whoever is on turn holds a legal card.
	for i := 0; i < 40; i++ {
		seat := onTurn(g)
		g.Mu.Lock()
		legal := engine.LegalPlays(g.Session.Hand(seat), g.Session.Table(), g.Session.Rules())
		g.Mu.Unlock()
		if len(legal) == 0 {
			require.NoError(t, g.HandlePlayerAction(players[seat].ID, models.GameAction{ActionType: "draw_card"}))
			continue
		}

		mb.clear()
		card := legal[0]
		action := models.GameAction{ActionType: "play_card", Card: card.String()}
		if card.IsWild() {
			action.Color = "green"
		}
		require.NoError(t, g.HandlePlayerAction(players[seat].ID, action))

		played := findEvent(mb.public(), GameEventType(engine.EventCardPlayed))
		require.NotNil(t, played)
		assert.Equal(t, card, *played.Event.Card)
		assert.Equal(t, players[seat].ID, played.User.ID)
		if card.IsWild() {
			assert.Equal(t, engine.ColorGreen, g.Session.Table().Color)
		}
		return
	}
	t.Fatal("no legal card came up")
}

func TestBotsPlayToCompletion(t *testing.T) {
	ended := make(chan uuid.UUID, 1)
	g, _, mb := setupTestGame(t, 0, []string{"first_legal", "first_legal", "first_legal"}, func(g *UnoGame) {
		g.OnGameEnd = func(_ uuid.UUID, winner uuid.UUID, _ map[uuid.UUID]int) {
			ended <- winner
		}
	})

	select {
	case winner := <-ended:
		g.Mu.Lock()
		defer g.Mu.Unlock()
		assert.True(t, g.GameOver)
		if seat, ok := g.Session.Winner(); ok {
			assert.Equal(t, g.Players[seat].ID, winner)
			assert.Empty(t, g.Session.Hand(seat))
		} else {
			assert.Equal(t, uuid.Nil, winner)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("bots did not finish the game")
	}

	end := findEvent(mb.public(), EventGameEnd)
	require.NotNil(t, end)
	assert.Len(t, end.Payload["results"], 3)
	assert.Len(t, g.Session.Cards(), engine.DeckSize)
}

func TestBotsPlayMultipleRounds(t *testing.T) {
	g, _, mb := setupTestGame(t, 0, []string{"first_legal", "first_legal"}, func(g *UnoGame) {
		g.HouseRules.TargetScore = 150
		s, err := engine.NewSession(g.HouseRules.HouseRules, g.Seed)
		require.NoError(t, err)
		g.Session = s
	})

	require.Eventually(t, func() bool {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		return g.GameOver
	}, 10*time.Second, 10*time.Millisecond)

	g.Mu.Lock()
	defer g.Mu.Unlock()
	if _, ok := g.Session.Winner(); ok {
		assert.GreaterOrEqual(t, slicesMax(g.Session.Scores()), 150)
		assert.True(t, mb.hasPublic(GameEventType(engine.EventRoundWon)))
	}
}

func slicesMax(xs []int) int {
	best := 0
	for _, x := range xs {
		best = max(best, x)
	}
	return best
}

func TestUnknownBotPolicy(t *testing.T) {
	g, err := NewUnoGame(DefaultHouseRules(), 1, nil)
	require.NoError(t, err)
	_, err = g.AddBot("x", "mystery")
	assert.Error(t, err)

	g.NewPolicy = func(kind string) (engine.Policy, error) {
		return engine.PolicyFunc(func(v engine.PlayerView) engine.Command {
			return engine.Command{Kind: engine.CmdDrawCard, Seat: v.Seat}
		}), nil
	}
	p, err := g.AddBot("x", "mystery")
	require.NoError(t, err)
	assert.True(t, p.IsBot())
	assert.Equal(t, 0, p.Seat)
}

func TestTurnTimeoutForcesDraw(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil, func(g *UnoGame) {
		g.TurnDuration = 50 * time.Millisecond
	})

	require.Eventually(t, func() bool { return mb.hasPublic(EventPlayerTimeout) }, 3*time.Second, 5*time.Millisecond)
	g.Stop()

	g.Mu.Lock()
	defer g.Mu.Unlock()
	total := len(g.Session.Hand(players[0].Seat)) + len(g.Session.Hand(players[1].Seat))
	assert.GreaterOrEqual(t, total, 15, "a timed-out seat draws a card")
}

func TestDisconnectAndReconnect(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil, nil)
	a := players[0]

	g.HandleDisconnect(a.ID)
	assert.False(t, a.Connected)
	assert.True(t, mb.hasPublic(EventPlayerDisconnected))

	mb.clear()
	g.HandleReconnect(a.ID, nil)
	assert.True(t, a.Connected)
	st := findEvent(mb.private(a.ID), EventPrivateSyncState)
	require.NotNil(t, st)
	assert.Len(t, st.State.Hand, 7)
}

func TestObfuscatedStateHidesOtherHands(t *testing.T) {
	g, players, _ := setupTestGame(t, 3, nil, nil)

	spectator := g.GetCurrentObfuscatedGameState(uuid.New())
	assert.Equal(t, -1, spectator.Seat)
	assert.Nil(t, spectator.Hand)
	require.Len(t, spectator.Players, 3)
	for _, ps := range spectator.Players {
		assert.Equal(t, 7, ps.HandSize)
	}

	mine := g.GetCurrentObfuscatedGameState(players[1].ID)
	assert.Equal(t, 1, mine.Seat)
	assert.Equal(t, g.Session.Hand(1), mine.Hand)
	assert.Equal(t, players[onTurn(g)].ID, mine.CurrentPlayerID)
	assert.True(t, mine.Started)

	raw, err := json.Marshal(mine)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"in_progress"`)
}

func TestSnapshotRestore(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, []string{"first_legal"}, nil)
	seat := onTurn(g)
	if seat < 2 {
		require.NoError(t, g.HandlePlayerAction(players[seat].ID, models.GameAction{ActionType: "draw_card"}))
	}
	g.Stop()

	blob, err := g.Snapshot()
	require.NoError(t, err)

	restored, err := RestoreUnoGame(blob, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, g.ID, restored.ID)
	assert.Equal(t, g.Session.Cards(), restored.Session.Cards())
	assert.Equal(t, g.Session.Table(), restored.Session.Table())
	require.Len(t, restored.Players, 3)
	for i, p := range restored.Players {
		assert.Equal(t, players[i].ID, p.ID)
		assert.Equal(t, p.IsBot(), p.Connected, "humans come back disconnected")
	}
	assert.NotNil(t, restored.policies[2])

	_, err = RestoreUnoGame([]byte(`{"version":9}`), nil, nil)
	assert.ErrorIs(t, err, engine.ErrCorruptSnapshot)
}

func TestGameStoreList(t *testing.T) {
	store := NewGameStore()
	first, err := NewUnoGame(DefaultHouseRules(), 1, nil)
	require.NoError(t, err)
	second, err := NewUnoGame(DefaultHouseRules(), 2, nil)
	require.NoError(t, err)
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	store.AddGame(second)
	store.AddGame(first)
	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	got, ok := store.GetGame(second.ID)
	require.True(t, ok)
	assert.Same(t, second, got)

	store.DeleteGame(second.ID)
	_, ok = store.GetGame(second.ID)
	assert.False(t, ok)
}

func TestCallUnoKeepsTurnTimer(t *testing.T) {
	rules := DefaultHouseRules()
	rules.HandSize = 1
	g, players, mb := setupTestGame(t, 2, nil, func(g *UnoGame) {
		s, err := engine.NewSession(rules.HouseRules, 42)
		require.NoError(t, err)
		g.Session = s
		g.HouseRules = rules
		g.TurnDuration = 300 * time.Millisecond
	})
	idle := players[onTurn(g)]
	caller := players[1-idle.Seat]
	callUno := models.GameAction{ActionType: string(engine.CmdCallUno)}

	g.Mu.Lock()
	turn := g.TurnID
	g.Mu.Unlock()
	require.NoError(t, g.HandlePlayerAction(caller.ID, callUno))
	assert.ErrorIs(t, g.HandlePlayerAction(caller.ID, callUno), engine.ErrUnoNotAllowed)
	g.Mu.Lock()
	assert.Equal(t, turn, g.TurnID, "calling uno does not start a new turn")
	g.Mu.Unlock()

	// the idle seat still times out while the other keeps calling
	deadline := time.Now().Add(2 * time.Second)
	for !mb.hasPublic(EventPlayerTimeout) && time.Now().Before(deadline) {
		_ = g.HandlePlayerAction(caller.ID, callUno)
		time.Sleep(20 * time.Millisecond)
	}
	ev := findEvent(mb.public(), EventPlayerTimeout)
	require.NotNil(t, ev)
	assert.Equal(t, idle.ID, ev.User.ID)
}

// snapshotRecorder stores snapshot writes in memory.
type snapshotRecorder struct {
	mu     sync.Mutex
	writes []snapshotWrite
}

func (r *snapshotRecorder) store(_ context.Context, w snapshotWrite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, w)
	return nil
}

func (r *snapshotRecorder) all() []snapshotWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]snapshotWrite(nil), r.writes...)
}

func waitForSnapshotWriter(t *testing.T, g *UnoGame) {
	t.Helper()
	require.Eventually(t, func() bool {
		g.snapMu.Lock()
		defer g.snapMu.Unlock()
		return !g.snapWriting && g.snapPending == nil
	}, 3*time.Second, 5*time.Millisecond)
}

func TestSnapshotWritesKeepOrder(t *testing.T) {
	g, err := NewUnoGame(DefaultHouseRules(), 7, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var stored []int
	entered := make(chan struct{})
	release := make(chan struct{})
	g.storeSnapshot = func(_ context.Context, w snapshotWrite) error {
		mu.Lock()
		first := len(stored) == 0
		stored = append(stored, w.Index)
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
		return nil
	}

	g.Mu.Lock()
	g.actionIndex = 1
	g.persistSnapshot()
	g.Mu.Unlock()
	<-entered

	// newer versions queued behind a slow write replace each other
	g.Mu.Lock()
	for i := 2; i <= 5; i++ {
		g.actionIndex = i
		g.persistSnapshot()
	}
	g.Mu.Unlock()
	close(release)

	waitForSnapshotWriter(t, g)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 5}, stored)
}

func TestFinishedGameIsStoredLast(t *testing.T) {
	rec := &snapshotRecorder{}
	ended := make(chan struct{})
	g, _, _ := setupTestGame(t, 0, []string{"first_legal", "first_legal"}, func(g *UnoGame) {
		g.storeSnapshot = rec.store
		g.OnGameEnd = func(uuid.UUID, uuid.UUID, map[uuid.UUID]int) { close(ended) }
	})
	select {
	case <-ended:
	case <-time.After(10 * time.Second):
		t.Fatal("bots did not finish the game")
	}
	waitForSnapshotWriter(t, g)

	writes := rec.all()
	require.NotEmpty(t, writes)
	for i := 1; i < len(writes); i++ {
		assert.Less(t, writes[i-1].Index, writes[i].Index)
	}
	last := writes[len(writes)-1]
	assert.Equal(t, "completed", last.Status)
	for _, w := range writes[:len(writes)-1] {
		assert.Equal(t, "in_progress", w.Status)
	}

	var snap gameSnapshot
	require.NoError(t, json.Unmarshal(last.Blob, &snap))
	assert.True(t, snap.GameOver)
	restored, err := RestoreUnoGame(last.Blob, nil, nil)
	require.NoError(t, err)
	assert.True(t, restored.GameOver)
}

// closingPolicy plays like FirstLegal and counts Close calls.
type closingPolicy struct {
	engine.FirstLegal
	closed *atomic.Int32
}

func (p closingPolicy) Close() { p.closed.Add(1) }

func TestEndGameClosesBotPolicies(t *testing.T) {
	var closed atomic.Int32
	ended := make(chan struct{})
	g, _, _ := setupTestGame(t, 0, []string{"closer", "closer"}, func(g *UnoGame) {
		g.NewPolicy = func(string) (engine.Policy, error) {
			return closingPolicy{closed: &closed}, nil
		}
		g.OnGameEnd = func(uuid.UUID, uuid.UUID, map[uuid.UUID]int) { close(ended) }
	})
	select {
	case <-ended:
	case <-time.After(10 * time.Second):
		t.Fatal("bots did not finish the game")
	}
	assert.Equal(t, int32(2), closed.Load())

	g.Mu.Lock()
	defer g.Mu.Unlock()
	assert.Empty(t, g.policies)
}
