// internal/game/snapshot.go
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

const snapshotVersion = 1

// gameSnapshot is a table as stored in Redis and Postgres: the engine blob
// plus the seat identities.
type gameSnapshot struct {
	Version     int              `json:"version"`
	ID          uuid.UUID        `json:"id"`
	Rules       HouseRules       `json:"rules"`
	Seed        uint64           `json:"seed"`
	CreatedAt   time.Time        `json:"createdAt"`
	Players     []*models.Player `json:"players"`
	ActionIndex int              `json:"actionIndex"`
	Started     bool             `json:"started"`
	GameOver    bool             `json:"gameOver"`
	Engine      json.RawMessage  `json:"engine"`
}

// Snapshot serializes the whole table.
func (g *UnoGame) Snapshot() ([]byte, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.snapshotLocked()
}

func (g *UnoGame) snapshotLocked() ([]byte, error) {
	blob, err := g.Session.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(gameSnapshot{
		Version:     snapshotVersion,
		ID:          g.ID,
		Rules:       g.HouseRules,
		Seed:        g.Seed,
		CreatedAt:   g.CreatedAt,
		Players:     g.Players,
		ActionIndex: g.actionIndex,
		Started:     g.Started,
		GameOver:    g.GameOver,
		Engine:      blob,
	})
}

// RestoreUnoGame rebuilds a table from Snapshot output. Human seats come back
// disconnected; bot seats get fresh policies from newPolicy. No timers run
// until Resume is called.
func RestoreUnoGame(blob []byte, newPolicy PolicyFactory, logger *logrus.Logger) (*UnoGame, error) {
	var snap gameSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrCorruptSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", engine.ErrCorruptSnapshot, snap.Version)
	}
	session, err := engine.Restore(snap.Engine)
	if err != nil {
		return nil, err
	}
	if session.Players() != len(snap.Players) {
		return nil, fmt.Errorf("%w: %d seats for %d players", engine.ErrCorruptSnapshot, session.Players(), len(snap.Players))
	}

	g, err := NewUnoGame(snap.Rules, snap.Seed, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrCorruptSnapshot, err)
	}
	g.ID = snap.ID
	g.log = g.log.WithField("game_id", snap.ID)
	g.CreatedAt = snap.CreatedAt
	g.Session = session
	g.NewPolicy = newPolicy
	g.actionIndex = snap.ActionIndex
	g.Started = snap.Started
	g.GameOver = snap.GameOver

	for i, p := range snap.Players {
		if p == nil || p.Seat != i {
			return nil, fmt.Errorf("%w: player %d out of seat order", engine.ErrCorruptSnapshot, i)
		}
		p.Connected = p.IsBot()
		if p.IsBot() {
			policy, err := g.resolvePolicy(p.Bot)
			if err != nil {
				return nil, err
			}
			g.policies[i] = policy
		}
	}
	g.Players = snap.Players
	return g, nil
}

// Resume restarts timers for a restored table.
func (g *UnoGame) Resume() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.Started || g.GameOver {
		return
	}
	g.TurnID++
	switch g.Session.Status() {
	case engine.StatusRoundOver:
		g.scheduleNextRound()
	case engine.StatusGameOver:
		g.EndGame()
	default:
		g.scheduleNextTurnTimer()
	}
}

// snapshotWrite is one stored version of a table. Index is the action index
// when it was taken and grows with every version.
type snapshotWrite struct {
	GameID uuid.UUID
	Index  int
	Status string
	Blob   []byte
}

// persistSnapshot queues the table for the Redis cache and Postgres when they
// are connected. Assumes lock is held; the writes happen in the background.
func (g *UnoGame) persistSnapshot() {
	store := g.storeSnapshot
	if store == nil {
		if cache.Rdb == nil && !database.Enabled() {
			return
		}
		store = storeSnapshot
	}
	blob, err := g.snapshotLocked()
	if err != nil {
		g.log.WithError(err).Error("failed to snapshot game")
		return
	}
	status := "in_progress"
	if g.GameOver {
		status = "completed"
	}
	w := &snapshotWrite{GameID: g.ID, Index: g.actionIndex, Status: status, Blob: blob}

	g.snapMu.Lock()
	defer g.snapMu.Unlock()
	g.snapPending = w
	if !g.snapWriting {
		g.snapWriting = true
		go g.writeSnapshots(store)
	}
}

// writeSnapshots stores pending snapshots one at a time, oldest first.
// A version replaced while a write is in flight is never stored.
func (g *UnoGame) writeSnapshots(store func(ctx context.Context, w snapshotWrite) error) {
	for {
		g.snapMu.Lock()
		w := g.snapPending
		g.snapPending = nil
		if w == nil {
			g.snapWriting = false
			g.snapMu.Unlock()
			return
		}
		g.snapMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := store(ctx, *w); err != nil {
			g.log.WithError(err).WithField("index", w.Index).Warn("failed to persist snapshot")
		}
		cancel()
	}
}

// storeSnapshot writes w to every connected backend. Both refuse versions
// older than the one they hold.
func storeSnapshot(ctx context.Context, w snapshotWrite) error {
	var errs []error
	if cache.Rdb != nil {
		if _, err := cache.SaveSnapshot(ctx, w.GameID, w.Index, w.Blob); err != nil {
			errs = append(errs, err)
		}
	}
	if database.Enabled() {
		if err := database.StoreSnapshot(ctx, w.GameID, w.Status, w.Index, w.Blob); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadSnapshot finds the latest stored snapshot of a game: Redis first, then Postgres.
func LoadSnapshot(ctx context.Context, gameID uuid.UUID) ([]byte, error) {
	if cache.Rdb != nil {
		blob, err := cache.LoadSnapshot(ctx, gameID)
		if err == nil {
			return blob, nil
		}
	}
	if database.Enabled() {
		return database.LoadSnapshot(ctx, gameID)
	}
	return nil, database.ErrGameNotFound
}
