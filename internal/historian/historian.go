// internal/historian/historian.go is an asynchronous historian service that pops game action records
// from a Redis queue and persists them to PostgreSQL in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Source yields raw queued records. Pop blocks up to timeout and returns
// ok=false when nothing arrived.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (payload []byte, ok bool, err error)
}

// Sink persists records.
type Sink interface {
	InsertActions(ctx context.Context, records []cache.GameActionRecord) error
	MarkAbandoned(ctx context.Context, gameID uuid.UUID) error
}

// RedisSource pops from a Redis list with BLPOP.
type RedisSource struct {
	Client *redis.Client
	Queue  string
}

func (s RedisSource) Pop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	res, err := s.Client.BLPop(ctx, timeout, s.Queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, false, nil
	}
	return []byte(res[1]), true, nil
}

// PostgresSink writes through the database package pool.
type PostgresSink struct{}

func (PostgresSink) InsertActions(ctx context.Context, records []cache.GameActionRecord) error {
	return database.InsertGameActions(ctx, records)
}

func (PostgresSink) MarkAbandoned(ctx context.Context, gameID uuid.UUID) error {
	return database.MarkGameAbandoned(ctx, gameID)
}

// Config holds the batching knobs.
type Config struct {
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration // duration until a game is marked "abandoned"
	SweepEvery time.Duration
	PopTimeout time.Duration
}

// DefaultConfig mirrors the HISTORIAN_* environment defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:  20,
		FlushDelay: 500 * time.Millisecond,
		Inactivity: 10 * time.Minute,
		SweepEvery: time.Minute,
		PopTimeout: 3 * time.Second,
	}
}

// Service captures game actions and marks games abandoned once they go quiet.
type Service struct {
	source Source
	sink   Sink
	cfg    Config
	log    *logrus.Entry

	lastActivity sync.Map // map[uuid.UUID]time.Time

	batchMu sync.Mutex
	batch   []cache.GameActionRecord
}

// New builds a Service. Run starts it.
func New(source Source, sink Sink, cfg Config, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		source: source,
		sink:   sink,
		cfg:    cfg,
		log:    logger.WithField("service", "historian"),
		batch:  make([]cache.GameActionRecord, 0, cfg.BatchSize),
	}
}

// Run reads the queue and sweeps for inactive games until ctx is done, then
// flushes what is left.
func (hs *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); hs.readLoop(ctx) }()
	go func() { defer wg.Done(); hs.flushLoop(ctx) }()
	go func() { defer wg.Done(); hs.inactivityLoop(ctx) }()

	hs.log.Info("historian started")
	wg.Wait()
	hs.flush(context.Background())
	hs.log.Info("historian stopped")
}

func (hs *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		payload, ok, err := hs.source.Pop(ctx, hs.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			hs.log.WithError(err).Error("queue pop failed")
			time.Sleep(hs.cfg.FlushDelay)
			continue
		}
		if !ok {
			continue
		}
		hs.accept(ctx, payload)
	}
}

func (hs *Service) accept(ctx context.Context, payload []byte) {
	var record cache.GameActionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		hs.log.WithError(err).Warn("invalid action record")
		return
	}
	hs.lastActivity.Store(record.GameID, time.Now())
	if record.ActionType == "game_end" {
		hs.lastActivity.Delete(record.GameID)
	}

	hs.batchMu.Lock()
	hs.batch = append(hs.batch, record)
	full := len(hs.batch) >= hs.cfg.BatchSize
	hs.batchMu.Unlock()
	if full {
		hs.flush(ctx)
	}
}

func (hs *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(hs.cfg.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.flush(ctx)
		}
	}
}

// flush writes the current batch in one transaction. A failed batch is
// logged and dropped.
func (hs *Service) flush(ctx context.Context) {
	hs.batchMu.Lock()
	if len(hs.batch) == 0 {
		hs.batchMu.Unlock()
		return
	}
	batchCopy := make([]cache.GameActionRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]
	hs.batchMu.Unlock()

	if err := hs.sink.InsertActions(ctx, batchCopy); err != nil {
		hs.log.WithError(err).WithField("count", len(batchCopy)).Error("failed to flush actions")
		return
	}
	hs.log.WithField("count", len(batchCopy)).Debug("flushed actions")
}

func (hs *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(hs.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			hs.sweep(ctx, now)
		}
	}
}

// sweep marks every game quiet for longer than the inactivity window abandoned.
func (hs *Service) sweep(ctx context.Context, now time.Time) {
	hs.lastActivity.Range(func(key, val interface{}) bool {
		gameID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= hs.cfg.Inactivity {
			return true
		}
		if err := hs.sink.MarkAbandoned(ctx, gameID); err != nil {
			hs.log.WithError(err).WithField("game_id", gameID).Error("failed to mark game abandoned")
			return true
		}
		hs.log.WithField("game_id", gameID).Info("marked game abandoned due to inactivity")
		hs.lastActivity.Delete(gameID)
		return true
	})
}
