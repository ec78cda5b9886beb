// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for game action logs.
var DefaultQueueName = "uno_actions"

// ErrSnapshotNotFound is returned by LoadSnapshot when no snapshot is cached.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// GameActionRecord holds the minimal info needed by the historian microservice.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"game_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActorSeat     int                    `json:"actor_seat"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// QueueName is the list the server pushes to and the historian pops from.
func QueueName() string {
	return getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)
}

// PublishGameAction serializes the given record to JSON, then pushes it to the Redis queue.
// This does not block the calling logic (other than a quick network send).
func PublishGameAction(ctx context.Context, record GameActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}

	queueName := QueueName()
	if err := Rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

func snapshotKey(gameID uuid.UUID) string {
	return "uno:snapshot:" + gameID.String()
}

func snapshotIndexKey(gameID uuid.UUID) string {
	return "uno:snapshot:" + gameID.String() + ":index"
}

// SnapshotTTL is how long cached snapshots live, from SNAPSHOT_TTL_SEC (default one day).
func SnapshotTTL() time.Duration {
	return time.Duration(getEnvInt("SNAPSHOT_TTL_SEC", 86400)) * time.Second
}

// saveSnapshotScript sets KEYS[1] to ARGV[1] only when ARGV[2] is newer than
// the index in KEYS[2]. ARGV[3] is the TTL in seconds, 0 for none.
var saveSnapshotScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[2]) or '-1')
local idx = tonumber(ARGV[2])
if idx <= cur then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'EX', ttl)
	redis.call('SET', KEYS[2], idx, 'EX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SET', KEYS[2], idx)
end
return 1
`)

// SaveSnapshot caches a serialized state of a game taken at action index.
// It reports false, and leaves the cache alone, when a snapshot with the
// same or a later index is already cached.
func SaveSnapshot(ctx context.Context, gameID uuid.UUID, index int, blob []byte) (bool, error) {
	ttl := int64(SnapshotTTL() / time.Second)
	keys := []string{snapshotKey(gameID), snapshotIndexKey(gameID)}
	stored, err := saveSnapshotScript.Run(ctx, Rdb, keys, blob, index, ttl).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cache snapshot for game %s: %w", gameID, err)
	}
	return stored == 1, nil
}

// LoadSnapshot returns the cached snapshot of a game, or ErrSnapshotNotFound.
func LoadSnapshot(ctx context.Context, gameID uuid.UUID) ([]byte, error) {
	blob, err := Rdb.Get(ctx, snapshotKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for game %s: %w", gameID, err)
	}
	return blob, nil
}

// DeleteSnapshot drops the cached snapshot of a game.
func DeleteSnapshot(ctx context.Context, gameID uuid.UUID) error {
	return Rdb.Del(ctx, snapshotKey(gameID), snapshotIndexKey(gameID)).Err()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
