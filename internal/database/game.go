// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/models"
)

// ErrGameNotFound is returned when a game row or its snapshot does not exist.
var ErrGameNotFound = errors.New("game not found")

// UpsertGame creates the games row, or refreshes its rules. The status of an
// existing row is left to the snapshot writes.
func UpsertGame(ctx context.Context, gameID uuid.UUID, status string, rules interface{}, seed uint64) error {
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal house rules: %w", err)
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, status, house_rules, seed, start_time)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (id)
			DO UPDATE SET house_rules = EXCLUDED.house_rules, seed = EXCLUDED.seed,
				start_time = COALESCE(games.start_time, EXCLUDED.start_time)
		`
		_, e := tx.Exec(ctx, q, gameID, status, rulesJSON, int64(seed))
		return e
	})
}

// StoreSnapshot writes a serialized game state taken at action index, unless
// the row already holds one with the same or a later index.
func StoreSnapshot(ctx context.Context, gameID uuid.UUID, status string, index int, blob []byte) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, status, snapshot, snapshot_index)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id)
			DO UPDATE SET status = EXCLUDED.status, snapshot = EXCLUDED.snapshot,
				snapshot_index = EXCLUDED.snapshot_index
			WHERE games.snapshot_index < EXCLUDED.snapshot_index
		`
		_, e := tx.Exec(ctx, q, gameID, status, blob, index)
		return e
	})
	if err != nil {
		return fmt.Errorf("storing snapshot for game %s: %w", gameID, err)
	}
	return nil
}

// LoadSnapshot reads the stored snapshot of a game.
func LoadSnapshot(ctx context.Context, gameID uuid.UUID) ([]byte, error) {
	var blob []byte
	err := DB.QueryRow(ctx, `SELECT snapshot FROM games WHERE id = $1`, gameID).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && blob == nil) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for game %s: %w", gameID, err)
	}
	return blob, nil
}

// RecordGameResults persists the final outcome of a game and marks it completed.
func RecordGameResults(ctx context.Context, gameID uuid.UUID, results []models.GameResult) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status, end_time)
			VALUES ($1, 'completed', NOW())
			ON CONFLICT (id) DO UPDATE SET status = 'completed', end_time = NOW()
		`
		if _, e := tx.Exec(ctx, upsertGame, gameID); e != nil {
			return e
		}

		for _, r := range results {
			q := `
				INSERT INTO game_results (game_id, player_id, seat, name, score, cards_left, did_win)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET score = $5, cards_left = $6, did_win = $7
			`
			if _, e := tx.Exec(ctx, q, gameID, r.PlayerID, r.Seat, r.Name, r.Score, r.Cards, r.DidWin); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}

// InsertGameActionTx inserts one logged action, creating the game row if the historian sees it first.
// A game_end action also finalizes the row.
func InsertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertGameQ := `
		INSERT INTO games (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID); err != nil {
		return err
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (
			game_id, action_index, actor_id, actor_seat, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorUserID, rec.ActorSeat, rec.ActionType, jsonPayload,
		time.UnixMilli(rec.Timestamp),
	)
	if err != nil {
		return err
	}

	if rec.ActionType == "game_end" {
		finalizeQ := `
			UPDATE games
			SET status = 'completed', end_time = NOW()
			WHERE id = $1 AND status <> 'completed'
		`
		if _, err = tx.Exec(ctx, finalizeQ, rec.GameID); err != nil {
			return err
		}
	}
	return nil
}

// InsertGameActions writes a batch of actions in one transaction.
func InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := InsertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of game %s: %w", rec.ActionIndex, rec.GameID, err)
			}
		}
		return nil
	})
}

// MarkGameAbandoned flags an in-progress game as abandoned.
func MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		_, e := tx.Exec(ctx, q, gameID)
		return e
	})
}
