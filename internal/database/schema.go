// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'lobby',
		house_rules JSONB,
		seed BIGINT NOT NULL DEFAULT 0,
		snapshot JSONB,
		snapshot_index INT NOT NULL DEFAULT -1,
		start_time TIMESTAMPTZ,
		end_time TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE games ADD COLUMN IF NOT EXISTS snapshot_index INT NOT NULL DEFAULT -1`,
	`CREATE TABLE IF NOT EXISTS game_actions (
		game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		action_index INT NOT NULL,
		actor_id UUID NOT NULL,
		actor_seat INT NOT NULL,
		action_type TEXT NOT NULL,
		action_payload JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (game_id, action_index)
	)`,
	`CREATE TABLE IF NOT EXISTS game_results (
		game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		player_id UUID NOT NULL,
		seat INT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		score INT NOT NULL DEFAULT 0,
		cards_left INT NOT NULL DEFAULT 0,
		did_win BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (game_id, player_id)
	)`,
}

// Migrate creates the tables this service writes to, if they do not exist yet.
func Migrate(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}
