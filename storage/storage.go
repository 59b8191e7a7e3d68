package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS match_log (
	id UUID PRIMARY KEY,
	played_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	room_id TEXT NOT NULL,
	queue_name TEXT NOT NULL,
	game_type TEXT NOT NULL,
	player0_id TEXT NOT NULL,
	player1_id TEXT NOT NULL,
	player0_name TEXT NOT NULL,
	player1_name TEXT NOT NULL,
	oshi0 TEXT NOT NULL,
	oshi1 TEXT NOT NULL,
	winner_id TEXT,
	reason TEXT,
	turn_count INT NOT NULL,
	event_count INT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_match_log_player0 ON match_log(player0_id);
CREATE INDEX IF NOT EXISTS idx_match_log_player1 ON match_log(player1_id);
`

// MatchLog is one finished match's summary row.
type MatchLog struct {
	RoomID      string
	QueueName   string
	GameType    string
	Player0ID   string
	Player1ID   string
	Player0Name string
	Player1Name string
	Oshi0       string
	Oshi1       string
	WinnerID    string
	Reason      string
	TurnCount   int
	EventCount  int
	PlayedAt    time.Time
}

// Store persists match logs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the match_log table exists.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence
// occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// InsertMatchLog records one finished match.
func (s *Store) InsertMatchLog(ctx context.Context, m MatchLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO match_log (
			id, room_id, queue_name, game_type,
			player0_id, player1_id, player0_name, player1_name,
			oshi0, oshi1, winner_id, reason, turn_count, event_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		uuid.NewString(), m.RoomID, m.QueueName, m.GameType,
		m.Player0ID, m.Player1ID, m.Player0Name, m.Player1Name,
		m.Oshi0, m.Oshi1, m.WinnerID, m.Reason, m.TurnCount, m.EventCount,
	)
	return err
}

// ListByPlayer returns a player's recent match logs, newest first.
func (s *Store) ListByPlayer(ctx context.Context, playerID string, limit int) ([]MatchLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT room_id, queue_name, game_type,
			player0_id, player1_id, player0_name, player1_name,
			oshi0, oshi1, winner_id, reason, turn_count, event_count, played_at
		FROM match_log
		WHERE player0_id = $1 OR player1_id = $1
		ORDER BY played_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchLog
	for rows.Next() {
		var m MatchLog
		if err := rows.Scan(&m.RoomID, &m.QueueName, &m.GameType,
			&m.Player0ID, &m.Player1ID, &m.Player0Name, &m.Player1Name,
			&m.Oshi0, &m.Oshi1, &m.WinnerID, &m.Reason, &m.TurnCount, &m.EventCount, &m.PlayedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
