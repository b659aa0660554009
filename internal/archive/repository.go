package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository persists finished-game results durably in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository opens and pings the database.
func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts one finished game keyed by room id.
func (r *Repository) SaveResult(ctx context.Context, rec Record) error {
	if r == nil || r.db == nil {
		return nil
	}
	const q = `INSERT INTO game_results (
	    room_id, white_id, black_id,
	    reason, status, winner, final_fen,
	    white_time_ms, black_time_ms,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	  ) ON CONFLICT (room_id) DO UPDATE SET
	    white_id=EXCLUDED.white_id,
	    black_id=EXCLUDED.black_id,
	    reason=EXCLUDED.reason,
	    status=EXCLUDED.status,
	    winner=EXCLUDED.winner,
	    final_fen=EXCLUDED.final_fen,
	    white_time_ms=EXCLUDED.white_time_ms,
	    black_time_ms=EXCLUDED.black_time_ms,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.RoomID, rec.WhiteID, rec.BlackID,
		rec.Reason, rec.Status, rec.Winner, rec.FinalFEN,
		rec.WhiteMs, rec.BlackMs,
		rec.StartedAt, rec.EndedAt, rec.DurationMs,
	)
	return err
}
