// Package archive is an optional sink for finished-game results. It sits
// outside the session core: rooms behave identically whether or not an
// archive is configured, and only terminal summaries ever leave the
// process — never live game state or move lists.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/room"
)

const (
	resultTTL   = 24 * time.Hour
	recentKey   = "archive:recent"
	recentLimit = 100
	writeBudget = 5 * time.Second
)

// Record is the JSON shape stored in Redis for one finished game.
type Record struct {
	RoomID     string    `json:"room_id"`
	WhiteID    string    `json:"white_id"`
	BlackID    string    `json:"black_id"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	Winner     string    `json:"winner,omitempty"`
	FinalFEN   string    `json:"final_fen"`
	WhiteMs    int64     `json:"white_time_ms"`
	BlackMs    int64     `json:"black_time_ms"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Recorder writes finished-game summaries to Redis with a TTL and, when a
// repository is attached, upserts them into Postgres. Either backend may be
// absent.
type Recorder struct {
	rdb  *redis.Client
	repo *Repository
}

// NewRecorder connects the configured backends. Both URLs empty yields a
// nil recorder, which callers treat as "archive disabled".
func NewRecorder(redisURL, databaseURL string) (*Recorder, error) {
	if strings.TrimSpace(redisURL) == "" && strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	rec := &Recorder{}
	if strings.TrimSpace(redisURL) != "" {
		opts, err := parseRedisURL(redisURL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rec.rdb = rdb
	}
	if strings.TrimSpace(databaseURL) != "" {
		repo, err := NewRepository(databaseURL)
		if err != nil {
			_ = rec.Close()
			return nil, err
		}
		rec.repo = repo
	}
	return rec, nil
}

// Close releases backend connections.
func (a *Recorder) Close() error {
	if a == nil {
		return nil
	}
	var first error
	if a.rdb != nil {
		first = a.rdb.Close()
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Record persists a terminal summary. It never blocks the caller: writes
// run on their own goroutine with a bounded budget, and failures are logged
// rather than propagated — the game outcome itself is already settled.
func (a *Recorder) Record(ctx context.Context, sum room.Summary) {
	if a == nil {
		return
	}
	rec := fromSummary(sum)
	go func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBudget)
		defer cancel()
		if err := a.write(wctx, rec); err != nil {
			obslog.L().Error("archive_write_error",
				zap.String("room_id", rec.RoomID),
				zap.Error(err),
			)
			return
		}
		obslog.L().Info("archive_write",
			zap.String("room_id", rec.RoomID),
			zap.String("reason", rec.Reason),
			zap.String("winner", rec.Winner),
		)
	}()
}

func (a *Recorder) write(ctx context.Context, rec Record) error {
	if a.rdb != nil {
		raw, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		pipe := a.rdb.TxPipeline()
		pipe.Set(ctx, resultKey(rec.RoomID), raw, resultTTL)
		pipe.LPush(ctx, recentKey, rec.RoomID)
		pipe.LTrim(ctx, recentKey, 0, recentLimit-1)
		pipe.Expire(ctx, recentKey, resultTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis write: %w", err)
		}
	}
	if a.repo != nil {
		if err := a.repo.SaveResult(ctx, rec); err != nil {
			return fmt.Errorf("db write: %w", err)
		}
	}
	return nil
}

// Load returns the stored record for a room id, or nil when absent or when
// no Redis backend is configured.
func (a *Recorder) Load(ctx context.Context, roomID string) (*Record, error) {
	if a == nil || a.rdb == nil {
		return nil, nil
	}
	raw, err := a.rdb.Get(ctx, resultKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent lists the most recently finished room ids, newest first.
func (a *Recorder) Recent(ctx context.Context, limit int) ([]string, error) {
	if a == nil || a.rdb == nil {
		return nil, nil
	}
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}
	return a.rdb.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
}

func fromSummary(sum room.Summary) Record {
	duration := sum.EndedAt.Sub(sum.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	return Record{
		RoomID:     sum.RoomID,
		WhiteID:    sum.WhiteID,
		BlackID:    sum.BlackID,
		Reason:     sum.Reason,
		Status:     sum.Status,
		Winner:     sum.Winner,
		FinalFEN:   sum.FinalFEN,
		WhiteMs:    sum.WhiteMs,
		BlackMs:    sum.BlackMs,
		StartedAt:  sum.CreatedAt,
		EndedAt:    sum.EndedAt,
		DurationMs: duration,
	}
}

func resultKey(roomID string) string {
	return "archive:game:" + strings.TrimSpace(roomID)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
