package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLockKey = "nudge:dispatch:lock"
	DefaultLockTTL = 15 * time.Minute

	triggerSeenTTL = 24 * time.Hour
)

// Locker serializes dispatch runs across processes.
type Locker interface {
	// Acquire returns ErrRunInProgress when another holder owns the lock.
	Acquire(ctx context.Context, token string) error
	Release(ctx context.Context, token string) error
}

// releaseScript deletes the key only if it still holds our token, so a run
// that outlived its TTL cannot drop a lock taken by the next run.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLock is a Redis SET NX lock with a TTL.
type RunLock struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// NewRunLock uses key and ttl, falling back to DefaultLockKey and
// DefaultLockTTL.
func NewRunLock(client *redis.Client, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RunLock{redis: client, key: key, ttl: ttl}
}

func (l *RunLock) Acquire(ctx context.Context, token string) error {
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

func (l *RunLock) Release(ctx context.Context, token string) error {
	if err := releaseScript.Run(ctx, l.redis, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// Runner is satisfied by *Dispatcher.
type Runner interface {
	Dispatch(ctx context.Context) (*Summary, error)
}

// TriggerRequest is the queue message asking for one sweep.
type TriggerRequest struct {
	ID          string    `json:"id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewTriggerRequest stamps a fresh id and the current time.
func NewTriggerRequest(requestedBy string) TriggerRequest {
	return TriggerRequest{
		ID:          uuid.New().String(),
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}
}

// Worker turns queued trigger requests into dispatch runs.
type Worker struct {
	runner Runner
	redis  *redis.Client
	logger *slog.Logger
}

// NewWorker runs triggers through runner. A nil redisClient disables the
// processed-trigger check.
func NewWorker(runner Runner, redisClient *redis.Client, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{runner: runner, redis: redisClient, logger: logger}
}

// ProcessTask runs one sweep for a trigger message. A nil return acks the
// message; an error sends it to the dead-letter queue. Configuration errors
// and overlapping runs are acked since redelivery cannot fix them.
func (w *Worker) ProcessTask(ctx context.Context, body []byte) error {
	var req TriggerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	logger := w.logger.With("trigger_id", req.ID)

	seenKey := "nudge:trigger:" + req.ID
	if w.redis != nil && req.ID != "" {
		exists, err := w.redis.Exists(ctx, seenKey).Result()
		if err != nil {
			logger.WarnContext(ctx, "redis error checking idempotency", "error", err)
		} else if exists > 0 {
			logger.InfoContext(ctx, "trigger already processed, skipping")
			return nil
		}
	}

	summary, err := w.runner.Dispatch(ctx)
	switch {
	case errors.Is(err, ErrConfiguration):
		logger.ErrorContext(ctx, "dropping trigger on configuration error", "error", err)
		return nil
	case errors.Is(err, ErrRunInProgress):
		logger.InfoContext(ctx, "dispatch already running, dropping trigger")
		return nil
	case err != nil:
		return fmt.Errorf("dispatch: %w", err)
	}

	if w.redis != nil && req.ID != "" {
		if err := w.redis.Set(ctx, seenKey, summary.RunID, triggerSeenTTL).Err(); err != nil {
			logger.WarnContext(ctx, "failed to mark trigger processed", "error", err)
		}
	}

	logger.InfoContext(ctx, "trigger processed",
		"run_id", summary.RunID,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return nil
}
