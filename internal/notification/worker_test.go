package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context) (*Summary, error)

func (f runnerFunc) Dispatch(ctx context.Context) (*Summary, error) { return f(ctx) }

func TestWorker_ProcessTask(t *testing.T) {
	body, err := json.Marshal(NewTriggerRequest("cron"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    []byte
		runErr  error
		wantErr bool
	}{
		{"success acks", body, nil, false},
		{"configuration error is dropped", body, fmt.Errorf("%w: no keys", ErrConfiguration), false},
		{"overlapping run is dropped", body, ErrRunInProgress, false},
		{"listing failure dead-letters", body, fmt.Errorf("%w: timeout", ErrListSubscriptions), true},
		{"malformed message dead-letters", []byte("{"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := runnerFunc(func(ctx context.Context) (*Summary, error) {
				if tt.runErr != nil {
					return &Summary{}, tt.runErr
				}
				return &Summary{RunID: "run-1", Sent: 1, Total: 1}, nil
			})

			err := NewWorker(runner, nil, nil).ProcessTask(context.Background(), tt.body)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorker_MalformedDoesNotDispatch(t *testing.T) {
	called := false
	runner := runnerFunc(func(ctx context.Context) (*Summary, error) {
		called = true
		return &Summary{}, nil
	})

	err := NewWorker(runner, nil, nil).ProcessTask(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.False(t, called)
	assert.False(t, errors.Is(err, ErrConfiguration))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRunLock(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	lock := NewRunLock(client, "", 5*time.Minute)

	require.NoError(t, lock.Acquire(ctx, "run-a"))
	assert.Equal(t, 5*time.Minute, mr.TTL(DefaultLockKey))

	assert.ErrorIs(t, lock.Acquire(ctx, "run-b"), ErrRunInProgress)

	require.NoError(t, lock.Release(ctx, "run-b"))
	got, err := mr.Get(DefaultLockKey)
	require.NoError(t, err)
	assert.Equal(t, "run-a", got, "only the owner may release")

	require.NoError(t, lock.Release(ctx, "run-a"))
	assert.False(t, mr.Exists(DefaultLockKey))

	require.NoError(t, lock.Acquire(ctx, "run-b"))
}

func TestRunLock_ExpiredLockIsFree(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	lock := NewRunLock(client, "nudge:test:lock", time.Minute)

	require.NoError(t, lock.Acquire(ctx, "stuck-run"))
	mr.FastForward(2 * time.Minute)

	require.NoError(t, lock.Acquire(ctx, "next-run"))
	// The stuck run finishing late must not drop the new holder's lock.
	require.NoError(t, lock.Release(ctx, "stuck-run"))
	got, err := mr.Get("nudge:test:lock")
	require.NoError(t, err)
	assert.Equal(t, "next-run", got)
}

func TestRunLock_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	err := NewRunLock(client, "", 0).Acquire(context.Background(), "run-a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRunInProgress)
}

func TestWorker_SkipsProcessedTrigger(t *testing.T) {
	mr, client := newTestRedis(t)
	body, err := json.Marshal(NewTriggerRequest("cron"))
	require.NoError(t, err)

	runs := 0
	w := NewWorker(runnerFunc(func(ctx context.Context) (*Summary, error) {
		runs++
		return &Summary{RunID: "run-1"}, nil
	}), client, nil)

	require.NoError(t, w.ProcessTask(context.Background(), body))
	require.NoError(t, w.ProcessTask(context.Background(), body))
	assert.Equal(t, 1, runs)

	var req TriggerRequest
	require.NoError(t, json.Unmarshal(body, &req))
	got, err := mr.Get("nudge:trigger:" + req.ID)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got)
	assert.Equal(t, triggerSeenTTL, mr.TTL("nudge:trigger:"+req.ID))
}
