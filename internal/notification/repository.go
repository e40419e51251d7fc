package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DefaultPageSize bounds each page of the active-subscription scan.
const DefaultPageSize = 500

// Store is everything the dispatcher reads from and writes to the datastore.
type Store interface {
	ListActiveSubscriptions(ctx context.Context) ([]Subscription, error)
	GetPersonaID(ctx context.Context, userID string) (string, error)
	ListPendingTasks(ctx context.Context, userID string, limit int) ([]Task, error)
	RecentHistory(ctx context.Context, userID string, limit int) ([]string, error)
	AppendHistory(ctx context.Context, rec *HistoryRecord) error
	TouchSubscription(ctx context.Context, id string, at time.Time) error
	DeactivateSubscription(ctx context.Context, id string) error
}

// PostgresStore implements Store on the application's PostgreSQL schema.
type PostgresStore struct {
	db       *sqlx.DB
	pageSize int
}

// NewPostgresStore pages active subscriptions pageSize rows at a time.
func NewPostgresStore(db *sqlx.DB, pageSize int) *PostgresStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PostgresStore{db: db, pageSize: pageSize}
}

// ListActiveSubscriptions pages through active rows by id so every active
// subscription is returned exactly once regardless of table size.
func (s *PostgresStore) ListActiveSubscriptions(ctx context.Context) ([]Subscription, error) {
	const query = `
		SELECT id, user_id, endpoint, keys_p256dh, keys_auth, timezone, is_active, last_used_at, created_at
		FROM push_subscriptions
		WHERE is_active = TRUE AND id > $1
		ORDER BY id
		LIMIT $2`

	var all []Subscription
	cursor := uuid.Nil.String()
	for {
		var page []Subscription
		if err := s.db.SelectContext(ctx, &page, query, cursor, s.pageSize); err != nil {
			return nil, fmt.Errorf("select active subscriptions after %q: %w", cursor, err)
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			return all, nil
		}
		cursor = page[len(page)-1].ID
	}
}

func (s *PostgresStore) GetPersonaID(ctx context.Context, userID string) (string, error) {
	var personaID sql.NullString
	err := s.db.GetContext(ctx, &personaID, `SELECT persona_id FROM profiles WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get persona for user %s: %w", userID, err)
	}
	return personaID.String, nil
}

func (s *PostgresStore) ListPendingTasks(ctx context.Context, userID string, limit int) ([]Task, error) {
	const query = `
		SELECT description, priority
		FROM ledger_entries
		WHERE user_id = $1 AND status <> 'resolved'
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at DESC
		LIMIT $2`

	var tasks []Task
	if err := s.db.SelectContext(ctx, &tasks, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list pending tasks for user %s: %w", userID, err)
	}
	return tasks, nil
}

func (s *PostgresStore) RecentHistory(ctx context.Context, userID string, limit int) ([]string, error) {
	const query = `
		SELECT content
		FROM notification_history
		WHERE user_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`

	var contents []string
	if err := s.db.SelectContext(ctx, &contents, query, userID, limit); err != nil {
		return nil, fmt.Errorf("recent history for user %s: %w", userID, err)
	}
	return contents, nil
}

// AppendHistory inserts rec, filling in id, hash and timestamp when unset.
func (s *PostgresStore) AppendHistory(ctx context.Context, rec *HistoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ContentHash == "" {
		rec.ContentHash = ContentHash(rec.Content)
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO notification_history (id, user_id, content, content_hash, nudge_type, style, persona_id, generated, sent_at)
		VALUES (:id, :user_id, :content, :content_hash, :nudge_type, :style, :persona_id, :generated, :sent_at)`
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("insert notification history for user %s: %w", rec.UserID, err)
	}
	return nil
}

func (s *PostgresStore) TouchSubscription(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE push_subscriptions SET last_used_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch subscription %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) DeactivateSubscription(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE push_subscriptions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate subscription %s: %w", id, err)
	}
	return nil
}

// ContentHash is a short fingerprint used for cheap duplicate spotting.
func ContentHash(content string) string {
	h := fnv.New32a()
	h.Write([]byte(content))
	return fmt.Sprintf("%08x", h.Sum32())
}
