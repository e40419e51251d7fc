package notification

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, pageSize int) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres"), pageSize), mock
}

var subscriptionColumns = []string{"id", "user_id", "endpoint", "keys_p256dh", "keys_auth", "timezone", "is_active", "last_used_at", "created_at"}

func subscriptionRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows(subscriptionColumns)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range ids {
		rows.AddRow(id, "user-"+id, "https://push.example.com/"+id, "p256dh", "auth", nil, true, nil, created)
	}
	return rows
}

func pageIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%02d", prefix, i)
	}
	return ids
}

func TestPostgresStore_ListActiveSubscriptions(t *testing.T) {
	tests := []struct {
		name  string
		pages [][]string
	}{
		{
			name:  "two full pages and a short page",
			pages: [][]string{pageIDs("a", 3), pageIDs("b", 3), pageIDs("c", 1)},
		},
		{
			name:  "exact multiple of the page size",
			pages: [][]string{pageIDs("a", 3), pageIDs("b", 3), nil},
		},
		{
			name:  "no active rows",
			pages: [][]string{nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t, 3)

			cursor := uuid.Nil.String()
			var want []string
			for _, page := range tt.pages {
				mock.ExpectQuery(`FROM push_subscriptions\s+WHERE is_active = TRUE AND id > \$1\s+ORDER BY id\s+LIMIT \$2`).
					WithArgs(cursor, 3).
					WillReturnRows(subscriptionRows(page...))
				want = append(want, page...)
				if len(page) > 0 {
					cursor = page[len(page)-1]
				}
			}

			subs, err := store.ListActiveSubscriptions(context.Background())
			require.NoError(t, err)

			var got []string
			for _, s := range subs {
				got = append(got, s.ID)
				assert.True(t, s.IsActive)
				assert.Nil(t, s.Timezone)
			}
			assert.Equal(t, want, got, "every active row exactly once, in id order")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_ListActiveSubscriptionsError(t *testing.T) {
	store, mock := newMockStore(t, 2)
	mock.ExpectQuery(`FROM push_subscriptions`).
		WithArgs(uuid.Nil.String(), 2).
		WillReturnRows(subscriptionRows("a", "b"))
	mock.ExpectQuery(`FROM push_subscriptions`).
		WithArgs("b", 2).
		WillReturnError(errors.New("connection reset"))

	subs, err := store.ListActiveSubscriptions(context.Background())
	require.Error(t, err)
	assert.Nil(t, subs, "a partial listing is never returned")
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPersonaID(t *testing.T) {
	const query = `SELECT persona_id FROM profiles WHERE id = \$1`

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    string
		wantErr bool
	}{
		{
			name: "persona set",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs("user-1").
					WillReturnRows(sqlmock.NewRows([]string{"persona_id"}).AddRow("p4"))
			},
			want: "p4",
		},
		{
			name: "null persona",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs("user-1").
					WillReturnRows(sqlmock.NewRows([]string{"persona_id"}).AddRow(nil))
			},
			want: "",
		},
		{
			name: "no profile row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs("user-1").
					WillReturnRows(sqlmock.NewRows([]string{"persona_id"}))
			},
			want: "",
		},
		{
			name: "query failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs("user-1").WillReturnError(errors.New("timeout"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t, 0)
			tt.setup(mock)

			got, err := store.GetPersonaID(context.Background(), "user-1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				if got == "" {
					assert.Equal(t, DefaultPersona, LookupPersona(got))
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_AppendHistory(t *testing.T) {
	store, mock := newMockStore(t, 0)
	persona := "p1"
	rec := &HistoryRecord{
		UserID:    "user-1",
		Content:   "Move.",
		Kind:      KindFunctional,
		Style:     StyleHeckler,
		PersonaID: &persona,
		Generated: true,
	}

	mock.ExpectExec(`INSERT INTO notification_history`).
		WithArgs(sqlmock.AnyArg(), "user-1", "Move.", ContentHash("Move."), "functional", "heckler", "p1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AppendHistory(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.SentAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
