package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

type sessionRow struct {
	payload   []byte
	updatedAt time.Time
}

// fakeDB understands the statements SessionRepository issues against
// auth_sessions and keeps the rows in memory.
type fakeDB struct {
	rows map[string]sessionRow
	now  time.Time
	err  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]sessionRow), now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if db.err != nil {
		return pgconn.CommandTag{}, db.err
	}

	switch {
	case strings.Contains(sql, "INSERT INTO auth_sessions"):
		key := args[0].(string)
		db.rows[key] = sessionRow{payload: args[1].([]byte), updatedAt: db.now}
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "UPDATE auth_sessions"):
		key := args[0].(string)
		row, ok := db.rows[key]
		if !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		row.updatedAt = db.now
		db.rows[key] = row
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "WHERE storage_key = $1"):
		delete(db.rows, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil

	case strings.Contains(sql, "WHERE updated_at < $1"):
		cutoff := args[0].(time.Time)
		var n int
		for key, row := range db.rows {
			if row.updatedAt.Before(cutoff) {
				delete(db.rows, key)
				n++
			}
		}
		return pgconn.NewCommandTag("DELETE " + strconv.Itoa(n)), nil
	}

	return pgconn.CommandTag{}, errors.New("unexpected statement")
}

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if db.err != nil {
		return fakeRow{err: db.err}
	}
	row, ok := db.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{payload: row.payload}
}

type fakeRow struct {
	payload []byte
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = r.payload
	return nil
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	repo := NewSessionRepository(db)

	missing, err := repo.LoadSession(ctx, "quizpath.auth:1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := &entities.AuthSession{
		UserID:       7,
		Role:         entities.RoleStudent,
		Family:       entities.FamilyStudent,
		AccessToken:  "a1",
		RefreshToken: "r1",
		DisplayName:  "Ann",
	}
	require.NoError(t, repo.SaveSession(ctx, "quizpath.auth:1", want))
	assert.JSONEq(t,
		`{"user_id":7,"role":"STUDENT","family":"student","access_token":"a1","refresh_token":"r1","display_name":"Ann"}`,
		string(db.rows["quizpath.auth:1"].payload))

	got, err := repo.LoadSession(ctx, "quizpath.auth:1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Upsert replaces the rotated pair.
	want.AccessToken, want.RefreshToken = "a2", "r2"
	require.NoError(t, repo.SaveSession(ctx, "quizpath.auth:1", want))
	got, err = repo.LoadSession(ctx, "quizpath.auth:1")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RefreshToken)
	assert.Len(t, db.rows, 1)

	require.NoError(t, repo.DeleteSession(ctx, "quizpath.auth:1"))
	got, err = repo.LoadSession(ctx, "quizpath.auth:1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionRepositoryDeleteSessionsBefore(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	repo := NewSessionRepository(db)
	start := db.now

	require.NoError(t, repo.SaveSession(ctx, "idle", &entities.AuthSession{AccessToken: "x"}))
	require.NoError(t, repo.SaveSession(ctx, "active", &entities.AuthSession{AccessToken: "y"}))

	db.now = start.Add(6 * 24 * time.Hour)
	require.NoError(t, repo.TouchSession(ctx, "active"))
	require.NoError(t, repo.TouchSession(ctx, "missing"))

	n, err := repo.DeleteSessionsBefore(ctx, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	idle, err := repo.LoadSession(ctx, "idle")
	require.NoError(t, err)
	assert.Nil(t, idle)

	active, err := repo.LoadSession(ctx, "active")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "y", active.AccessToken)
}

func TestSessionRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	repo := NewSessionRepository(db)
	db.err = errors.New("connection reset")

	_, err := repo.LoadSession(ctx, "k")
	assert.ErrorContains(t, err, "load session")

	err = repo.SaveSession(ctx, "k", &entities.AuthSession{})
	assert.ErrorContains(t, err, "save session")

	err = repo.TouchSession(ctx, "k")
	assert.ErrorContains(t, err, "touch session")

	_, err = repo.DeleteSessionsBefore(ctx, db.now)
	assert.ErrorContains(t, err, "delete stale sessions")

	db.err = nil
	db.rows["broken"] = sessionRow{payload: []byte(`{`)}
	_, err = repo.LoadSession(ctx, "broken")
	assert.ErrorContains(t, err, "decode session")
}
