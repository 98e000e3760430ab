package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/infra/postgres"
)

// SessionRepository persists auth sessions as JSONB keyed by storage key.
type SessionRepository struct {
	db postgres.DBTX
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db postgres.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// LoadSession returns the session stored under key, or nil when there is none.
func (r *SessionRepository) LoadSession(ctx context.Context, key string) (*entities.AuthSession, error) {
	query := `
		SELECT payload
		FROM auth_sessions
		WHERE storage_key = $1
	`

	var payload []byte
	if err := r.db.QueryRow(ctx, query, key).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s entities.AuthSession
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &s, nil
}

// SaveSession upserts the session stored under key.
func (r *SessionRepository) SaveSession(ctx context.Context, key string, s *entities.AuthSession) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query := `
		INSERT INTO auth_sessions (storage_key, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (storage_key) DO UPDATE
		SET payload = EXCLUDED.payload,
		    updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, key, payload); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// DeleteSession removes the session stored under key.
func (r *SessionRepository) DeleteSession(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM auth_sessions WHERE storage_key = $1`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// TouchSession marks the session under key as used now.
func (r *SessionRepository) TouchSession(ctx context.Context, key string) error {
	query := `
		UPDATE auth_sessions
		SET updated_at = NOW()
		WHERE storage_key = $1
	`

	if _, err := r.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// DeleteSessionsBefore removes sessions neither saved nor touched since t
// and returns how many were removed.
func (r *SessionRepository) DeleteSessionsBefore(ctx context.Context, t time.Time) (int64, error) {
	query := `
		DELETE FROM auth_sessions
		WHERE updated_at < $1
	`

	tag, err := r.db.Exec(ctx, query, t)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
