package telegram

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/pathway-quiz-bot/internal/auth"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/gateway"
	"github.com/aliskhannn/pathway-quiz-bot/internal/service"
)

// chat is the per-chat state: one login session, at most one attempt on
// screen and the pathway it belongs to.
type chat struct {
	id       int64
	key      string
	auth     *auth.Manager
	api      *gateway.API
	pathways *service.PathwayService
	logger   *zap.Logger

	attempt *service.AttemptSession
	pathway *entities.PathwayTracker

	touchedAt time.Time
}

func (h *Handler) newChat(ctx context.Context, chatID int64) (*chat, error) {
	logger := h.logger.With(zap.Int64("chat_id", chatID))
	key := fmt.Sprintf("%s:%d", h.cfg.StorageKey, chatID)

	m, err := auth.NewManager(ctx, auth.Namespace(h.sessions, key), h.backend, logger,
		auth.WithRevoker(h.backend, h.cfg.RevokeTimeout),
	)
	if err != nil {
		return nil, err
	}

	api := h.backend.WithSession(m)

	return &chat{
		id:       chatID,
		key:      key,
		auth:     m,
		api:      api,
		pathways: service.NewPathwayService(api, logger),
		logger:   logger,
	}, nil
}

// chat returns the state of a chat, restoring its session on first use.
func (h *Handler) chat(ctx context.Context, chatID int64) (*chat, error) {
	c, err := h.chats.GetOrCreate(chatID, func() (*chat, error) {
		return h.newChat(ctx, chatID)
	})
	if err != nil {
		return nil, err
	}
	h.touch(ctx, c)
	return c, nil
}

// touch records that a logged-in chat is still in use.
func (h *Handler) touch(ctx context.Context, c *chat) {
	toucher, ok := h.sessions.(SessionToucher)
	if !ok {
		return
	}
	if _, ok := c.auth.Session(); !ok {
		return
	}

	now := time.Now()
	if !c.touchedAt.IsZero() && now.Sub(c.touchedAt) < h.cfg.TouchInterval {
		return
	}

	if err := toucher.TouchSession(ctx, c.key); err != nil {
		c.logger.Warn("failed to touch session", zap.Error(err))
		return
	}
	c.touchedAt = now
}

// session returns the current login or ErrNotAuthenticated.
func (c *chat) session() (*entities.AuthSession, error) {
	s, ok := c.auth.Session()
	if !ok {
		if err := c.auth.LastError(); err != nil {
			return nil, err
		}
		return nil, auth.ErrNotAuthenticated
	}
	return &s, nil
}

func (c *chat) student() (*entities.AuthSession, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	if s.Role != entities.RoleStudent {
		return nil, errStudentsOnly
	}
	return s, nil
}

// attemptFor returns the session for quizID, reusing the one on screen when
// it belongs to the same quiz and is still open.
func (c *chat) attemptFor(quizID int64) *service.AttemptSession {
	if c.attempt != nil {
		if c.attempt.QuizID() == quizID && !c.attempt.State().Terminal() {
			return c.attempt
		}
		c.attempt.Close()
	}
	c.attempt = service.NewAttemptSession(c.api, quizID, c.logger)
	return c.attempt
}

// currentAttempt returns the attempt on screen.
func (c *chat) currentAttempt() (*service.AttemptSession, error) {
	if c.attempt == nil {
		return nil, errNoAttempt
	}
	return c.attempt, nil
}

// reset drops everything bound to the previous login.
func (c *chat) reset() {
	if c.attempt != nil {
		c.attempt.Close()
		c.attempt = nil
	}
	c.pathway = nil
}
