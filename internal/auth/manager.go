// Package auth owns the access/refresh token pair of one session and
// recovers from access token expiry with at most one refresh in flight.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

var (
	ErrSessionExpired   = errors.New("session expired")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrFamilyMismatch   = errors.New("token role does not match the endpoint family")
	ErrUnknownRole      = errors.New("session role cannot be resolved")
)

// ExpiredError is returned when the session can no longer be used. Family
// tells the UI which login screen to send the user to.
type ExpiredError struct {
	Family entities.Family
	Cause  error
}

func (e *ExpiredError) Error() string {
	if e.Cause == nil {
		return ErrSessionExpired.Error()
	}
	return fmt.Sprintf("%s: %v", ErrSessionExpired, e.Cause)
}

func (e *ExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

func (e *ExpiredError) Unwrap() error {
	return e.Cause
}

// State is the authentication state of a Manager.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "ANONYMOUS"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateRefreshing:
		return "REFRESHING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TokenStore persists the session across restarts. Load returns nil, nil
// when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*entities.AuthSession, error)
	Save(ctx context.Context, s *entities.AuthSession) error
	Clear(ctx context.Context) error
}

// Tokens is the result of a refresh call. Refresh is empty unless the server
// rotated the refresh token.
type Tokens struct {
	Access  string
	Refresh string
}

// Refresher exchanges a refresh token for a new access token using the
// endpoint of the given family.
type Refresher interface {
	Refresh(ctx context.Context, family entities.Family, refreshToken string) (Tokens, error)
}

// Revoker invalidates a refresh token server-side.
type Revoker interface {
	Revoke(ctx context.Context, family entities.Family, refreshToken string) error
}

type Option func(*Manager)

// WithRevoker enables best-effort server-side invalidation on logout.
func WithRevoker(r Revoker, timeout time.Duration) Option {
	return func(m *Manager) {
		m.revoker = r
		m.revokeTimeout = timeout
	}
}

const refreshKey = "refresh"

// Manager is the only writer of its TokenStore.
type Manager struct {
	store         TokenStore
	refresher     Refresher
	revoker       Revoker
	revokeTimeout time.Duration
	logger        *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	session *entities.AuthSession
	lastErr error
}

// NewManager restores the persisted session. A stored session with tokens
// starts AUTHENTICATED until a request proves otherwise.
func NewManager(
	ctx context.Context,
	store TokenStore,
	refresher Refresher,
	logger *zap.Logger,
	opts ...Option,
) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		store:         store,
		refresher:     refresher,
		revokeTimeout: 5 * time.Second,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	s, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if s != nil && (s.AccessToken != "" || s.CanRefresh()) {
		m.session = s
		m.state = StateAuthenticated
		m.logger.Debug("session restored",
			zap.Int64("user_id", s.UserID),
			zap.String("family", string(s.Family)),
		)
	}

	return m, nil
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns a copy of the current session.
func (m *Manager) Session() (entities.AuthSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return entities.AuthSession{}, false
	}
	return *m.session, true
}

// LastError returns the error that ended the previous session, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Authenticate installs a freshly issued token pair. s.Family names the
// endpoint family that issued it; the role in the access token must belong
// to that family.
func (m *Manager) Authenticate(ctx context.Context, s entities.AuthSession) error {
	if s.AccessToken == "" {
		return fmt.Errorf("authenticate: %w", ErrNotAuthenticated)
	}

	role, err := resolveRole(s.AccessToken, s.Role)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if s.Family == "" {
		s.Family = role.Family()
	}
	if role.Family() != s.Family {
		return fmt.Errorf("authenticate: %w: %s token from %s endpoint", ErrFamilyMismatch, role, s.Family)
	}
	s.Role = role

	if err := m.store.Save(ctx, &s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	m.mu.Lock()
	m.session = &s
	m.state = StateAuthenticated
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Info("authenticated",
		zap.Int64("user_id", s.UserID),
		zap.String("role", string(s.Role)),
		zap.String("family", string(s.Family)),
	)

	return nil
}

// AttachAuthHeader sets the bearer header from the current access token and
// returns the token used. While a refresh is pending the old token is still
// attached; such a request either succeeds or comes back as a 401.
func (m *Manager) AttachAuthHeader(h http.Header) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state == StateAnonymous || m.session == nil || m.session.AccessToken == "" {
		h.Del("Authorization")
		return ""
	}

	h.Set("Authorization", "Bearer "+m.session.AccessToken)
	return m.session.AccessToken
}

// HandleUnauthorized is called after a request sent with usedToken came back
// 401. It returns nil when the caller should retry with the current token.
// Concurrent callers share one refresh call.
func (m *Manager) HandleUnauthorized(ctx context.Context, usedToken string) error {
	m.mu.Lock()

	if m.state == StateAnonymous || m.session == nil {
		family := m.lastFamilyLocked()
		m.mu.Unlock()
		return &ExpiredError{Family: family, Cause: ErrNotAuthenticated}
	}

	// Someone already refreshed since this request was sent.
	if usedToken != "" && m.session.AccessToken != usedToken {
		m.mu.Unlock()
		return nil
	}

	if !m.session.CanRefresh() {
		err := m.expireLocked(ctx, errors.New("no refresh token"))
		m.mu.Unlock()
		return err
	}

	if m.state != StateRefreshing {
		m.state = StateRefreshing
		m.logger.Debug("refreshing access token", zap.String("family", string(m.session.Family)))
	}

	// DoChan only spawns the call, so starting it under the lock is safe and
	// guarantees a late caller either joins this flight or sees its result.
	family, refreshToken := m.session.Family, m.session.RefreshToken
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		return nil, m.refresh(context.WithoutCancel(ctx), family, refreshToken)
	})
	m.mu.Unlock()

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context, family entities.Family, refreshToken string) error {
	tokens, err := m.refresher.Refresh(ctx, family, refreshToken)
	if err == nil && tokens.Access == "" {
		err = errors.New("refresh returned no access token")
	}
	if err == nil {
		var role entities.Role
		role, err = resolveRole(tokens.Access, "")
		if err == nil && role.Family() != family {
			err = fmt.Errorf("%w: %s token from %s endpoint", ErrFamilyMismatch, role, family)
		}
		if errors.Is(err, ErrUnknownRole) {
			err = nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Logged out or re-authenticated while the refresh was in flight.
	if m.session == nil || m.session.RefreshToken != refreshToken {
		if m.session != nil {
			return nil
		}
		return &ExpiredError{Family: family, Cause: ErrNotAuthenticated}
	}

	if err != nil {
		return m.expireLocked(ctx, err)
	}

	next := *m.session
	next.AccessToken = tokens.Access
	if tokens.Refresh != "" {
		next.RefreshToken = tokens.Refresh
	}
	if err := m.store.Save(ctx, &next); err != nil {
		m.logger.Warn("failed to persist refreshed session", zap.Error(err))
	}

	m.session = &next
	m.state = StateAuthenticated
	m.logger.Debug("access token refreshed", zap.String("family", string(family)))

	return nil
}

// Expire ends the session because the server keeps rejecting it.
func (m *Manager) Expire(ctx context.Context, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return &ExpiredError{Family: m.lastFamilyLocked(), Cause: cause}
	}
	return m.expireLocked(ctx, cause)
}

// Logout drops the session immediately. Server-side invalidation, when
// configured, runs in the background and its outcome is ignored.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	prev := m.session
	m.session = nil
	m.state = StateAnonymous
	m.lastErr = nil
	m.mu.Unlock()

	if prev != nil && prev.CanRefresh() && m.revoker != nil {
		go m.revoke(context.WithoutCancel(ctx), prev.Family, prev.RefreshToken)
	}

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	if prev != nil {
		m.logger.Info("logged out", zap.Int64("user_id", prev.UserID))
	}
	return nil
}

func (m *Manager) revoke(ctx context.Context, family entities.Family, refreshToken string) {
	ctx, cancel := context.WithTimeout(ctx, m.revokeTimeout)
	defer cancel()

	if err := m.revoker.Revoke(ctx, family, refreshToken); err != nil {
		m.logger.Debug("logout revoke failed", zap.Error(err))
	}
}

// expireLocked must be called with mu held.
func (m *Manager) expireLocked(ctx context.Context, cause error) error {
	family := entities.Family("")
	if m.session != nil {
		family = m.session.Family
	}

	expired := &ExpiredError{Family: family, Cause: cause}
	m.session = nil
	m.state = StateAnonymous
	m.lastErr = expired

	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("failed to clear expired session", zap.Error(err))
	}
	m.logger.Info("session expired", zap.String("family", string(family)), zap.Error(cause))

	return expired
}

func (m *Manager) lastFamilyLocked() entities.Family {
	var expired *ExpiredError
	if errors.As(m.lastErr, &expired) {
		return expired.Family
	}
	return ""
}

// resolveRole prefers the role carried by the token over the fallback.
func resolveRole(accessToken string, fallback entities.Role) (entities.Role, error) {
	claims, err := ParseClaims(accessToken)
	if err == nil {
		return claims.Role, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%w: %v", ErrUnknownRole, err)
}

// KeyedStore persists sessions for many storage keys.
type KeyedStore interface {
	LoadSession(ctx context.Context, key string) (*entities.AuthSession, error)
	SaveSession(ctx context.Context, key string, s *entities.AuthSession) error
	DeleteSession(ctx context.Context, key string) error
}

// Namespace binds a KeyedStore to a single storage key.
func Namespace(store KeyedStore, key string) TokenStore {
	return namespacedStore{store: store, key: key}
}

type namespacedStore struct {
	store KeyedStore
	key   string
}

func (n namespacedStore) Load(ctx context.Context) (*entities.AuthSession, error) {
	return n.store.LoadSession(ctx, n.key)
}

func (n namespacedStore) Save(ctx context.Context, s *entities.AuthSession) error {
	return n.store.SaveSession(ctx, n.key, s)
}

func (n namespacedStore) Clear(ctx context.Context) error {
	return n.store.DeleteSession(ctx, n.key)
}
