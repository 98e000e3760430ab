// Package gateway is the HTTP client of the quiz backend.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// AuthPaths are the endpoints of the two login/refresh families.
type AuthPaths struct {
	StaffLogin     string
	StaffRefresh   string
	StudentLogin   string
	StudentRefresh string
	Logout         string
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Paths     AuthPaths
}

// Client talks to the backend without credentials. It is shared by all
// sessions; use WithSession for authorized calls.
type Client struct {
	http     *resty.Client
	paths    AuthPaths
	validate *validator.Validate
	logger   *zap.Logger
}

// New creates a new Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Client{
		http:     rc,
		paths:    cfg.Paths,
		validate: validator.New(),
		logger:   logger,
	}
}

// Authorizer supplies and recovers the bearer token of one session.
type Authorizer interface {
	AttachAuthHeader(h http.Header) string
	HandleUnauthorized(ctx context.Context, usedToken string) error
	Expire(ctx context.Context, cause error) error
}

// API is a Client bound to one session.
type API struct {
	*Client
	auth Authorizer
}

// WithSession returns an API that authorizes every request through auth.
func (c *Client) WithSession(auth Authorizer) *API {
	return &API{Client: c, auth: auth}
}

// do sends an authorized request. A 401 is retried once after the session
// recovered; a second 401 ends the session.
func (a *API) do(ctx context.Context, method, path string, body, result any) (*resty.Response, error) {
	for retried := false; ; retried = true {
		req := a.request(ctx, body, result)
		used := a.auth.AttachAuthHeader(req.Header)

		resp, err := a.execute(req, method, path)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode() != http.StatusUnauthorized {
			if resp.IsError() {
				return resp, newAPIError(resp)
			}
			return resp, nil
		}

		if retried {
			return resp, a.auth.Expire(ctx, newAPIError(resp))
		}
		if err := a.auth.HandleUnauthorized(ctx, used); err != nil {
			return resp, err
		}
	}
}

// send performs an unauthenticated request.
func (c *Client) send(ctx context.Context, method, path string, body, result any) (*resty.Response, error) {
	resp, err := c.execute(c.request(ctx, body, result), method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return resp, newAPIError(resp)
	}
	return resp, nil
}

func (c *Client) request(ctx context.Context, body, result any) *resty.Request {
	req := c.http.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, uuid.NewString())
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	return req
}

func (c *Client) execute(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", req.Header.Get(requestIDHeader)),
			zap.Error(err),
		)
		return nil, unavailable(err)
	}

	c.logger.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", req.Header.Get(requestIDHeader)),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("took", resp.Time()),
	)

	return resp, nil
}
