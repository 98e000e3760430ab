package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

var ErrNoRoleClaim = errors.New("access token carries no role claim")

// Claims is the subset of access token claims the client relies on.
type Claims struct {
	UserID    int64
	Role      entities.Role
	Name      string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry. Tokens without an
// exp claim never expire from the client's point of view.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseClaims decodes an access token without verifying its signature.
// The client cannot verify it; the server does.
func ParseClaims(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	var c Claims

	roleClaim, _ := firstString(mc, "role", "user_type", "user_role")
	if roleClaim == "" {
		return nil, ErrNoRoleClaim
	}
	role, err := entities.ParseRole(roleClaim)
	if err != nil {
		return nil, err
	}
	c.Role = role

	c.UserID = firstInt(mc, "user_id", "student_id", "sub")
	c.Name, _ = firstString(mc, "name", "username")

	if exp, ok := mc["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return &c, nil
}

func firstString(mc jwt.MapClaims, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := mc[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func firstInt(mc jwt.MapClaims, keys ...string) int64 {
	for _, k := range keys {
		switch v := mc[k].(type) {
		case float64:
			return int64(v)
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
