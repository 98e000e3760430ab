package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aliskhannn/pathway-quiz-bot/internal/auth"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

// Login exchanges credentials for a token pair at the endpoint of family.
func (c *Client) Login(ctx context.Context, family entities.Family, username, password string) (*entities.AuthSession, error) {
	path, err := c.loginPath(family)
	if err != nil {
		return nil, err
	}

	var res loginResponse
	if _, err := c.send(ctx, http.MethodPost, path, credentials{Username: username, Password: password}, &res); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := c.validate.Struct(&res); err != nil {
		return nil, fmt.Errorf("login: invalid response: %w", err)
	}

	s := &entities.AuthSession{
		Family:       family,
		AccessToken:  res.Access,
		RefreshToken: res.Refresh,
	}

	user := res.User
	if user == nil {
		user = res.Student
	}
	if user != nil {
		s.UserID = user.ID
		s.DisplayName = user.displayName()
		if role, err := entities.ParseRole(user.Role); err == nil {
			s.Role = role
		}
	}
	if s.Role == "" && family == entities.FamilyStudent {
		s.Role = entities.RoleStudent
	}

	return s, nil
}

// Refresh implements auth.Refresher.
func (c *Client) Refresh(ctx context.Context, family entities.Family, refreshToken string) (auth.Tokens, error) {
	path, err := c.refreshPath(family)
	if err != nil {
		return auth.Tokens{}, err
	}

	var res refreshResponse
	if _, err := c.send(ctx, http.MethodPost, path, refreshRequest{Refresh: refreshToken}, &res); err != nil {
		return auth.Tokens{}, fmt.Errorf("refresh: %w", err)
	}
	if err := c.validate.Struct(&res); err != nil {
		return auth.Tokens{}, fmt.Errorf("refresh: invalid response: %w", err)
	}

	return auth.Tokens{Access: res.Access, Refresh: res.Refresh}, nil
}

// Revoke implements auth.Revoker.
func (c *Client) Revoke(ctx context.Context, _ entities.Family, refreshToken string) error {
	if c.paths.Logout == "" {
		return nil
	}
	if _, err := c.send(ctx, http.MethodPost, c.paths.Logout, refreshRequest{Refresh: refreshToken}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *Client) loginPath(family entities.Family) (string, error) {
	switch family {
	case entities.FamilyStaff:
		return c.paths.StaffLogin, nil
	case entities.FamilyStudent:
		return c.paths.StudentLogin, nil
	default:
		return "", fmt.Errorf("%w: unknown family %q", auth.ErrFamilyMismatch, family)
	}
}

func (c *Client) refreshPath(family entities.Family) (string, error) {
	switch family {
	case entities.FamilyStaff:
		return c.paths.StaffRefresh, nil
	case entities.FamilyStudent:
		return c.paths.StudentRefresh, nil
	default:
		return "", fmt.Errorf("%w: unknown family %q", auth.ErrFamilyMismatch, family)
	}
}
