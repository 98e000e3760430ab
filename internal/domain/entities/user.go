package entities

import (
	"fmt"
	"strings"
)

// Role is the subject role carried by an access token.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole normalizes a role claim ("student", "Teacher", ...).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Family is the login/refresh endpoint family a session authenticated with.
type Family string

const (
	FamilyStaff   Family = "staff"   // teachers and admins
	FamilyStudent Family = "student" // students
)

// Family returns the endpoint family that serves this role.
func (r Role) Family() Family {
	if r == RoleStudent {
		return FamilyStudent
	}
	return FamilyStaff
}

// AuthSession is the authenticated identity with its token pair.
type AuthSession struct {
	UserID       int64  `json:"user_id"`
	Role         Role   `json:"role"`
	Family       Family `json:"family"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"` // may be empty
	DisplayName  string `json:"display_name"`
}

// CanRefresh reports whether the session holds a refresh token.
func (s *AuthSession) CanRefresh() bool {
	return s.RefreshToken != ""
}
