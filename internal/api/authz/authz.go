package authz

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// System role names.
const (
	RoleAdmin       = "Admin"
	RoleDesigner    = "Designer"
	RoleEditor      = "Editor"
	RoleContributor = "Contributor"
)

type AuthUser struct {
	Name  string
	Roles []string
}

// HasRole reports whether the user holds role, compared case-insensitively.
func (u *AuthUser) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// RequireUser returns the authenticated user or ErrUnauthenticated.
func RequireUser(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil || user.Name == "" {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// RequireRole succeeds when the context user holds any of roles. With no
// roles it only requires authentication.
func RequireRole(ctx context.Context, roles ...string) error {
	user, err := RequireUser(ctx)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if user.HasRole(role) {
			return nil
		}
	}
	return ErrForbidden
}
