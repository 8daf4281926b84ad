// Package users administers CMS users, roles and password resets. Users are
// either INTERNAL, with a bcrypt password stored locally, or DIRECTORY,
// authenticated against LDAP.
package users

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalid           = errors.New("invalid request")
	ErrForbidden         = errors.New("operation not allowed")
	ErrUnauthenticated   = errors.New("invalid user name or password")
	ErrDirectoryDisabled = errors.New("directory service is not enabled")
)

type ProviderType string

const (
	ProviderInternal  ProviderType = "INTERNAL"
	ProviderDirectory ProviderType = "DIRECTORY"
)

type User struct {
	Name         string       `json:"name" validate:"required,max=50,principal"`
	Email        string       `json:"email,omitempty" validate:"omitempty,email"`
	Password     string       `json:"password,omitempty" validate:"max=72"`
	Roles        []string     `json:"roles" validate:"min=1,dive,required"`
	ProviderType ProviderType `json:"providerType" validate:"omitempty,oneof=INTERNAL DIRECTORY"`
	Phone        string       `json:"phone,omitempty" validate:"max=40"`
}

type Role struct {
	Name        string `json:"name" validate:"required,max=50,principal"`
	Description string `json:"description" validate:"max=255"`
	System      bool   `json:"system"`
}

type ImportStatus string

const (
	ImportSuccess   ImportStatus = "SUCCESS"
	ImportDuplicate ImportStatus = "DUPLICATE"
	ImportNotFound  ImportStatus = "NOT_FOUND"
	ImportError     ImportStatus = "ERROR"
)

type ImportedUser struct {
	Name    string       `json:"name"`
	Status  ImportStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}
