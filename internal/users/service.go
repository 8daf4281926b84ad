package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/api/authz"
	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/db"
	dbgen "github.com/percussion/percussioncms-sub111/internal/db/generated"
	"github.com/percussion/percussioncms-sub111/internal/directory"
	"github.com/percussion/percussioncms-sub111/internal/email"
)

var _ data.Service[User, string] = (*Service)(nil)

type Options struct {
	// Directory is nil when LDAP is disabled.
	Directory directory.Directory
	// Mailer is nil when email is disabled.
	Mailer        email.EmailSender
	AppName       string
	BaseURL       string
	ResetTTL      time.Duration
	DefaultRegion string
}

type Service struct {
	db            *db.DB
	dir           directory.Directory
	mailer        email.EmailSender
	appName       string
	baseURL       string
	resetTTL      time.Duration
	defaultRegion string
	now           func() time.Time
}

func NewService(database *db.DB, opts Options) *Service {
	ttl := opts.ResetTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		db:            database,
		dir:           opts.Directory,
		mailer:        opts.Mailer,
		appName:       opts.AppName,
		baseURL:       opts.BaseURL,
		resetTTL:      ttl,
		defaultRegion: opts.DefaultRegion,
		now:           time.Now,
	}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// dedupeRoles drops blanks and case-insensitive duplicates, keeping order.
func dedupeRoles(roles []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		key := strings.ToLower(r)
		if r == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func resolveRoles(ctx context.Context, q *dbgen.Queries, names []string) ([]dbgen.Role, error) {
	roles := make([]dbgen.Role, 0, len(names))
	for _, name := range names {
		role, err := q.GetRoleByName(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, data.NewValidationError("roles", fmt.Sprintf("contains unknown role %q", name))
		}
		if err != nil {
			return nil, fmt.Errorf("load role %s: %w", name, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func assignRoles(ctx context.Context, q *dbgen.Queries, userID int64, roles []dbgen.Role) error {
	if err := q.ClearUserRoles(ctx, userID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	for _, role := range roles {
		if err := q.AddUserRole(ctx, dbgen.AddUserRoleParams{UserID: userID, RoleID: role.ID}); err != nil {
			return fmt.Errorf("assign role %s: %w", role.Name, err)
		}
	}
	return nil
}

func (s *Service) toUser(ctx context.Context, q *dbgen.Queries, row dbgen.User) (User, error) {
	roles, err := q.ListRolesForUser(ctx, row.ID)
	if err != nil {
		return User{}, fmt.Errorf("list roles for %s: %w", row.Name, err)
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return User{
		Name:         row.Name,
		Email:        row.Email.String,
		Roles:        names,
		ProviderType: ProviderType(row.ProviderType),
		Phone:        row.Phone.String,
	}, nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// isLastAdmin reports whether userID is the only holder of the Admin role.
func isLastAdmin(ctx context.Context, q *dbgen.Queries, userID int64) (bool, error) {
	admin, err := q.GetRoleByName(ctx, authz.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("load admin role: %w", err)
	}
	roles, err := q.ListRolesForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list roles: %w", err)
	}
	held := false
	for _, r := range roles {
		if r.ID == admin.ID {
			held = true
			break
		}
	}
	if !held {
		return false, nil
	}
	count, err := q.CountUsersWithRole(ctx, admin.ID)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count <= 1, nil
}

// Create adds a user. INTERNAL users need a password that passes the
// strength policy; DIRECTORY users never store one.
func (s *Service) Create(ctx context.Context, user User) (User, error) {
	if err := data.Validate(user); err != nil {
		return User{}, err
	}
	if user.ProviderType == "" {
		user.ProviderType = ProviderInternal
	}

	var hash sql.NullString
	if user.ProviderType == ProviderInternal {
		if reason := ValidatePasswordStrength(user.Password); reason != "" {
			return User{}, data.NewValidationError("password", reason)
		}
		h, err := HashPassword(user.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = nullString(h)
	}

	var created User
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		if _, err := tx.Queries.GetUserByName(ctx, user.Name); err == nil {
			return fmt.Errorf("user %s: %w", user.Name, ErrConflict)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check user: %w", err)
		}

		roles, err := resolveRoles(ctx, tx.Queries, dedupeRoles(user.Roles))
		if err != nil {
			return err
		}

		now := db.Timestamp(s.now())
		row, err := tx.Queries.CreateUser(ctx, dbgen.CreateUserParams{
			Name:         user.Name,
			Email:        nullString(user.Email),
			Phone:        nullString(directory.NormalizePhone(user.Phone, s.defaultRegion)),
			PasswordHash: hash,
			ProviderType: string(user.ProviderType),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := assignRoles(ctx, tx.Queries, row.ID, roles); err != nil {
			return err
		}
		created, err = s.toUser(ctx, tx.Queries, row)
		return err
	})
	if err != nil {
		return User{}, err
	}

	log.Ctx(ctx).Info().
		Str("target_user", created.Name).
		Str("provider", string(created.ProviderType)).
		Strs("roles", created.Roles).
		Msg("User created")
	return created, nil
}

// Update replaces email, phone and roles, and the password when one is given
// for an INTERNAL user.
func (s *Service) Update(ctx context.Context, user User) (User, error) {
	if err := data.Validate(user); err != nil {
		return User{}, err
	}

	var updated User
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		row, err := tx.Queries.GetUserByName(ctx, user.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", user.Name, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user.ProviderType != "" && string(user.ProviderType) != row.ProviderType {
			return data.NewValidationError("providerType", "cannot be changed")
		}

		roles, err := resolveRoles(ctx, tx.Queries, dedupeRoles(user.Roles))
		if err != nil {
			return err
		}
		if !hasRole(user.Roles, authz.RoleAdmin) {
			last, err := isLastAdmin(ctx, tx.Queries, row.ID)
			if err != nil {
				return err
			}
			if last {
				return fmt.Errorf("removing Admin from the last administrator: %w", ErrForbidden)
			}
		}

		now := db.Timestamp(s.now())
		if user.Password != "" {
			if row.ProviderType != string(ProviderInternal) {
				return data.NewValidationError("password", "cannot be set for directory users")
			}
			if reason := ValidatePasswordStrength(user.Password); reason != "" {
				return data.NewValidationError("password", reason)
			}
			hash, err := HashPassword(user.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			if err := tx.Queries.UpdateUserPassword(ctx, dbgen.UpdateUserPasswordParams{
				PasswordHash: nullString(hash),
				UpdatedAt:    now,
				ID:           row.ID,
			}); err != nil {
				return fmt.Errorf("update password: %w", err)
			}
		}

		if err := tx.Queries.UpdateUser(ctx, dbgen.UpdateUserParams{
			Email:     nullString(user.Email),
			Phone:     nullString(directory.NormalizePhone(user.Phone, s.defaultRegion)),
			UpdatedAt: now,
			ID:        row.ID,
		}); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := assignRoles(ctx, tx.Queries, row.ID, roles); err != nil {
			return err
		}

		fresh, err := tx.Queries.GetUserByID(ctx, row.ID)
		if err != nil {
			return fmt.Errorf("reload user: %w", err)
		}
		updated, err = s.toUser(ctx, tx.Queries, fresh)
		return err
	})
	if err != nil {
		return User{}, err
	}
	log.Ctx(ctx).Info().Str("target_user", updated.Name).Strs("roles", updated.Roles).Msg("User updated")
	return updated, nil
}

// Save creates user when the name is unknown and updates it otherwise.
func (s *Service) Save(ctx context.Context, user User) (User, error) {
	_, err := s.db.Queries.GetUserByName(ctx, user.Name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.Create(ctx, user)
	case err != nil:
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return s.Update(ctx, user)
}

// Delete removes a user. The acting user, taken from ctx, cannot delete
// themselves, and the last administrator cannot be deleted.
func (s *Service) Delete(ctx context.Context, name string) error {
	if actor := authz.UserFromContext(ctx); actor != nil && strings.EqualFold(actor.Name, name) {
		return fmt.Errorf("deleting the current user: %w", ErrForbidden)
	}

	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		row, err := tx.Queries.GetUserByName(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", name, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		last, err := isLastAdmin(ctx, tx.Queries, row.ID)
		if err != nil {
			return err
		}
		if last {
			return fmt.Errorf("deleting the last administrator: %w", ErrForbidden)
		}
		if err := tx.Queries.DeleteUser(ctx, row.ID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("target_user", name).Msg("User deleted")
	return nil
}

func (s *Service) Find(ctx context.Context, name string) (User, error) {
	row, err := s.db.Queries.GetUserByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return s.toUser(ctx, s.db.Queries, row)
}

// FindAll returns every user ordered by name.
func (s *Service) FindAll(ctx context.Context) ([]User, error) {
	total, err := s.db.Queries.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	rows, err := s.db.Queries.ListUsers(ctx, dbgen.ListUsersParams{Limit: total, Offset: 0})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]User, 0, len(rows))
	for _, row := range rows {
		u, err := s.toUser(ctx, s.db.Queries, row)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Names returns every user name, sorted case-insensitively.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	names, err := s.db.Queries.ListUserNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user names: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Service) List(ctx context.Context, req data.PageRequest) (data.PagedResult[User], error) {
	if err := data.Validate(req); err != nil {
		return data.PagedResult[User]{}, err
	}
	total, err := s.db.Queries.CountUsers(ctx)
	if err != nil {
		return data.PagedResult[User]{}, fmt.Errorf("count users: %w", err)
	}
	rows, err := s.db.Queries.ListUsers(ctx, dbgen.ListUsersParams{
		Limit:  int64(req.MaxResults),
		Offset: int64(req.Offset()),
	})
	if err != nil {
		return data.PagedResult[User]{}, fmt.Errorf("list users: %w", err)
	}
	items := make([]User, 0, len(rows))
	for _, row := range rows {
		u, err := s.toUser(ctx, s.db.Queries, row)
		if err != nil {
			return data.PagedResult[User]{}, err
		}
		items = append(items, u)
	}
	return data.NewPagedResult(items, req, int(total)), nil
}

// ChangePassword replaces the password of an INTERNAL user after verifying
// the current one.
func (s *Service) ChangePassword(ctx context.Context, name, oldPassword, newPassword string) error {
	row, err := s.db.Queries.GetUserByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if row.ProviderType != string(ProviderInternal) || !row.PasswordHash.Valid {
		return fmt.Errorf("directory users change their password in the directory: %w", ErrInvalid)
	}
	if !VerifyPassword(row.PasswordHash.String, oldPassword) {
		return ErrUnauthenticated
	}
	if reason := ValidatePasswordStrength(newPassword); reason != "" {
		return data.NewValidationError("newPassword", reason)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.Queries.UpdateUserPassword(ctx, dbgen.UpdateUserPasswordParams{
		PasswordHash: nullString(hash),
		UpdatedAt:    db.Timestamp(s.now()),
		ID:           row.ID,
	}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	log.Ctx(ctx).Info().Str("target_user", name).Msg("Password changed")
	return nil
}

// Authenticate checks credentials against the local hash or the directory,
// depending on the user's provider.
func (s *Service) Authenticate(ctx context.Context, name, password string) (User, error) {
	row, err := s.db.Queries.GetUserByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUnauthenticated
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}

	switch ProviderType(row.ProviderType) {
	case ProviderInternal:
		if !row.PasswordHash.Valid || !VerifyPassword(row.PasswordHash.String, password) {
			return User{}, ErrUnauthenticated
		}
	case ProviderDirectory:
		if s.dir == nil {
			return User{}, ErrUnauthenticated
		}
		if err := s.dir.Authenticate(ctx, row.Name, password); err != nil {
			if errors.Is(err, directory.ErrInvalidCredentials) || errors.Is(err, directory.ErrNotFound) {
				return User{}, ErrUnauthenticated
			}
			return User{}, fmt.Errorf("directory authentication: %w", err)
		}
	default:
		return User{}, ErrUnauthenticated
	}

	return s.toUser(ctx, s.db.Queries, row)
}

// SearchDirectory lists directory entries matching query, marking nothing
// about local accounts.
func (s *Service) SearchDirectory(ctx context.Context, query string, limit int) ([]directory.User, error) {
	if s.dir == nil {
		return nil, ErrDirectoryDisabled
	}
	found, err := s.dir.Search(ctx, query, limit)
	if errors.Is(err, directory.ErrDisabled) {
		return nil, ErrDirectoryDisabled
	}
	return found, err
}

// ImportDirectoryUsers creates DIRECTORY users for names found in the
// directory. Every name gets a result; existing users are DUPLICATE.
func (s *Service) ImportDirectoryUsers(ctx context.Context, names, roles []string) ([]ImportedUser, error) {
	if s.dir == nil {
		return nil, ErrDirectoryDisabled
	}
	roles = dedupeRoles(roles)
	if len(roles) == 0 {
		return nil, data.NewValidationError("roles", "must contain at least one role")
	}
	if _, err := resolveRoles(ctx, s.db.Queries, roles); err != nil {
		return nil, err
	}

	results := make([]ImportedUser, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := s.db.Queries.GetUserByName(ctx, name); err == nil {
			results = append(results, ImportedUser{Name: name, Status: ImportDuplicate})
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			results = append(results, ImportedUser{Name: name, Status: ImportError, Message: err.Error()})
			continue
		}

		entry, err := s.dir.Lookup(ctx, name)
		if errors.Is(err, directory.ErrNotFound) {
			results = append(results, ImportedUser{Name: name, Status: ImportNotFound})
			continue
		}
		if err != nil {
			results = append(results, ImportedUser{Name: name, Status: ImportError, Message: err.Error()})
			continue
		}

		_, err = s.Create(ctx, User{
			Name:         entry.Name,
			Email:        entry.Email,
			Phone:        entry.Phone,
			Roles:        roles,
			ProviderType: ProviderDirectory,
		})
		switch {
		case errors.Is(err, ErrConflict):
			results = append(results, ImportedUser{Name: name, Status: ImportDuplicate})
		case err != nil:
			results = append(results, ImportedUser{Name: name, Status: ImportError, Message: err.Error()})
		default:
			results = append(results, ImportedUser{Name: entry.Name, Status: ImportSuccess})
		}
	}
	return results, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.Queries.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	roles := make([]Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, Role{Name: r.Name, Description: r.Description, System: r.IsSystem})
	}
	sort.Slice(roles, func(i, j int) bool {
		return strings.ToLower(roles[i].Name) < strings.ToLower(roles[j].Name)
	})
	return roles, nil
}

func (s *Service) CreateRole(ctx context.Context, role Role) (Role, error) {
	if err := data.Validate(role); err != nil {
		return Role{}, err
	}
	if _, err := s.db.Queries.GetRoleByName(ctx, role.Name); err == nil {
		return Role{}, fmt.Errorf("role %s: %w", role.Name, ErrConflict)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Role{}, fmt.Errorf("check role: %w", err)
	}
	row, err := s.db.Queries.CreateRole(ctx, dbgen.CreateRoleParams{
		Name:        role.Name,
		Description: strings.TrimSpace(role.Description),
	})
	if err != nil {
		return Role{}, fmt.Errorf("create role: %w", err)
	}
	log.Ctx(ctx).Info().Str("role", row.Name).Msg("Role created")
	return Role{Name: row.Name, Description: row.Description, System: row.IsSystem}, nil
}

// DeleteRole removes a custom role and its assignments.
func (s *Service) DeleteRole(ctx context.Context, name string) error {
	row, err := s.db.Queries.GetRoleByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("role %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load role: %w", err)
	}
	if row.IsSystem {
		return fmt.Errorf("system role %s: %w", row.Name, ErrForbidden)
	}
	if err := s.db.Queries.DeleteRole(ctx, row.ID); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	log.Ctx(ctx).Info().Str("role", row.Name).Msg("Role deleted")
	return nil
}
