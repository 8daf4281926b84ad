// internal/api/users/handlers.go
package users

import (
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/api/apiutil"
	"github.com/percussion/percussioncms-sub111/internal/api/authz"
	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/directory"
	"github.com/percussion/percussioncms-sub111/internal/users"
)

var (
	service     *users.Service
	serviceOnce sync.Once
)

const (
	defaultDirectoryLimit = 50
	maxDirectoryLimit     = 500
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *users.Service) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
	})
}

func loadService(w http.ResponseWriter, r *http.Request) *users.Service {
	if service == nil {
		log.Ctx(r.Context()).Error().Msg("User service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return service
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

// GET /api/v1/users?startIndex=&maxResults=
func HandleListUsers(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	page, err := apiutil.PageRequestFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	result, err := svc.List(r.Context(), page)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// POST /api/v1/users
func HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	var req users.User
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	created, err := svc.Create(r.Context(), req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/users/"+created.Name)
	writeJSON(w, r, http.StatusCreated, created)
}

// GET /api/v1/users/{name}
func HandleGetUser(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	user, err := svc.Find(r.Context(), r.PathValue("name"))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

// PUT /api/v1/users/{name}
func HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	var req users.User
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	name := r.PathValue("name")
	if req.Name != "" && !strings.EqualFold(req.Name, name) {
		apiutil.WriteError(w, r, data.NewValidationError("name", "does not match the request path"))
		return
	}
	req.Name = name

	updated, err := svc.Update(r.Context(), req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// DELETE /api/v1/users/{name}
func HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	name := r.PathValue("name")
	if err := svc.Delete(r.Context(), name); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data.NewNoContent("Deleted user "+name))
}

// GET /api/v1/users/current
func HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	authUser, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	user, err := svc.Find(r.Context(), authUser.Name)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// POST /api/v1/users/current/password
func HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	authUser, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req changePasswordRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	if err := data.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if err := svc.ChangePassword(r.Context(), authUser.Name, req.OldPassword, req.NewPassword); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data.StatusMessage{Status: data.StatusSuccess})
}

// GET /api/v1/users/directory?query=&limit=
func HandleSearchDirectory(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		query = "*"
	}
	limit, err := apiutil.LimitFromQuery(r, defaultDirectoryLimit, maxDirectoryLimit)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}

	found, err := svc.SearchDirectory(r.Context(), query, limit)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if found == nil {
		found = []directory.User{}
	}
	writeJSON(w, r, http.StatusOK, found)
}

type importRequest struct {
	Names []string `json:"names" validate:"min=1,max=500,dive,required"`
	Roles []string `json:"roles" validate:"min=1,dive,required"`
}

// POST /api/v1/users/directory/import
func HandleImportDirectoryUsers(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	var req importRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	if err := data.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	results, err := svc.ImportDirectoryUsers(r.Context(), req.Names, req.Roles)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, results)
}

// GET /api/v1/roles?startIndex=1&maxResults=25
func HandleListRoles(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	page, err := apiutil.PageRequestFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	roles, err := svc.ListRoles(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data.Page(roles, page))
}

// POST /api/v1/roles
func HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	var req users.Role
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	role, err := svc.CreateRole(r.Context(), req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, role)
}

// DELETE /api/v1/roles/{name}
func HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	name := r.PathValue("name")
	if err := svc.DeleteRole(r.Context(), name); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data.NewNoContent("Deleted role "+name))
}
