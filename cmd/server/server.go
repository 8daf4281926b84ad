// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/api"
	activityapi "github.com/percussion/percussioncms-sub111/internal/api/activity"
	"github.com/percussion/percussioncms-sub111/internal/api/auth"
	"github.com/percussion/percussioncms-sub111/internal/api/authz"
	contentapi "github.com/percussion/percussioncms-sub111/internal/api/content"
	emsapi "github.com/percussion/percussioncms-sub111/internal/api/ems"
	usersapi "github.com/percussion/percussioncms-sub111/internal/api/users"
	"github.com/percussion/percussioncms-sub111/internal/config"
)

func initHandlers(cfg *config.Config, svc *services) {
	auth.InitHandlers(cfg, svc.users, svc.limiter)
	usersapi.InitHandlers(svc.users)
	contentapi.InitHandlers(svc.content)
	activityapi.InitHandlers(svc.activity)
	emsapi.InitHandlers(svc.ems, cfg.Location())
	log.Info().Msg("Handlers initialized")
}

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	// The last entry wraps outermost, so the request id and logger exist
	// before recovery, logging and auth run.
	handler := api.ChainMiddleware(
		router,
		api.WithAuth,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// guard wraps h so only users holding one of roles reach it. No roles means
// any authenticated user.
func guard(h http.HandlerFunc, roles ...string) http.Handler {
	return api.RequireRoles(roles...)(h)
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auth routes
	mux.HandleFunc("POST /api/v1/auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.HandleLogout)
	mux.HandleFunc("GET /api/v1/auth/session", auth.HandleSession)
	mux.HandleFunc("POST /api/v1/auth/password/reset-request", auth.HandleResetRequest)
	mux.HandleFunc("POST /api/v1/auth/password/reset", auth.HandleResetPassword)

	// EMS proxy routes
	mux.Handle("GET /api/v1/ems/buildings", guard(emsapi.HandleBuildings))
	mux.Handle("GET /api/v1/ems/eventtypes", guard(emsapi.HandleEventTypes))
	mux.Handle("GET /api/v1/ems/grouptypes", guard(emsapi.HandleGroupTypes))
	mux.Handle("GET /api/v1/ems/statuses", guard(emsapi.HandleStatuses))
	mux.Handle("GET /api/v1/ems/bookings", guard(emsapi.HandleBookings))
	mux.Handle("GET /api/v1/ems/calendars", guard(emsapi.HandleCalendars))
	mux.Handle("GET /api/v1/ems/calendars/eventtypes", guard(emsapi.HandleCalendarEventTypes))
	mux.Handle("GET /api/v1/ems/calendars/{id}/events", guard(emsapi.HandleCalendarEvents))
	mux.Handle("GET /api/v1/ems/calendars/{id}/events.ics", guard(emsapi.HandleCalendarICS))

	// Activity routes
	mux.HandleFunc("POST /api/v1/activity/hits", activityapi.HandleRecordHit)
	mux.Handle("POST /api/v1/activity/content", guard(activityapi.HandleContentActivity))
	mux.Handle("POST /api/v1/activity/traffic", guard(activityapi.HandleTraffic))
	mux.Handle("POST /api/v1/activity/traffic/details", guard(activityapi.HandleTrafficDetails))

	// Content routes
	mux.Handle("POST /api/v1/content/import", guard(contentapi.HandleImport, authz.RoleAdmin, authz.RoleEditor))
	mux.Handle("GET /api/v1/content/items", guard(contentapi.HandleListItems))
	mux.Handle("GET /api/v1/content/items/{id}", guard(contentapi.HandleGetItem))
	mux.Handle("POST /api/v1/content/items/{id}/state", guard(contentapi.HandleChangeState, authz.RoleAdmin, authz.RoleEditor))

	// User routes
	mux.Handle("GET /api/v1/users/current", guard(usersapi.HandleCurrentUser))
	mux.Handle("POST /api/v1/users/current/password", guard(usersapi.HandleChangePassword))
	mux.Handle("GET /api/v1/users/directory", guard(usersapi.HandleSearchDirectory, authz.RoleAdmin))
	mux.Handle("POST /api/v1/users/directory/import", guard(usersapi.HandleImportDirectoryUsers, authz.RoleAdmin))
	mux.Handle("GET /api/v1/users", guard(usersapi.HandleListUsers, authz.RoleAdmin))
	mux.Handle("POST /api/v1/users", guard(usersapi.HandleCreateUser, authz.RoleAdmin))
	mux.Handle("GET /api/v1/users/{name}", guard(usersapi.HandleGetUser, authz.RoleAdmin))
	mux.Handle("PUT /api/v1/users/{name}", guard(usersapi.HandleUpdateUser, authz.RoleAdmin))
	mux.Handle("DELETE /api/v1/users/{name}", guard(usersapi.HandleDeleteUser, authz.RoleAdmin))

	// Role routes
	mux.Handle("GET /api/v1/roles", guard(usersapi.HandleListRoles, authz.RoleAdmin))
	mux.Handle("POST /api/v1/roles", guard(usersapi.HandleCreateRole, authz.RoleAdmin))
	mux.Handle("DELETE /api/v1/roles/{name}", guard(usersapi.HandleDeleteRole, authz.RoleAdmin))
}
