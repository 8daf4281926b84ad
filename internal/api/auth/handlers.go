package auth

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/api/apiutil"
	"github.com/percussion/percussioncms-sub111/internal/api/authz"
	"github.com/percussion/percussioncms-sub111/internal/config"
	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/ratelimit"
	"github.com/percussion/percussioncms-sub111/internal/users"
)

// Accounts is the part of the user service the auth endpoints need.
type Accounts interface {
	Authenticate(ctx context.Context, name, password string) (users.User, error)
	Find(ctx context.Context, name string) (users.User, error)
	RequestPasswordReset(ctx context.Context, address string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

var (
	appConfig *config.Config
	accounts  Accounts
	limiter   *ratelimit.Limiter
	now       = time.Now
)

func InitHandlers(cfg *config.Config, a Accounts, l *ratelimit.Limiter) {
	appConfig = cfg
	accounts = a
	limiter = l
}

type loginRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

type sessionResponse struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func clientIP(r *http.Request) string {
	trustProxy := appConfig != nil && appConfig.App.TrustProxy
	return ratelimit.GetClientIP(r, trustProxy)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	apiutil.WriteError(w, r, apiutil.HandlerError{
		Status:  http.StatusTooManyRequests,
		Message: "too many attempts, try again later",
	})
}

// POST /api/v1/auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if accounts == nil {
		logger.Error().Msg("Auth handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := data.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ip := clientIP(r)
	if limiter != nil {
		if result := limiter.CheckLogin(req.Name, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded("login", req.Name, ip, result.Reason)
			writeRateLimited(w, r, result.RetryAfter)
			return
		}
	}

	user, err := accounts.Authenticate(r.Context(), req.Name, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrUnauthenticated) && limiter != nil {
			if limiter.RecordLoginFailure(req.Name, ip) {
				logger.Warn().
					Str("login_name", ratelimit.SanitizeIdentifier(req.Name)).
					Str("ip", ip).
					Msg("Login locked out after repeated failures")
			}
		}
		apiutil.WriteError(w, r, err)
		return
	}
	if limiter != nil {
		limiter.ResetLogin(req.Name)
	}

	if err := SetAuthCookie(w, &authz.AuthUser{Name: user.Name, Roles: user.Roles}); err != nil {
		logger.Error().Err(err).Msg("Failed to set auth cookie")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("login_name", user.Name).Msg("User logged in")
	if err := apiutil.WriteJSON(w, http.StatusOK, sessionResponse{Name: user.Name, Roles: user.Roles}); err != nil {
		logger.Error().Err(err).Msg("Failed to write login response")
	}
}

// POST /api/v1/auth/logout
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/auth/session
func HandleSession(w http.ResponseWriter, r *http.Request) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, sessionResponse{Name: user.Name, Roles: user.Roles}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write session response")
	}
}

// POST /api/v1/auth/password/reset-request
//
// Always answers 202 for well-formed requests so callers cannot probe which
// addresses have accounts.
func HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	var req resetRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := data.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ip := clientIP(r)
	if limiter != nil {
		if result := limiter.CheckResetRequest(req.Email, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded("password_reset", req.Email, ip, result.Reason)
			writeRateLimited(w, r, result.RetryAfter)
			return
		}
		limiter.RecordResetRequest(req.Email, ip)
	}

	if err := accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusAccepted, data.StatusMessage{
		Status:  data.StatusSuccess,
		Message: "If the address belongs to an account, a reset link has been sent.",
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write reset request response")
	}
}

// POST /api/v1/auth/password/reset
func HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	if err := data.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if err := accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, data.StatusMessage{Status: data.StatusSuccess}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write reset response")
	}
}
