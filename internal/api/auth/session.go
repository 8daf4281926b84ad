package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/percussion/percussioncms-sub111/internal/api/authz"
	"github.com/percussion/percussioncms-sub111/internal/users"
)

const (
	authCookieName = "percussion_auth"
	authSessionTTL = 8 * time.Hour
)

var (
	errAuthConfigMissing = errors.New("auth configuration missing")
	errInvalidCookie     = errors.New("invalid auth cookie")
	errSessionExpired    = errors.New("auth session expired")
	errSessionRevoked    = errors.New("auth session user no longer exists")

	// ErrAccountLookup marks a session that could not be checked against
	// the account store.
	ErrAccountLookup = errors.New("session account lookup failed")
)

type authSession struct {
	Name      string   `json:"name"`
	Roles     []string `json:"roles"`
	ExpiresAt int64    `json:"exp"`
}

func isSecureCookie() bool {
	return appConfig == nil || appConfig.App.Environment != "development"
}

func secretKey() ([]byte, error) {
	if appConfig == nil || appConfig.App.SecretKey == "" {
		return nil, errAuthConfigMissing
	}
	return []byte(appConfig.App.SecretKey), nil
}

// SetAuthCookie issues a signed session cookie for user.
func SetAuthCookie(w http.ResponseWriter, user *authz.AuthUser) error {
	if w == nil || user == nil || user.Name == "" {
		return errors.New("auth session requires response and user")
	}

	expiresAt := now().Add(authSessionTTL)
	value, err := encodeSession(authSession{
		Name:      user.Name,
		Roles:     user.Roles,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
		MaxAge:   int(authSessionTTL.Seconds()),
	})
	return nil
}

func ClearAuthCookie(w http.ResponseWriter) {
	if w == nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// UserFromRequest returns the session user, or nil without error when the
// request carries no session cookie.
func UserFromRequest(r *http.Request) (*authz.AuthUser, error) {
	session, err := parseAuthCookie(r)
	if err != nil || session == nil {
		return nil, err
	}
	return &authz.AuthUser{Name: session.Name, Roles: session.Roles}, nil
}

// CurrentUser returns the session user with roles loaded from the account
// store. A session whose user no longer exists is rejected.
func CurrentUser(r *http.Request) (*authz.AuthUser, error) {
	sessionUser, err := UserFromRequest(r)
	if err != nil || sessionUser == nil {
		return nil, err
	}
	if accounts == nil {
		return nil, errAuthConfigMissing
	}

	user, err := accounts.Find(r.Context(), sessionUser.Name)
	if errors.Is(err, users.ErrNotFound) {
		return nil, errSessionRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccountLookup, err)
	}
	return &authz.AuthUser{Name: user.Name, Roles: user.Roles}, nil
}

func encodeSession(session authSession) (string, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return "", err
	}

	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	signature, err := signPayload(encodedPayload)
	if err != nil {
		return "", err
	}
	return encodedPayload + "." + signature, nil
}

func parseAuthCookie(r *http.Request) (*authSession, error) {
	if r == nil {
		return nil, nil
	}

	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}

	encodedPayload, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return nil, errInvalidCookie
	}

	expectedSignature, err := signPayload(encodedPayload)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return nil, errors.New("invalid auth cookie signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, errInvalidCookie
	}

	var session authSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, errInvalidCookie
	}
	if session.Name == "" {
		return nil, errInvalidCookie
	}
	if session.ExpiresAt <= now().Unix() {
		return nil, errSessionExpired
	}

	return &session, nil
}

func signPayload(payload string) (string, error) {
	key, err := secretKey()
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
