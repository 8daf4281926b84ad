// Package ratelimit throttles login attempts and password reset requests.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/config"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	// Login limits
	LoginMaxAttempts  int           // Failed attempts per user name before lockout
	LoginLockout      time.Duration // Lockout duration after max attempts
	LoginMaxIPPerHour int           // Failed attempts per IP per hour

	// Password reset request limits
	ResetCooldown     time.Duration // Minimum time between requests for one address
	ResetMaxPerHour   int           // Requests per address per hour
	ResetMaxIPPerHour int           // Requests per IP per hour

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		LoginMaxAttempts:  5,
		LoginLockout:      15 * time.Minute,
		LoginMaxIPPerHour: 50,
		ResetCooldown:     60 * time.Second,
		ResetMaxPerHour:   5,
		ResetMaxIPPerHour: 20,
	}
}

// ConfigFromSecurity applies the security section over the defaults.
func ConfigFromSecurity(sec config.SecurityConfig) *Config {
	cfg := DefaultConfig()
	if sec.LoginMaxAttempts > 0 {
		cfg.LoginMaxAttempts = sec.LoginMaxAttempts
	}
	if sec.LoginLockoutMinutes > 0 {
		cfg.LoginLockout = time.Duration(sec.LoginLockoutMinutes) * time.Minute
	}
	return cfg
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

type entry struct {
	count    int
	firstAt  time.Time // First request in window
	lastAt   time.Time // Most recent request
	lockedAt time.Time // When lockout started (zero if not locked)
}

// Limiter keeps per-name and per-IP counters in memory.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex
	// Keyed by hash of name, address or IP
	loginByName map[string]*entry
	loginByIP   map[string]*entry
	resetByAddr map[string]*entry
	resetByIP   map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		loginByName:   make(map[string]*entry),
		loginByIP:     make(map[string]*entry),
		resetByAddr:   make(map[string]*entry),
		resetByIP:     make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// CheckLogin reports whether a login attempt may proceed. It does not record
// the attempt; call RecordLoginFailure or ResetLogin with the outcome.
func (l *Limiter) CheckLogin(name, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	nameKey := l.hashKey("login:name:", normalizeIdentifier(name))
	ipKey := l.hashKey("login:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.loginByName[nameKey]; e != nil && !e.lockedAt.IsZero() {
		elapsed := now.Sub(e.lockedAt)
		if elapsed < l.config.LoginLockout {
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.LoginLockout - elapsed,
				Reason:     "lockout",
			}
		}
	}

	if e := l.loginByIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.LoginMaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordLoginFailure counts a failed attempt and reports whether it started
// a lockout for name.
func (l *Limiter) RecordLoginFailure(name, ip string) (lockedOut bool) {
	now := l.clock.Now()
	nameKey := l.hashKey("login:name:", normalizeIdentifier(name))
	ipKey := l.hashKey("login:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.loginByName[nameKey]
	switch {
	case e == nil:
		e = &entry{count: 1, firstAt: now, lastAt: now}
		l.loginByName[nameKey] = e
	case !e.lockedAt.IsZero() && now.Sub(e.lockedAt) >= l.config.LoginLockout:
		e = &entry{count: 1, firstAt: now, lastAt: now}
		l.loginByName[nameKey] = e
	default:
		e.count++
		e.lastAt = now
	}
	if e.count >= l.config.LoginMaxAttempts && e.lockedAt.IsZero() {
		e.lockedAt = now
		lockedOut = true
	}

	ipEntry := l.loginByIP[ipKey]
	if ipEntry == nil || now.Sub(ipEntry.firstAt) >= time.Hour {
		l.loginByIP[ipKey] = &entry{count: 1, firstAt: now, lastAt: now}
	} else {
		ipEntry.count++
		ipEntry.lastAt = now
	}

	return lockedOut
}

// ResetLogin clears the failure counter for name after a successful login.
func (l *Limiter) ResetLogin(name string) {
	nameKey := l.hashKey("login:name:", normalizeIdentifier(name))
	l.mu.Lock()
	delete(l.loginByName, nameKey)
	l.mu.Unlock()
}

// CheckResetRequest reports whether a reset may be requested for address.
func (l *Limiter) CheckResetRequest(address, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	addrKey := l.hashKey("reset:addr:", normalizeIdentifier(address))
	ipKey := l.hashKey("reset:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.resetByAddr[addrKey]; e != nil {
		elapsed := now.Sub(e.lastAt)
		if elapsed < l.config.ResetCooldown {
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.ResetCooldown - elapsed,
				Reason:     "cooldown",
			}
		}
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.ResetMaxPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "hourly_limit",
			}
		}
	}

	if e := l.resetByIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.ResetMaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordResetRequest counts a reset request for address and ip.
func (l *Limiter) RecordResetRequest(address, ip string) {
	now := l.clock.Now()
	addrKey := l.hashKey("reset:addr:", normalizeIdentifier(address))
	ipKey := l.hashKey("reset:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	bumpHourly(l.resetByAddr, addrKey, now)
	bumpHourly(l.resetByIP, ipKey, now)
}

func bumpHourly(m map[string]*entry, key string, now time.Time) {
	e := m[key]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		m[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	maxNameAge := l.config.LoginLockout + time.Hour
	for k, e := range l.loginByName {
		if now.Sub(e.lastAt) > maxNameAge {
			delete(l.loginByName, k)
		}
	}
	for _, m := range []map[string]*entry{l.loginByIP, l.resetByAddr, l.resetByIP} {
		for k, e := range m {
			if now.Sub(e.lastAt) > time.Hour {
				delete(m, k)
			}
		}
	}
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost public IP from X-Forwarded-For.
// When trustProxy is false, ignores X-Forwarded-For entirely.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			return strings.TrimSpace(parts[len(parts)-1])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
			return r.RemoteAddr
		}
		if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
			candidate := r.RemoteAddr[:idx]
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
		return r.RemoteAddr
	}
	return ip
}

var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP checks if an IP is in a private/reserved range, including
// IPv4-mapped IPv6 addresses.
func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeIdentifier masks a user name or email address for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if at := strings.Index(identifier, "@"); at >= 0 {
		if at > 2 {
			return identifier[:2] + "***" + identifier[at:]
		}
		return "***" + identifier[at:]
	}
	if len(identifier) > 2 {
		return identifier[:2] + "***"
	}
	return "***"
}

// LogRateLimitExceeded logs a rate limit event with sanitized identifier.
func LogRateLimitExceeded(limitType, identifier, ip, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Rate limit exceeded")
}
