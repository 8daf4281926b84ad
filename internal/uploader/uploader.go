// Package uploader pushes batches of XML item documents to a running server's
// content import endpoint.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/percussion/percussioncms-sub111/internal/content"
)

const (
	loginPath  = "/api/v1/auth/login"
	importPath = "/api/v1/content/import"

	defaultRetries    = 3
	defaultRate       = 5
	defaultRetryDelay = 500 * time.Millisecond
	maxErrorBody      = 4 << 10
)

var ErrLoginFailed = errors.New("login failed")

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// ImportSummary mirrors the import endpoint response.
type ImportSummary struct {
	Results []content.ImportResult `json:"results"`
	Created int                    `json:"created"`
	Updated int                    `json:"updated"`
	Failed  int                    `json:"failed"`
}

type Options struct {
	Server   string
	User     string
	Password string
	// Retries is the number of attempts after the first one.
	Retries    uint
	Rate       float64
	RetryDelay time.Duration
	HTTPClient *http.Client
}

type Client struct {
	http       *http.Client
	base       *url.URL
	user       string
	password   string
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.Server, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", opts.Server)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		copied := *httpClient
		copied.Jar = jar
		httpClient = &copied
	}

	perSecond := opts.Rate
	if perSecond <= 0 {
		perSecond = defaultRate
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	return &Client{
		http:       httpClient,
		base:       base,
		user:       opts.User,
		password:   opts.Password,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		attempts:   opts.Retries + 1,
		retryDelay: delay,
	}, nil
}

// retryable reports whether a failed call may succeed on another attempt:
// network errors and 5xx responses.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr)
}

func (c *Client) retryOptions(ctx context.Context, target string) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Str("target", target).Msg("Retrying request")
		}),
	}
}

// post sends body and decodes a 2xx JSON response into dst when dst is not nil.
func (c *Client) post(ctx context.Context, path, contentType string, body []byte, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// The request was accepted, so a bad body must never be retried.
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %v", err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(raw))
}

// Login opens a session; the cookie is kept in the client jar.
func (c *Client) Login(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{"name": c.user, "password": c.password})
	if err != nil {
		return err
	}
	err = retry.Do(func() error {
		return c.post(ctx, loginPath, "application/json", payload, nil)
	}, c.retryOptions(ctx, loginPath)...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	return nil
}

// Import posts one XML document to the import endpoint.
func (c *Client) Import(ctx context.Context, name string, doc []byte) (ImportSummary, error) {
	var summary ImportSummary
	err := retry.Do(func() error {
		summary = ImportSummary{}
		return c.post(ctx, importPath, "application/xml", doc, &summary)
	}, c.retryOptions(ctx, name)...)
	return summary, err
}

// Validate checks that doc is a well-formed items document before upload.
func Validate(doc []byte) (int, error) {
	parsed, err := content.ParseDocument(bytes.NewReader(doc))
	if err != nil {
		return 0, err
	}
	return len(parsed.Items), nil
}
