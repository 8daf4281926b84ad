// Package directory looks up and authenticates users against an LDAP server.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/config"
)

var (
	ErrDisabled           = errors.New("directory service is not enabled")
	ErrNotFound           = errors.New("directory user not found")
	ErrInvalidCredentials = errors.New("invalid directory credentials")
	ErrUnavailable        = errors.New("directory service unavailable")
)

const defaultSearchLimit = 100

// User is a person entry from the directory.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	DN    string `json:"dn"`
}

// Directory is implemented by Client and by test fakes.
type Directory interface {
	Search(ctx context.Context, query string, limit int) ([]User, error)
	Lookup(ctx context.Context, name string) (User, error)
	Authenticate(ctx context.Context, name, password string) error
}

type conn interface {
	Bind(username, password string) error
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	Close() error
}

type ldapConn struct {
	*ldap.Conn
}

func (c ldapConn) Close() error {
	c.Conn.Close()
	return nil
}

type dialFunc func(ctx context.Context) (conn, error)

// Client dials a fresh connection for every call.
type Client struct {
	cfg  config.LDAPConfig
	dial dialFunc
}

func NewClient(cfg config.LDAPConfig) *Client {
	c := &Client{cfg: cfg}
	c.dial = c.dialLDAP
	return c
}

func (c *Client) timeout() time.Duration {
	if c.cfg.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.cfg.TimeoutSeconds) * time.Second
}

func (c *Client) dialLDAP(ctx context.Context) (conn, error) {
	dialer := &net.Dialer{Timeout: c.timeout()}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	l, err := ldap.DialURL(c.cfg.URL, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	l.SetTimeout(c.timeout())
	return ldapConn{Conn: l}, nil
}

// open dials and binds with the service account.
func (c *Client) open(ctx context.Context) (conn, error) {
	if !c.cfg.Enabled {
		return nil, ErrDisabled
	}
	l, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	if c.cfg.BindDN != "" {
		if err := l.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("%w: service bind: %v", ErrUnavailable, err)
		}
	}
	return l, nil
}

// Search returns entries whose name attribute matches query. A '*' in query
// is kept as a wildcard; every other filter metacharacter is escaped.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = "*"
	}

	l, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	users, err := c.search(l, c.filter(escapeKeepingWildcards(query)), limit)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().Str("query", query).Int("results", len(users)).Msg("Directory search")
	return users, nil
}

// Lookup finds the entry whose name attribute equals name exactly.
func (c *Client) Lookup(ctx context.Context, name string) (User, error) {
	l, err := c.open(ctx)
	if err != nil {
		return User{}, err
	}
	defer l.Close()
	return c.lookup(l, name)
}

// Authenticate binds as the user's DN. An empty password never reaches the
// server since many servers treat it as an anonymous bind.
func (c *Client) Authenticate(ctx context.Context, name, password string) error {
	if password == "" {
		return ErrInvalidCredentials
	}
	l, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	user, err := c.lookup(l, name)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}

	if err := l.Bind(user.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: user bind: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) lookup(l conn, name string) (User, error) {
	users, err := c.search(l, c.filter(ldap.EscapeFilter(name)), 2)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, name) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (c *Client) filter(escapedName string) string {
	return fmt.Sprintf("(&%s(%s=%s))", c.cfg.UserFilter, c.cfg.NameAttribute, escapedName)
}

func (c *Client) search(l conn, filter string, limit int) ([]User, error) {
	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		limit,
		int(c.timeout().Seconds()),
		false,
		filter,
		[]string{"dn", c.cfg.NameAttribute, c.cfg.EmailAttribute, c.cfg.PhoneAttribute},
		nil,
	)
	res, err := l.SearchWithPaging(req, c.cfg.PageSize)
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}
	if res == nil {
		return []User{}, nil
	}

	users := make([]User, 0, len(res.Entries))
	for _, e := range res.Entries {
		name := e.GetAttributeValue(c.cfg.NameAttribute)
		if name == "" {
			continue
		}
		users = append(users, User{
			Name:  name,
			Email: e.GetAttributeValue(c.cfg.EmailAttribute),
			Phone: NormalizePhone(e.GetAttributeValue(c.cfg.PhoneAttribute), c.cfg.DefaultRegion),
			DN:    e.DN,
		})
		if len(users) == limit {
			break
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Name) < strings.ToLower(users[j].Name)
	})
	return users, nil
}

func escapeKeepingWildcards(query string) string {
	parts := strings.Split(query, "*")
	for i, p := range parts {
		parts[i] = ldap.EscapeFilter(p)
	}
	return strings.Join(parts, "*")
}

// NormalizePhone formats raw as E.164. Values that do not parse as a valid
// number are returned unchanged.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
