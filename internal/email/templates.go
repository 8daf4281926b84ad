package email

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

type PasswordResetDetails struct {
	AppName   string
	UserName  string
	BaseURL   string
	Token     string
	ExpiresAt time.Time
}

// BuildPasswordReset renders the reset email. The link points at the
// reset page of BaseURL; the raw token is repeated for API clients.
func BuildPasswordReset(details PasswordResetDetails) Message {
	appName := strings.TrimSpace(details.AppName)
	if appName == "" {
		appName = "Percussion"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", details.UserName)
	fmt.Fprintf(&b, "A password reset was requested for your %s account.\n\n", appName)
	if base := strings.TrimRight(strings.TrimSpace(details.BaseURL), "/"); base != "" {
		fmt.Fprintf(&b, "Reset your password: %s/reset-password?token=%s\n\n", base, url.QueryEscape(details.Token))
	}
	fmt.Fprintf(&b, "Reset token: %s\n", details.Token)
	fmt.Fprintf(&b, "This token expires at %s.\n\n", details.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST"))
	b.WriteString("If you did not request a reset, you can ignore this message.\n")

	return Message{
		Subject: appName + " password reset",
		Body:    b.String(),
	}
}
