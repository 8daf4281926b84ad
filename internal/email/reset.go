package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const resetEmailTimeout = 10 * time.Second

// SendPasswordReset delivers msg asynchronously. The send outlives the
// caller's request context but is bounded by resetEmailTimeout.
func SendPasswordReset(ctx context.Context, sender EmailSender, recipient string, msg Message, logger *zerolog.Logger) {
	if sender == nil {
		return
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || msg.Subject == "" || msg.Body == "" {
		return
	}

	go func() {
		sendCtx, cancel := newEmailContext(ctx, resetEmailTimeout)
		defer cancel()
		if err := sender.Send(sendCtx, recipient, msg.Subject, msg.Body); err != nil && logger != nil {
			logger.Error().Err(err).Str("recipient", recipient).Msg("Failed to send password reset email")
		}
	}()
}
