package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/db"
	dbgen "github.com/percussion/percussioncms-sub111/internal/db/generated"
	"github.com/percussion/percussioncms-sub111/internal/email"
)

const resetTokenBytes = 32

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestPasswordReset issues a reset token to every INTERNAL user with
// address. Unknown addresses succeed silently so callers cannot probe for
// accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return data.NewValidationError("email", "is required")
	}
	logger := log.Ctx(ctx)

	rows, err := s.db.Queries.ListInternalUsersByEmail(ctx, nullString(address))
	if err != nil {
		return fmt.Errorf("find users by email: %w", err)
	}
	if len(rows) == 0 {
		logger.Debug().Msg("Password reset requested for unknown email")
		return nil
	}

	for _, row := range rows {
		token, err := newResetToken()
		if err != nil {
			return fmt.Errorf("generate reset token: %w", err)
		}
		now := s.now()
		expiresAt := db.Timestamp(now.Add(s.resetTTL))

		err = s.db.RunInTx(ctx, func(tx *db.DB) error {
			if err := tx.Queries.DeletePasswordResetsForUser(ctx, row.ID); err != nil {
				return fmt.Errorf("clear previous resets: %w", err)
			}
			return tx.Queries.CreatePasswordReset(ctx, dbgen.CreatePasswordResetParams{
				TokenHash: hashResetToken(token),
				UserID:    row.ID,
				ExpiresAt: expiresAt,
				CreatedAt: db.Timestamp(now),
			})
		})
		if err != nil {
			return fmt.Errorf("store reset token: %w", err)
		}

		if s.mailer == nil {
			logger.Debug().Str("target_user", row.Name).Msg("Email disabled, reset token not delivered")
			continue
		}
		msg := email.BuildPasswordReset(email.PasswordResetDetails{
			AppName:   s.appName,
			UserName:  row.Name,
			BaseURL:   s.baseURL,
			Token:     token,
			ExpiresAt: expiresAt,
		})
		email.SendPasswordReset(ctx, s.mailer, row.Email.String, msg, logger)
		logger.Info().Str("target_user", row.Name).Time("expires_at", expiresAt).Msg("Password reset issued")
	}
	return nil
}

// ResetPassword consumes token and sets newPassword. Unknown, expired or
// already used tokens are ErrInvalid.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("reset token is required: %w", ErrInvalid)
	}
	if reason := ValidatePasswordStrength(newPassword); reason != "" {
		return data.NewValidationError("password", reason)
	}

	var userName string
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		reset, err := tx.Queries.GetPasswordReset(ctx, hashResetToken(token))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("unknown reset token: %w", ErrInvalid)
		}
		if err != nil {
			return fmt.Errorf("load reset token: %w", err)
		}
		now := db.Timestamp(s.now())
		if !reset.ExpiresAt.After(now) {
			return fmt.Errorf("expired reset token: %w", ErrInvalid)
		}

		user, err := tx.Queries.GetUserByID(ctx, reset.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		userName = user.Name

		hash, err := HashPassword(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := tx.Queries.UpdateUserPassword(ctx, dbgen.UpdateUserPasswordParams{
			PasswordHash: nullString(hash),
			UpdatedAt:    now,
			ID:           user.ID,
		}); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := tx.Queries.DeletePasswordResetsForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("consume reset token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("target_user", userName).Msg("Password reset completed")
	return nil
}

// PurgeExpiredResets deletes reset tokens that expired before now.
func (s *Service) PurgeExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.db.Queries.DeleteExpiredPasswordResets(ctx, db.Timestamp(now))
	if err != nil {
		return 0, fmt.Errorf("purge password resets: %w", err)
	}
	return deleted, nil
}
