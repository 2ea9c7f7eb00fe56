// Package notifier hands password reset messages to whatever delivers them.
// Delivery itself (email, SMS) happens outside this service.
package notifier

import (
	"context"
	"time"

	"github.com/dmitrijs2005/storefront/internal/logging"
)

// PasswordReset is one reset notification.
type PasswordReset struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ResetURL  string    `json:"resetUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Notifier interface {
	NotifyPasswordReset(ctx context.Context, msg PasswordReset) error
}

// LogNotifier writes reset notifications to the log. The link is included
// only in development so that tokens never reach production logs.
type LogNotifier struct {
	logger      logging.Logger
	development bool
}

func NewLogNotifier(logger logging.Logger, development bool) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier"), development: development}
}

func (n *LogNotifier) NotifyPasswordReset(ctx context.Context, msg PasswordReset) error {
	if n.development {
		n.logger.Info(ctx, "password reset link", "email", msg.Email, "url", msg.ResetURL, "expires_at", msg.ExpiresAt)
		return nil
	}
	n.logger.Info(ctx, "password reset requested", "expires_at", msg.ExpiresAt)
	return nil
}
