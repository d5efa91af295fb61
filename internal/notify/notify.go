// Package notify delivers user-facing emails. Callers treat delivery as
// fire-and-forget.
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends transactional emails.
type Notifier interface {
	SendWelcome(ctx context.Context, toEmail, name, referralCode string) error
	SendGiftCode(ctx context.Context, toEmail, cardName, giftCode string) error
	SendVerificationCode(ctx context.Context, toEmail, name, code string) error
	SendPasswordReset(ctx context.Context, toEmail, name, code string) error
}

// LogNotifier only logs; it is used when no mail provider is configured.
type LogNotifier struct{}

func (LogNotifier) SendWelcome(_ context.Context, toEmail, name, referralCode string) error {
	slog.Info("welcome email skipped (no mail provider)", "to", toEmail, "referral_code", referralCode)
	return nil
}

func (LogNotifier) SendGiftCode(_ context.Context, toEmail, cardName, _ string) error {
	slog.Info("gift code email skipped (no mail provider)", "to", toEmail, "card", cardName)
	return nil
}

func (LogNotifier) SendVerificationCode(_ context.Context, toEmail, _, _ string) error {
	slog.Info("verification email skipped (no mail provider)", "to", toEmail)
	return nil
}

func (LogNotifier) SendPasswordReset(_ context.Context, toEmail, _, _ string) error {
	slog.Info("password reset email skipped (no mail provider)", "to", toEmail)
	return nil
}

// Go runs send in the background, detached from the request context, and
// logs a failure instead of returning it.
func Go(kind string, send func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("notification panicked", "kind", kind, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			slog.Warn("notification failed", "kind", kind, "error", err)
		}
	}()
}
