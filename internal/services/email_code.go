package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/notify"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	verificationCodeTTL = 10 * time.Minute
	resetCodeTTL        = time.Hour
	codeResendInterval  = 2 * time.Minute
	// A code is burned after this many wrong guesses.
	maxCodeAttempts = 5
	codeDigits      = 6
)

// VerifyEmail confirms the address with the mailed code and signs the user in.
func (s *AuthService) VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest) (*dto.AuthResponse, error) {
	if req.Code == "" {
		return nil, ErrInvalidCode
	}
	user, err := s.userByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCode
	}
	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	code, err := s.checkCode(ctx, user.ID, models.CodeEmailVerification, req.Code)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markCodeUsed(tx, code.ID, s.now().UTC()); err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("email_verified", true).Error; err != nil {
			return storageError("mark email verified", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.EmailVerified = true
	slog.Info("email verified", "user_id", user.ID.String())

	if user.AccountStatus != models.AccountActive {
		return nil, ErrAccountSuspended
	}
	s.stampLogin(ctx, user, models.ProviderEmail, req.Client)
	return s.generateTokenPair(ctx, user, s.profile(ctx, user.ID))
}

// ResendVerification mails a fresh code, invalidating earlier ones. Unknown
// addresses succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil || user == nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	if err := s.checkResendInterval(ctx, user.ID, models.CodeEmailVerification); err != nil {
		return err
	}
	return s.sendVerification(ctx, user, s.profile(ctx, user.ID))
}

// ForgotPassword mails a reset code. Unknown addresses succeed silently;
// Google-only accounts have no password to reset.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil || user == nil {
		return err
	}
	if user.PasswordHash == nil {
		return ErrNoPassword
	}
	if err := s.checkResendInterval(ctx, user.ID, models.CodePasswordReset); err != nil {
		return err
	}

	code, err := s.issueCode(s.db.WithContext(ctx), user.ID, models.CodePasswordReset, resetCodeTTL)
	if err != nil {
		return err
	}
	slog.Info("password reset requested", "user_id", user.ID.String())
	if s.notifier != nil {
		to, name := user.Email, displayName(s.profile(ctx, user.ID))
		notify.Go("password_reset", func(ctx context.Context) error {
			return s.notifier.SendPasswordReset(ctx, to, name, code)
		})
	}
	return nil
}

// ResetPassword sets a new password with a reset code and signs the user out
// everywhere. Receiving the code also proves the address.
func (s *AuthService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	if len(req.NewPassword) < minPasswordLength {
		return validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if req.Code == "" {
		return ErrInvalidCode
	}
	user, err := s.userByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidCode
	}

	code, err := s.checkCode(ctx, user.ID, models.CodePasswordReset, req.Code)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markCodeUsed(tx, code.ID, s.now().UTC()); err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"password_hash":  string(hash),
			"email_verified": true,
		}).Error; err != nil {
			return storageError("update password", err)
		}
		if err := tx.Model(&models.RefreshToken{}).Where("user_id = ? AND revoked = ?", user.ID, false).
			Update("revoked", true).Error; err != nil {
			return storageError("revoke refresh tokens", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("password reset", "user_id", user.ID.String())
	return nil
}

// sendVerification issues a verification code and mails it in the background.
func (s *AuthService) sendVerification(ctx context.Context, user *models.User, profile *models.UserProfile) error {
	code, err := s.issueCode(s.db.WithContext(ctx), user.ID, models.CodeEmailVerification, verificationCodeTTL)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		to, name := user.Email, displayName(profile)
		notify.Go("verification", func(ctx context.Context) error {
			return s.notifier.SendVerificationCode(ctx, to, name, code)
		})
	}
	return nil
}

// issueCode replaces any live code for (userID, purpose) with a new one and
// returns the plaintext.
func (s *AuthService) issueCode(db *gorm.DB, userID uuid.UUID, purpose string, ttl time.Duration) (string, error) {
	code, err := s.newCode()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.EmailCode{}).
			Where("user_id = ? AND purpose = ? AND used_at IS NULL", userID, purpose).
			Update("used_at", now).Error; err != nil {
			return storageError("invalidate codes", err)
		}
		if err := tx.Create(&models.EmailCode{
			UserID:    userID,
			Purpose:   purpose,
			CodeHash:  hashToken(code),
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		}).Error; err != nil {
			return storageError("create code", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// checkCode matches code against the live code for (userID, purpose). A
// mismatch counts against the code's attempts outside any caller transaction
// so it survives the failed request.
func (s *AuthService) checkCode(ctx context.Context, userID uuid.UUID, purpose, code string) (*models.EmailCode, error) {
	db := s.db.WithContext(ctx)
	now := s.now().UTC()

	var rec models.EmailCode
	err := db.Where("user_id = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", userID, purpose, now).
		Order("created_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, storageError("load code", err)
	}

	if subtle.ConstantTimeCompare([]byte(hashToken(code)), []byte(rec.CodeHash)) == 1 {
		return &rec, nil
	}
	updates := map[string]interface{}{"attempts": gorm.Expr("attempts + 1")}
	if rec.Attempts+1 >= maxCodeAttempts {
		updates["used_at"] = now
		slog.Warn("code burned after failed attempts", "user_id", userID.String(), "purpose", purpose)
	}
	if err := db.Model(&models.EmailCode{}).Where("id = ?", rec.ID).Updates(updates).Error; err != nil {
		return nil, storageError("count code attempt", err)
	}
	return nil, ErrInvalidCode
}

// checkResendInterval refuses a new code while the previous one is fresh.
func (s *AuthService) checkResendInterval(ctx context.Context, userID uuid.UUID, purpose string) error {
	var recent int64
	if err := s.db.WithContext(ctx).Model(&models.EmailCode{}).
		Where("user_id = ? AND purpose = ? AND created_at > ?", userID, purpose, s.now().UTC().Add(-codeResendInterval)).
		Count(&recent).Error; err != nil {
		return storageError("check recent codes", err)
	}
	if recent > 0 {
		return ErrCodeRecentlySent
	}
	return nil
}

func markCodeUsed(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	res := tx.Model(&models.EmailCode{}).Where("id = ? AND used_at IS NULL", id).Update("used_at", at)
	if res.Error != nil {
		return storageError("consume code", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidCode
	}
	return nil
}

// userByEmail returns nil without error when no account has the address.
func (s *AuthService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationError("email is required")
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find user by email", err)
	}
	return &user, nil
}

func generateNumericCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func displayName(profile *models.UserProfile) string {
	if profile == nil {
		return ""
	}
	return profile.FullName
}
