package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/notify"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 8
	maxUserAgentChars = 512
)

type AuthService struct {
	db        *gorm.DB
	cfg       *config.Config
	referrals *ReferralService
	google    IDTokenVerifier
	notifier  notify.Notifier
	now       func() time.Time
	newCode   func() (string, error)
}

func NewAuthService(db *gorm.DB, cfg *config.Config, referrals *ReferralService, google IDTokenVerifier, notifier notify.Notifier) *AuthService {
	return &AuthService{
		db:        db,
		cfg:       cfg,
		referrals: referrals,
		google:    google,
		notifier:  notifier,
		now:       time.Now,
		newCode:   generateNumericCode,
	}
}

// Register creates the user, profile, wallet and referral link in one
// transaction; an unknown referral code leaves nothing behind. A verification
// code is mailed; when verification is required no tokens are issued until
// VerifyEmail succeeds.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, validationError("a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashed := string(hash)

	user := models.User{
		Email:         email,
		PasswordHash:  &hashed,
		LoginProvider: models.ProviderEmail,
		Role:          models.RoleUser,
		AccountStatus: models.AccountActive,
	}
	profile, err := s.createAccount(ctx, &user, strings.TrimSpace(req.FullName), req.ReferralCode)
	if err != nil {
		return nil, err
	}

	s.sendWelcome(&user, profile)
	if err := s.sendVerification(ctx, &user, profile); err != nil {
		slog.Warn("failed to issue verification code", "user_id", user.ID.String(), "error", err)
	}
	if s.cfg.RequireEmailVerification {
		return &dto.AuthResponse{User: ToUserResponse(&user, profile)}, nil
	}
	return s.generateTokenPair(ctx, &user, profile)
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.AccountStatus != models.AccountActive {
		return nil, ErrAccountSuspended
	}
	if s.cfg.RequireEmailVerification && !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	s.stampLogin(ctx, &user, models.ProviderEmail, req.Client)
	return s.generateTokenPair(ctx, &user, s.profile(ctx, user.ID))
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	db := s.db.WithContext(ctx)
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	// Rotate: only the caller that flips revoked gets a new pair.
	res := db.Model(&models.RefreshToken{}).Where("id = ? AND revoked = ?", stored.ID, false).Update("revoked", true)
	if res.Error != nil {
		return nil, storageError("revoke refresh token", res.Error)
	}
	if res.RowsAffected == 0 || s.now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, ErrUserNotFound
	}
	if user.AccountStatus != models.AccountActive {
		return nil, ErrAccountSuspended
	}

	return s.generateTokenPair(ctx, &user, s.profile(ctx, user.ID))
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, req *dto.LogoutRequest) error {
	tokenHash := hashToken(req.RefreshToken)
	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND user_id = ?", tokenHash, userID).
		Update("revoked", true).Error
	if err != nil {
		return storageError("revoke refresh token", err)
	}
	return nil
}

// GoogleSignIn logs in with a Google ID token, creating the account on first
// use. The referral code only applies to new accounts.
func (s *AuthService) GoogleSignIn(ctx context.Context, req *dto.GoogleSignInRequest) (*dto.AuthResponse, error) {
	if req.IDToken == "" {
		return nil, validationError("id token is required")
	}
	if s.google == nil {
		return nil, fmt.Errorf("%w: google sign-in is not configured", ErrExternalService)
	}

	claims, err := s.google.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		slog.Warn("google token verification failed", "error", err)
		return nil, fmt.Errorf("%w: failed to verify Google ID token", ErrUnauthorized)
	}
	email := normalizeEmail(claims.Email)
	if email == "" || !claims.Verified() {
		return nil, fmt.Errorf("%w: google account email is not verified", ErrUnauthorized)
	}

	googleID := claims.Sub
	var user models.User
	err = s.db.WithContext(ctx).Where("google_id = ? OR email = ?", googleID, email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:         email,
			GoogleID:      &googleID,
			LoginProvider: models.ProviderGoogle,
			EmailVerified: true,
			Role:          models.RoleUser,
			AccountStatus: models.AccountActive,
		}
		profile, err := s.createAccount(ctx, &user, claims.Name, req.ReferralCode)
		if err != nil {
			return nil, err
		}
		s.sendWelcome(&user, profile)
		s.stampLogin(ctx, &user, models.ProviderGoogle, req.Client)
		return s.generateTokenPair(ctx, &user, profile)
	case err != nil:
		return nil, storageError("find google user", err)
	}

	if user.AccountStatus != models.AccountActive {
		return nil, ErrAccountSuspended
	}
	if user.GoogleID == nil {
		if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
			"google_id":      googleID,
			"email_verified": true,
		}).Error; err != nil {
			return nil, storageError("link google account", err)
		}
		user.GoogleID = &googleID
		user.EmailVerified = true
	}

	s.stampLogin(ctx, &user, models.ProviderGoogle, req.Client)
	return s.generateTokenPair(ctx, &user, s.profile(ctx, user.ID))
}

// Me returns the account view for the token subject.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("load user", err)
	}
	resp := ToUserResponse(&user, s.profile(ctx, userID))
	return &resp, nil
}

func (s *AuthService) createAccount(ctx context.Context, user *models.User, fullName, referralCode string) (*models.UserProfile, error) {
	if fullName == "" {
		fullName = strings.Split(user.Email, "@")[0]
	}
	profile := &models.UserProfile{FullName: fullName}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&taken).Error; err != nil {
			return storageError("check email", err)
		}
		if taken > 0 {
			return ErrEmailTaken
		}

		code, err := GenerateReferralCode(tx)
		if err != nil {
			return err
		}
		user.ReferralCode = code

		if err := tx.Create(user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return storageError("create user", err)
		}
		profile.UserID = user.ID
		if err := tx.Create(profile).Error; err != nil {
			return storageError("create profile", err)
		}
		if err := tx.Create(&models.Wallet{UserID: user.ID}).Error; err != nil {
			return storageError("create wallet", err)
		}

		outcome, err := s.referrals.ApplyReferral(tx, user.ID, referralCode)
		if err != nil {
			return err
		}
		if outcome.Referral != nil {
			user.ReferredByCode = &outcome.Referral.ReferralCode
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID.String(), "provider", user.LoginProvider, "referred", user.ReferredByCode != nil)
	return profile, nil
}

func (s *AuthService) sendWelcome(user *models.User, profile *models.UserProfile) {
	if s.notifier == nil {
		return
	}
	to, name, code := user.Email, profile.FullName, user.ReferralCode
	notify.Go("welcome", func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, to, name, code)
	})
}

// stampLogin records last_login and a login_history row. Failures are logged;
// they never fail the login.
func (s *AuthService) stampLogin(ctx context.Context, user *models.User, method string, client dto.ClientInfo) {
	now := s.now().UTC()
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("last_login", now).Error; err != nil {
		slog.Warn("failed to stamp last login", "user_id", user.ID.String(), "error", err)
		return
	}
	user.LastLogin = &now

	entry := models.LoginHistory{
		UserID:      user.ID,
		LoginMethod: method,
		IPAddress:   truncate(client.IP, 45),
		DeviceType:  deviceType(client.UserAgent),
		UserAgent:   truncate(client.UserAgent, maxUserAgentChars),
		LoginAt:     now,
	}
	if err := db.Create(&entry).Error; err != nil {
		slog.Warn("failed to record login history", "user_id", user.ID.String(), "error", err)
	}
}

// deviceType buckets a User-Agent into the device classes shown in history.
func deviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return models.DeviceUnknown
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return models.DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return models.DeviceMobile
	}
	return models.DeviceDesktop
}

func (s *AuthService) profile(ctx context.Context, userID uuid.UUID) *models.UserProfile {
	var profile models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&profile).Error; err != nil {
		return nil
	}
	return &profile
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User, profile *models.UserProfile) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         ToUserResponse(user, profile),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)
	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.now().Add(s.cfg.JWTRefreshExpiry).UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", storageError("store refresh token", err)
	}

	return rawToken, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
