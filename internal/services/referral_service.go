package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	referralCodeLength  = 8
	referralCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeTries   = 10
)

// ReferralOutcome reports what ApplyReferral did for a new user.
type ReferralOutcome struct {
	Referral             *models.Referral
	SignupBonusGranted   int64
	ReferrerBonusPending bool
}

// ReferralService implements the deferred two-tier model: the referred user is
// credited at signup, the referrer only through GrantReferrerBonus.
type ReferralService struct {
	db          *gorm.DB
	signupBonus int64
	now         func() time.Time
}

func NewReferralService(db *gorm.DB, cfg *config.Config) *ReferralService {
	return &ReferralService{
		db:          db,
		signupBonus: int64(cfg.SignupBonus),
		now:         time.Now,
	}
}

// ApplyReferral links newUserID to the owner of code. It must run inside the
// registration transaction so an unknown code rolls back the user.
func (s *ReferralService) ApplyReferral(tx *gorm.DB, newUserID uuid.UUID, code string) (*ReferralOutcome, error) {
	code = NormalizeReferralCode(code)
	if code == "" {
		return &ReferralOutcome{}, nil
	}
	if !validReferralCode(code) {
		return nil, ErrInvalidReferralCode
	}

	var referrer models.User
	if err := tx.Where("referral_code = ?", code).First(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidReferralCode
		}
		return nil, storageError("resolve referral code", err)
	}
	if referrer.ID == newUserID {
		return nil, ErrInvalidReferralCode
	}

	referral := models.Referral{
		ReferrerID:   referrer.ID,
		ReferredID:   newUserID,
		ReferralCode:     code,
		SignupBonusCoins: s.signupBonus,
		Status:           models.ReferralPending,
		ReferredAt:       s.now().UTC(),
	}
	if err := tx.Create(&referral).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateReferral
		}
		return nil, storageError("create referral", err)
	}

	if err := tx.Model(&models.User{}).Where("id = ?", newUserID).
		Update("referred_by_code", code).Error; err != nil {
		return nil, storageError("stamp referred_by_code", err)
	}

	outcome := &ReferralOutcome{Referral: &referral, ReferrerBonusPending: true}
	if s.signupBonus > 0 {
		if _, err := postEntry(tx, ledgerEntry{
			UserID:      newUserID,
			Type:        models.TxBonus,
			Source:      models.SourceSignupBonus,
			Description: "Signup bonus for joining with referral code " + code,
			Amount:      s.signupBonus,
		}, walletCounters{Earned: s.signupBonus}); err != nil {
			return nil, err
		}
		outcome.SignupBonusGranted = s.signupBonus
	}

	if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", referrer.ID).
		Update("total_referrals", gorm.Expr("total_referrals + 1")).Error; err != nil {
		return nil, storageError("increment total referrals", err)
	}

	slog.Info("referral applied",
		"referrer_id", referrer.ID.String(),
		"referred_id", newUserID.String(),
		"signup_bonus", outcome.SignupBonusGranted,
	)
	return outcome, nil
}

// GrantReferrerBonus credits the referrer of referralID once. Nothing in the
// service calls it automatically; it is exposed for an activity trigger and
// for admins.
func (s *ReferralService) GrantReferrerBonus(ctx context.Context, referralID uuid.UUID, amount int64) (*models.Referral, error) {
	if amount <= 0 {
		return nil, validationError("bonus amount must be positive")
	}

	var referral models.Referral
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&referral, "id = ?", referralID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReferralNotFound
			}
			return storageError("load referral", err)
		}

		now := s.now().UTC()
		res := tx.Model(&models.Referral{}).
			Where("id = ? AND signup_bonus_given = ?", referralID, false).
			Updates(map[string]interface{}{
				"signup_bonus_given":   true,
				"referrer_bonus_coins": amount,
				"status":               models.ReferralActive,
				"lifetime_commission":  gorm.Expr("lifetime_commission + ?", amount),
				"first_activity_at":    gorm.Expr("COALESCE(first_activity_at, ?)", now),
			})
		if res.Error != nil {
			return storageError("mark referral bonus", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrReferrerBonusGranted
		}

		if _, err := postEntry(tx, ledgerEntry{
			UserID:      referral.ReferrerID,
			Type:        models.TxBonus,
			Source:      models.SourceReferralEarnings,
			Description: fmt.Sprintf("Referral bonus (%s)", referral.ReferralCode),
			Amount:      amount,
		}, walletCounters{Earned: amount, Referral: amount}); err != nil {
			return err
		}

		return tx.First(&referral, "id = ?", referralID).Error
	})
	if err != nil {
		return nil, err
	}

	slog.Info("referrer bonus granted", "referral_id", referralID.String(), "referrer_id", referral.ReferrerID.String(), "coins", amount)
	return &referral, nil
}

// GenerateReferralCode returns a code not yet owned by any user.
func GenerateReferralCode(tx *gorm.DB) (string, error) {
	for i := 0; i < referralCodeTries; i++ {
		code, err := randomCode(referralCodeLength)
		if err != nil {
			return "", err
		}
		var n int64
		if err := tx.Model(&models.User{}).Where("referral_code = ?", code).Count(&n).Error; err != nil {
			return "", storageError("check referral code", err)
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique referral code", ErrConflict)
}

func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validReferralCode(code string) bool {
	if len(code) != referralCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(referralCodeCharset, r) {
			return false
		}
	}
	return true
}

func randomCode(n int) (string, error) {
	limit := big.NewInt(int64(len(referralCodeCharset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		b[i] = referralCodeCharset[idx.Int64()]
	}
	return string(b), nil
}
