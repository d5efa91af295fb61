package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func applyReferral(t *testing.T, db *gorm.DB, svc *ReferralService, userID uuid.UUID, code string) (*ReferralOutcome, error) {
	t.Helper()
	var outcome *ReferralOutcome
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = svc.ApplyReferral(tx, userID, code)
		return err
	})
	return outcome, err
}

func TestApplyReferralWithoutCodeIsNoop(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "plain@example.com", "")

	outcome, err := applyReferral(t, db, NewReferralService(db, testConfig(t)), user.ID, "  ")
	if err != nil {
		t.Fatalf("ApplyReferral: %v", err)
	}
	if outcome.Referral != nil || outcome.SignupBonusGranted != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestApplyReferralRejectsDuplicatesAndSelf(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig(t)
	svc := NewReferralService(db, cfg)
	referrer := testutil.CreateUser(t, db, "ref@example.com", "REFR0001")
	other := testutil.CreateUser(t, db, "other@example.com", "OTHR0001")
	user := testutil.CreateUser(t, db, "new@example.com", "")

	outcome, err := applyReferral(t, db, svc, user.ID, "REFR0001")
	if err != nil {
		t.Fatalf("ApplyReferral: %v", err)
	}
	if !outcome.ReferrerBonusPending || outcome.SignupBonusGranted != int64(cfg.SignupBonus) {
		t.Fatalf("outcome = %+v", outcome)
	}

	if _, err := applyReferral(t, db, svc, user.ID, "OTHR0001"); !errors.Is(err, ErrDuplicateReferral) {
		t.Fatalf("second referral: %v", err)
	}
	if _, err := applyReferral(t, db, svc, referrer.ID, "REFR0001"); !errors.Is(err, ErrInvalidReferralCode) {
		t.Fatalf("self referral: %v", err)
	}
	if _, err := applyReferral(t, db, svc, other.ID, "BAD!"); !errors.Is(err, ErrInvalidReferralCode) {
		t.Fatalf("malformed code: %v", err)
	}

	if w := testutil.Wallet(t, db, user.ID); w.AvailableCoins != int64(cfg.SignupBonus) {
		t.Fatalf("bonus applied twice: %+v", w)
	}
	testutil.AssertLedgerBalanced(t, db, user.ID)
}

func TestGrantReferrerBonusOnce(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig(t)
	svc := NewReferralService(db, cfg)
	svc.now = clock(testNow)
	ctx := context.Background()
	referrer := testutil.CreateUser(t, db, "earner@example.com", "EARN0001")
	user := testutil.CreateUser(t, db, "friend@example.com", "")

	outcome, err := applyReferral(t, db, svc, user.ID, "EARN0001")
	if err != nil {
		t.Fatalf("ApplyReferral: %v", err)
	}
	id := outcome.Referral.ID

	if _, err := svc.GrantReferrerBonus(ctx, id, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := svc.GrantReferrerBonus(ctx, uuid.New(), 100); !errors.Is(err, ErrReferralNotFound) {
		t.Fatalf("unknown referral: %v", err)
	}

	referral, err := svc.GrantReferrerBonus(ctx, id, 100)
	if err != nil {
		t.Fatalf("GrantReferrerBonus: %v", err)
	}
	if !referral.SignupBonusGiven || referral.Status != models.ReferralActive || referral.LifetimeCommission != 100 {
		t.Fatalf("referral = %+v", referral)
	}
	if referral.ReferrerBonusCoins != 100 || referral.SignupBonusCoins != int64(cfg.SignupBonus) {
		t.Fatalf("bonus columns = signup %d, referrer %d", referral.SignupBonusCoins, referral.ReferrerBonusCoins)
	}
	if referral.FirstActivityAt == nil {
		t.Fatal("first_activity_at not set")
	}

	if _, err := svc.GrantReferrerBonus(ctx, id, 100); !errors.Is(err, ErrReferrerBonusGranted) {
		t.Fatalf("second grant: %v", err)
	}

	w := testutil.Wallet(t, db, referrer.ID)
	if w.AvailableCoins != 100 || w.ReferralEarnings != 100 || w.TotalEarned != 100 {
		t.Fatalf("referrer wallet = %+v", w)
	}
	if n := countRows(t, db, &models.CoinTransaction{}, "user_id = ? AND source = ?", referrer.ID, models.SourceReferralEarnings); n != 1 {
		t.Fatalf("referral_earnings transactions = %d", n)
	}
	testutil.AssertLedgerBalanced(t, db, referrer.ID)
}

func TestGenerateReferralCode(t *testing.T) {
	db := testutil.NewDB(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GenerateReferralCode(db)
		if err != nil {
			t.Fatalf("GenerateReferralCode: %v", err)
		}
		if !validReferralCode(code) {
			t.Fatalf("invalid code %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes are not random")
	}
	if got := NormalizeReferralCode(" abcd1234 "); got != "ABCD1234" {
		t.Fatalf("NormalizeReferralCode = %q", got)
	}
}
