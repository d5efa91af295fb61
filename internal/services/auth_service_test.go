package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
)

func TestRegisterWithReferralThenRead(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig(t)
	ctx := context.Background()
	referrer := testutil.CreateUser(t, db, "u1@example.com", "ABCD1234")
	testutil.CreateArticle(t, db, "art-42", "technology", testNow, 10)
	auth := newAuth(db, cfg, nil)

	resp, err := auth.Register(ctx, &dto.RegisterRequest{
		Email:        "New.User@Example.com",
		Password:     "password123",
		FullName:     "New User",
		ReferralCode: "abcd1234",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("missing tokens")
	}
	if resp.User.Email != "new.user@example.com" || !validReferralCode(resp.User.ReferralCode) {
		t.Fatalf("user = %+v", resp.User)
	}
	newID := resp.User.ID

	if p := testutil.Profile(t, db, referrer.ID); p.TotalReferrals != 1 {
		t.Fatalf("referrer total_referrals = %d", p.TotalReferrals)
	}
	if w := testutil.Wallet(t, db, referrer.ID); w.AvailableCoins != 0 {
		t.Fatalf("referrer wallet changed: %+v", w)
	}
	bonus := int64(cfg.SignupBonus)
	if w := testutil.Wallet(t, db, newID); w.AvailableCoins != bonus {
		t.Fatalf("new user wallet = %+v, want %d", w, bonus)
	}

	var referral models.Referral
	if err := db.First(&referral, "referred_id = ?", newID).Error; err != nil {
		t.Fatalf("load referral: %v", err)
	}
	if referral.Status != models.ReferralPending || referral.SignupBonusGiven || referral.ReferrerID != referrer.ID {
		t.Fatalf("referral = %+v", referral)
	}
	if referral.SignupBonusCoins != bonus || referral.ReferrerBonusCoins != 0 {
		t.Fatalf("referral bonus columns = %d/%d", referral.SignupBonusCoins, referral.ReferrerBonusCoins)
	}

	rewards := newRewards(db, cfg, testNow)
	if _, err := rewards.RecordReading(ctx, newID, "art-42", 45); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}
	if w := testutil.Wallet(t, db, newID); w.AvailableCoins != bonus+10 {
		t.Fatalf("wallet after read = %d", w.AvailableCoins)
	}
	if n := countRows(t, db, &models.CoinTransaction{}, "user_id = ? AND source = ? AND amount = ?", newID, models.SourceArticleRead, 10); n != 1 {
		t.Fatalf("article_read transactions = %d", n)
	}
	var stat models.DailyReadingStat
	db.First(&stat, "user_id = ? AND reading_date = ?", newID, "2026-03-10")
	if stat.ArticlesRead != 1 {
		t.Fatalf("articles_read = %d", stat.ArticlesRead)
	}

	if _, err := rewards.RecordReading(ctx, newID, "art-42", 45); !errors.Is(err, ErrConflict) {
		t.Fatalf("repeat read: %v", err)
	}
	if w := testutil.Wallet(t, db, newID); w.AvailableCoins != bonus+10 {
		t.Fatalf("wallet after repeat = %d", w.AvailableCoins)
	}
	testutil.AssertLedgerBalanced(t, db, newID)
	testutil.AssertLedgerBalanced(t, db, referrer.ID)
}

func TestRegisterUnknownReferralCodeCreatesNothing(t *testing.T) {
	db := testutil.NewDB(t)
	auth := newAuth(db, testConfig(t), nil)

	_, err := auth.Register(context.Background(), &dto.RegisterRequest{
		Email: "ghost@example.com", Password: "password123", ReferralCode: "ZZZZ9999",
	})
	if !errors.Is(err, ErrInvalidReferralCode) {
		t.Fatalf("expected ErrInvalidReferralCode, got %v", err)
	}
	for _, m := range []interface{}{&models.User{}, &models.UserProfile{}, &models.Wallet{}, &models.Referral{}} {
		if n := countRows(t, db, m, ""); n != 0 {
			t.Fatalf("%T rows = %d", m, n)
		}
	}
}

func TestRegisterWithoutReferralGetsNoBonus(t *testing.T) {
	db := testutil.NewDB(t)
	auth := newAuth(db, testConfig(t), nil)

	resp, err := auth.Register(context.Background(), &dto.RegisterRequest{Email: "solo@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if w := testutil.Wallet(t, db, resp.User.ID); w.AvailableCoins != 0 {
		t.Fatalf("wallet = %+v", w)
	}
	if resp.User.FullName != "solo" {
		t.Fatalf("full name = %q", resp.User.FullName)
	}
}

func TestRegisterValidation(t *testing.T) {
	db := testutil.NewDB(t)
	auth := newAuth(db, testConfig(t), nil)
	ctx := context.Background()

	if _, err := auth.Register(ctx, &dto.RegisterRequest{Email: "not-an-email", Password: "password123"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad email: %v", err)
	}
	if _, err := auth.Register(ctx, &dto.RegisterRequest{Email: "short@example.com", Password: "short"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("short password: %v", err)
	}
	if _, err := auth.Register(ctx, &dto.RegisterRequest{Email: "dup@example.com", Password: "password123"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := auth.Register(ctx, &dto.RegisterRequest{Email: "DUP@example.com", Password: "password123"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestLoginRefreshAndLogout(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig(t)
	auth := newAuth(db, cfg, nil)
	ctx := context.Background()

	reg, err := auth.Register(ctx, &dto.RegisterRequest{Email: "login@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := auth.Login(ctx, &dto.LoginRequest{Email: "login@example.com", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	login, err := auth.Login(ctx, &dto.LoginRequest{Email: " LOGIN@example.com ", Password: "password123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.LastLogin == nil {
		t.Fatal("last_login not stamped")
	}

	token, err := jwt.Parse(login.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(clock(testNow)))
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sub"] != reg.User.ID.String() || claims["role"] != models.RoleUser {
		t.Fatalf("claims = %v", claims)
	}

	rotated, err := auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: login.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused refresh token: %v", err)
	}

	if err := auth.Logout(ctx, reg.User.ID, &dto.LogoutRequest{RefreshToken: rotated.RefreshToken}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: rotated.RefreshToken}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("refresh after logout: %v", err)
	}
}

func TestLoginSuspendedAccount(t *testing.T) {
	db := testutil.NewDB(t)
	auth := newAuth(db, testConfig(t), nil)
	ctx := context.Background()

	reg, err := auth.Register(ctx, &dto.RegisterRequest{Email: "banned@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	db.Model(&models.User{}).Where("id = ?", reg.User.ID).Update("account_status", models.AccountSuspended)

	if _, err := auth.Login(ctx, &dto.LoginRequest{Email: "banned@example.com", Password: "password123"}); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("expected ErrAccountSuspended, got %v", err)
	}
}

func TestGoogleSignInCreatesThenReuses(t *testing.T) {
	db := testutil.NewDB(t)
	google := fakeGoogle{claims: &GoogleClaims{
		Sub: "google-123", Email: "G.User@example.com", EmailVerified: "true", Name: "G User",
	}}
	auth := newAuth(db, testConfig(t), google)
	ctx := context.Background()

	first, err := auth.GoogleSignIn(ctx, &dto.GoogleSignInRequest{IDToken: "token"})
	if err != nil {
		t.Fatalf("first sign-in: %v", err)
	}
	if first.User.LoginProvider != models.ProviderGoogle || !first.User.EmailVerified || first.User.FullName != "G User" {
		t.Fatalf("user = %+v", first.User)
	}

	second, err := auth.GoogleSignIn(ctx, &dto.GoogleSignInRequest{IDToken: "token"})
	if err != nil {
		t.Fatalf("second sign-in: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatal("second sign-in created another user")
	}
	if n := countRows(t, db, &models.User{}, ""); n != 1 {
		t.Fatalf("users = %d", n)
	}
}

func TestGoogleSignInLinksExistingEmailAccount(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	reg, err := newAuth(db, testConfig(t), nil).Register(ctx, &dto.RegisterRequest{Email: "both@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	google := fakeGoogle{claims: &GoogleClaims{Sub: "google-9", Email: "both@example.com", EmailVerified: true}}
	resp, err := newAuth(db, testConfig(t), google).GoogleSignIn(ctx, &dto.GoogleSignInRequest{IDToken: "token"})
	if err != nil {
		t.Fatalf("GoogleSignIn: %v", err)
	}
	if resp.User.ID != reg.User.ID || !resp.User.EmailVerified {
		t.Fatalf("user = %+v", resp.User)
	}
	var user models.User
	db.First(&user, "id = ?", reg.User.ID)
	if user.GoogleID == nil || *user.GoogleID != "google-9" {
		t.Fatalf("google id not linked: %v", user.GoogleID)
	}
}

func TestGoogleSignInRejectsUnverifiedEmail(t *testing.T) {
	db := testutil.NewDB(t)
	google := fakeGoogle{claims: &GoogleClaims{Sub: "g", Email: "x@example.com", EmailVerified: false}}
	_, err := newAuth(db, testConfig(t), google).GoogleSignIn(context.Background(), &dto.GoogleSignInRequest{IDToken: "t"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	failing := fakeGoogle{err: errors.New("bad signature")}
	_, err = newAuth(db, testConfig(t), failing).GoogleSignIn(context.Background(), &dto.GoogleSignInRequest{IDToken: "t"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
