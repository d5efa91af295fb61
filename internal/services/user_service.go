package services

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	recentHistoryLimit = 20
	maxLoginHistory    = 50
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	genders      = map[string]bool{"male": true, "female": true, "other": true}
)

// UserService serves the account views and profile edits.
type UserService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewUserService(db *gorm.DB, loc *time.Location) *UserService {
	return &UserService{db: db, loc: loc, now: time.Now}
}

func (s *UserService) Profile(ctx context.Context, userID uuid.UUID) (*dto.ProfileResponse, error) {
	db := s.db.WithContext(ctx)
	user, profile, err := s.loadUser(db, userID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.wallet(db, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.referralStats(db, userID, profile)
	if err != nil {
		return nil, err
	}
	return &dto.ProfileResponse{
		User:              ToUserResponse(user, profile),
		Wallet:            *wallet,
		Referrals:         *stats,
		TotalArticlesRead: profile.TotalArticlesRead,
		CurrentStreak:     profile.CurrentStreak,
		LongestStreak:     profile.LongestStreak,
	}, nil
}

func (s *UserService) Wallet(ctx context.Context, userID uuid.UUID) (*dto.WalletResponse, error) {
	return s.wallet(s.db.WithContext(ctx), userID)
}

// Transactions pages through the user's ledger, newest first.
func (s *UserService) Transactions(ctx context.Context, userID uuid.UUID, page, limit int) (*dto.TransactionsResponse, error) {
	page, limit, offset := pageBounds(page, limit, 100)
	q := s.db.WithContext(ctx).Model(&models.CoinTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, storageError("count transactions", err)
	}
	txs := []models.CoinTransaction{}
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&txs).Error; err != nil {
		return nil, storageError("list transactions", err)
	}
	return &dto.TransactionsResponse{Transactions: txs, Pagination: dto.NewPagination(page, limit, total)}, nil
}

func (s *UserService) Referrals(ctx context.Context, userID uuid.UUID) (*dto.ReferralsResponse, error) {
	db := s.db.WithContext(ctx)
	user, profile, err := s.loadUser(db, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.referralStats(db, userID, profile)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		models.Referral
		Email    string
		FullName string
	}
	err = db.Table("referrals").
		Select("referrals.*, users.email AS email, user_profiles.full_name AS full_name").
		Joins("JOIN users ON users.id = referrals.referred_id").
		Joins("LEFT JOIN user_profiles ON user_profiles.user_id = referrals.referred_id").
		Where("referrals.referrer_id = ?", userID).
		Order("referrals.referred_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, storageError("list referrals", err)
	}

	out := make([]dto.ReferredUser, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.ReferredUser{
			ReferralID:       r.ID,
			Email:            r.Email,
			FullName:         r.FullName,
			Status:           r.Status,
			SignupBonusGiven: r.SignupBonusGiven,
			ReferrerBonus:    r.ReferrerBonusCoins,
			Commission:       r.LifetimeCommission,
			ReferredAt:       r.ReferredAt,
		})
	}
	return &dto.ReferralsResponse{ReferralCode: user.ReferralCode, Stats: *stats, Referrals: out}, nil
}

// UpdateProfile applies the fields present in req. An empty phone clears it.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	updates := map[string]interface{}{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
			return nil, validationError("full name must be between 2 and 100 characters")
		}
		updates["full_name"] = name
	}
	if req.Gender != nil {
		gender := strings.ToLower(strings.TrimSpace(*req.Gender))
		if !genders[gender] {
			return nil, validationError("gender must be male, female, or other")
		}
		updates["gender"] = gender
	}
	if req.Age != nil {
		if *req.Age < 13 || *req.Age > 120 {
			return nil, validationError("age must be between 13 and 120")
		}
		updates["age"] = *req.Age
	}
	var phone string
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
		switch {
		case phone == "":
			updates["phone"] = nil
		case !phonePattern.MatchString(phone):
			return nil, validationError("please provide a valid phone number")
		default:
			updates["phone"] = phone
		}
	}
	if req.ProfileImage != nil {
		image := strings.TrimSpace(*req.ProfileImage)
		if image != "" {
			u, err := url.Parse(image)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || len(image) > 2048 {
				return nil, validationError("profile image must be an http(s) URL")
			}
		}
		updates["profile_image"] = image
	}
	if len(updates) == 0 {
		return nil, validationError("no profile fields to update")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if phone != "" {
			var taken int64
			if err := tx.Model(&models.UserProfile{}).
				Where("phone = ? AND user_id <> ?", phone, userID).Count(&taken).Error; err != nil {
				return storageError("check phone", err)
			}
			if taken > 0 {
				return ErrPhoneTaken
			}
		}
		res := tx.Model(&models.UserProfile{}).Where("user_id = ?", userID).Updates(updates)
		if res.Error != nil {
			if database.IsUniqueViolation(res.Error) {
				return ErrPhoneTaken
			}
			return storageError("update profile", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user, profile, err := s.loadUser(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	resp := ToUserResponse(user, profile)
	return &resp, nil
}

// LoginHistory lists the most recent logins, newest first.
func (s *UserService) LoginHistory(ctx context.Context, userID uuid.UUID, limit int) (*dto.LoginHistoryResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > maxLoginHistory {
		limit = maxLoginHistory
	}
	q := s.db.WithContext(ctx).Model(&models.LoginHistory{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, storageError("count logins", err)
	}
	rows := []models.LoginHistory{}
	if err := q.Order("login_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, storageError("list logins", err)
	}
	return &dto.LoginHistoryResponse{TotalLogins: total, LoginHistory: rows}, nil
}

// ReadingStats summarizes today's activity and recent history. Missing
// snapshot fields render as defaults.
func (s *UserService) ReadingStats(ctx context.Context, userID uuid.UUID) (*dto.ReadingStatsResponse, error) {
	db := s.db.WithContext(ctx)
	_, profile, err := s.loadUser(db, userID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.wallet(db, userID)
	if err != nil {
		return nil, err
	}

	var today models.DailyReadingStat
	if err := db.Where("user_id = ? AND reading_date = ?", userID, day(s.now(), s.loc)).
		Limit(1).Find(&today).Error; err != nil {
		return nil, storageError("load today stat", err)
	}

	var history []models.ReadingHistory
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").
		Limit(recentHistoryLimit).Find(&history).Error; err != nil {
		return nil, storageError("load reading history", err)
	}

	items := make([]dto.HistoryItem, 0, len(history))
	for _, h := range history {
		items = append(items, historyItem(h))
	}

	return &dto.ReadingStatsResponse{
		Wallet:            *wallet,
		TotalArticlesRead: profile.TotalArticlesRead,
		CurrentStreak:     profile.CurrentStreak,
		LongestStreak:     profile.LongestStreak,
		TodayArticles:     today.ArticlesRead,
		TodayCoins:        today.CoinsEarned,
		RecentHistory:     items,
	}, nil
}

func (s *UserService) loadUser(db *gorm.DB, userID uuid.UUID) (*models.User, *models.UserProfile, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, storageError("load user", err)
	}
	profile := models.UserProfile{UserID: userID}
	if err := db.Where("user_id = ?", userID).Limit(1).Find(&profile).Error; err != nil {
		return nil, nil, storageError("load profile", err)
	}
	return &user, &profile, nil
}

func (s *UserService) wallet(db *gorm.DB, userID uuid.UUID) (*dto.WalletResponse, error) {
	var w models.Wallet
	if err := db.Where("user_id = ?", userID).Limit(1).Find(&w).Error; err != nil {
		return nil, storageError("load wallet", err)
	}
	return &dto.WalletResponse{
		AvailableCoins:   w.AvailableCoins,
		TotalEarned:      w.TotalEarned,
		TotalRedeemed:    w.TotalRedeemed,
		ReferralEarnings: w.ReferralEarnings,
	}, nil
}

func (s *UserService) referralStats(db *gorm.DB, userID uuid.UUID, profile *models.UserProfile) (*dto.ReferralStats, error) {
	var agg struct {
		Active     int64
		Pending    int64
		Commission int64
	}
	err := db.Model(&models.Referral{}).
		Select(`COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN signup_bonus_given = ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(lifetime_commission), 0) AS commission`, false).
		Where("referrer_id = ?", userID).
		Scan(&agg).Error
	if err != nil {
		return nil, storageError("referral stats", err)
	}
	return &dto.ReferralStats{
		TotalReferrals:  profile.TotalReferrals,
		ActiveReferrals: agg.Active,
		PendingBonuses:  agg.Pending,
		TotalCommission: agg.Commission,
	}, nil
}

func historyItem(h models.ReadingHistory) dto.HistoryItem {
	item := dto.HistoryItem{
		ArticleID:   h.ArticleExternalID,
		Title:       h.ArticleTitle,
		Category:    h.ArticleCategory,
		ImageURL:    h.ArticleImage,
		Description: h.ArticleDesc,
		Link:        h.ArticleLink,
		Source:      h.ArticleSource,
		TimeSpent:   h.TimeSpent,
		CoinsEarned: h.CoinsEarned,
		IsCompleted: h.IsCompleted,
		ReadingDate: h.ReadingDate,
		CompletedAt: h.CompletedAt,
	}
	if item.Title == "" {
		item.Title = "Untitled"
	}
	if item.Category == "" {
		item.Category = "general"
	}
	if item.Source == "" {
		item.Source = "Unknown"
	}
	return item
}

// ToUserResponse renders a user with its optional profile.
func ToUserResponse(user *models.User, profile *models.UserProfile) dto.UserResponse {
	resp := dto.UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Role:          user.Role,
		LoginProvider: user.LoginProvider,
		EmailVerified: user.EmailVerified,
		ReferralCode:  user.ReferralCode,
		LastLogin:     user.LastLogin,
	}
	if profile != nil {
		resp.FullName = profile.FullName
		resp.Gender = profile.Gender
		resp.Age = profile.Age
		resp.Phone = profile.Phone
		resp.ProfileImage = profile.ProfileImage
	}
	return resp
}
