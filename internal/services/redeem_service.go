package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/notify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RedeemService struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
}

func NewRedeemService(db *gorm.DB, notifier notify.Notifier) *RedeemService {
	return &RedeemService{db: db, notifier: notifier, now: time.Now}
}

// CreateRedeemRequest debits the card price and files a pending request.
func (s *RedeemService) CreateRedeemRequest(ctx context.Context, userID, cardID uuid.UUID, deliveryEmail string) (*models.RedeemRequest, error) {
	deliveryEmail = strings.ToLower(strings.TrimSpace(deliveryEmail))
	if deliveryEmail != "" {
		if _, err := mail.ParseAddress(deliveryEmail); err != nil {
			return nil, validationError("invalid delivery email")
		}
	}

	var request models.RedeemRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card models.GiftCard
		if err := tx.Where("id = ? AND is_active = ?", cardID, true).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGiftCardNotFound
			}
			return storageError("load gift card", err)
		}

		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return storageError("load user", err)
		}
		var profile models.UserProfile
		if err := tx.Where("user_id = ?", userID).Limit(1).Find(&profile).Error; err != nil {
			return storageError("load profile", err)
		}

		if _, err := postEntry(tx, ledgerEntry{
			UserID:      userID,
			Type:        models.TxRedeemed,
			Source:      models.SourceGiftCard,
			Description: "Redeemed: " + card.Name,
			Amount:      -card.CoinsRequired,
		}, walletCounters{Redeemed: card.CoinsRequired}); err != nil {
			return err
		}

		if deliveryEmail == "" {
			deliveryEmail = user.Email
		}
		request = models.RedeemRequest{
			UserID:        userID,
			GiftCardID:    card.ID,
			UserName:      profile.FullName,
			UserEmail:     user.Email,
			DeliveryEmail: deliveryEmail,
			CardName:      card.Name,
			CardBrand:     card.Brand,
			CardValue:     card.Value,
			CoinsRedeemed: card.CoinsRequired,
			Status:        models.RedeemPending,
			RequestedAt:   s.now().UTC(),
		}
		if err := tx.Create(&request).Error; err != nil {
			return storageError("create redeem request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("redeem requested", "user_id", userID.String(), "request_id", request.ID.String(), "coins", request.CoinsRedeemed)
	return &request, nil
}

// ResolveRedeemRequest moves a request to approved, rejected or completed.
// Only pending -> rejected refunds, and only once.
func (s *RedeemService) ResolveRedeemRequest(ctx context.Context, requestID, adminID uuid.UUID, status string, giftCode, notes *string) (*models.RedeemRequest, error) {
	switch status {
	case models.RedeemApproved, models.RedeemRejected, models.RedeemCompleted:
	default:
		return nil, ErrInvalidStatus
	}

	var request models.RedeemRequest
	var previous string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRedeemRequestNotFound
			}
			return storageError("load redeem request", err)
		}
		previous = request.Status
		if previous == models.RedeemRejected || previous == models.RedeemCompleted {
			return ErrRedeemFinalized
		}

		now := s.now().UTC()
		updates := map[string]interface{}{
			"status":       status,
			"processed_by": adminID,
			"processed_at": now,
		}
		if giftCode != nil {
			updates["gift_code"] = strings.TrimSpace(*giftCode)
		}
		if notes != nil {
			updates["admin_notes"] = *notes
		}
		if status == models.RedeemCompleted {
			updates["completed_at"] = now
		}

		res := tx.Model(&models.RedeemRequest{}).
			Where("id = ? AND status = ?", requestID, previous).
			Updates(updates)
		if res.Error != nil {
			return storageError("update redeem request", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRedeemChanged
		}

		if previous == models.RedeemPending && status == models.RedeemRejected {
			if _, err := postEntry(tx, ledgerEntry{
				UserID:      request.UserID,
				Type:        models.TxRefund,
				Source:      models.SourceRedeemRejected,
				Description: "Refund: " + request.CardName,
				Amount:      request.CoinsRedeemed,
			}, walletCounters{Redeemed: -request.CoinsRedeemed}); err != nil {
				return err
			}
		}

		return tx.First(&request, "id = ?", requestID).Error
	})
	if err != nil {
		return nil, err
	}

	slog.Info("redeem resolved",
		"request_id", requestID.String(),
		"admin_id", adminID.String(),
		"from", previous,
		"to", status,
	)

	if status == models.RedeemCompleted && request.GiftCode != nil && *request.GiftCode != "" {
		to, card, code := request.DeliveryEmail, request.CardName, *request.GiftCode
		notify.Go("gift_code", func(ctx context.Context) error {
			return s.notifier.SendGiftCode(ctx, to, card, code)
		})
	}
	return &request, nil
}

func (s *RedeemService) ListGiftCards(ctx context.Context) ([]models.GiftCard, error) {
	var cards []models.GiftCard
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).
		Order("coins_required ASC").Find(&cards).Error; err != nil {
		return nil, storageError("list gift cards", err)
	}
	return cards, nil
}

func (s *RedeemService) CreateGiftCard(ctx context.Context, req *dto.CreateGiftCardRequest) (*models.GiftCard, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.Brand) == "" {
		return nil, validationError("name and brand are required")
	}
	if req.CoinsRequired <= 0 || req.Value <= 0 {
		return nil, validationError("value and coins_required must be positive")
	}
	card := models.GiftCard{
		Name:          name,
		Brand:         strings.TrimSpace(req.Brand),
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		Value:         req.Value,
		CoinsRequired: req.CoinsRequired,
		IsActive:      true,
	}
	if err := s.db.WithContext(ctx).Create(&card).Error; err != nil {
		return nil, storageError("create gift card", err)
	}
	return &card, nil
}

// History lists the user's own requests, newest first.
func (s *RedeemService) History(ctx context.Context, userID uuid.UUID, page, limit int) (*dto.RedeemListResponse, error) {
	page, limit, offset := pageBounds(page, limit, 100)
	q := s.db.WithContext(ctx).Model(&models.RedeemRequest{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, storageError("count redeem history", err)
	}
	requests := []models.RedeemRequest{}
	if err := q.Order("requested_at DESC").Limit(limit).Offset(offset).Find(&requests).Error; err != nil {
		return nil, storageError("list redeem history", err)
	}
	return &dto.RedeemListResponse{Requests: requests, Pagination: dto.NewPagination(page, limit, total)}, nil
}

// AdminList lists requests with pending ones first, optionally filtered by
// status.
func (s *RedeemService) AdminList(ctx context.Context, status string, page, limit int) (*dto.RedeemListResponse, error) {
	page, limit, offset := pageBounds(page, limit, 100)
	q := s.db.WithContext(ctx).Model(&models.RedeemRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, storageError("count redeem requests", err)
	}
	requests := []models.RedeemRequest{}
	err := q.Order("CASE WHEN status = 'pending' THEN 0 ELSE 1 END").
		Order("requested_at DESC").
		Limit(limit).Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, storageError("list redeem requests", err)
	}
	return &dto.RedeemListResponse{Requests: requests, Pagination: dto.NewPagination(page, limit, total)}, nil
}

func (s *RedeemService) Stats(ctx context.Context) (*dto.RedeemStatsResponse, error) {
	rows := []dto.RedeemStatusCount{}
	err := s.db.WithContext(ctx).Model(&models.RedeemRequest{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(coins_redeemed), 0) AS coins").
		Group("status").Order("status").
		Scan(&rows).Error
	if err != nil {
		return nil, storageError("redeem stats", err)
	}

	stats := &dto.RedeemStatsResponse{ByStatus: rows}
	for _, r := range rows {
		stats.TotalRequests += r.Count
		if r.Status != models.RedeemRejected {
			stats.TotalCoinsRedeemed += r.Coins
		}
	}
	return stats, nil
}
