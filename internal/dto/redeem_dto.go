package dto

import "github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"

type CreateRedeemRequest struct {
	GiftCardID    string `json:"gift_card_id"`
	DeliveryEmail string `json:"delivery_email,omitempty"`
}

type ResolveRedeemRequest struct {
	Status     string  `json:"status"`
	GiftCode   *string `json:"gift_code,omitempty"`
	AdminNotes *string `json:"admin_notes,omitempty"`
}

type CreateGiftCardRequest struct {
	Name          string `json:"name"`
	Brand         string `json:"brand"`
	Description   string `json:"description"`
	ImageURL      string `json:"image_url"`
	Value         int64  `json:"value"`
	CoinsRequired int64  `json:"coins_required"`
}

type RedeemListResponse struct {
	Requests   []models.RedeemRequest `json:"requests"`
	Pagination Pagination             `json:"pagination"`
}

type RedeemStatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Coins  int64  `json:"coins"`
}

type RedeemStatsResponse struct {
	ByStatus           []RedeemStatusCount `json:"by_status"`
	TotalRequests      int64               `json:"total_requests"`
	TotalCoinsRedeemed int64               `json:"total_coins_redeemed"`
}
