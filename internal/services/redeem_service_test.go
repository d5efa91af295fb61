package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newRedeemFixture(t *testing.T, funds int64) (*gorm.DB, *RedeemService, models.User, *models.GiftCard) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewRedeemService(db, notify.LogNotifier{})
	svc.now = clock(testNow)
	user := testutil.CreateUser(t, db, "redeemer@example.com", "")
	if funds > 0 {
		testutil.Fund(t, db, user.ID, funds)
	}
	card, err := svc.CreateGiftCard(context.Background(), &dto.CreateGiftCardRequest{
		Name: "Amazon 500", Brand: "Amazon", Value: 500, CoinsRequired: 500,
	})
	if err != nil {
		t.Fatalf("CreateGiftCard: %v", err)
	}
	return db, svc, user, card
}

func TestCreateRedeemRequestDebits(t *testing.T) {
	db, svc, user, card := newRedeemFixture(t, 600)

	req, err := svc.CreateRedeemRequest(context.Background(), user.ID, card.ID, "")
	if err != nil {
		t.Fatalf("CreateRedeemRequest: %v", err)
	}
	if req.Status != models.RedeemPending || req.CoinsRedeemed != 500 || req.DeliveryEmail != user.Email {
		t.Fatalf("request = %+v", req)
	}
	if req.CardName != card.Name || req.CardBrand != "Amazon" || req.UserEmail != user.Email {
		t.Fatalf("snapshot = %+v", req)
	}

	w := testutil.Wallet(t, db, user.ID)
	if w.AvailableCoins != 100 || w.TotalRedeemed != 500 {
		t.Fatalf("wallet = %+v", w)
	}
	var tx models.CoinTransaction
	if err := db.First(&tx, "user_id = ? AND type = ?", user.ID, models.TxRedeemed).Error; err != nil {
		t.Fatalf("load redeemed transaction: %v", err)
	}
	if tx.Amount != -500 || tx.BalanceAfter != 100 {
		t.Fatalf("transaction = %+v", tx)
	}
	testutil.AssertLedgerBalanced(t, db, user.ID)
}

func TestCreateRedeemRequestInsufficientBalance(t *testing.T) {
	db, svc, user, card := newRedeemFixture(t, 100)

	_, err := svc.CreateRedeemRequest(context.Background(), user.ID, card.ID, "")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if w := testutil.Wallet(t, db, user.ID); w.AvailableCoins != 100 || w.TotalRedeemed != 0 {
		t.Fatalf("wallet = %+v", w)
	}
	if n := countRows(t, db, &models.RedeemRequest{}, ""); n != 0 {
		t.Fatalf("requests = %d", n)
	}
}

func TestCreateRedeemRequestRejectsBadInput(t *testing.T) {
	db, svc, user, card := newRedeemFixture(t, 600)
	ctx := context.Background()

	if _, err := svc.CreateRedeemRequest(ctx, user.ID, uuid.New(), ""); !errors.Is(err, ErrGiftCardNotFound) {
		t.Fatalf("unknown card: %v", err)
	}
	if _, err := svc.CreateRedeemRequest(ctx, user.ID, card.ID, "not-an-email"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad email: %v", err)
	}
	db.Model(card).Update("is_active", false)
	if _, err := svc.CreateRedeemRequest(ctx, user.ID, card.ID, ""); !errors.Is(err, ErrGiftCardNotFound) {
		t.Fatalf("inactive card: %v", err)
	}
	if w := testutil.Wallet(t, db, user.ID); w.AvailableCoins != 600 {
		t.Fatalf("wallet = %+v", w)
	}
}

func TestRejectPendingRefundsOnce(t *testing.T) {
	db, svc, user, card := newRedeemFixture(t, 600)
	ctx := context.Background()
	admin := uuid.New()

	req, err := svc.CreateRedeemRequest(ctx, user.ID, card.ID, "gift@example.com")
	if err != nil {
		t.Fatalf("CreateRedeemRequest: %v", err)
	}
	notes := "out of stock"
	resolved, err := svc.ResolveRedeemRequest(ctx, req.ID, admin, models.RedeemRejected, nil, &notes)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if resolved.Status != models.RedeemRejected || resolved.ProcessedBy == nil || *resolved.ProcessedBy != admin {
		t.Fatalf("resolved = %+v", resolved)
	}
	if resolved.AdminNotes == nil || *resolved.AdminNotes != notes {
		t.Fatalf("admin notes = %v", resolved.AdminNotes)
	}

	w := testutil.Wallet(t, db, user.ID)
	if w.AvailableCoins != 600 || w.TotalRedeemed != 0 {
		t.Fatalf("wallet after refund = %+v", w)
	}

	if _, err := svc.ResolveRedeemRequest(ctx, req.ID, admin, models.RedeemRejected, nil, nil); !errors.Is(err, ErrRedeemFinalized) {
		t.Fatalf("second reject: %v", err)
	}
	if n := countRows(t, db, &models.CoinTransaction{}, "user_id = ? AND type = ?", user.ID, models.TxRefund); n != 1 {
		t.Fatalf("refund transactions = %d", n)
	}
	testutil.AssertLedgerBalanced(t, db, user.ID)
}

func TestRejectApprovedDoesNotRefund(t *testing.T) {
	db, svc, user, card := newRedeemFixture(t, 600)
	ctx := context.Background()
	admin := uuid.New()

	req, err := svc.CreateRedeemRequest(ctx, user.ID, card.ID, "")
	if err != nil {
		t.Fatalf("CreateRedeemRequest: %v", err)
	}
	if _, err := svc.ResolveRedeemRequest(ctx, req.ID, admin, models.RedeemApproved, nil, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.ResolveRedeemRequest(ctx, req.ID, admin, models.RedeemRejected, nil, nil); err != nil {
		t.Fatalf("reject approved: %v", err)
	}

	if w := testutil.Wallet(t, db, user.ID); w.AvailableCoins != 100 || w.TotalRedeemed != 500 {
		t.Fatalf("wallet = %+v", w)
	}
	testutil.AssertLedgerBalanced(t, db, user.ID)
}

func TestCompleteWithGiftCodeIsFinal(t *testing.T) {
	_, svc, user, card := newRedeemFixture(t, 600)
	ctx := context.Background()
	admin := uuid.New()

	req, err := svc.CreateRedeemRequest(ctx, user.ID, card.ID, "")
	if err != nil {
		t.Fatalf("CreateRedeemRequest: %v", err)
	}
	code := " AMZ-1234 "
	done, err := svc.ResolveRedeemRequest(ctx, req.ID, admin, models.RedeemCompleted, &code, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.GiftCode == nil || *done.GiftCode != "AMZ-1234" || done.CompletedAt == nil {
		t.Fatalf("completed = %+v", done)
	}
	if _, err := svc.ResolveRedeemRequest(ctx, req.ID, admin, models.RedeemApproved, nil, nil); !errors.Is(err, ErrRedeemFinalized) {
		t.Fatalf("reopen completed: %v", err)
	}
}

func TestResolveRedeemRequestValidation(t *testing.T) {
	_, svc, _, _ := newRedeemFixture(t, 0)
	ctx := context.Background()

	if _, err := svc.ResolveRedeemRequest(ctx, uuid.New(), uuid.New(), models.RedeemPending, nil, nil); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("pending status: %v", err)
	}
	if _, err := svc.ResolveRedeemRequest(ctx, uuid.New(), uuid.New(), models.RedeemApproved, nil, nil); !errors.Is(err, ErrRedeemRequestNotFound) {
		t.Fatalf("unknown request: %v", err)
	}
}

func TestRedeemListingsAndStats(t *testing.T) {
	db, svc, user, card := newRedeemFixture(t, 2000)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		svc.now = clock(testNow.Add(time.Duration(i) * time.Minute))
		req, err := svc.CreateRedeemRequest(ctx, user.ID, card.ID, "")
		if err != nil {
			t.Fatalf("CreateRedeemRequest %d: %v", i, err)
		}
		ids = append(ids, req.ID)
	}
	if _, err := svc.ResolveRedeemRequest(ctx, ids[2], uuid.New(), models.RedeemRejected, nil, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}

	history, err := svc.History(ctx, user.ID, 1, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history.Pagination.Total != 3 || history.Pagination.Pages != 2 || len(history.Requests) != 2 {
		t.Fatalf("history pagination = %+v (%d rows)", history.Pagination, len(history.Requests))
	}
	if history.Requests[0].ID != ids[2] {
		t.Fatal("history not newest first")
	}

	list, err := svc.AdminList(ctx, "", 1, 10)
	if err != nil {
		t.Fatalf("AdminList: %v", err)
	}
	if len(list.Requests) != 3 || list.Requests[2].Status != models.RedeemRejected {
		t.Fatalf("pending requests not listed first: %+v", list.Requests)
	}
	pending, err := svc.AdminList(ctx, models.RedeemPending, 1, 10)
	if err != nil || len(pending.Requests) != 2 {
		t.Fatalf("pending filter: %v (%d rows)", err, len(pending.Requests))
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRequests != 3 || stats.TotalCoinsRedeemed != 1000 {
		t.Fatalf("stats = %+v", stats)
	}

	cards, err := svc.ListGiftCards(ctx)
	if err != nil || len(cards) != 1 {
		t.Fatalf("ListGiftCards: %v (%d)", err, len(cards))
	}
	if _, err := svc.CreateGiftCard(ctx, &dto.CreateGiftCardRequest{Name: "x", Brand: "y"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid card: %v", err)
	}
	testutil.AssertLedgerBalanced(t, db, user.ID)
}
