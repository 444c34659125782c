package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func escrowTestConfig() config.Config {
	return config.Config{Currency: "JPY", EscrowHoldDays: 7}
}

// =====================
// ConfirmPayment
// =====================

func TestEscrowUsecase_ConfirmPayment_Success(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, Status: model.OrderStatusPendingPayment,
		Escrow: model.Escrow{Status: model.EscrowStatusPending},
	}, nil)
	ordersRepo.On("ConfirmPayment", mock.Anything, int64(41), "pay_123", testNow).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.OrderID == 41 && n.AuthorRole == model.NoteAuthorSystem && n.Body == "payment confirmed"
	})).Return(nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.ConfirmPayment(context.Background(), 41, "pay_123")
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
	notesRepo.AssertExpectations(t)
}

// 同じ注文に2回目の支払イベントが届いても成功扱いのまま何もしない
func TestEscrowUsecase_ConfirmPayment_SecondCallIdempotent(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, Status: model.OrderStatusPaymentConfirmed,
		Escrow: model.Escrow{Status: model.EscrowStatusHeld},
	}, nil)
	ordersRepo.On("ConfirmPayment", mock.Anything, int64(41), "pay_123", testNow).Return(false, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.ConfirmPayment(context.Background(), 41, "pay_123")
	assert.NoError(t, err)
	notesRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestEscrowUsecase_ConfirmPayment_InvalidRef(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewEscrowUsecase(tx, new(OrderRepoMock), new(SellerRepoMock), fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.ConfirmPayment(context.Background(), 41, "  ")
	assertErrContains(t, err, "invalid payment_ref")

	err = uc.ConfirmPayment(context.Background(), 41, strings.Repeat("x", 101))
	assertErrContains(t, err, "invalid payment_ref")

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestEscrowUsecase_ConfirmPaymentByNumber(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByOrderNumber", mock.Anything, "BD123456001").Return(model.Order{ID: 41, Status: model.OrderStatusPendingPayment}, true, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, Status: model.OrderStatusPendingPayment,
		Escrow: model.Escrow{Status: model.EscrowStatusPending},
	}, nil)
	ordersRepo.On("ConfirmPayment", mock.Anything, int64(41), "pay_123", testNow).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.ConfirmPaymentByNumber(context.Background(), "BD123456001", "pay_123")
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
}

func TestEscrowUsecase_ConfirmPaymentByNumber_NotFound(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	ordersRepo.On("FindByOrderNumber", mock.Anything, "BD000000000").Return(model.Order{}, false, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.ConfirmPaymentByNumber(context.Background(), "BD000000000", "pay_123")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

// =====================
// UpdateFulfillment
// =====================

func TestEscrowUsecase_UpdateFulfillment_Shipped(t *testing.T) {
	tx := new(TxManagerMock)
	sellers := new(SellerRepoMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	sellers.On("FindByUserID", mock.Anything, int64(20)).Return(model.Seller{ID: 3, UserID: 20}, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{ID: 41, SellerID: 3, Status: model.OrderStatusProcessing}, nil)
	ordersRepo.On("MarkShipped", mock.Anything, int64(41), "yamato", "TRK-0001", testNow).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.AuthorRole == model.NoteAuthorSeller && n.AuthorID == 20 && n.Body == "shipped via yamato"
	})).Return(nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, sellers, fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.UpdateFulfillment(context.Background(), 20, 41, usecase.FulfillmentInput{
		Status: "shipped", Carrier: "yamato", TrackingNumber: "TRK-0001",
	})
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
	notesRepo.AssertExpectations(t)
}

func TestEscrowUsecase_UpdateFulfillment_ShippedRequiresTracking(t *testing.T) {
	tx := new(TxManagerMock)
	sellers := new(SellerRepoMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	sellers.On("FindByUserID", mock.Anything, int64(20)).Return(model.Seller{ID: 3, UserID: 20}, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{ID: 41, SellerID: 3}, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, sellers, fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.UpdateFulfillment(context.Background(), 20, 41, usecase.FulfillmentInput{Status: "shipped", Carrier: "yamato"})
	assertErrContains(t, err, "carrier and tracking_number required")
	ordersRepo.AssertNotCalled(t, "MarkShipped", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowUsecase_UpdateFulfillment_OutForDelivery(t *testing.T) {
	tx := new(TxManagerMock)
	sellers := new(SellerRepoMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	sellers.On("FindByUserID", mock.Anything, int64(20)).Return(model.Seller{ID: 3, UserID: 20}, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{ID: 41, SellerID: 3, Status: model.OrderStatusShipped}, nil)
	ordersRepo.On("UpdateStatus", mock.Anything, int64(41), model.OrderStatusShipped, model.OrderStatusOutForDelivery).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.Body == "out for delivery"
	})).Return(nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, sellers, fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.UpdateFulfillment(context.Background(), 20, 41, usecase.FulfillmentInput{Status: "out_for_delivery"})
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
}

func TestEscrowUsecase_UpdateFulfillment_InvalidStatus(t *testing.T) {
	tx := new(TxManagerMock)
	sellers := new(SellerRepoMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	sellers.On("FindByUserID", mock.Anything, int64(20)).Return(model.Seller{ID: 3, UserID: 20}, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{ID: 41, SellerID: 3}, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, sellers, fixedClock{testNow}, nil, escrowTestConfig())

	// delivered は出品者の操作では進められない
	err := uc.UpdateFulfillment(context.Background(), 20, 41, usecase.FulfillmentInput{Status: "delivered"})
	assertErrContains(t, err, "invalid fulfillment status")
}

func TestEscrowUsecase_UpdateFulfillment_ForeignOrderDenied(t *testing.T) {
	tx := new(TxManagerMock)
	sellers := new(SellerRepoMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	sellers.On("FindByUserID", mock.Anything, int64(20)).Return(model.Seller{ID: 3, UserID: 20}, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{ID: 41, SellerID: 9}, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, sellers, fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.UpdateFulfillment(context.Background(), 20, 41, usecase.FulfillmentInput{Status: "processing"})
	assert.ErrorIs(t, err, usecase.ErrAccessDenied)
	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// ConfirmDelivery
// =====================

func TestEscrowUsecase_ConfirmDelivery_SetsAutoRelease(t *testing.T) {
	tx := new(TxManagerMock)
	sellers := new(SellerRepoMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	sellers.On("FindByUserID", mock.Anything, int64(20)).Return(model.Seller{ID: 3, UserID: 20}, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, SellerID: 3, Status: model.OrderStatusOutForDelivery,
		Escrow: model.Escrow{Status: model.EscrowStatusHeld},
	}, nil)

	// 自動釈放期限は配達から7日後
	wantRelease := testNow.Add(7 * 24 * time.Hour)
	ordersRepo.On("MarkDelivered", mock.Anything, int64(41), testNow, wantRelease).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.Body == "delivery confirmed"
	})).Return(nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, sellers, fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.ConfirmDelivery(context.Background(), 20, 41)
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
	ordersRepo.AssertNotCalled(t, "HoldEscrow", mock.Anything, mock.Anything)
}

// 支払イベントが落ちていた注文はエスクローをheldへ進めてから配達確定する
func TestEscrowUsecase_ConfirmDelivery_HoldsEscrowFirst(t *testing.T) {
	tx := new(TxManagerMock)
	sellers := new(SellerRepoMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	sellers.On("FindByUserID", mock.Anything, int64(20)).Return(model.Seller{ID: 3, UserID: 20}, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, SellerID: 3, Status: model.OrderStatusShipped,
		Escrow: model.Escrow{Status: model.EscrowStatusPending},
	}, nil)
	ordersRepo.On("HoldEscrow", mock.Anything, int64(41)).Return(true, nil)
	ordersRepo.On("MarkDelivered", mock.Anything, int64(41), testNow, testNow.Add(7*24*time.Hour)).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, sellers, fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.ConfirmDelivery(context.Background(), 20, 41)
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
}

func TestEscrowUsecase_ConfirmDelivery_WrongState(t *testing.T) {
	tx := new(TxManagerMock)
	sellers := new(SellerRepoMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	sellers.On("FindByUserID", mock.Anything, int64(20)).Return(model.Seller{ID: 3, UserID: 20}, nil)
	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, SellerID: 3, Status: model.OrderStatusPendingPayment,
		Escrow: model.Escrow{Status: model.EscrowStatusHeld},
	}, nil)
	ordersRepo.On("MarkDelivered", mock.Anything, int64(41), mock.Anything, mock.Anything).Return(false, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, sellers, fixedClock{testNow}, nil, escrowTestConfig())

	err := uc.ConfirmDelivery(context.Background(), 20, 41)
	assert.ErrorIs(t, err, usecase.ErrInvalidStatus)
}

// =====================
// ApproveDelivery
// =====================

func TestEscrowUsecase_ApproveDelivery_ReleasesAndPublishes(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)
	txSellers := new(SellerRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo, sellers: txSellers}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, SellerID: 3, Total: 5400, Status: model.OrderStatusDelivered,
		Escrow: model.Escrow{Status: model.EscrowStatusHeld},
	}, nil)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(41), model.EscrowReleasedByBuyer, testNow, true).Return(true, nil)
	txSellers.On("AddSale", mock.Anything, int64(3), int64(5400)).Return(nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.AuthorRole == model.NoteAuthorBuyer && n.Body == "delivery approved, escrow released"
	})).Return(nil)
	events.On("EscrowReleased", mock.Anything, mock.Anything, model.EscrowReleasedByBuyer, testNow).Return()

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{testNow}, events, escrowTestConfig())

	err := uc.ApproveDelivery(context.Background(), 7, 41)
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
	txSellers.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestEscrowUsecase_ApproveDelivery_NotDelivered(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, Status: model.OrderStatusShipped,
	}, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{testNow}, events, escrowTestConfig())

	err := uc.ApproveDelivery(context.Background(), 7, 41)
	assert.ErrorIs(t, err, usecase.ErrInvalidStatus)
	ordersRepo.AssertNotCalled(t, "ReleaseEscrow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "EscrowReleased", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 争議中や既釈放で条件付きUPDATEが負けたらイベントも流さない
func TestEscrowUsecase_ApproveDelivery_LostRace(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, SellerID: 3, Status: model.OrderStatusDelivered,
		Escrow: model.Escrow{Status: model.EscrowStatusHeld},
	}, nil)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(41), model.EscrowReleasedByBuyer, testNow, true).Return(false, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{testNow}, events, escrowTestConfig())

	err := uc.ApproveDelivery(context.Background(), 7, 41)
	assert.ErrorIs(t, err, usecase.ErrInvalidEscrowTransition)
	events.AssertNotCalled(t, "EscrowReleased", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// ReleaseDueEscrows
// =====================

func TestEscrowUsecase_ReleaseDueEscrows_ReleasesAllDue(t *testing.T) {
	now := testNow

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)
	txSellers := new(SellerRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo, sellers: txSellers}
	tx.On("WithinTx", mock.Anything).Return(nil)

	due := []model.Order{
		{ID: 1, SellerID: 3, Total: 1000},
		{ID: 2, SellerID: 4, Total: 2500},
	}
	ordersRepo.On("ListDueForRelease", mock.Anything, now, 100).Return(due, nil)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(1), model.EscrowReleasedBySystem, now, false).Return(true, nil)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(2), model.EscrowReleasedBySystem, now, false).Return(true, nil)
	txSellers.On("AddSale", mock.Anything, int64(3), int64(1000)).Return(nil)
	txSellers.On("AddSale", mock.Anything, int64(4), int64(2500)).Return(nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.AuthorRole == model.NoteAuthorSystem && n.Body == "escrow auto-released"
	})).Return(nil)
	events.On("EscrowReleased", mock.Anything, mock.Anything, model.EscrowReleasedBySystem, now).Return()

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{now}, events, escrowTestConfig())

	released, err := uc.ReleaseDueEscrows(context.Background(), now, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, released)
	events.AssertNumberOfCalls(t, "EscrowReleased", 2)
	txSellers.AssertExpectations(t)
}

// 一覧取得後に買手承認などで先を越された行は飛ばす
func TestEscrowUsecase_ReleaseDueEscrows_SkipsLostRows(t *testing.T) {
	now := testNow

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)
	txSellers := new(SellerRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo, sellers: txSellers}
	tx.On("WithinTx", mock.Anything).Return(nil)

	due := []model.Order{
		{ID: 1, SellerID: 3, Total: 1000},
		{ID: 2, SellerID: 4, Total: 2500},
	}
	ordersRepo.On("ListDueForRelease", mock.Anything, now, 100).Return(due, nil)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(1), model.EscrowReleasedBySystem, now, false).Return(false, nil)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(2), model.EscrowReleasedBySystem, now, false).Return(true, nil)
	txSellers.On("AddSale", mock.Anything, int64(4), int64(2500)).Return(nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.OrderID == 2
	})).Return(nil)
	events.On("EscrowReleased", mock.Anything, mock.Anything, model.EscrowReleasedBySystem, now).Return()

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{now}, events, escrowTestConfig())

	released, err := uc.ReleaseDueEscrows(context.Background(), now, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, released)

	txSellers.AssertNotCalled(t, "AddSale", mock.Anything, int64(3), mock.Anything)
	events.AssertNumberOfCalls(t, "EscrowReleased", 1)
}

// 1件の失敗で残りを止めない。最初のエラーだけ返す。
func TestEscrowUsecase_ReleaseDueEscrows_ContinuesAfterError(t *testing.T) {
	now := testNow

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)
	txSellers := new(SellerRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo, sellers: txSellers}
	tx.On("WithinTx", mock.Anything).Return(nil)

	due := []model.Order{
		{ID: 1, SellerID: 3, Total: 1000},
		{ID: 2, SellerID: 4, Total: 2500},
	}
	boom := errors.New("deadlock detected")
	ordersRepo.On("ListDueForRelease", mock.Anything, now, 100).Return(due, nil)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(1), model.EscrowReleasedBySystem, now, false).Return(false, boom)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(2), model.EscrowReleasedBySystem, now, false).Return(true, nil)
	txSellers.On("AddSale", mock.Anything, int64(4), int64(2500)).Return(nil)
	notesRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	events.On("EscrowReleased", mock.Anything, mock.Anything, model.EscrowReleasedBySystem, now).Return()

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{now}, events, escrowTestConfig())

	released, err := uc.ReleaseDueEscrows(context.Background(), now, 0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, released)
	events.AssertNumberOfCalls(t, "EscrowReleased", 1)
}

func TestEscrowUsecase_ReleaseDueEscrows_NothingDue(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	ordersRepo.On("ListDueForRelease", mock.Anything, testNow, 100).Return([]model.Order{}, nil)

	uc := usecase.NewEscrowUsecase(tx, ordersRepo, new(SellerRepoMock), fixedClock{testNow}, nil, escrowTestConfig())

	released, err := uc.ReleaseDueEscrows(context.Background(), testNow, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, released)
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}
