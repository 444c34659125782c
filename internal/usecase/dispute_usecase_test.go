package usecase_test

import (
	"context"
	"strings"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Open
// =====================

func TestDisputeUsecase_Open_Success(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, Status: model.OrderStatusDelivered,
		Escrow: model.Escrow{Status: model.EscrowStatusHeld},
	}, nil)
	ordersRepo.On("OpenDispute", mock.Anything, int64(41), int64(7), "item not received", "box was empty", "", testNow).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.AuthorRole == model.NoteAuthorBuyer && n.Body == "dispute opened: item not received"
	})).Return(nil)

	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.Open(context.Background(), 7, 41, usecase.OpenDisputeInput{
		Reason:      "item not received",
		Description: "box was empty",
	})
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
	notesRepo.AssertExpectations(t)
}

func TestDisputeUsecase_Open_EscrowNotHeld(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, Status: model.OrderStatusPendingPayment,
		Escrow: model.Escrow{Status: model.EscrowStatusPending},
	}, nil)

	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.Open(context.Background(), 7, 41, usecase.OpenDisputeInput{Reason: "not as described"})
	assert.ErrorIs(t, err, usecase.ErrInvalidStatus)
	ordersRepo.AssertNotCalled(t, "OpenDispute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 同じ注文に争議は同時に1つまで
func TestDisputeUsecase_Open_AlreadyDisputed(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7,
		Escrow:  model.Escrow{Status: model.EscrowStatusHeld},
		Dispute: model.Dispute{IsDisputed: true, Status: model.DisputeStatusOpen},
	}, nil)

	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.Open(context.Background(), 7, 41, usecase.OpenDisputeInput{Reason: "not as described"})
	assert.ErrorIs(t, err, usecase.ErrConflict)
}

func TestDisputeUsecase_Open_OtherBuyerDenied(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 42,
		Escrow: model.Escrow{Status: model.EscrowStatusHeld},
	}, nil)

	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.Open(context.Background(), 7, 41, usecase.OpenDisputeInput{Reason: "not as described"})
	assert.ErrorIs(t, err, usecase.ErrAccessDenied)
}

func TestDisputeUsecase_Open_ValidationErrors(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.Open(context.Background(), 7, 41, usecase.OpenDisputeInput{Reason: "  "})
	assertErrContains(t, err, "reason required")

	err = uc.Open(context.Background(), 7, 41, usecase.OpenDisputeInput{
		Reason:      "ok",
		Description: strings.Repeat("x", 2001),
	})
	assertErrContains(t, err, "too long")

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

// =====================
// StartReview
// =====================

func TestDisputeUsecase_StartReview_Success(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("StartDisputeReview", mock.Anything, int64(41)).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.AuthorRole == model.NoteAuthorAdmin && n.AuthorID == 2 && n.Body == "dispute under review"
	})).Return(nil)

	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.StartReview(context.Background(), 2, 41)
	assert.NoError(t, err)
	notesRepo.AssertExpectations(t)
}

func TestDisputeUsecase_StartReview_NotOpen(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("StartDisputeReview", mock.Anything, int64(41)).Return(false, nil)

	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.StartReview(context.Background(), 2, 41)
	assert.ErrorIs(t, err, usecase.ErrInvalidStatus)
}

// =====================
// Resolve
// =====================

func TestDisputeUsecase_Resolve_RefundToCustomer(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)
	audit := new(AuditRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, SellerID: 3, Total: 5400, Status: model.OrderStatusProcessing,
		Escrow:  model.Escrow{Status: model.EscrowStatusHeld},
		Dispute: model.Dispute{IsDisputed: true, Status: model.DisputeStatusUnderReview},
	}, nil)
	ordersRepo.On("ResolveDispute", mock.Anything, int64(41), int64(2), "refund the buyer", testNow).Return(true, nil)
	ordersRepo.On("RefundEscrow", mock.Anything, int64(41), int64(5400), "refund the buyer", testNow).Return(true, nil)
	// 配達前なので注文も refunded に倒れる
	ordersRepo.On("UpdateStatus", mock.Anything, int64(41), model.OrderStatusProcessing, model.OrderStatusRefunded).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.AuthorRole == model.NoteAuthorAdmin && n.Body == "dispute resolved: refunded 5400 to customer"
	})).Return(nil)
	// CreatedAt は now なので見ない
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.ActorUserID == 2 &&
			l.Action == model.AuditActionResolveDispute &&
			l.ResourceType == model.AuditResourceOrder &&
			l.ResourceID == 41 &&
			strings.Contains(l.BeforeJSON, "under_review") &&
			strings.Contains(l.AfterJSON, `"refund_amount":5400`)
	})).Return(nil)
	events.On("EscrowRefunded", mock.Anything, mock.Anything, int64(5400), "refund the buyer", testNow).Return()

	uc := usecase.NewDisputeUsecase(tx, audit, fixedClock{testNow}, events)

	err := uc.Resolve(context.Background(), 2, 41, usecase.ResolveDisputeInput{
		Resolution:   "refund the buyer",
		RefundAmount: 5400,
	})
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
	audit.AssertExpectations(t)
	events.AssertExpectations(t)
}

// 配達済みの注文は返金しても delivered のまま
func TestDisputeUsecase_Resolve_DeliveredStaysDelivered(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)
	audit := new(AuditRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, SellerID: 3, Total: 5400, Status: model.OrderStatusDelivered,
		Escrow:  model.Escrow{Status: model.EscrowStatusHeld},
		Dispute: model.Dispute{IsDisputed: true, Status: model.DisputeStatusOpen},
	}, nil)
	ordersRepo.On("ResolveDispute", mock.Anything, int64(41), int64(2), "partial refund", testNow).Return(true, nil)
	ordersRepo.On("RefundEscrow", mock.Anything, int64(41), int64(1000), "partial refund", testNow).Return(true, nil)
	notesRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewDisputeUsecase(tx, audit, fixedClock{testNow}, nil)

	err := uc.Resolve(context.Background(), 2, 41, usecase.ResolveDisputeInput{
		Resolution:   "partial refund",
		RefundAmount: 1000,
	})
	assert.NoError(t, err)
	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeUsecase_Resolve_ReleaseToSeller(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	notesRepo := new(OrderNoteRepoMock)
	txSellers := new(SellerRepoMock)
	audit := new(AuditRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderNotes: notesRepo, sellers: txSellers}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, SellerID: 3, Total: 5400, Status: model.OrderStatusDelivered,
		Escrow:  model.Escrow{Status: model.EscrowStatusHeld},
		Dispute: model.Dispute{IsDisputed: true, Status: model.DisputeStatusUnderReview},
	}, nil)
	ordersRepo.On("ResolveDispute", mock.Anything, int64(41), int64(2), "claim unfounded", testNow).Return(true, nil)
	ordersRepo.On("ReleaseEscrow", mock.Anything, int64(41), model.EscrowReleasedByAdmin, testNow, false).Return(true, nil)
	txSellers.On("AddSale", mock.Anything, int64(3), int64(5400)).Return(nil)
	notesRepo.On("Append", mock.Anything, mock.MatchedBy(func(n model.OrderNote) bool {
		return n.Body == "dispute resolved: escrow released to seller"
	})).Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return strings.Contains(l.AfterJSON, "released_to_seller")
	})).Return(nil)
	events.On("EscrowReleased", mock.Anything, mock.Anything, model.EscrowReleasedByAdmin, testNow).Return()

	uc := usecase.NewDisputeUsecase(tx, audit, fixedClock{testNow}, events)

	err := uc.Resolve(context.Background(), 2, 41, usecase.ResolveDisputeInput{Resolution: "claim unfounded"})
	assert.NoError(t, err)
	txSellers.AssertExpectations(t)
	events.AssertExpectations(t)
	ordersRepo.AssertNotCalled(t, "RefundEscrow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 同時に裁定した2人目は条件付きUPDATEで負ける
func TestDisputeUsecase_Resolve_SecondAdminConflicts(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	audit := new(AuditRepoMock)
	events := new(EscrowEventsMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, SellerID: 3, Total: 5400, Status: model.OrderStatusDelivered,
		Escrow:  model.Escrow{Status: model.EscrowStatusHeld},
		Dispute: model.Dispute{IsDisputed: true, Status: model.DisputeStatusUnderReview},
	}, nil)
	ordersRepo.On("ResolveDispute", mock.Anything, int64(41), int64(5), "refund", testNow).Return(false, nil)

	uc := usecase.NewDisputeUsecase(tx, audit, fixedClock{testNow}, events)

	err := uc.Resolve(context.Background(), 5, 41, usecase.ResolveDisputeInput{Resolution: "refund", RefundAmount: 100})
	assert.ErrorIs(t, err, usecase.ErrConflict)

	ordersRepo.AssertNotCalled(t, "RefundEscrow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "EscrowRefunded", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeUsecase_Resolve_RefundExceedsTotal(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, Total: 5400,
		Escrow:  model.Escrow{Status: model.EscrowStatusHeld},
		Dispute: model.Dispute{IsDisputed: true, Status: model.DisputeStatusOpen},
	}, nil)

	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.Resolve(context.Background(), 2, 41, usecase.ResolveDisputeInput{Resolution: "refund", RefundAmount: 9999})
	assertErrContains(t, err, "exceeds order total")
	ordersRepo.AssertNotCalled(t, "ResolveDispute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeUsecase_Resolve_NoDispute(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(41)).Return(model.Order{
		ID: 41, BuyerID: 7, Total: 5400,
		Escrow: model.Escrow{Status: model.EscrowStatusHeld},
	}, nil)

	uc := usecase.NewDisputeUsecase(tx, new(AuditRepoMock), fixedClock{testNow}, nil)

	err := uc.Resolve(context.Background(), 2, 41, usecase.ResolveDisputeInput{Resolution: "nothing to resolve"})
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}
