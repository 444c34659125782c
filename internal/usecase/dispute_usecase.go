package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 争議の開始（買手）と審査・裁定（管理者）。
// 争議が open / under_review の間、エスクローの釈放は全経路で止まる。
type DisputeUsecase struct {
	tx     repo.TransactionManager
	audit  repo.AuditLogRepository
	clock  Clock
	events EscrowEventPublisher
}

func NewDisputeUsecase(
	tx repo.TransactionManager,
	audit repo.AuditLogRepository,
	clock Clock,
	events EscrowEventPublisher,
) *DisputeUsecase {
	return &DisputeUsecase{tx: tx, audit: audit, clock: clock, events: events}
}

type OpenDisputeInput struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

type ResolveDisputeInput struct {
	Resolution   string `json:"resolution"`
	RefundAmount int64  `json:"refund_amount"`
}

// 買手が争議を開く。エスクローが held の間だけ。
func (u *DisputeUsecase) Open(ctx context.Context, buyerID int64, orderID int64, in OpenDisputeInput) error {
	if buyerID <= 0 {
		return ErrUnauthorized
	}
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" || len(reason) > 255 {
		return fmt.Errorf("%w: reason required", ErrValidation)
	}
	if len(in.Description) > 2000 || len(in.Evidence) > 2000 {
		return fmt.Errorf("%w: description/evidence too long", ErrValidation)
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if o.BuyerID != buyerID {
			return ErrAccessDenied
		}
		if o.Escrow.Status != model.EscrowStatusHeld {
			return ErrInvalidStatus
		}
		if o.Dispute.Status.Blocks() {
			//同じ注文に争議は同時に1つ
			return ErrConflict
		}

		now := u.clock.Now()
		ok, err := r.Orders().OpenDispute(ctx, orderID, buyerID, reason, in.Description, in.Evidence, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		return r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorBuyer,
			AuthorID:   buyerID,
			Body:       "dispute opened: " + reason,
			CreatedAt:  now,
		})
	})
}

// 管理者が審査を開始。open -> under_review。
func (u *DisputeUsecase) StartReview(ctx context.Context, adminID int64, orderID int64) error {
	if adminID <= 0 {
		return ErrUnauthorized
	}
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().StartDisputeReview(ctx, orderID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStatus
		}

		return r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorAdmin,
			AuthorID:   adminID,
			Body:       "dispute under review",
			CreatedAt:  u.clock.Now(),
		})
	})
}

// 裁定。refund_amount > 0 なら買手へ返金、0 なら出品者へ釈放。
// 裁定の書き込み自体が条件付きUPDATEなので、同時に裁定しても片方しか通らない。
func (u *DisputeUsecase) Resolve(ctx context.Context, adminID int64, orderID int64, in ResolveDisputeInput) error {
	if adminID <= 0 {
		return ErrUnauthorized
	}
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}
	resolution := strings.TrimSpace(in.Resolution)
	if resolution == "" || len(resolution) > 1000 {
		return fmt.Errorf("%w: resolution required", ErrValidation)
	}
	if in.RefundAmount < 0 {
		return fmt.Errorf("%w: refund_amount must be >= 0", ErrValidation)
	}

	var resolved model.Order
	var refunded bool
	var resolvedAt time.Time

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !o.Dispute.IsDisputed {
			return fmt.Errorf("%w: no dispute", ErrNotFound)
		}
		if !o.Dispute.Status.Blocks() {
			//既に裁定済み
			return ErrInvalidStatus
		}
		if in.RefundAmount > o.Total {
			return fmt.Errorf("%w: refund_amount exceeds order total", ErrValidation)
		}

		now := u.clock.Now()

		//先に裁定を確定させる。ここで負けたら他の管理者が先に裁定している。
		ok, err := r.Orders().ResolveDispute(ctx, orderID, adminID, resolution, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		beforeEscrow := string(o.Escrow.Status)
		var afterEscrow string
		var body string

		if in.RefundAmount > 0 {
			ok, err := r.Orders().RefundEscrow(ctx, orderID, in.RefundAmount, resolution, now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidEscrowTransition
			}
			//配達前なら注文自体も refunded に倒す（配達済みは delivered のまま）
			if model.CanTransitionOrder(o.Status, model.OrderStatusRefunded) {
				if _, err := r.Orders().UpdateStatus(ctx, orderID, o.Status, model.OrderStatusRefunded); err != nil {
					return err
				}
			}
			afterEscrow = string(model.EscrowStatusRefundedToCustomer)
			body = fmt.Sprintf("dispute resolved: refunded %d to customer", in.RefundAmount)
			refunded = true
		} else {
			ok, err := r.Orders().ReleaseEscrow(ctx, orderID, model.EscrowReleasedByAdmin, now, false)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidEscrowTransition
			}
			if err := r.Sellers().AddSale(ctx, o.SellerID, o.Total); err != nil {
				return err
			}
			afterEscrow = string(model.EscrowStatusReleasedToSeller)
			body = "dispute resolved: escrow released to seller"
		}

		if err := r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorAdmin,
			AuthorID:   adminID,
			Body:       body,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		// ★監査ログ（RESOLVE_DISPUTE）
		beforeJSON := fmt.Sprintf(`{"dispute_status":%q,"escrow_status":%q}`, string(o.Dispute.Status), beforeEscrow)
		afterJSON := fmt.Sprintf(`{"dispute_status":"resolved","escrow_status":%q,"refund_amount":%d}`, afterEscrow, in.RefundAmount)
		if err := u.audit.Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       model.AuditActionResolveDispute,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		resolved = o
		resolvedAt = now
		return nil
	})

	if err != nil {
		return err
	}

	if u.events != nil {
		if refunded {
			u.events.EscrowRefunded(ctx, resolved, in.RefundAmount, resolution, resolvedAt)
		} else {
			u.events.EscrowReleased(ctx, resolved, model.EscrowReleasedByAdmin, resolvedAt)
		}
	}
	return nil
}
