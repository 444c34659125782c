package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 審査通過時に付くバッジと信頼スコア加算
const (
	verifiedTrustBadge = "identity_verified"
	verifiedTrustBonus = 10
)

// 出品者登録と本人確認の審査フロー。
// pending -> under_review -> verified / rejected の一方通行で、
// verified になるまで商品は出せない（product 側の CanSell ガード）。
type VerificationUsecase struct {
	tx      repo.TransactionManager
	sellers repo.SellerRepository
	docs    repo.SellerDocumentRepository
	users   repo.UserRepository
	audit   repo.AuditLogRepository
	clock   Clock
}

func NewVerificationUsecase(
	tx repo.TransactionManager,
	sellers repo.SellerRepository,
	docs repo.SellerDocumentRepository,
	users repo.UserRepository,
	audit repo.AuditLogRepository,
	clock Clock,
) *VerificationUsecase {
	return &VerificationUsecase{
		tx:      tx,
		sellers: sellers,
		docs:    docs,
		users:   users,
		audit:   audit,
		clock:   clock,
	}
}

type RegisterSellerInput struct {
	BusinessName string `json:"business_name"`
	BusinessType string `json:"business_type"`
}

type SellerOutput struct {
	ID                 int64      `json:"id"`
	UserID             int64      `json:"user_id"`
	BusinessName       string     `json:"business_name"`
	BusinessType       string     `json:"business_type"`
	VerificationStatus string     `json:"verification_status"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	TrustBadges        string     `json:"trust_badges,omitempty"`
	RatingAvg          float64    `json:"rating_avg"`
	RatingCount        int64      `json:"rating_count"`
	TotalSales         int64      `json:"total_sales"`
	TotalOrders        int64      `json:"total_orders"`
	IsActive           bool       `json:"is_active"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type SellerDocumentOutput struct {
	ID         int64      `json:"id"`
	DocType    string     `json:"doc_type"`
	FileURL    string     `json:"file_url"`
	Status     string     `json:"status"`
	Note       string     `json:"note,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// 出品者登録。審査は pending から始まり、ロールは USER -> SELLER に上がる。
func (u *VerificationUsecase) RegisterSeller(ctx context.Context, userID int64, in RegisterSellerInput) (SellerOutput, error) {
	if userID <= 0 {
		return SellerOutput{}, ErrUnauthorized
	}
	name := strings.TrimSpace(in.BusinessName)
	if name == "" || len(name) > 255 {
		return SellerOutput{}, fmt.Errorf("%w: business_name required", ErrValidation)
	}
	if len(in.BusinessType) > 100 {
		return SellerOutput{}, fmt.Errorf("%w: business_type too long", ErrValidation)
	}

	var out SellerOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//1ユーザー1出品者
		if _, err := r.Sellers().FindByUserID(ctx, userID); err == nil {
			return ErrConflict
		} else if err != repo.ErrNotFound {
			return err
		}

		now := u.clock.Now()
		created, err := r.Sellers().Create(ctx, model.Seller{
			UserID:             userID,
			BusinessName:       name,
			BusinessType:       strings.TrimSpace(in.BusinessType),
			VerificationStatus: model.VerificationStatusPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			return err
		}

		if err := r.Users().UpdateRole(ctx, userID, model.RoleSeller); err != nil {
			return err
		}

		out = toSellerOutput(created)
		return nil
	})

	if err != nil {
		return SellerOutput{}, err
	}
	return out, nil
}

func (u *VerificationUsecase) GetMySeller(ctx context.Context, userID int64) (SellerOutput, []SellerDocumentOutput, error) {
	if userID <= 0 {
		return SellerOutput{}, nil, ErrUnauthorized
	}

	seller, err := u.sellers.FindByUserID(ctx, userID)
	if err == repo.ErrNotFound {
		return SellerOutput{}, nil, ErrNotFound
	}
	if err != nil {
		return SellerOutput{}, nil, err
	}

	docs, err := u.docs.ListBySellerID(ctx, seller.ID)
	if err != nil {
		return SellerOutput{}, nil, err
	}

	outDocs := make([]SellerDocumentOutput, 0, len(docs))
	for _, d := range docs {
		outDocs = append(outDocs, toSellerDocumentOutput(d))
	}
	return toSellerOutput(seller), outDocs, nil
}

type SubmitDocumentInput struct {
	DocType string `json:"doc_type"`
	FileURL string `json:"file_url"`
}

// 審査書類の提出。verified / rejected 後は受け付けない。
func (u *VerificationUsecase) SubmitDocument(ctx context.Context, userID int64, in SubmitDocumentInput) (SellerDocumentOutput, error) {
	if userID <= 0 {
		return SellerDocumentOutput{}, ErrUnauthorized
	}
	docType := strings.TrimSpace(in.DocType)
	fileURL := strings.TrimSpace(in.FileURL)
	if docType == "" || len(docType) > 50 {
		return SellerDocumentOutput{}, fmt.Errorf("%w: doc_type required", ErrValidation)
	}
	if fileURL == "" || len(fileURL) > 512 {
		return SellerDocumentOutput{}, fmt.Errorf("%w: file_url required", ErrValidation)
	}

	seller, err := u.sellers.FindByUserID(ctx, userID)
	if err == repo.ErrNotFound {
		return SellerDocumentOutput{}, ErrAccessDenied
	}
	if err != nil {
		return SellerDocumentOutput{}, err
	}

	switch seller.VerificationStatus {
	case model.VerificationStatusPending, model.VerificationStatusUnderReview:
	default:
		return SellerDocumentOutput{}, ErrInvalidStatus
	}

	created, err := u.docs.Create(ctx, model.SellerDocument{
		SellerID:  seller.ID,
		DocType:   docType,
		FileURL:   fileURL,
		Status:    model.DocumentStatusPending,
		CreatedAt: u.clock.Now(),
	})
	if err != nil {
		return SellerDocumentOutput{}, err
	}
	return toSellerDocumentOutput(created), nil
}

// 管理者用。審査ステータスで出品者を一覧する。
func (u *VerificationUsecase) ListSellers(ctx context.Context, status string, page, limit int) ([]SellerOutput, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	st := model.VerificationStatus(status)
	switch st {
	case model.VerificationStatusPending, model.VerificationStatusUnderReview,
		model.VerificationStatusVerified, model.VerificationStatusRejected:
	default:
		return nil, 0, fmt.Errorf("%w: invalid status", ErrValidation)
	}

	sellers, total, err := u.sellers.ListByVerificationStatus(ctx, st, page, limit)
	if err != nil {
		return nil, 0, err
	}

	outs := make([]SellerOutput, 0, len(sellers))
	for _, s := range sellers {
		outs = append(outs, toSellerOutput(s))
	}
	return outs, total, nil
}

func (u *VerificationUsecase) ListSellerDocuments(ctx context.Context, sellerID int64) ([]SellerDocumentOutput, error) {
	if sellerID <= 0 {
		return nil, fmt.Errorf("%w: invalid id", ErrValidation)
	}

	docs, err := u.docs.ListBySellerID(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	outs := make([]SellerDocumentOutput, 0, len(docs))
	for _, d := range docs {
		outs = append(outs, toSellerDocumentOutput(d))
	}
	return outs, nil
}

type ReviewDocumentInput struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// 書類審査。pending の書類だけ確定できる。
// 最初の審査で出品者も pending -> under_review に進む。
func (u *VerificationUsecase) ReviewDocument(ctx context.Context, adminID int64, docID int64, in ReviewDocumentInput) error {
	if adminID <= 0 {
		return ErrUnauthorized
	}
	if docID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}
	if len(in.Note) > 255 {
		return fmt.Errorf("%w: note too long", ErrValidation)
	}

	status := model.DocumentStatusApproved
	if !in.Approve {
		status = model.DocumentStatusRejected
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		doc, err := r.SellerDocuments().FindByID(ctx, docID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		now := u.clock.Now()
		ok, err := r.SellerDocuments().Review(ctx, docID, status, adminID, strings.TrimSpace(in.Note), now)
		if err != nil {
			return err
		}
		if !ok {
			//審査済み
			return ErrInvalidStatus
		}

		// 審査開始で出品者を under_review へ。既に進んでいればCASが負けるだけ。
		if _, err := r.Sellers().UpdateVerification(ctx, doc.SellerID,
			model.VerificationStatusPending, model.VerificationStatusUnderReview, repo.VerificationUpdate{}); err != nil {
			return err
		}

		// ★監査ログ（REVIEW_DOCUMENT）
		beforeJSON := fmt.Sprintf(`{"document_id":%d,"status":"pending"}`, docID)
		afterJSON := fmt.Sprintf(`{"document_id":%d,"status":%q}`, docID, string(status))
		return u.audit.Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       model.AuditActionReviewDocument,
			ResourceType: model.AuditResourceSeller,
			ResourceID:   doc.SellerID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    now,
		})
	})
}

type UpdateVerificationInput struct {
	Status          string `json:"status"`
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejection_reason"`
	TrustBadges     string `json:"trust_badges"`
}

// 審査ステータスの前進。verified にすると出品者が有効化され、
// バッジと信頼スコアが付く。rejected には理由が必須。
func (u *VerificationUsecase) UpdateVerification(ctx context.Context, adminID int64, sellerID int64, in UpdateVerificationInput) error {
	if adminID <= 0 {
		return ErrUnauthorized
	}
	if sellerID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}

	to := model.VerificationStatus(strings.TrimSpace(in.Status))
	switch to {
	case model.VerificationStatusUnderReview, model.VerificationStatusVerified, model.VerificationStatusRejected:
	default:
		return fmt.Errorf("%w: invalid status", ErrValidation)
	}
	if to == model.VerificationStatusRejected && strings.TrimSpace(in.RejectionReason) == "" {
		return fmt.Errorf("%w: rejection_reason required", ErrValidation)
	}

	// 出品者の前進・有効化・スコア加算・監査ログは1トランザクションで書く
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		seller, err := r.Sellers().FindByID(ctx, sellerID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if !model.CanTransitionVerification(seller.VerificationStatus, to) {
			return ErrInvalidStatus
		}

		now := u.clock.Now()
		upd := repo.VerificationUpdate{
			Notes:           strings.TrimSpace(in.Notes),
			RejectionReason: strings.TrimSpace(in.RejectionReason),
		}
		if to == model.VerificationStatusVerified {
			upd.VerifiedBy = adminID
			upd.VerifiedAt = &now
			upd.TrustBadges = strings.TrimSpace(in.TrustBadges)
			if upd.TrustBadges == "" {
				upd.TrustBadges = verifiedTrustBadge
			}
		}

		ok, err := r.Sellers().UpdateVerification(ctx, sellerID, seller.VerificationStatus, to, upd)
		if err != nil {
			return err
		}
		if !ok {
			//他の管理者が先に動かした
			return ErrConflict
		}

		if to == model.VerificationStatusVerified {
			if err := r.Sellers().SetActive(ctx, sellerID, true); err != nil {
				return err
			}
			if err := r.Users().AddTrustScore(ctx, seller.UserID, verifiedTrustBonus); err != nil {
				return err
			}
		}

		// ★監査ログ（UPDATE_VERIFICATION）
		beforeJSON := fmt.Sprintf(`{"verification_status":%q}`, string(seller.VerificationStatus))
		afterJSON := fmt.Sprintf(`{"verification_status":%q}`, string(to))
		return u.audit.Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       model.AuditActionUpdateVerification,
			ResourceType: model.AuditResourceSeller,
			ResourceID:   sellerID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    now,
		})
	})
}

func toSellerOutput(s model.Seller) SellerOutput {
	return SellerOutput{
		ID:                 s.ID,
		UserID:             s.UserID,
		BusinessName:       s.BusinessName,
		BusinessType:       s.BusinessType,
		VerificationStatus: string(s.VerificationStatus),
		RejectionReason:    s.RejectionReason,
		TrustBadges:        s.TrustBadges,
		RatingAvg:          s.RatingAvg,
		RatingCount:        s.RatingCount,
		TotalSales:         s.TotalSales,
		TotalOrders:        s.TotalOrders,
		IsActive:           s.IsActive,
		VerifiedAt:         s.VerifiedAt,
		CreatedAt:          s.CreatedAt,
	}
}

func toSellerDocumentOutput(d model.SellerDocument) SellerDocumentOutput {
	return SellerDocumentOutput{
		ID:         d.ID,
		DocType:    d.DocType,
		FileURL:    d.FileURL,
		Status:     string(d.Status),
		Note:       d.Note,
		ReviewedAt: d.ReviewedAt,
		CreatedAt:  d.CreatedAt,
	}
}
