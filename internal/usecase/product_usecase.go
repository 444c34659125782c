package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type ProductUsecase struct {
	productRepo   repo.ProductRepository
	inventoryRepo repo.InventoryRepository
	sellerRepo    repo.SellerRepository
	auditRepo     repo.AuditLogRepository
}

func NewProductUsecase(
	productRepo repo.ProductRepository,
	inventoryRepo repo.InventoryRepository,
	sellerRepo repo.SellerRepository,
	auditRepo repo.AuditLogRepository,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		sellerRepo:    sellerRepo,
		auditRepo:     auditRepo,
	}
}

// GET /products のクエリを詰め替えたもの。
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	SellerID *int64
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

func (in ListProductsInput) validate() error {
	if in.Page < 1 {
		return NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Q) > 100 {
		return NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
		return nil
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid sort")
	}
}

// 一覧系レスポンスの共通封筒。
type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// 公開一覧。activeな商品だけが出る（絞り込みはrepository側）。
func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if err := in.validate(); err != nil {
		return ProductListOutput{}, err
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:  in.Page,
		Limit: in.Limit,
		Sort:  in.Sort,

		Q:        strings.TrimSpace(in.Q),
		SellerID: in.SellerID,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
	})
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ProductListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

// 公開詳細。購入できない商品は存在ごと隠して404にする。
func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if !p.IsPurchasable() {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return p, nil
}

// 出品者を引いて CanSell を確認する。商品を触る前の共通ガード。
func (u *ProductUsecase) requireSeller(ctx context.Context, sellerUserID int64) (model.Seller, error) {
	if sellerUserID <= 0 {
		return model.Seller{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	s, err := u.sellerRepo.FindByUserID(ctx, sellerUserID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Seller{}, NewHTTPError(http.StatusForbidden, "seller registration required")
	}
	if err != nil {
		return model.Seller{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !s.CanSell() {
		return model.Seller{}, NewHTTPError(http.StatusForbidden, "seller not verified")
	}
	return s, nil
}

type SellerProductInput struct {
	Name        string
	Description string
	SKU         string
	ImageURL    string
	Price       int64
	Stock       int64
}

// 作成・更新で共通の項目チェック。在庫は作成時だけ見る。
func checkProductFields(in SellerProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return NewHTTPError(http.StatusBadRequest, "name required")
	}
	if strings.TrimSpace(in.SKU) == "" || len(in.SKU) > 64 {
		return NewHTTPError(http.StatusBadRequest, "sku required")
	}
	if in.Price < 0 {
		return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	return nil
}

func (u *ProductUsecase) SellerCreateProduct(ctx context.Context, sellerUserID int64, in SellerProductInput) (int64, error) {
	seller, err := u.requireSeller(ctx, sellerUserID)
	if err != nil {
		return 0, err
	}
	if err := checkProductFields(in); err != nil {
		return 0, err
	}
	if in.Stock < 0 {
		return 0, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}

	//在庫0で出品したら公開と同時に out_of_stock から始める
	status := model.ProductStatusActive
	if in.Stock == 0 {
		status = model.ProductStatusOutOfStock
	}

	now := time.Now()
	p, err := u.productRepo.Create(ctx, model.Product{
		SellerID: seller.ID,
		Status:   status,

		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		SKU:         strings.TrimSpace(in.SKU),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Price:       in.Price,
		Stock:       in.Stock,

		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return p.ID, nil
}

func (u *ProductUsecase) SellerUpdateProduct(ctx context.Context, sellerUserID int64, productID int64, in SellerProductInput) error {
	seller, err := u.requireSeller(ctx, sellerUserID)
	if err != nil {
		return err
	}

	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := checkProductFields(in); err != nil {
		return err
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if p.SellerID != seller.ID {
		return NewHTTPError(http.StatusForbidden, "not your product")
	}

	//在庫とステータスはこの操作では動かさない（在庫調整・ステータス変更は別口）
	err = u.productRepo.Update(ctx, model.Product{
		ID:          productID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		SKU:         strings.TrimSpace(in.SKU),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Price:       in.Price,
		Stock:       p.Stock,
		Status:      p.Status,
		UpdatedAt:   time.Now(),
	})
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *ProductUsecase) SellerListProducts(ctx context.Context, sellerUserID int64, page, limit int) (ProductListOutput, error) {
	if sellerUserID <= 0 {
		return ProductListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	//未認可の出品者でも自分の下書きは見える（CanSellは課さない）
	s, err := u.sellerRepo.FindByUserID(ctx, sellerUserID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductListOutput{}, NewHTTPError(http.StatusForbidden, "seller registration required")
	}
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, total, err := u.productRepo.ListBySellerID(ctx, s.ID, page, limit)
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// 販売停止・廃番など。out_of_stock は在庫同期でしか付かないので指定不可。
func (u *ProductUsecase) SellerUpdateProductStatus(ctx context.Context, sellerUserID int64, productID int64, status string) error {
	seller, err := u.requireSeller(ctx, sellerUserID)
	if err != nil {
		return err
	}

	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	st := model.ProductStatus(status)
	switch st {
	case model.ProductStatusActive, model.ProductStatusInactive, model.ProductStatusDiscontinued:
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if p.SellerID != seller.ID {
		return NewHTTPError(http.StatusForbidden, "not your product")
	}
	//廃番は戻せない
	if p.Status == model.ProductStatusDiscontinued {
		return NewHTTPError(http.StatusBadRequest, "product discontinued")
	}

	if err := u.productRepo.UpdateStatus(ctx, productID, st); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//activeに戻したのに在庫0なら out_of_stock に揃える
	if st == model.ProductStatusActive {
		if err := u.inventoryRepo.SyncAvailability(ctx, productID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}
	return nil
}

func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error {
	switch {
	case adminUserID <= 0:
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case productID <= 0:
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	case newStock < 0:
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	case strings.TrimSpace(reason) == "":
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	// 差分計算のために変更前の値を取っておく
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := u.inventoryRepo.SetStock(ctx, productID, newStock); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 0になった/回復したら販売ステータスも揃える
	if err := u.inventoryRepo.SyncAvailability(ctx, productID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.recordStockChange(ctx, adminUserID, productID, p.Stock, newStock, strings.TrimSpace(reason))
}

// 在庫変更の痕跡を2箇所に残す。調整履歴は差分、監査ログは前後の値。
func (u *ProductUsecase) recordStockChange(ctx context.Context, actorID, productID, before, after int64, reason string) error {
	now := time.Now()

	if err := u.inventoryRepo.CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   productID,
		ActorUserID: actorID,
		Delta:       after - before,
		Reason:      reason,
		CreatedAt:   now,
	}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionUpdateStock,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   productID,
		BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, before),
		AfterJSON:    fmt.Sprintf(`{"stock":%d}`, after),
		CreatedAt:    now,
	}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return nil
}
