package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	orderNotes repo.OrderNoteRepository
	inventory  repo.InventoryRepository
	products   repo.ProductRepository
	sellers    repo.SellerRepository
	sellerDocs repo.SellerDocumentRepository
	users      repo.UserRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository                   { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository           { return r.orderItems }
func (r *TxReposMock) OrderNotes() repo.OrderNoteRepository           { return r.orderNotes }
func (r *TxReposMock) Inventory() repo.InventoryRepository            { return r.inventory }
func (r *TxReposMock) Products() repo.ProductRepository               { return r.products }
func (r *TxReposMock) Sellers() repo.SellerRepository                 { return r.sellers }
func (r *TxReposMock) SellerDocuments() repo.SellerDocumentRepository { return r.sellerDocs }
func (r *TxReposMock) Users() repo.UserRepository                     { return r.users }

// =====================
// 固定時計（時刻まわりの検証用）
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// =====================
// EscrowEventPublisher mock
// =====================

type EscrowEventsMock struct{ mock.Mock }

func (m *EscrowEventsMock) EscrowReleased(ctx context.Context, o model.Order, releasedBy string, at time.Time) {
	m.Called(ctx, o, releasedBy, at)
}

func (m *EscrowEventsMock) EscrowRefunded(ctx context.Context, o model.Order, amount int64, reason string, at time.Time) {
	m.Called(ctx, o, amount, reason, at)
}

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, bool, error) {
	args := m.Called(ctx, orderNumber)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, buyerID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) ListBySellerID(ctx context.Context, sellerID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, sellerID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) MarkShipped(ctx context.Context, orderID int64, carrier, trackingNumber string, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, carrier, trackingNumber, at)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ConfirmPayment(ctx context.Context, orderID int64, paymentRef string, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, paymentRef, at)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) HoldEscrow(ctx context.Context, orderID int64) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) MarkDelivered(ctx context.Context, orderID int64, deliveredAt, autoReleaseAt time.Time) (bool, error) {
	args := m.Called(ctx, orderID, deliveredAt, autoReleaseAt)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ReleaseEscrow(ctx context.Context, orderID int64, releasedBy string, at time.Time, customerApproved bool) (bool, error) {
	args := m.Called(ctx, orderID, releasedBy, at, customerApproved)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) RefundEscrow(ctx context.Context, orderID int64, amount int64, reason string, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, amount, reason, at)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) MarkRefundRequested(ctx context.Context, orderID int64, reason string, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, reason, at)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	args := m.Called(ctx, now, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Error(1)
}

func (m *OrderRepoMock) OpenDispute(ctx context.Context, orderID int64, openedBy int64, reason, description, evidence string, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, openedBy, reason, description, evidence, at)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) StartDisputeReview(ctx context.Context, orderID int64) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ResolveDispute(ctx context.Context, orderID int64, resolvedBy int64, resolution string, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, resolvedBy, resolution, at)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error) {
	args := m.Called(ctx, buyerID, key)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type OrderNoteRepoMock struct{ mock.Mock }

func (m *OrderNoteRepoMock) Append(ctx context.Context, note model.OrderNote) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *OrderNoteRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderNote, error) {
	args := m.Called(ctx, orderID)
	notes, _ := args.Get(0).([]model.OrderNote)
	return notes, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) SetStock(ctx context.Context, productID int64, newStock int64) error {
	args := m.Called(ctx, productID, newStock)
	return args.Error(0)
}

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) SyncAvailability(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) ListBySellerID(ctx context.Context, sellerID int64, page int, limit int) ([]model.Product, int64, error) {
	args := m.Called(ctx, sellerID, page, limit)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	created, _ := args.Get(0).(model.Product)
	return created, args.Error(1)
}

func (m *ProductRepoMock) Update(ctx context.Context, p model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ProductRepoMock) UpdateStatus(ctx context.Context, id int64, status model.ProductStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type SellerRepoMock struct{ mock.Mock }

func (m *SellerRepoMock) Create(ctx context.Context, seller model.Seller) (model.Seller, error) {
	args := m.Called(ctx, seller)
	s, _ := args.Get(0).(model.Seller)
	return s, args.Error(1)
}

func (m *SellerRepoMock) FindByID(ctx context.Context, sellerID int64) (model.Seller, error) {
	args := m.Called(ctx, sellerID)
	s, _ := args.Get(0).(model.Seller)
	return s, args.Error(1)
}

func (m *SellerRepoMock) FindByUserID(ctx context.Context, userID int64) (model.Seller, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(model.Seller)
	return s, args.Error(1)
}

func (m *SellerRepoMock) ListByVerificationStatus(ctx context.Context, status model.VerificationStatus, page int, limit int) ([]model.Seller, int64, error) {
	args := m.Called(ctx, status, page, limit)
	sellers, _ := args.Get(0).([]model.Seller)
	return sellers, args.Get(1).(int64), args.Error(2)
}

func (m *SellerRepoMock) UpdateVerification(ctx context.Context, sellerID int64, from, to model.VerificationStatus, upd repo.VerificationUpdate) (bool, error) {
	args := m.Called(ctx, sellerID, from, to, upd)
	return args.Bool(0), args.Error(1)
}

func (m *SellerRepoMock) SetActive(ctx context.Context, sellerID int64, active bool) error {
	args := m.Called(ctx, sellerID, active)
	return args.Error(0)
}

func (m *SellerRepoMock) AddSale(ctx context.Context, sellerID int64, amount int64) error {
	args := m.Called(ctx, sellerID, amount)
	return args.Error(0)
}

type SellerDocRepoMock struct{ mock.Mock }

func (m *SellerDocRepoMock) Create(ctx context.Context, doc model.SellerDocument) (model.SellerDocument, error) {
	args := m.Called(ctx, doc)
	d, _ := args.Get(0).(model.SellerDocument)
	return d, args.Error(1)
}

func (m *SellerDocRepoMock) FindByID(ctx context.Context, docID int64) (model.SellerDocument, error) {
	args := m.Called(ctx, docID)
	d, _ := args.Get(0).(model.SellerDocument)
	return d, args.Error(1)
}

func (m *SellerDocRepoMock) ListBySellerID(ctx context.Context, sellerID int64) ([]model.SellerDocument, error) {
	args := m.Called(ctx, sellerID)
	docs, _ := args.Get(0).([]model.SellerDocument)
	return docs, args.Error(1)
}

func (m *SellerDocRepoMock) Review(ctx context.Context, docID int64, status model.DocumentStatus, reviewedBy int64, note string, at time.Time) (bool, error) {
	args := m.Called(ctx, docID, status, reviewedBy, note, at)
	return args.Bool(0), args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) UpdateRole(ctx context.Context, userID int64, role model.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *UserRepoMock) AddTrustScore(ctx context.Context, userID int64, delta int) error {
	args := m.Called(ctx, userID, delta)
	return args.Error(0)
}

func (m *UserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) Create(ctx context.Context, address model.Address) (model.Address, error) {
	args := m.Called(ctx, address)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]model.Address)
	return list, args.Error(1)
}

func (m *AddressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	args := m.Called(ctx, addressID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) Update(ctx context.Context, address model.Address) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *AddressRepoMock) Delete(ctx context.Context, addressID int64) error {
	args := m.Called(ctx, addressID)
	return args.Error(0)
}

func (m *AddressRepoMock) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	args := m.Called(ctx, addressID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *AddressRepoMock) SetDefault(ctx context.Context, userID, addressID int64) error {
	args := m.Called(ctx, userID, addressID)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

// =====================
// Helper: error contains（HTTPErrorの実装詳細に依存しない）
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

// admin/product系はHTTPErrorを返すのでステータスで見る
func assertHTTPStatus(t *testing.T, err error, wantStatus int) {
	t.Helper()
	if !assert.Error(t, err) {
		return
	}
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "err=%q is not an HTTPError", err.Error()) {
		assert.Equal(t, wantStatus, he.Status)
	}
}
