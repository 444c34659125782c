package model

import "time"

// 在庫更新、注文ステータス更新、審査・裁定など。
type AuditAction string

const (
	//在庫を更新した操作。
	AuditActionUpdateStock AuditAction = "UPDATE_STOCK"
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//出品者の審査ステータスを更新した操作。
	AuditActionUpdateVerification AuditAction = "UPDATE_VERIFICATION"
	//提出書類を審査した操作。
	AuditActionReviewDocument AuditAction = "REVIEW_DOCUMENT"
	//争議を裁定した操作。
	AuditActionResolveDispute AuditAction = "RESOLVE_DISPUTE"
	//支払確認を手動で行った操作。
	AuditActionConfirmPayment AuditAction = "CONFIRM_PAYMENT"
	//ユーザーを強制ログアウトした操作。
	AuditActionForceLogout AuditAction = "FORCE_LOGOUT"
)

// 操作対象の種類。
type AuditResourceType string

const (
	//商品に対する操作。
	AuditResourceProduct AuditResourceType = "product"
	//注文に対する操作。
	AuditResourceOrder AuditResourceType = "order"
	//ユーザーに対する操作。
	AuditResourceUser AuditResourceType = "user"
	//出品者に対する操作。
	AuditResourceSeller AuditResourceType = "seller"
)

// 監査ログ。管理側の変更操作を「誰が」「何を」「どう変えたか」で残す。
// 行は追記のみ。更新・削除の経路は作らない。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した管理者（在庫調整では出品者本人のこともある）のID。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類とID。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//変更前後のスナップショット。JSON文字列で持つ。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
