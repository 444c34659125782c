package model

import "time"

type VerificationStatus string

const (
	VerificationStatusPending     VerificationStatus = "pending"
	VerificationStatusUnderReview VerificationStatus = "under_review"
	VerificationStatusVerified    VerificationStatus = "verified"
	VerificationStatusRejected    VerificationStatus = "rejected"
)

// verified / rejected は終端。差し戻しはしない。
var verificationValidNext = map[VerificationStatus]map[VerificationStatus]bool{
	VerificationStatusPending:     {VerificationStatusUnderReview: true},
	VerificationStatusUnderReview: {VerificationStatusVerified: true, VerificationStatusRejected: true},
	VerificationStatusVerified:    {},
	VerificationStatusRejected:    {},
}

func CanTransitionVerification(from, to VerificationStatus) bool {
	return verificationValidNext[from][to]
}

type Seller struct {
	ID                 int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             int64              `gorm:"not null;uniqueIndex" json:"user_id"`
	BusinessName       string             `gorm:"type:varchar(255);not null" json:"business_name"`
	BusinessType       string             `gorm:"type:varchar(100)" json:"business_type"`
	VerificationStatus VerificationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"verification_status"`
	VerificationNotes  string             `gorm:"type:text" json:"verification_notes,omitempty"`
	RejectionReason    string             `gorm:"type:varchar(255)" json:"rejection_reason,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy         int64              `json:"verified_by,omitempty"`
	// カンマ区切りのバッジ名（identity_verified など）
	TrustBadges string    `gorm:"type:varchar(255)" json:"trust_badges,omitempty"`
	RatingAvg   float64   `gorm:"not null;default:0" json:"rating_avg"`
	RatingCount int64     `gorm:"not null;default:0" json:"rating_count"`
	TotalSales  int64     `gorm:"not null;default:0" json:"total_sales"`
	TotalOrders int64     `gorm:"not null;default:0" json:"total_orders"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 出品・受注できるのは verified かつ active の出品者だけ
func (s *Seller) CanSell() bool {
	return s.VerificationStatus == VerificationStatusVerified && s.IsActive
}
