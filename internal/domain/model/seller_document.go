package model

import "time"

type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// 本人確認・事業証明などの提出書類。審査結果は書類単位で残す。
type SellerDocument struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID   int64          `gorm:"not null;index" json:"seller_id"`
	DocType    string         `gorm:"type:varchar(50);not null" json:"doc_type"`
	FileURL    string         `gorm:"type:varchar(512);not null" json:"file_url"`
	Status     DocumentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Note       string         `gorm:"type:varchar(255)" json:"note,omitempty"`
	ReviewedBy int64          `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}
