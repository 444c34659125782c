package model

import "time"

// 返金の申請と処理結果。申請は配達後 30 日以内かつエスクロー held の間のみ。
type Refund struct {
	IsRefunded  bool       `gorm:"column:is_refunded;not null;default:false" json:"is_refunded"`
	Amount      int64      `gorm:"column:amount;not null;default:0" json:"amount"`
	Reason      string     `gorm:"column:reason;type:varchar(255)" json:"reason,omitempty"`
	RequestedAt *time.Time `gorm:"column:requested_at" json:"requested_at,omitempty"`
	ApprovedAt  *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
}
