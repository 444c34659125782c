package model

import "time"

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusClosed      DisputeStatus = "closed"
)

// open / under_review の間はエスクローの通常進行を止める。
func (s DisputeStatus) Blocks() bool {
	return s == DisputeStatusOpen || s == DisputeStatusUnderReview
}

// 注文に紐づく争議。未申立のときは IsDisputed=false で Status は空のまま。
type Dispute struct {
	IsDisputed  bool          `gorm:"column:is_disputed;not null;default:false" json:"is_disputed"`
	Status      DisputeStatus `gorm:"column:status;type:varchar(20)" json:"status,omitempty"`
	Reason      string        `gorm:"column:reason;type:varchar(255)" json:"reason,omitempty"`
	Description string        `gorm:"column:description;type:text" json:"description,omitempty"`
	Evidence    string        `gorm:"column:evidence;type:text" json:"evidence,omitempty"`
	OpenedBy    int64         `gorm:"column:opened_by" json:"opened_by,omitempty"`
	OpenedAt    *time.Time    `gorm:"column:opened_at" json:"opened_at,omitempty"`
	ResolvedBy  int64         `gorm:"column:resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time    `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	Resolution  string        `gorm:"column:resolution;type:text" json:"resolution,omitempty"`
}
