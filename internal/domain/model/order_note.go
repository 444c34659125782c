package model

import "time"

type NoteAuthorRole string

const (
	NoteAuthorBuyer  NoteAuthorRole = "buyer"
	NoteAuthorSeller NoteAuthorRole = "seller"
	NoteAuthorAdmin  NoteAuthorRole = "admin"
	NoteAuthorSystem NoteAuthorRole = "system"
)

// 注文に付く追記専用のメモ。編集・削除はしない。
type OrderNote struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64          `gorm:"not null;index" json:"order_id"`
	AuthorRole NoteAuthorRole `gorm:"type:varchar(20);not null" json:"author_role"`
	AuthorID   int64          `json:"author_id,omitempty"`
	Body       string         `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}
