package model

import "time"

type Role string

const (
	RoleUser   Role = "USER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	// 全セッション失効用の世代番号。ForceLogoutでインクリメントされる。
	TokenVersion int `gorm:"not null;default:0"`
	// 審査通過や取引実績で加算される信頼度
	TrustScore  int  `gorm:"not null;default:0"`
	IsActive    bool `gorm:"not null;default:true"`
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
