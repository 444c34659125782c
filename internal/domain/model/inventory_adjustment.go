package model

import "time"

//在庫調整の履歴。手動調整とキャンセル・返金時の戻しを記録する。
//Deltaは符号付き（減算はマイナス）。

type InventoryAdjustment struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`

	//誰が動かしたか。出品者自身の場合もあれば管理者の場合もある。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	Delta     int64     `gorm:"not null" json:"delta"`
	Reason    string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
