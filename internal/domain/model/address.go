package model

import "time"

// 配送先住所。注文時にはSnapshotで値をOrderに焼き込むので、
// ここを後から編集しても過去の注文の宛先は変わらない。
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//郵便番号（123-4567形式、ハイフンなしも可）
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`
	//都道府県
	Prefecture string `gorm:"type:varchar(100);not null" json:"prefecture"`
	//市区町村
	City string `gorm:"type:varchar(255);not null" json:"city"`
	//番地
	Line1 string `gorm:"type:varchar(255);not null" json:"line1"`
	//建物名・部屋番号など。任意。
	Line2 string `gorm:"type:varchar(255)" json:"line2"`

	//宛名
	Name string `gorm:"type:varchar(255);not null" json:"name"`
	//電話番号。任意。
	Phone string `gorm:"type:varchar(30)" json:"phone"`

	//デフォルト住所フラグ。ユーザーごとに高々1件になるようrepository側で維持する。
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// 注文に焼き込むスナップショットへ変換する
func (a *Address) Snapshot() OrderAddress {
	return OrderAddress{
		PostalCode: a.PostalCode,
		Prefecture: a.Prefecture,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,
		Name:       a.Name,
		Phone:      a.Phone,
	}
}
