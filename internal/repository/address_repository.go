package repository

import (
	"marketplace/internal/domain/model"

	"context"
	"errors"
)

var ErrAddressNotFound = errors.New("address not found")

// 配送先住所の保存・取得。
// 対象が無い操作は ErrAddressNotFound を返す。
type AddressRepository interface {
	// 作成してIDの埋まったaddressを返す
	Create(ctx context.Context, address model.Address) (model.Address, error)

	// ユーザーの住所一覧。default先頭。
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)

	FindByID(ctx context.Context, addressID int64) (model.Address, error)

	Update(ctx context.Context, address model.Address) error

	Delete(ctx context.Context, addressID int64) error

	// 住所がそのユーザーのものか
	IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error)

	// defaultをこの住所に切り替える。user内でdefaultは常に1つ以下。
	SetDefault(ctx context.Context, userID, addressID int64) error
}
