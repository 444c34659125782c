package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
)

// 更新系で対象ユーザーがいなかったときに返す。
// FindByID / FindByEmail は見つからなくてもエラーにせず (nil, nil) を返す。
var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// is_active・last_login_atなどの更新。全カラム保存。
	Update(ctx context.Context, user *model.User) error

	// 出品者審査の通過で USER -> SELLER へ昇格させる。
	UpdateRole(ctx context.Context, userID int64, role model.Role) error

	// 信頼スコアの加算。deltaはマイナスも可。
	AddTrustScore(ctx context.Context, userID int64, delta int) error

	// 強制ログアウト用。上げた後のtokenは全て無効になる。
	IncrementTokenVersion(ctx context.Context, userID int64) error
}
