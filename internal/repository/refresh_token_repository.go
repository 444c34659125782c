package repository

import (
	"marketplace/internal/domain/model"

	"context"
	"errors"
	"time"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// リフレッシュトークンの保存・照合・失効。
// MarkUsed/Revoke/DeleteByID は対象が無ければ ErrRefreshTokenNotFound。
type RefreshTokenRepository = interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	MarkUsed(ctx context.Context, tokenID string) error
	Revoke(ctx context.Context, tokenID string) error
	DeleteAllByUserID(ctx context.Context, userID int64) error
	DeleteByID(ctx context.Context, tokenID string) error

	// now以前に期限切れした行を消す。workerの定期掃除用。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
