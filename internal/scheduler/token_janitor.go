package scheduler

import (
	"context"
	"log"
	"time"
)

// 期限切れrefresh tokenを消す側の口。実体はRefreshTokenRepository。
type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenJanitorは期限切れrefresh tokenの定期掃除を回す。
// 提示されないまま期限を過ぎた行はこの掃除でしか消えない。
type TokenJanitor struct {
	tokens   ExpiredTokenDeleter
	interval time.Duration
}

func NewTokenJanitor(tokens ExpiredTokenDeleter, interval time.Duration) *TokenJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenJanitor{tokens: tokens, interval: interval}
}

// Runはctxが切れるまでブロックする。1周の失敗はログに残して次周へ。
func (j *TokenJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.CleanOnce(ctx, time.Now())
		}
	}
}

// CleanOnceは1周分。削除件数を返す。
func (j *TokenJanitor) CleanOnce(ctx context.Context, now time.Time) int64 {
	n, err := j.tokens.DeleteExpired(ctx, now)
	if err != nil {
		log.Printf("scheduler: token cleanup: %v", err)
	}
	if n > 0 {
		log.Printf("scheduler: deleted %d expired refresh tokens", n)
	}
	return n
}
