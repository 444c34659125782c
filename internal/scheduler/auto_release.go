package scheduler

import (
	"context"
	"log"
	"time"
)

// 期限到来分をまとめて釈放する側の口。実体はEscrowUsecase。
type EscrowReleaser interface {
	ReleaseDueEscrows(ctx context.Context, now time.Time, limit int) (int, error)
}

// Sweeperは一定間隔でエスクローの自動釈放を回す
type Sweeper struct {
	releaser EscrowReleaser
	interval time.Duration
	batch    int
}

func NewSweeper(releaser EscrowReleaser, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{releaser: releaser, interval: interval, batch: batch}
}

// Runはctxが切れるまでブロックする。1周の失敗はログに残して次周へ。
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now())
		}
	}
}

// SweepOnceは1周分。釈放件数を返す。
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) int {
	n, err := s.releaser.ReleaseDueEscrows(ctx, now, s.batch)
	if err != nil {
		log.Printf("scheduler: escrow sweep: %v", err)
	}
	if n > 0 {
		log.Printf("scheduler: auto-released %d escrows", n)
	}
	return n
}
