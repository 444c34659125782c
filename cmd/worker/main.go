package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/event"
	"marketplace/internal/infra/db"
	infraRepo "marketplace/internal/infra/repository"
	kafkax "marketplace/internal/kafka"
	"marketplace/internal/payments"
	"marketplace/internal/redisx"
	"marketplace/internal/scheduler"
	"marketplace/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	//DB接続（マイグレーションはAPI側が持つ）
	gormDB, err := db.Connect()
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	//Redis（イベントの重複排除）
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	//Repository
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	sellerRepo := infraRepo.NewSellerGormRepository(gormDB)

	//Kafkaプロデューサ（自動釈放の確定イベント）
	// ctxで畳むと送信中のgoroutineが残っていてもinboxが閉じるので、
	// 停止は全worker終了後の明示Closeでだけ行う
	prodReleased := kafkax.NewProducer(cfg.KafkaBrokers, event.TopicEscrowReleased, 1024)
	prodReleased.Start(context.Background())
	prodRefunded := kafkax.NewProducer(cfg.KafkaBrokers, event.TopicEscrowRefunded, 1024)
	prodRefunded.Start(context.Background())
	events := kafkax.NewEscrowPublisher(prodReleased, prodRefunded, "marketplace-worker")

	clock := usecase.RealClock{}
	escrowUC := usecase.NewEscrowUsecase(txManager, orderRepo, sellerRepo, clock, events, cfg)

	//payment.confirmedコンシューマ
	svc := &payments.Service{
		Escrow:      escrowUC,
		Redis:       rdb,
		ServiceName: "marketplace-worker",
	}
	var wg sync.WaitGroup

	group := getenv("PAYMENTS_GROUP", "marketplace-payments")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, event.TopicPaymentConfirmed)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("payments consumer started: group=%s topic=%s", group, event.TopicPaymentConfirmed)
		if err := cons.Start(ctx, svc.HandlePaymentConfirmed); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	//エスクロー自動釈放スイープ
	sweeper := scheduler.NewSweeper(escrowUC, time.Duration(cfg.SweepIntervalSeconds)*time.Second, cfg.SweepBatchSize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("escrow sweeper started: interval=%ds batch=%d", cfg.SweepIntervalSeconds, cfg.SweepBatchSize)
		_ = sweeper.Run(ctx)
	}()

	//期限切れrefresh tokenの掃除
	janitor := scheduler.NewTokenJanitor(infraRepo.NewRefreshTokenRepository(gormDB), time.Hour)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("token janitor started: interval=1h")
		_ = janitor.Run(ctx)
	}()

	//シグナルかコンシューマ死亡で停止
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down worker...")
	cancel()
	// Publishしうるgoroutineが全部終わるまでプロデューサは閉じない
	wg.Wait()

	prodReleased.Close()
	prodRefunded.Close()
	prodReleased.WaitClosed()
	prodRefunded.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
