package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/event"
	"marketplace/internal/handler"
	"marketplace/internal/infra/db"
	infraRepo "marketplace/internal/infra/repository"
	kafkax "marketplace/internal/kafka"
	"marketplace/internal/server"
	"marketplace/internal/usecase"
	"marketplace/internal/validator"

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

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Address{},
		&model.Seller{},
		&model.SellerDocument{},
		&model.Product{},
		&model.InventoryAdjustment{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderNote{},
		&model.AuditLog{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	//Repository（GORM実装）生成
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	sellerRepo := infraRepo.NewSellerGormRepository(gormDB)
	docRepo := infraRepo.NewSellerDocumentGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//Kafkaプロデューサ（エスクロー確定イベント）
	prodReleased := kafkax.NewProducer(cfg.KafkaBrokers, event.TopicEscrowReleased, 1024)
	prodReleased.Start(ctx)
	prodRefunded := kafkax.NewProducer(cfg.KafkaBrokers, event.TopicEscrowRefunded, 1024)
	prodRefunded.Start(ctx)
	events := kafkax.NewEscrowPublisher(prodReleased, prodRefunded, "marketplace-api")

	//usecaseに渡す部品
	clock := usecase.RealClock{}
	authValidator := validator.NewAuthValidator(userRepo)

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, userRepo, rtRepo, authValidator)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo, sellerRepo, auditRepo)
	// 価格は税込で持つのでTaxCalculatorは差さない
	orderUC := usecase.NewOrderUsecase(txManager, addressRepo, sellerRepo, clock, nil, events, cfg)
	escrowUC := usecase.NewEscrowUsecase(txManager, orderRepo, sellerRepo, clock, events, cfg)
	disputeUC := usecase.NewDisputeUsecase(txManager, auditRepo, clock, events)
	verificationUC := usecase.NewVerificationUsecase(txManager, sellerRepo, docRepo, userRepo, auditRepo, clock)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, auditRepo, clock, events)
	adminAuditUC := usecase.NewAdminAuditUsecase(auditRepo)

	//Handler生成
	refreshTTL := 30 * 24 * time.Hour
	handlers := server.Handlers{
		Auth:              handler.NewAuthHandler(cfg, authUC, refreshTTL),
		Product:           handler.NewProductHandler(productUC),
		Order:             handler.NewOrderHandler(orderUC, escrowUC, disputeUC),
		Seller:            handler.NewSellerHandler(verificationUC, productUC, orderUC, escrowUC),
		Address:           handler.NewAddressHandler(addressUC),
		AdminOrder:        handler.NewAdminOrderHandler(adminOrderUC, disputeUC),
		AdminVerification: handler.NewAdminVerificationHandler(verificationUC),
		AdminProduct:      handler.NewAdminProductHandler(productUC),
		AdminUser:         handler.NewAdminUserHandler(cfg, userRepo, authUC, adminAuditUC),
		UserRepo:          userRepo,
	}

	e := server.New(cfg, handlers)

	//Server起動
	go func() {
		if err := server.Start(e, cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = e.Shutdown(shutdownCtx)

	//プロデューサを流し切ってから終了
	prodReleased.Close()
	prodRefunded.Close()
	cancel()
	prodReleased.WaitClosed()
	prodRefunded.WaitClosed()
}
