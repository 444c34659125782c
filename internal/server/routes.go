package server

import (
	"marketplace/internal/config"
	"marketplace/internal/handler"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"

	"github.com/labstack/echo/v4"
)

// Handlersはルート登録に必要なハンドラ一式
type Handlers struct {
	Auth              *handler.AuthHandler
	Product           *handler.ProductHandler
	Order             *handler.OrderHandler
	Seller            *handler.SellerHandler
	Address           *handler.AddressHandler
	AdminOrder        *handler.AdminOrderHandler
	AdminVerification *handler.AdminVerificationHandler
	AdminProduct      *handler.AdminProductHandler
	AdminUser         *handler.AdminUserHandler

	UserRepo repository.UserRepository // 認証ミドルウェア用
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Auth.RegisterRoutes(e, h.UserRepo)
	h.Product.RegisterRoutes(e)
	h.Order.RegisterRoutes(e, cfg, h.UserRepo)
	h.Seller.RegisterRoutes(e, cfg, h.UserRepo)

	// 住所はログイン必須
	g := e.Group("", middleware.AuthJWT(cfg), middleware.TokenVersionGuard(h.UserRepo))
	h.Address.RegisterRoutes(g)

	h.AdminOrder.RegisterRoutes(e, cfg, h.UserRepo)
	h.AdminVerification.RegisterRoutes(e, cfg, h.UserRepo)
	h.AdminProduct.RegisterRoutes(e, cfg, h.UserRepo)
	h.AdminUser.RegisterRoutes(e)
}
