package server

import (
	"marketplace/internal/config"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Newはechoサーバーを組み立ててルートを登録する
func New(cfg config.Config, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FEURL},
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE},
		AllowHeaders:     []string{echo.HeaderContentType, "X-CSRF-Token", "X-Idempotency-Key"},
		AllowCredentials: true, // refresh/csrfクッキーを送るため
	}))

	RegisterRoutes(e, cfg, h)
	return e
}

func Start(e *echo.Echo, port string) error {
	if port != "" && port[0] != ':' {
		port = ":" + port
	}
	return e.Start(port)
}
