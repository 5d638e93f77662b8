package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"
)

type Handlers struct {
	Cart      *handler.CartHandler
	Selection *handler.SelectionHandler
	Order     *handler.OrderHandler
	Session   *handler.SessionHandler
	Badge     *handler.BadgeHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// 以降はクライアントIDのCookieが必要
	g := e.Group("", middleware.ClientSession(cfg.IsProduction()))

	h.Session.RegisterRoutes(g)

	// Bearerがあればセッションを認証状態へ結び直してから処理する
	bound := g.Group("", middleware.OptionalAuthJWT(cfg.JWTSecret), h.Session.BindIdentity())
	h.Cart.RegisterRoutes(bound)
	h.Selection.RegisterRoutes(bound)
	h.Order.RegisterRoutes(bound)
	h.Badge.RegisterRoutes(bound)
}
