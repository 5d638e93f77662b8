package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/middleware"
	"storefront/internal/usecase"
)

// サインイン・サインアウトの通知を受けてカートを切り替える
type SessionHandler struct {
	uc        *usecase.CartUsecase
	jwtSecret string
}

func NewSessionHandler(uc *usecase.CartUsecase, jwtSecret string) *SessionHandler {
	return &SessionHandler{uc: uc, jwtSecret: jwtSecret}
}

func (h *SessionHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/session/identity", h.signIn, middleware.AuthJWT(h.jwtSecret))
	g.DELETE("/session/identity", h.signOut)
}

// BindIdentity はBearerで分かった利用者をカートセッションに結び直すミドルウェア。
// OptionalAuthJWT の後ろに置く。失敗してもリクエストはそのまま進める。
func (h *SessionHandler) BindIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who, ok := middleware.IdentityFromContext(c)
			if !ok {
				return next(c)
			}
			clientID, ok := getClientIDFromContext(c)
			if !ok {
				return next(c)
			}
			if err := h.uc.BindIdentity(c.Request().Context(), clientID, who); err != nil {
				c.Logger().Warnf("bind identity failed: client_id=%s user_id=%s err=%v", clientID, who.UserID, err)
			}
			return next(c)
		}
	}
}

func (h *SessionHandler) signIn(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}
	who, ok := middleware.IdentityFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.SignIn(c.Request().Context(), clientID, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SessionHandler) signOut(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	out, err := h.uc.SignOut(c.Request().Context(), clientID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
