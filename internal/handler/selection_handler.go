package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/usecase"
)

// カート画面の購入対象の選択
type SelectionHandler struct {
	uc *usecase.CartUsecase
}

func NewSelectionHandler(uc *usecase.CartUsecase) *SelectionHandler {
	return &SelectionHandler{uc: uc}
}

type SelectionResponse struct {
	Selected []string `json:"selected"`
}

type CheckoutRouteResponse struct {
	Route string `json:"route"`
}

func (h *SelectionHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/cart/selection", h.get)
	g.POST("/cart/selection", h.initialize)
	g.POST("/cart/selection/toggle/:id", h.toggle)
	g.POST("/cart/selection/all", h.selectAll)
	g.DELETE("/cart/selection", h.selectNone)
	g.POST("/cart/checkout", h.proceed)
}

func (h *SelectionHandler) get(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	ids, err := h.uc.Selection(c.Request().Context(), clientID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SelectionResponse{Selected: ids})
}

// カート画面を開いた時に全選択
func (h *SelectionHandler) initialize(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	out, err := h.uc.InitializeSelection(c.Request().Context(), clientID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SelectionHandler) toggle(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	out, err := h.uc.ToggleSelection(c.Request().Context(), clientID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SelectionHandler) selectAll(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	out, err := h.uc.SelectAll(c.Request().Context(), clientID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SelectionHandler) selectNone(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	out, err := h.uc.SelectNone(c.Request().Context(), clientID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 選択を保存してチェックアウト画面の経路を返す
func (h *SelectionHandler) proceed(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	route, err := h.uc.ProceedToCheckout(c.Request().Context(), clientID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, CheckoutRouteResponse{Route: route})
}
