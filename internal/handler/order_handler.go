package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"
)

// チェックアウト画面と注文
type OrderHandler struct {
	orders *usecase.OrderUsecase
	carts  *usecase.CartUsecase
}

func NewOrderHandler(orders *usecase.OrderUsecase, carts *usecase.CartUsecase) *OrderHandler {
	return &OrderHandler{orders: orders, carts: carts}
}

type OrderCreateRequest struct {
	Shipping      model.ShippingInfo  `json:"shipping_info"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
}

type OrderSettledRequest struct {
	LineIDs []string `json:"line_ids"`
}

func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/checkout", h.checkout)
	g.DELETE("/checkout", h.abandon)
	g.POST("/checkout/orders", h.create)
	g.GET("/checkout/payment/return", h.paymentReturn)
	g.POST("/orders/settled", h.settled)
}

func (h *OrderHandler) checkout(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	out, err := h.orders.Checkout(c.Request().Context(), clientID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) create(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")

	out, err := h.orders.PlaceOrder(c.Request().Context(), clientID, usecase.PlaceOrderInput{
		Shipping:       req.Shipping,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 外部決済からの戻り（?order_id=...&status=success|failure|cancel）
func (h *OrderHandler) paymentReturn(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	out, err := h.orders.PaymentReturn(c.Request().Context(), clientID, c.QueryParam("order_id"), c.QueryParam("status"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 戻るボタンなどでチェックアウトを離れた
func (h *OrderHandler) abandon(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	if err := h.orders.Abandon(c.Request().Context(), clientID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHandler) settled(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}

	var req OrderSettledRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.carts.OnOrderSettled(c.Request().Context(), clientID, req.LineIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
