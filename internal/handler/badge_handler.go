package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storefront/internal/notify"
	"storefront/internal/usecase"
)

const (
	badgeBuffer    = 16
	badgeHeartbeat = 15 * time.Second
)

// ヘッダーのバッジ向けに件数の変化をSSEで流す
type BadgeHandler struct {
	uc      *usecase.CartUsecase
	channel *notify.Channel
	logger  *zap.Logger
}

func NewBadgeHandler(uc *usecase.CartUsecase, channel *notify.Channel, logger *zap.Logger) *BadgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeHandler{uc: uc, channel: channel, logger: logger}
}

func (h *BadgeHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/cart/count/stream", h.stream)
}

func (h *BadgeHandler) stream(c echo.Context) error {
	clientID, ok := getClientIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing client session"})
	}
	ctx := c.Request().Context()

	// 先に購読してから現在値を送る（取りこぼし防止）
	sub := h.channel.Subscribe(clientID, badgeBuffer)
	defer sub.Unsubscribe()

	n, err := h.uc.Count(ctx, clientID)
	if err != nil {
		return writeError(c, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeCountEvent(w, notify.CountEvent{ClientID: clientID, Count: n}); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(badgeHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeCountEvent(w, ev); err != nil {
				h.logger.Debug("badge stream closed", zap.String("client_id", clientID), zap.Error(err))
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func writeCountEvent(w *echo.Response, ev notify.CountEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: count\ndata: %s\n\n", b); err != nil {
		return err
	}
	w.Flush()
	return nil
}
