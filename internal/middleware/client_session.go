package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	ClientCookieName = "sf_client"
	CtxClientIDKey   = "client_id" // string

	clientCookieTTL = 180 * 24 * time.Hour
)

// ClientSession はブラウザごとのクライアントIDをCookieで払い出す。
// 不正な値なら作り直す。
func ClientSession(secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := ""
			if ck, err := c.Cookie(ClientCookieName); err == nil {
				if _, perr := uuid.Parse(ck.Value); perr == nil {
					clientID = ck.Value
				}
			}
			if clientID == "" {
				clientID = uuid.NewString()
			}

			// 期限は毎回延ばす
			c.SetCookie(&http.Cookie{
				Name:     ClientCookieName,
				Value:    clientID,
				Path:     "/",
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(clientCookieTTL),
			})

			c.Set(CtxClientIDKey, clientID)
			return next(c)
		}
	}
}

// ClientIDFromContext は ClientSession が入れたIDを取り出す。
func ClientIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(CtxClientIDKey).(string)
	return id, ok && id != ""
}
