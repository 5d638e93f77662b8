package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"storefront/internal/domain/model"
)

const (
	CtxIdentityKey = "identity" // model.Identity

	// 決済確認用の相関トークン（JWTのclaimに無い場合のみ使う）
	HeaderSessionCorrelation = "X-Session-Correlation"
)

// bearerAuth用のJWT検証ミドルウェア。
// 検証済みの利用者を model.Identity として context に入れる。
func AuthJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who, err := ParseIdentity(c.Request(), secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxIdentityKey, who)
			return next(c)
		}
	}
}

// OptionalAuthJWT はBearerがあって検証できた時だけ利用者を context に入れる。
// 無い・不正な場合はゲストとしてそのまま通す。
func OptionalAuthJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return next(c)
			}
			if who, err := ParseIdentity(c.Request(), secret); err == nil {
				c.Set(CtxIdentityKey, who)
			}
			return next(c)
		}
	}
}

// ParseIdentity は Authorization ヘッダのBearerトークンを検証する。
func ParseIdentity(r *http.Request, secret string) (model.Identity, error) {
	//Bearer形式か確認してtokenを抜く
	authz := r.Header.Get("Authorization")
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return model.Identity{}, errors.New("missing bearer token")
	}
	rawToken := strings.TrimSpace(parts[1])
	if rawToken == "" {
		return model.Identity{}, errors.New("missing bearer token")
	}

	//JWTをパースして検証する
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || token == nil || !token.Valid {
		return model.Identity{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Identity{}, errors.New("invalid claims")
	}

	userID, err := parseUserID(claims["sub"])
	if err != nil || userID == "" {
		return model.Identity{}, errors.New("invalid sub")
	}

	correlation, _ := parseString(claims["sid"])
	if correlation == "" {
		correlation = strings.TrimSpace(r.Header.Get(HeaderSessionCorrelation))
	}

	return model.Identity{
		UserID:           userID,
		AccessToken:      rawToken,
		CorrelationToken: correlation,
	}, nil
}

// IdentityFromContext は AuthJWT が入れた利用者を取り出す。
func IdentityFromContext(c echo.Context) (model.Identity, bool) {
	who, ok := c.Get(CtxIdentityKey).(model.Identity)
	if !ok || who.IsZero() {
		return model.Identity{}, false
	}
	return who, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// sub は数値でも文字列でも受ける
func parseUserID(v interface{}) (string, error) {
	switch t := v.(type) {
	case float64:
		return strconv.FormatInt(int64(t), 10), nil
	case string:
		return strings.TrimSpace(t), nil
	default:
		return "", errors.New("invalid sub")
	}
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid string")
	}
	return s, nil
}
