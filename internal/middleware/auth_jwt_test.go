package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/middleware"
)

const testSecret = "test-secret"

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID      string `json:"user_id"`
	Correlation string `json:"correlation"`
	HasToken    bool   `json:"has_token"`
}

// =====================
// helper
// =====================

func mustMakeJWT(t *testing.T, secret string, claims jwt.MapClaims, signingMethod jwt.SigningMethod) string {
	t.Helper()

	if _, ok := claims["exp"]; !ok {
		claims["exp"] = 9999999999
	}
	claims["iat"] = 1

	s, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func runRequest(t *testing.T, e *echo.Echo, authHeader string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newProtected() *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		who, ok := middleware.IdentityFromContext(c)
		if !ok {
			return c.JSON(http.StatusInternalServerError, mwErrorResponse{Error: "identity missing"})
		}
		return c.JSON(http.StatusOK, mwOKResponse{
			UserID:      who.UserID,
			Correlation: who.CorrelationToken,
			HasToken:    who.AccessToken != "",
		})
	}, middleware.AuthJWT(testSecret))
	return e
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func decodeMWOK(t *testing.T, rec *httptest.ResponseRecorder) mwOKResponse {
	t.Helper()
	var r mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

// =====================
// AuthJWT
// =====================

func TestMiddleware_AuthJWT_Unauthorized(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
	}{
		{name: "no header", authHeader: ""},
		{name: "bad scheme", authHeader: "Token abc.def.ghi"},
		{name: "empty token", authHeader: "Bearer  "},
		{name: "garbage", authHeader: "Bearer not-a-jwt"},
		{
			name:       "bad signature",
			authHeader: "Bearer " + mustMakeJWT(t, "wrong-secret", jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodHS256),
		},
		{
			name:       "wrong alg",
			authHeader: "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodHS512),
		},
		{
			name:       "expired",
			authHeader: "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": 2}, jwt.SigningMethodHS256),
		},
		{
			name:       "missing sub",
			authHeader: "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"sid": "s1"}, jwt.SigningMethodHS256),
		},
		{
			name:       "blank sub",
			authHeader: "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": "  "}, jwt.SigningMethodHS256),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runRequest(t, newProtected(), tt.authHeader, nil)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
		})
	}
}

// 正常：ctxに値が入る
func TestMiddleware_AuthJWT_Success_SetsContext(t *testing.T) {
	raw := mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": "u-123", "sid": "corr-1"}, jwt.SigningMethodHS256)

	rec := runRequest(t, newProtected(), "Bearer "+raw, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMWOK(t, rec)
	assert.Equal(t, "u-123", body.UserID)
	assert.Equal(t, "corr-1", body.Correlation)
	assert.True(t, body.HasToken)
}

// subが数値でも受ける
func TestMiddleware_AuthJWT_NumericSub(t *testing.T) {
	raw := mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": 123}, jwt.SigningMethodHS256)

	rec := runRequest(t, newProtected(), "Bearer "+raw, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123", decodeMWOK(t, rec).UserID)
}

// sidが無ければヘッダーの相関トークンを使う
func TestMiddleware_AuthJWT_CorrelationFromHeader(t *testing.T) {
	raw := mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodHS256)

	rec := runRequest(t, newProtected(), "Bearer "+raw, map[string]string{
		middleware.HeaderSessionCorrelation: " corr-from-header ",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "corr-from-header", decodeMWOK(t, rec).Correlation)
}

func TestIdentityFromContext_Missing(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := middleware.IdentityFromContext(c)
	assert.False(t, ok)
}

// =====================
// OptionalAuthJWT
// =====================

func newOptional() *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		who, ok := middleware.IdentityFromContext(c)
		if !ok {
			return c.JSON(http.StatusOK, mwOKResponse{})
		}
		return c.JSON(http.StatusOK, mwOKResponse{UserID: who.UserID, HasToken: who.AccessToken != ""})
	}, middleware.OptionalAuthJWT(testSecret))
	return e
}

func TestMiddleware_OptionalAuthJWT(t *testing.T) {
	valid := mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodHS256)
	forged := mustMakeJWT(t, "wrong-secret", jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodHS256)

	tests := []struct {
		name       string
		authHeader string
		wantUser   string
	}{
		{name: "no header passes as guest", authHeader: "", wantUser: ""},
		{name: "invalid token passes as guest", authHeader: "Bearer " + forged, wantUser: ""},
		{name: "valid token sets identity", authHeader: "Bearer " + valid, wantUser: "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runRequest(t, newOptional(), tt.authHeader, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			body := decodeMWOK(t, rec)
			assert.Equal(t, tt.wantUser, body.UserID)
			assert.Equal(t, tt.wantUser != "", body.HasToken)
		})
	}
}
