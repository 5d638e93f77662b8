package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/middleware"
)

func newClientEcho(secure bool) *echo.Echo {
	e := echo.New()
	e.GET("/whoami", func(c echo.Context) error {
		id, ok := middleware.ClientIDFromContext(c)
		if !ok {
			return c.String(http.StatusInternalServerError, "")
		}
		return c.String(http.StatusOK, id)
	}, middleware.ClientSession(secure))
	return e
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.ClientCookieName {
			return c
		}
	}
	t.Fatalf("cookie %s not set", middleware.ClientCookieName)
	return nil
}

func TestClientSession_IssuesCookie(t *testing.T) {
	e := newClientEcho(false)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	ck := sessionCookie(t, rec)
	_, err := uuid.Parse(ck.Value)
	assert.NoError(t, err)
	assert.Equal(t, ck.Value, rec.Body.String())
	assert.True(t, ck.HttpOnly)
	assert.False(t, ck.Secure)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, "/", ck.Path)
}

func TestClientSession_KeepsExistingID(t *testing.T) {
	e := newClientEcho(true)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookieName, Value: id})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, rec.Body.String())
	ck := sessionCookie(t, rec)
	assert.Equal(t, id, ck.Value)
	assert.True(t, ck.Secure)
}

// 不正な値は作り直す
func TestClientSession_ReplacesInvalidID(t *testing.T) {
	e := newClientEcho(false)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookieName, Value: "../../etc"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "../../etc", rec.Body.String())
	_, err := uuid.Parse(rec.Body.String())
	assert.NoError(t, err)
}
