package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/cinebook/internal/utils"
)

func runProtected(t *testing.T, secret, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTAuth(secret)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, c
}

func TestJWTAuth(t *testing.T) {
	t.Run("Valid Token", func(t *testing.T) {
		tok, err := utils.NewAccessToken("secret", 42, "CUSTOMER", 15)
		require.NoError(t, err)

		rec, c := runProtected(t, "secret", "Bearer "+tok.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(42), c.Get("user_id"))
		assert.Equal(t, "CUSTOMER", c.Get("role"))
	})

	t.Run("Missing Header", func(t *testing.T) {
		rec, _ := runProtected(t, "secret", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		tok, err := utils.NewAccessToken("other", 42, "CUSTOMER", 15)
		require.NoError(t, err)

		rec, _ := runProtected(t, "secret", "Bearer "+tok.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Garbage Token", func(t *testing.T) {
		rec, _ := runProtected(t, "secret", "Bearer not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	run := func(role interface{}, allowed ...string) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		h := RequireRole(allowed...)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, h(c))
		return rec
	}

	assert.Equal(t, http.StatusOK, run("ADMIN", "ADMIN").Code)
	assert.Equal(t, http.StatusForbidden, run("CUSTOMER", "ADMIN").Code)
	assert.Equal(t, http.StatusForbidden, run(nil, "ADMIN").Code)
	assert.Equal(t, http.StatusForbidden, run(42, "ADMIN").Code)
}
