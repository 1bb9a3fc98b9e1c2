package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/context"
	"github.com/Ramsey-B/briar/pkg/docstore"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: entity_type is required", models.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", docstore.ErrNotFound), http.StatusNotFound},
		{docstore.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: no element", patchpath.ErrResolve), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		code, ok := StatusFor(tc.err)
		assert.True(t, ok, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}

	_, ok := StatusFor(fmt.Errorf("boom"))
	assert.False(t, ok)
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = Error(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	e.Use(Context())
	e.GET("/missing", func(c echo.Context) error {
		return fmt.Errorf("get: %w", docstore.ErrNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-1", body.RequestID)
	assert.Contains(t, body.Message, "document not found")
}

func TestContextMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(Context())
	var orgID, requestID string
	e.GET("/", func(c echo.Context) error {
		orgID = context.GetOrgID(c.Request().Context())
		requestID = context.GetRequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderOrgID, "org-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "org-1", orgID)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
}
