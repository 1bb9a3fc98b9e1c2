package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Ramsey-B/briar/pkg/docstore"
	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/middleware"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	dryRun   bool
	ops      []patchpath.Operation
	expected int64
	err      error
}

func (f *fakeService) ResolveEntity(_ context.Context, id string, dryRun bool) (models.ResolveResult, error) {
	f.dryRun = dryRun
	if f.err != nil {
		return models.ResolveResult{}, f.err
	}
	return models.ResolveResult{EntityID: id, DryRun: dryRun, ReferencesSeen: 3}, nil
}

func (f *fakeService) PatchEntity(_ context.Context, _ string, ops []patchpath.Operation, expected int64) (int64, error) {
	f.ops = ops
	f.expected = expected
	if f.err != nil {
		return 0, f.err
	}
	return expected + 1, nil
}

func setup(svc *fakeService) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logging.Nop())
	NewHandler(svc, logging.Nop()).Register(e.Group("/api/v1/entities"))
	return e
}

func do(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestResolveEntity(t *testing.T) {
	svc := &fakeService{}
	e := setup(svc)

	rec := do(e, http.MethodPost, "/api/v1/entities/abc/resolve?dry_run=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.dryRun)

	var res models.ResolveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "abc", res.EntityID)
	assert.Equal(t, 3, res.ReferencesSeen)

	rec = do(e, http.MethodPost, "/api/v1/entities/abc/resolve?dry_run=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveEntity_NotFound(t *testing.T) {
	e := setup(&fakeService{err: fmt.Errorf("read abc: %w", docstore.ErrNotFound)})
	rec := do(e, http.MethodPost, "/api/v1/entities/abc/resolve", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchEntity(t *testing.T) {
	svc := &fakeService{}
	e := setup(svc)

	body := `{"operations":[{"op":"set","path":"/Stages[key=build]/Name","value":"Compile"}]}`
	rec := do(e, http.MethodPatch, "/api/v1/entities/abc", body, map[string]string{"If-Match": `"7"`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), svc.expected)
	assert.Equal(t, `"8"`, rec.Header().Get("ETag"))
	require.Len(t, svc.ops, 1)
	assert.Equal(t, "/Stages[key=build]/Name", svc.ops[0].Path)

	var res PatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(8), res.Revision)
}

func TestPatchEntity_Errors(t *testing.T) {
	e := setup(&fakeService{})
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPatch, "/api/v1/entities/abc", `{"operations":[]}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPatch, "/api/v1/entities/abc", `{"operations":[{"op":"rename","path":"/a"}]}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPatch, "/api/v1/entities/abc", `{"operations":[{"op":"set","path":"/a"}]}`, map[string]string{"If-Match": "abc"}).Code)

	e = setup(&fakeService{err: docstore.ErrConflict})
	assert.Equal(t, http.StatusConflict, do(e, http.MethodPatch, "/api/v1/entities/abc", `{"operations":[{"op":"set","path":"/a","value":1}]}`, nil).Code)

	e = setup(&fakeService{err: fmt.Errorf("%w: no element of \"Stages\" has key \"x\"", patchpath.ErrResolve)})
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPatch, "/api/v1/entities/abc", `{"operations":[{"op":"set","path":"/Stages[key=x]/Name","value":1}]}`, nil).Code)
}
