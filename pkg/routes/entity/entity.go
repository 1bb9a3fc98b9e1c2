package entity

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
	"github.com/Ramsey-B/briar/pkg/utils"
	"github.com/labstack/echo/v4"
)

type Service interface {
	ResolveEntity(ctx context.Context, id string, dryRun bool) (models.ResolveResult, error)
	PatchEntity(ctx context.Context, id string, ops []patchpath.Operation, expectedRevision int64) (int64, error)
}

type Handler struct {
	svc    Service
	logger ectologger.Logger
}

func NewHandler(svc Service, logger ectologger.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/:id/resolve", h.ResolveEntity)
	g.PATCH("/:id", h.PatchEntity)
}

// ResolveEntity repairs the references of one document. ?dry_run=true reports without writing.
func (h *Handler) ResolveEntity(c echo.Context) error {
	ctx := c.Request().Context()

	var dryRun bool
	if err := echo.QueryParamsBinder(c).Bool("dry_run", &dryRun).BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "dry_run must be a boolean")
	}

	res, err := h.svc.ResolveEntity(ctx, c.Param("id"), dryRun)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type PatchRequest struct {
	Operations []patchpath.Operation `json:"operations" validate:"required,min=1"`
	// ExpectedRevision guards the write; the If-Match header may carry it instead.
	ExpectedRevision int64 `json:"expected_revision"`
}

type PatchResponse struct {
	EntityID string `json:"entity_id"`
	Revision int64  `json:"revision"`
}

// PatchEntity applies keyed-path operations such as /Stages[key=build]/Name.
func (h *Handler) PatchEntity(c echo.Context) error {
	ctx := c.Request().Context()

	var req PatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if ifMatch := strings.Trim(c.Request().Header.Get("If-Match"), `"`); ifMatch != "" {
		rev, err := strconv.ParseInt(ifMatch, 10, 64)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "If-Match must be a revision number")
		}
		req.ExpectedRevision = rev
	}
	if _, err := utils.Validate(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := utils.ValidateSlice(req.Operations); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id := c.Param("id")
	rev, err := h.svc.PatchEntity(ctx, id, req.Operations, req.ExpectedRevision)
	if err != nil {
		return err
	}
	c.Response().Header().Set("ETag", strconv.Quote(strconv.FormatInt(rev, 10)))
	return c.JSON(http.StatusOK, PatchResponse{EntityID: id, Revision: rev})
}
