package maintenance

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/jobs"
	"github.com/Ramsey-B/briar/pkg/middleware"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/resolver"
	"github.com/Ramsey-B/briar/pkg/utils"
	"github.com/labstack/echo/v4"
)

// Service is the set of paged maintenance operations.
type Service interface {
	AddNodeLocators(ctx context.Context, req models.BulkRequest) (models.BulkResult, error)
	ResolveEntityHeaders(ctx context.Context, req models.BulkRequest) (models.BulkResult, error)
	ReconcileEdges(ctx context.Context, req models.BulkRequest) (models.BulkResult, error)
	DeleteByEntityType(ctx context.Context, req models.BulkRequest) (models.BulkResult, error)
	ScanContainer(ctx context.Context, req models.BulkRequest) (models.BulkResult, error)
}

type Handler struct {
	svc    Service
	runner *jobs.Runner
	logger ectologger.Logger
}

func NewHandler(svc Service, runner *jobs.Runner, logger ectologger.Logger) *Handler {
	return &Handler{
		svc:    svc,
		runner: runner,
		logger: logger,
	}
}

// Register mounts the maintenance routes. Every route accepts ?resume=true to
// continue from the saved checkpoint for its operation and entity type.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/locators", h.AddNodeLocators)
	g.POST("/headers", h.ResolveEntityHeaders)
	g.POST("/edges", h.ReconcileEdges)
	g.POST("/delete", h.DeleteByEntityType)
	g.POST("/scan", h.ScanContainer)
}

// FailedRun is returned when a run stops partway. Result holds the last good
// continuation token so the caller can resume.
type FailedRun struct {
	Message string            `json:"message"`
	Result  models.BulkResult `json:"result"`
}

func (h *Handler) AddNodeLocators(c echo.Context) error {
	return h.run(c, resolver.OpAddNodeLocators, h.svc.AddNodeLocators)
}

func (h *Handler) ResolveEntityHeaders(c echo.Context) error {
	return h.run(c, resolver.OpResolveEntityHeaders, h.svc.ResolveEntityHeaders)
}

func (h *Handler) ReconcileEdges(c echo.Context) error {
	return h.run(c, resolver.OpReconcileEdges, h.svc.ReconcileEdges)
}

func (h *Handler) DeleteByEntityType(c echo.Context) error {
	return h.run(c, resolver.OpDeleteByEntityType, h.svc.DeleteByEntityType)
}

func (h *Handler) ScanContainer(c echo.Context) error {
	return h.run(c, resolver.OpScanContainer, h.svc.ScanContainer)
}

func (h *Handler) run(c echo.Context, op string, fn jobs.BulkFunc) error {
	ctx := c.Request().Context()

	var req models.BulkRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if _, err := utils.Validate(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.runner.Run(ctx, op, req, c.QueryParam("resume") == "true", fn)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			return err
		}
		code, ok := middleware.StatusFor(err)
		if !ok {
			code = http.StatusInternalServerError
		}
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"operation":          op,
			"entity_type":        req.EntityType,
			"pages":              res.Pages,
			"continuation_token": res.ContinuationToken,
		}).Error("Maintenance run stopped")
		return c.JSON(code, FailedRun{Message: err.Error(), Result: res})
	}
	return c.JSON(http.StatusOK, res)
}
