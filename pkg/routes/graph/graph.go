package graph

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	requestctx "github.com/Ramsey-B/briar/pkg/context"
	graphpkg "github.com/Ramsey-B/briar/pkg/graph"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/labstack/echo/v4"
)

type ReferenceReader interface {
	References(ctx context.Context, source models.EntityPk, includeDeleted bool) ([]graphpkg.Reference, error)
}

// Handler serves reads from the graph mirror. A nil reader means the mirror is disabled.
type Handler struct {
	reader ReferenceReader
}

func NewHandler(reader ReferenceReader) *Handler {
	return &Handler{reader: reader}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/entities/:entityType/:id/references", h.GetReferences)
}

// GetReferences lists outbound references. The org comes from X-Org-ID, falling back to ?org_id.
func (h *Handler) GetReferences(c echo.Context) error {
	if h.reader == nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "graph mirror is disabled")
	}
	ctx := c.Request().Context()

	orgID := requestctx.GetOrgID(ctx)
	if orgID == "" {
		orgID = c.QueryParam("org_id")
	}
	var includeDeleted bool
	if err := echo.QueryParamsBinder(c).Bool("include_deleted", &includeDeleted).BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "include_deleted must be a boolean")
	}

	refs, err := h.reader.References(ctx, models.EntityPk{
		OrgID:      orgID,
		EntityType: c.Param("entityType"),
		EntityID:   c.Param("id"),
	}, includeDeleted)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, refs)
}
