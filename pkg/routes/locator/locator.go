package locator

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/labstack/echo/v4"
)

type Reader interface {
	TryGet(ctx context.Context, nodeID string) (models.NodeLocatorEntry, bool, error)
}

type Handler struct {
	reader Reader
}

func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/:nodeId", h.GetLocator)
}

// GetLocator reports which root document holds a nested node and where.
func (h *Handler) GetLocator(c echo.Context) error {
	nodeID := c.Param("nodeId")
	entry, found, err := h.reader.TryGet(c.Request().Context(), nodeID)
	if err != nil {
		return err
	}
	if !found {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "node %s is not indexed", nodeID)
	}
	return c.JSON(http.StatusOK, entry)
}
