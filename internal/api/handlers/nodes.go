package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"lmp-gridmap/internal/api/models"
	"lmp-gridmap/internal/model"
)

// NodeService is the part of pricemap.Service the node handlers use.
type NodeService interface {
	Nodes(ctx context.Context, market string) ([]model.Node, error)
	Refresh(ctx context.Context, market string) (int, error)
}

// NodeHandler handles node listing and grid rebuilds
type NodeHandler struct {
	svc           NodeService
	defaultMarket string
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(svc NodeService, defaultMarket string) *NodeHandler {
	return &NodeHandler{svc: svc, defaultMarket: defaultMarket}
}

// ListNodes handles GET /api/v1/nodes
func (h *NodeHandler) ListNodes(c *gin.Context) {
	var q models.NodesRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	nodes, err := h.svc.Nodes(c.Request.Context(), q.Market)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NodesResponse{Market: q.Market, Count: len(nodes), Nodes: nodes})
}

// RefreshGrid handles POST /api/v1/grid/refresh
func (h *NodeHandler) RefreshGrid(c *gin.Context) {
	var q models.RefreshRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	market := orDefault(q.Market, h.defaultMarket)

	cells, err := h.svc.Refresh(c.Request.Context(), market)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.RefreshResponse{Status: "rebuilt", Market: market, Cells: cells})
}
