package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/errors"
	"github.com/fancyplanties/fancy-planties/internal/search"
)

// initSearchRoutes registers the search-related routes.
func (c *Controller) initSearchRoutes() {
	c.Group.POST("/search", c.HandleSearch, c.RequireAuth)
	c.Group.GET("/search/history", c.SearchHistory, c.RequireAuth)
	c.Group.GET("/search/presets", c.ListSearchPresets, c.RequireAuth)
	c.Group.POST("/search/presets", c.SaveSearchPreset, c.RequireAuth)
	c.Group.DELETE("/search/presets/:id", c.DeleteSearchPreset, c.RequireAuth)
}

// PresetRequest is the payload for saving a search preset.
type PresetRequest struct {
	Name    string         `json:"name"`
	Filters search.Request `json:"filters"`
}

// HandleSearch processes search requests.
func (c *Controller) HandleSearch(ctx echo.Context) error {
	var req search.Request
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	resp, err := c.Search.Search(currentUserID(ctx), &req)
	if err != nil {
		return c.HandleError(ctx, err, "Search failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, resp)
}

// SearchHistory returns the user's recent queries, most recent first.
func (c *Controller) SearchHistory(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"queries": c.Search.History(currentUserID(ctx)),
	})
}

// ListSearchPresets returns the user's saved presets with decoded filters.
func (c *Controller) ListSearchPresets(ctx echo.Context) error {
	presets, err := c.DS.ListSearchPresets(currentUserID(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list presets", http.StatusInternalServerError)
	}

	results := make([]map[string]any, 0, len(presets))
	for i := range presets {
		var filters search.Request
		_ = json.Unmarshal([]byte(presets[i].Filters), &filters)
		results = append(results, map[string]any{
			"id":      presets[i].ID,
			"name":    presets[i].Name,
			"filters": filters,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"results": results})
}

// SaveSearchPreset creates or replaces a named preset for the user.
func (c *Controller) SaveSearchPreset(ctx echo.Context) error {
	var req PresetRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.HandleError(ctx, nil, "Preset name is required", http.StatusBadRequest)
	}

	filters, err := json.Marshal(req.Filters)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid preset filters", http.StatusBadRequest)
	}

	preset := datastore.SearchPreset{
		UserID:  currentUserID(ctx),
		Name:    req.Name,
		Filters: string(filters),
	}
	if err := c.DS.SaveSearchPreset(&preset); err != nil {
		return c.HandleError(ctx, err, "Failed to save preset", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, map[string]any{
		"id":   preset.ID,
		"name": preset.Name,
	})
}

// DeleteSearchPreset removes one of the user's presets.
func (c *Controller) DeleteSearchPreset(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid preset id", http.StatusBadRequest)
	}

	if err := c.DS.DeleteSearchPreset(currentUserID(ctx), id); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Preset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete preset", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}
