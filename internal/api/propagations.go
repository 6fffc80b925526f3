package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/errors"
)

// initPropagationRoutes registers the propagation routes.
func (c *Controller) initPropagationRoutes() {
	c.Group.GET("/propagations", c.ListPropagations, c.RequireAuth)
	c.Group.POST("/propagations", c.CreatePropagation, c.RequireAuth)
	c.Group.GET("/propagations/:id", c.GetPropagation, c.RequireAuth)
	c.Group.PUT("/propagations/:id", c.UpdatePropagation, c.RequireAuth)
	c.Group.DELETE("/propagations/:id", c.DeletePropagation, c.RequireAuth)
	c.Group.POST("/propagations/:id/promote", c.PromotePropagation, c.RequireAuth)
}

// PropagationRequest is the payload for creating or updating a propagation.
type PropagationRequest struct {
	PlantID          uint   `json:"plantId"`
	ParentInstanceID *uint  `json:"parentInstanceId"`
	Nickname         string `json:"nickname"`
	Location         string `json:"location"`
	DateStarted      string `json:"dateStarted"` // YYYY-MM-DD
	Status           string `json:"status"`
	Source           string `json:"source"`
	ExternalSource   string `json:"externalSource"`
	Notes            string `json:"notes"`
	IsActive         *bool  `json:"isActive"`
}

// PromoteRequest optionally overrides fields on the instance created from
// an established propagation.
type PromoteRequest struct {
	Nickname           string `json:"nickname"`
	Location           string `json:"location"`
	FertilizerSchedule string `json:"fertilizerSchedule"`
	Notes              string `json:"notes"`
}

// ListPropagations returns the user's propagations, newest first.
func (c *Controller) ListPropagations(ctx echo.Context) error {
	activeOnly := ctx.QueryParam("status") == "active"
	props, err := c.DS.ListPropagations(currentUserID(ctx), activeOnly)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list propagations", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"results": props, "total": len(props)})
}

// CreatePropagation starts tracking a cutting or seedling.
func (c *Controller) CreatePropagation(ctx echo.Context) error {
	var req PropagationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if req.PlantID == 0 {
		return c.HandleError(ctx, nil, "plantId is required", http.StatusBadRequest)
	}
	if _, err := c.DS.GetPlant(req.PlantID); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Unknown plant id", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to look up plant", http.StatusInternalServerError)
	}
	if req.Status != "" && !validPropagationStatus(req.Status) {
		return c.HandleError(ctx, nil, "Unknown propagation status", http.StatusBadRequest)
	}

	userID := currentUserID(ctx)

	// An internal propagation must reference one of the user's own instances
	if req.ParentInstanceID != nil {
		if _, err := c.DS.GetPlantInstance(userID, *req.ParentInstanceID); err != nil {
			if errors.IsNotFound(err) {
				return c.HandleError(ctx, nil, "Unknown parent instance id", http.StatusBadRequest)
			}
			return c.HandleError(ctx, err, "Failed to look up parent instance", http.StatusInternalServerError)
		}
	}

	dateStarted := time.Now()
	if req.DateStarted != "" {
		var err error
		dateStarted, err = time.Parse(dateLayout, req.DateStarted)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid dateStarted, expected YYYY-MM-DD", http.StatusBadRequest)
		}
	}

	prop := datastore.Propagation{
		UserID:           userID,
		PlantID:          req.PlantID,
		ParentInstanceID: req.ParentInstanceID,
		Nickname:         strings.TrimSpace(req.Nickname),
		Location:         strings.TrimSpace(req.Location),
		DateStarted:      dateStarted,
		Status:           req.Status,
		Source:           req.Source,
		ExternalSource:   strings.TrimSpace(req.ExternalSource),
		Notes:            req.Notes,
		IsActive:         true,
	}
	if err := c.DS.CreatePropagation(&prop); err != nil {
		return c.HandleError(ctx, err, "Failed to create propagation", http.StatusInternalServerError)
	}

	c.Search.Invalidate(userID)
	return ctx.JSON(http.StatusCreated, prop)
}

// GetPropagation returns one of the user's propagations.
func (c *Controller) GetPropagation(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid propagation id", http.StatusBadRequest)
	}

	prop, err := c.DS.GetPropagation(currentUserID(ctx), id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Propagation not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get propagation", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, prop)
}

// UpdatePropagation edits one of the user's propagations.
func (c *Controller) UpdatePropagation(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid propagation id", http.StatusBadRequest)
	}

	userID := currentUserID(ctx)
	prop, err := c.DS.GetPropagation(userID, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Propagation not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get propagation", http.StatusInternalServerError)
	}

	var req PropagationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if req.Status != "" {
		if !validPropagationStatus(req.Status) {
			return c.HandleError(ctx, nil, "Unknown propagation status", http.StatusBadRequest)
		}
		prop.Status = req.Status
	}
	if req.DateStarted != "" {
		dateStarted, err := time.Parse(dateLayout, req.DateStarted)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid dateStarted, expected YYYY-MM-DD", http.StatusBadRequest)
		}
		prop.DateStarted = dateStarted
	}
	prop.Nickname = strings.TrimSpace(req.Nickname)
	prop.Location = strings.TrimSpace(req.Location)
	prop.ExternalSource = strings.TrimSpace(req.ExternalSource)
	prop.Notes = req.Notes
	if req.IsActive != nil {
		prop.IsActive = *req.IsActive
	}

	if err := c.DS.UpdatePropagation(&prop); err != nil {
		return c.HandleError(ctx, err, "Failed to update propagation", http.StatusInternalServerError)
	}

	c.Search.Invalidate(userID)
	return ctx.JSON(http.StatusOK, prop)
}

// DeletePropagation removes one of the user's propagations.
func (c *Controller) DeletePropagation(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid propagation id", http.StatusBadRequest)
	}

	userID := currentUserID(ctx)
	if err := c.DS.DeletePropagation(userID, id); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Propagation not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete propagation", http.StatusInternalServerError)
	}

	c.Search.Invalidate(userID)
	return ctx.NoContent(http.StatusNoContent)
}

// PromotePropagation converts an established propagation into a plant
// instance and deactivates the propagation.
func (c *Controller) PromotePropagation(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid propagation id", http.StatusBadRequest)
	}

	var req PromoteRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	userID := currentUserID(ctx)
	instance := datastore.PlantInstance{
		Nickname:           strings.TrimSpace(req.Nickname),
		Location:           strings.TrimSpace(req.Location),
		FertilizerSchedule: strings.TrimSpace(req.FertilizerSchedule),
		Notes:              req.Notes,
	}

	if err := c.DS.PromotePropagation(userID, id, &instance); err != nil {
		switch {
		case errors.IsNotFound(err):
			return c.HandleError(ctx, nil, "Propagation not found", http.StatusNotFound)
		default:
			return c.HandleError(ctx, err, "Propagation cannot be promoted", http.StatusConflict)
		}
	}

	c.Search.Invalidate(userID)
	created, err := c.DS.GetPlantInstance(userID, instance.ID)
	if err != nil {
		return ctx.JSON(http.StatusCreated, instance)
	}
	return ctx.JSON(http.StatusCreated, created)
}

func validPropagationStatus(status string) bool {
	switch status {
	case datastore.PropagationStarted, datastore.PropagationRooting,
		datastore.PropagationPlanted, datastore.PropagationEstablished:
		return true
	}
	return false
}
