package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/errors"
)

// dateLayout is the wire format for dates in API payloads.
const dateLayout = "2006-01-02"

// initInstanceRoutes registers the plant instance routes.
func (c *Controller) initInstanceRoutes() {
	c.Group.GET("/plant-instances", c.ListPlantInstances, c.RequireAuth)
	c.Group.POST("/plant-instances", c.CreatePlantInstance, c.RequireAuth)
	c.Group.GET("/plant-instances/:id", c.GetPlantInstance, c.RequireAuth)
	c.Group.PUT("/plant-instances/:id", c.UpdatePlantInstance, c.RequireAuth)
	c.Group.DELETE("/plant-instances/:id", c.DeletePlantInstance, c.RequireAuth)
	c.Group.POST("/plant-instances/:id/care", c.AddCareEvent, c.RequireAuth)
	c.Group.GET("/plant-instances/:id/care", c.GetCareHistory, c.RequireAuth)
}

// InstanceRequest is the payload for creating or updating a plant instance.
type InstanceRequest struct {
	PlantID            uint   `json:"plantId"`
	Nickname           string `json:"nickname"`
	Location           string `json:"location"`
	FertilizerSchedule string `json:"fertilizerSchedule"`
	LastFertilized     string `json:"lastFertilized"` // YYYY-MM-DD, optional
	LastRepot          string `json:"lastRepot"`      // YYYY-MM-DD, optional
	Notes              string `json:"notes"`
	IsActive           *bool  `json:"isActive"`
}

// CareEventRequest is the payload for logging a care event.
type CareEventRequest struct {
	CareType string `json:"careType"`
	CareDate string `json:"careDate"` // YYYY-MM-DD, defaults to today
	Notes    string `json:"notes"`
}

// ListPlantInstances returns the user's instances with filters applied via
// query parameters.
func (c *Controller) ListPlantInstances(ctx echo.Context) error {
	filters := &datastore.InstanceFilters{
		Location:  ctx.QueryParam("location"),
		DateStart: ctx.QueryParam("dateStart"),
		DateEnd:   ctx.QueryParam("dateEnd"),
		SortBy:    ctx.QueryParam("sortBy"),
	}
	switch ctx.QueryParam("status") {
	case "active":
		filters.ActiveOnly = true
	case "inactive":
		filters.InactiveOnly = true
	}
	if ctx.QueryParam("careDue") == "true" {
		filters.OverdueOnly = true
	}
	if plantID, err := strconv.ParseUint(ctx.QueryParam("plantId"), 10, 32); err == nil {
		filters.PlantID = uint(plantID)
	}
	filters.Page, _ = strconv.Atoi(ctx.QueryParam("page"))
	filters.PerPage, _ = strconv.Atoi(ctx.QueryParam("perPage"))

	userID := currentUserID(ctx)
	instances, total, err := c.DS.FilterPlantInstances(userID, filters)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list plant instances", http.StatusInternalServerError)
	}

	facets, err := c.DS.InstanceFacets(userID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute facets", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"results": instances,
		"total":   total,
		"facets":  facets,
	})
}

// CreatePlantInstance adds an instance to the user's collection.
func (c *Controller) CreatePlantInstance(ctx echo.Context) error {
	var req InstanceRequest
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

	instance := datastore.PlantInstance{
		UserID:             currentUserID(ctx),
		PlantID:            req.PlantID,
		Nickname:           strings.TrimSpace(req.Nickname),
		Location:           strings.TrimSpace(req.Location),
		FertilizerSchedule: strings.TrimSpace(req.FertilizerSchedule),
		Notes:              req.Notes,
		IsActive:           true,
	}
	if req.IsActive != nil {
		instance.IsActive = *req.IsActive
	}
	if err := applyInstanceDates(&instance, &req); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	if err := c.DS.CreatePlantInstance(&instance); err != nil {
		return c.HandleError(ctx, err, "Failed to create plant instance", http.StatusInternalServerError)
	}

	c.Search.Invalidate(instance.UserID)
	created, err := c.DS.GetPlantInstance(instance.UserID, instance.ID)
	if err != nil {
		return ctx.JSON(http.StatusCreated, instance)
	}
	return ctx.JSON(http.StatusCreated, created)
}

// GetPlantInstance returns one of the user's instances. Instances of other
// users are reported as not found.
func (c *Controller) GetPlantInstance(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid instance id", http.StatusBadRequest)
	}

	instance, err := c.DS.GetPlantInstance(currentUserID(ctx), id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Plant instance not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get plant instance", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, instance)
}

// UpdatePlantInstance edits one of the user's instances.
func (c *Controller) UpdatePlantInstance(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid instance id", http.StatusBadRequest)
	}

	userID := currentUserID(ctx)
	instance, err := c.DS.GetPlantInstance(userID, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Plant instance not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get plant instance", http.StatusInternalServerError)
	}

	var req InstanceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	if req.PlantID != 0 && req.PlantID != instance.PlantID {
		if _, err := c.DS.GetPlant(req.PlantID); err != nil {
			return c.HandleError(ctx, nil, "Unknown plant id", http.StatusBadRequest)
		}
		instance.PlantID = req.PlantID
	}
	instance.Nickname = strings.TrimSpace(req.Nickname)
	instance.Location = strings.TrimSpace(req.Location)
	instance.FertilizerSchedule = strings.TrimSpace(req.FertilizerSchedule)
	instance.Notes = req.Notes
	if req.IsActive != nil {
		instance.IsActive = *req.IsActive
	}
	if err := applyInstanceDates(&instance, &req); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	if err := c.DS.UpdatePlantInstance(&instance); err != nil {
		return c.HandleError(ctx, err, "Failed to update plant instance", http.StatusInternalServerError)
	}

	c.Search.Invalidate(userID)
	return ctx.JSON(http.StatusOK, instance)
}

// DeletePlantInstance removes one of the user's instances along with its
// care history.
func (c *Controller) DeletePlantInstance(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid instance id", http.StatusBadRequest)
	}

	userID := currentUserID(ctx)
	if err := c.DS.DeletePlantInstance(userID, id); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Plant instance not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete plant instance", http.StatusInternalServerError)
	}

	c.Search.Invalidate(userID)
	return ctx.NoContent(http.StatusNoContent)
}

// AddCareEvent logs a care event. Fertilizer and repot events also advance
// the instance's schedule fields.
func (c *Controller) AddCareEvent(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid instance id", http.StatusBadRequest)
	}

	var req CareEventRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	if !validCareType(req.CareType) {
		return c.HandleError(ctx, nil, "Unknown care type", http.StatusBadRequest)
	}

	careDate := time.Now()
	if req.CareDate != "" {
		careDate, err = time.Parse(dateLayout, req.CareDate)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid care date, expected YYYY-MM-DD", http.StatusBadRequest)
		}
	}

	userID := currentUserID(ctx)
	event := datastore.CareHistory{
		PlantInstanceID: id,
		UserID:          userID,
		CareType:        req.CareType,
		CareDate:        careDate,
		Notes:           req.Notes,
	}
	if err := c.DS.AddCareEvent(&event); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Plant instance not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to record care event", http.StatusInternalServerError)
	}

	c.Search.Invalidate(userID)
	return ctx.JSON(http.StatusCreated, event)
}

// GetCareHistory returns the care events for one of the user's instances,
// newest first.
func (c *Controller) GetCareHistory(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid instance id", http.StatusBadRequest)
	}

	events, err := c.DS.GetCareHistory(currentUserID(ctx), id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Plant instance not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get care history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, events)
}

// applyInstanceDates parses the optional date fields and recomputes the
// fertilizer due date from the schedule.
func applyInstanceDates(instance *datastore.PlantInstance, req *InstanceRequest) error {
	if req.LastFertilized != "" {
		t, err := time.Parse(dateLayout, req.LastFertilized)
		if err != nil {
			return errors.ValidationError("invalid lastFertilized date, expected YYYY-MM-DD")
		}
		instance.LastFertilized = &t
	}
	if req.LastRepot != "" {
		t, err := time.Parse(dateLayout, req.LastRepot)
		if err != nil {
			return errors.ValidationError("invalid lastRepot date, expected YYYY-MM-DD")
		}
		instance.LastRepot = &t
	}

	if instance.LastFertilized != nil && instance.FertilizerSchedule != "" {
		interval, ok := datastore.ParseScheduleInterval(instance.FertilizerSchedule)
		if !ok {
			return errors.ValidationError("unrecognized fertilizer schedule")
		}
		due := instance.LastFertilized.Add(interval)
		instance.FertilizerDue = &due
	}
	return nil
}

func validCareType(careType string) bool {
	switch careType {
	case datastore.CareFertilizer, datastore.CareWater, datastore.CareRepot,
		datastore.CarePrune, datastore.CareInspect:
		return true
	}
	return false
}
