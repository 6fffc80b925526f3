package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/errors"
)

// initPlantRoutes registers the shared plant taxonomy routes.
func (c *Controller) initPlantRoutes() {
	c.Group.GET("/plants", c.ListPlants, c.RequireAuth)
	c.Group.POST("/plants", c.CreatePlant, c.RequireAuth)
	c.Group.GET("/plants/:id", c.GetPlant, c.RequireAuth)
	c.Group.PUT("/plants/:id", c.UpdatePlant, c.RequireAuth)
	c.Group.DELETE("/plants/:id", c.DeletePlant, c.RequireAuth, c.RequireCurator)
}

// PlantRequest is the payload for creating or updating a taxonomy entry.
type PlantRequest struct {
	Family     string `json:"family"`
	Genus      string `json:"genus"`
	Species    string `json:"species"`
	Cultivar   string `json:"cultivar"`
	CommonName string `json:"commonName"`
	CareGuide  string `json:"careGuide"`
	IsVerified bool   `json:"isVerified"`
}

// PlantResponse is one taxonomy entry with its derived botanical name.
type PlantResponse struct {
	datastore.Plant
	BotanicalName string `json:"botanicalName"`
}

func plantResponse(p datastore.Plant) PlantResponse {
	return PlantResponse{Plant: p, BotanicalName: p.BotanicalName()}
}

// ListPlants returns taxonomy entries, paged.
func (c *Controller) ListPlants(ctx echo.Context) error {
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(ctx.QueryParam("perPage"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	plants, total, err := c.DS.ListPlants((page-1)*perPage, perPage)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list plants", http.StatusInternalServerError)
	}

	results := make([]PlantResponse, 0, len(plants))
	for _, p := range plants {
		results = append(results, plantResponse(p))
	}

	pages := (int(total) + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"results":     results,
		"total":       total,
		"pages":       pages,
		"currentPage": page,
	})
}

// CreatePlant adds a taxonomy entry. Entries created by regular users stay
// unverified until a curator reviews them.
func (c *Controller) CreatePlant(ctx echo.Context) error {
	var req PlantRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if err := validatePlantRequest(&req); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	role, _ := ctx.Get(ctxUserRole).(string)
	plant := datastore.Plant{
		Family:     strings.TrimSpace(req.Family),
		Genus:      strings.TrimSpace(req.Genus),
		Species:    strings.TrimSpace(req.Species),
		Cultivar:   strings.TrimSpace(req.Cultivar),
		CommonName: strings.TrimSpace(req.CommonName),
		CareGuide:  req.CareGuide,
		IsVerified: req.IsVerified && role == datastore.RoleCurator,
		CreatedBy:  currentUserID(ctx),
	}

	if existing, err := c.DS.FindPlant(plant.Family, plant.Genus, plant.Species, plant.Cultivar); err == nil {
		return c.HandleError(ctx, nil,
			"Taxonomy entry already exists as "+existing.BotanicalName(), http.StatusConflict)
	}

	if err := c.DS.CreatePlant(&plant); err != nil {
		return c.HandleError(ctx, err, "Failed to create plant", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, plantResponse(plant))
}

// GetPlant returns one taxonomy entry.
func (c *Controller) GetPlant(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid plant id", http.StatusBadRequest)
	}

	plant, err := c.DS.GetPlant(id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Plant not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get plant", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, plantResponse(plant))
}

// UpdatePlant edits a taxonomy entry. Verified entries are shared data and
// may only be changed by curators; unverified entries may also be edited by
// their creator.
func (c *Controller) UpdatePlant(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid plant id", http.StatusBadRequest)
	}

	plant, err := c.DS.GetPlant(id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Plant not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get plant", http.StatusInternalServerError)
	}

	role, _ := ctx.Get(ctxUserRole).(string)
	isCurator := role == datastore.RoleCurator
	if plant.IsVerified && !isCurator {
		return c.HandleError(ctx, nil, "Verified taxonomy entries can only be edited by curators", http.StatusForbidden)
	}
	if !plant.IsVerified && !isCurator && plant.CreatedBy != currentUserID(ctx) {
		return c.HandleError(ctx, nil, "Only the creator or a curator can edit this entry", http.StatusForbidden)
	}

	var req PlantRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if err := validatePlantRequest(&req); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	plant.Family = strings.TrimSpace(req.Family)
	plant.Genus = strings.TrimSpace(req.Genus)
	plant.Species = strings.TrimSpace(req.Species)
	plant.Cultivar = strings.TrimSpace(req.Cultivar)
	plant.CommonName = strings.TrimSpace(req.CommonName)
	plant.CareGuide = req.CareGuide
	if isCurator {
		plant.IsVerified = req.IsVerified
	}

	if err := c.DS.UpdatePlant(&plant); err != nil {
		return c.HandleError(ctx, err, "Failed to update plant", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, plantResponse(plant))
}

// DeletePlant removes a taxonomy entry. Entries referenced by any instance
// or propagation are protected.
func (c *Controller) DeletePlant(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid plant id", http.StatusBadRequest)
	}

	if err := c.DS.DeletePlant(id); err != nil {
		switch {
		case errors.IsNotFound(err):
			return c.HandleError(ctx, nil, "Plant not found", http.StatusNotFound)
		case errors.Is(err, datastore.ErrPlantInUse):
			return c.HandleError(ctx, nil, "Plant is referenced by existing instances or propagations", http.StatusConflict)
		default:
			return c.HandleError(ctx, err, "Failed to delete plant", http.StatusInternalServerError)
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func validatePlantRequest(req *PlantRequest) error {
	if strings.TrimSpace(req.Family) == "" ||
		strings.TrimSpace(req.Genus) == "" ||
		strings.TrimSpace(req.Species) == "" {
		return errors.ValidationError("family, genus and species are required")
	}
	return nil
}

// parseID parses the :id route parameter.
func parseID(ctx echo.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
