package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/errors"
	"github.com/fancyplanties/fancy-planties/internal/imagestore"
)

// initImageRoutes registers the presigned image URL routes. Routes exist
// even when image storage is disabled; requests then return 503.
func (c *Controller) initImageRoutes() {
	c.Group.POST("/images/upload-url", c.ImageUploadURL, c.RequireAuth)
	c.Group.GET("/images/download-url", c.ImageDownloadURL, c.RequireAuth)
}

// ImageUploadURL issues a presigned upload URL for a new plant photo.
func (c *Controller) ImageUploadURL(ctx echo.Context) error {
	if c.Images == nil || !c.Images.Enabled() {
		return c.HandleError(ctx, nil, "Image storage is not configured", http.StatusServiceUnavailable)
	}

	var req imagestore.UploadRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	grant, err := c.Images.UploadURL(ctx.Request().Context(), currentUserID(ctx), &req)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return c.HandleError(ctx, err, "Invalid upload request", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to create upload URL", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, grant)
}

// ImageDownloadURL issues a presigned download URL for an image key owned
// by the requesting user.
func (c *Controller) ImageDownloadURL(ctx echo.Context) error {
	if c.Images == nil || !c.Images.Enabled() {
		return c.HandleError(ctx, nil, "Image storage is not configured", http.StatusServiceUnavailable)
	}

	key := ctx.QueryParam("key")
	grant, err := c.Images.DownloadURL(ctx.Request().Context(), currentUserID(ctx), key)
	if err != nil {
		switch {
		case errors.IsCategory(err, errors.CategoryForbidden):
			return c.HandleError(ctx, nil, "Image key does not belong to this account", http.StatusForbidden)
		case errors.IsCategory(err, errors.CategoryValidation):
			return c.HandleError(ctx, err, "Invalid image key", http.StatusBadRequest)
		default:
			return c.HandleError(ctx, err, "Failed to create download URL", http.StatusInternalServerError)
		}
	}
	return ctx.JSON(http.StatusOK, grant)
}
