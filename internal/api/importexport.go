package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/errors"
	"github.com/fancyplanties/fancy-planties/internal/importer"
)

// initImportRoutes registers the CSV import and export routes.
func (c *Controller) initImportRoutes() {
	c.Group.POST("/import/csv", c.ImportCSV, c.RequireAuth)
	c.Group.GET("/import/csv", c.ListImports, c.RequireAuth)
	c.Group.GET("/import/csv/:id", c.GetImport, c.RequireAuth)
	c.Group.GET("/export/csv", c.ExportCSV, c.RequireAuth)
}

// ImportCSV accepts a CSV file (multipart field "file") or a raw body and
// starts a background import. The response carries the import id for
// progress polling.
func (c *Controller) ImportCSV(ctx echo.Context) error {
	importType := ctx.QueryParam("type")
	if importType == "" {
		importType = ctx.FormValue("type")
	}

	fileName := "upload.csv"
	var content []byte

	if file, err := ctx.FormFile("file"); err == nil {
		if c.maxImportSize() > 0 && file.Size > c.maxImportSize() {
			return c.HandleError(ctx, nil,
				fmt.Sprintf("File exceeds the %d byte limit", c.maxImportSize()), http.StatusRequestEntityTooLarge)
		}
		src, err := file.Open()
		if err != nil {
			return c.HandleError(ctx, err, "Failed to read uploaded file", http.StatusBadRequest)
		}
		defer func() { _ = src.Close() }()

		content, err = io.ReadAll(io.LimitReader(src, c.maxImportSize()+1))
		if err != nil {
			return c.HandleError(ctx, err, "Failed to read uploaded file", http.StatusBadRequest)
		}
		fileName = file.Filename
	} else {
		body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, c.maxImportSize()+1))
		if err != nil {
			return c.HandleError(ctx, err, "Failed to read request body", http.StatusBadRequest)
		}
		content = body
	}

	if len(content) == 0 {
		return c.HandleError(ctx, nil, "No CSV content provided", http.StatusBadRequest)
	}
	if c.maxImportSize() > 0 && int64(len(content)) > c.maxImportSize() {
		return c.HandleError(ctx, nil,
			fmt.Sprintf("File exceeds the %d byte limit", c.maxImportSize()), http.StatusRequestEntityTooLarge)
	}

	// The request context ends with the response; the background import gets
	// its own
	record, err := c.Importer.Start(context.Background(), currentUserID(ctx), importType, fileName, string(content))
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return c.HandleError(ctx, err, "Unknown import type", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to start import", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusAccepted, importStatus(record))
}

// ListImports returns the user's recent imports, newest first.
func (c *Controller) ListImports(ctx echo.Context) error {
	records, err := c.DS.ListImportRecords(currentUserID(ctx), 50)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list imports", http.StatusInternalServerError)
	}

	results := make([]map[string]any, 0, len(records))
	for i := range records {
		results = append(results, importStatus(records[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{"results": results})
}

// GetImport returns the progress and summary of one import.
func (c *Controller) GetImport(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid import id", http.StatusBadRequest)
	}

	record, err := c.DS.GetImportRecord(currentUserID(ctx), id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Import not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get import", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, importStatus(record))
}

// ExportCSV streams the user's data for the requested type as a CSV file.
func (c *Controller) ExportCSV(ctx echo.Context) error {
	exportType := ctx.QueryParam("type")
	if _, err := importer.SchemaFor(exportType); err != nil {
		return c.HandleError(ctx, err, "Unknown export type", http.StatusBadRequest)
	}

	fileName := fmt.Sprintf("%s-%s.csv", exportType, time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "text/csv")
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, fileName))
	ctx.Response().WriteHeader(http.StatusOK)

	if err := c.Importer.Export(ctx.Response(), currentUserID(ctx), exportType); err != nil {
		// Headers are already sent; log instead of switching to a JSON error
		c.logger.Printf("CSV export failed: %v", err)
		return err
	}
	return nil
}

func (c *Controller) maxImportSize() int64 {
	if c.Settings.Import.MaxFileSize > 0 {
		return int64(c.Settings.Import.MaxFileSize)
	}
	return 5 << 20
}

// importStatus shapes an import record for API responses, decoding the
// stored row errors.
func importStatus(record datastore.ImportRecord) map[string]any {
	return map[string]any{
		"id":           record.ID,
		"importType":   record.ImportType,
		"fileName":     record.FileName,
		"status":       record.Status,
		"totalRows":    record.TotalRows,
		"importedRows": record.ImportedRows,
		"skippedRows":  record.SkippedRows,
		"errors":       importer.DecodeRowErrors(record.RowErrors),
		"createdAt":    record.CreatedAt,
		"updatedAt":    record.UpdatedAt,
	}
}
