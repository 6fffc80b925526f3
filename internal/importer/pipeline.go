package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/errors"
	"github.com/fancyplanties/fancy-planties/internal/logging"
	"github.com/fancyplanties/fancy-planties/internal/observability/metrics"
)

// contextCheckInterval is how often (in rows) the pipeline checks for
// cancellation. Per-row checks would be wasteful for large files.
const contextCheckInterval = 100

// Notifier delivers an out-of-band message when an import finishes. The
// notification package satisfies this; a nil Notifier disables dispatch.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// RowError describes why a single CSV row was rejected. Row errors never
// abort the import; they are collected into the summary.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Summary reports the outcome of one import run.
type Summary struct {
	ImportID   uint       `json:"import_id"`
	ImportType string     `json:"import_type"`
	TotalRows  int        `json:"total_rows"`
	Imported   int        `json:"imported"`
	Skipped    int        `json:"skipped"`
	Errors     []RowError `json:"errors,omitempty"`
}

// Importer runs CSV imports against the datastore.
type Importer struct {
	ds       datastore.Interface
	settings *conf.Settings
	notifier Notifier
	metrics  *metrics.ImporterMetrics
	logger   *slog.Logger
}

// New creates an importer. notifier may be nil.
func New(ds datastore.Interface, settings *conf.Settings, notifier Notifier) *Importer {
	return &Importer{
		ds:       ds,
		settings: settings,
		notifier: notifier,
		logger:   logging.ForService("importer"),
	}
}

// SetMetrics attaches import metrics. A nil field disables recording.
func (im *Importer) SetMetrics(m *metrics.ImporterMetrics) {
	im.metrics = m
}

// Start launches an import in the background and returns the tracking record
// immediately. Progress is queryable through the datastore import record.
func (im *Importer) Start(ctx context.Context, userID uint, importType, fileName, content string) (datastore.ImportRecord, error) {
	record, err := im.createRecord(userID, importType, fileName)
	if err != nil {
		return datastore.ImportRecord{}, err
	}

	go func() {
		if _, err := im.process(ctx, &record, content); err != nil {
			if im.logger != nil {
				im.logger.Error("Import failed", "import_id", record.ID, "error", err)
			}
		}
	}()

	return record, nil
}

// Run executes an import synchronously and returns the summary. Used by the
// CLI and by tests.
func (im *Importer) Run(ctx context.Context, userID uint, importType, fileName, content string) (*Summary, error) {
	record, err := im.createRecord(userID, importType, fileName)
	if err != nil {
		return nil, err
	}
	return im.process(ctx, &record, content)
}

func (im *Importer) createRecord(userID uint, importType, fileName string) (datastore.ImportRecord, error) {
	if _, err := SchemaFor(importType); err != nil {
		return datastore.ImportRecord{}, errors.New(err).
			Category(errors.CategoryValidation).
			Component("importer").
			Build()
	}

	record := datastore.ImportRecord{
		UserID:     userID,
		ImportType: importType,
		FileName:   fileName,
		Status:     datastore.ImportPending,
	}
	if err := im.ds.CreateImportRecord(&record); err != nil {
		return datastore.ImportRecord{}, err
	}
	return record, nil
}

// process parses and applies the CSV content, keeping the import record
// up to date. A failed row is recorded and skipped, never fatal; only
// malformed files and cancellation abort the run.
func (im *Importer) process(ctx context.Context, record *datastore.ImportRecord, content string) (*Summary, error) {
	record.Status = datastore.ImportProcessing
	if err := im.ds.UpdateImportRecord(record); err != nil {
		return nil, err
	}

	summary := &Summary{ImportID: record.ID, ImportType: record.ImportType}

	start := time.Now()
	defer func() {
		if im.metrics != nil {
			im.metrics.RecordImport(record.ImportType, record.Status,
				summary.Imported, summary.Skipped, time.Since(start))
		}
	}()

	rows, err := readRows(strings.NewReader(content))
	if err != nil {
		return summary, im.fail(record, summary, errors.New(err).
			Category(errors.CategoryImport).
			Component("importer").
			Context("file", record.FileName).
			Build())
	}

	specs, _ := SchemaFor(record.ImportType) // validated in createRecord

	headerIdx, headerLine, err := findHeader(rows, specs)
	if err != nil {
		return summary, im.fail(record, summary, errors.New(err).
			Category(errors.CategoryImport).
			Component("importer").
			Build())
	}

	dataRows := rows[headerLine+1:]
	if len(dataRows) > im.maxRows() {
		return summary, im.fail(record, summary, errors.Newf("file has %d rows, limit is %d",
			len(dataRows), im.maxRows()).
			Category(errors.CategoryImport).
			Component("importer").
			Build())
	}

	for i, row := range dataRows {
		// CSV line number, 1-indexed including the header offset
		line := headerLine + i + 2

		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return summary, im.fail(record, summary, fmt.Errorf("import cancelled at line %d: %w", line, err))
			}
		}

		if isEmptyRow(row) {
			continue
		}
		summary.TotalRows++

		values, rowErr := validateRow(row, headerIdx, specs, line)
		if rowErr != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, *rowErr)
			continue
		}

		if rowErr := im.applyRow(record.UserID, record.ImportType, values, line); rowErr != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, *rowErr)
			continue
		}
		summary.Imported++
	}

	record.Status = datastore.ImportCompleted
	record.TotalRows = summary.TotalRows
	record.ImportedRows = summary.Imported
	record.SkippedRows = summary.Skipped
	record.RowErrors = encodeRowErrors(summary.Errors)
	if err := im.ds.UpdateImportRecord(record); err != nil {
		return summary, err
	}

	if im.logger != nil {
		im.logger.Info("Import completed",
			"import_id", record.ID,
			"type", record.ImportType,
			"imported", summary.Imported,
			"skipped", summary.Skipped,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	im.notify(ctx, record, summary)
	return summary, nil
}

// fail marks the import record failed and returns the original error.
func (im *Importer) fail(record *datastore.ImportRecord, summary *Summary, cause error) error {
	record.Status = datastore.ImportFailed
	record.TotalRows = summary.TotalRows
	record.ImportedRows = summary.Imported
	record.SkippedRows = summary.Skipped
	record.RowErrors = encodeRowErrors(append(summary.Errors, RowError{Message: cause.Error()}))
	if err := im.ds.UpdateImportRecord(record); err != nil && im.logger != nil {
		im.logger.Error("Failed to persist import failure", "import_id", record.ID, "error", err)
	}
	return cause
}

func (im *Importer) notify(ctx context.Context, record *datastore.ImportRecord, summary *Summary) {
	if im.notifier == nil || !im.settings.Import.Notify {
		return
	}
	title := fmt.Sprintf("Import %q finished", record.FileName)
	message := fmt.Sprintf("%s: %d imported, %d skipped of %d rows",
		record.ImportType, summary.Imported, summary.Skipped, summary.TotalRows)
	if err := im.notifier.Send(ctx, title, message); err != nil && im.logger != nil {
		im.logger.Warn("Import notification failed", "import_id", record.ID, "error", err)
	}
}

func (im *Importer) maxRows() int {
	if im.settings.Import.MaxRows > 0 {
		return im.settings.Import.MaxRows
	}
	return 10000
}

// applyRow inserts one validated row. Database failures come back as row
// errors so a bad row cannot abort the file.
func (im *Importer) applyRow(userID uint, importType string, values map[string]string, line int) *RowError {
	plant := datastore.Plant{
		Family:     values["Family"],
		Genus:      values["Genus"],
		Species:    values["Species"],
		Cultivar:   values["Cultivar"],
		CommonName: values["Common Name"],
		CreatedBy:  userID,
	}

	switch importType {
	case datastore.ImportTypeTaxonomy:
		plant.CareGuide = values["Care Guide"]
		existing, created, err := im.ds.ResolveOrCreatePlant(&plant)
		if err != nil {
			return &RowError{Line: line, Message: "db error: " + err.Error()}
		}
		if !created {
			return &RowError{Line: line, Message: fmt.Sprintf("taxonomy entry already exists as %q (id %d)",
				existing.BotanicalName(), existing.ID)}
		}
		return nil

	case datastore.ImportTypeInstances:
		resolved, _, err := im.ds.ResolveOrCreatePlant(&plant)
		if err != nil {
			return &RowError{Line: line, Message: "db error: " + err.Error()}
		}

		instance := datastore.PlantInstance{
			UserID:             userID,
			PlantID:            resolved.ID,
			Nickname:           values["Nickname"],
			Location:           values["Location"],
			FertilizerSchedule: values["Fertilizer Schedule"],
			Notes:              values["Notes"],
			IsActive:           true,
		}
		if v := values["Last Fertilized"]; v != "" {
			t, _ := parseDate(v) // validated earlier
			instance.LastFertilized = &t
			if interval, ok := datastore.ParseScheduleInterval(instance.FertilizerSchedule); ok {
				due := t.Add(interval)
				instance.FertilizerDue = &due
			}
		}
		if v := values["Last Repot"]; v != "" {
			t, _ := parseDate(v)
			instance.LastRepot = &t
		}
		if v := values["Is Active"]; v != "" {
			active, _ := parseBool(v)
			instance.IsActive = active
		}

		if err := im.ds.CreatePlantInstance(&instance); err != nil {
			return &RowError{Line: line, Message: "db error: " + err.Error()}
		}
		return nil

	case datastore.ImportTypePropagations:
		resolved, _, err := im.ds.ResolveOrCreatePlant(&plant)
		if err != nil {
			return &RowError{Line: line, Message: "db error: " + err.Error()}
		}

		prop := datastore.Propagation{
			UserID:         userID,
			PlantID:        resolved.ID,
			Nickname:       values["Nickname"],
			Location:       values["Location"],
			Status:         values["Status"],
			Source:         values["Source"],
			ExternalSource: values["External Source"],
			Notes:          values["Notes"],
			IsActive:       true,
		}
		if v := values["Date Started"]; v != "" {
			t, _ := parseDate(v)
			prop.DateStarted = t
		}

		if err := im.ds.CreatePropagation(&prop); err != nil {
			return &RowError{Line: line, Message: "db error: " + err.Error()}
		}
		return nil
	}

	return &RowError{Line: line, Message: fmt.Sprintf("unknown import type %q", importType)}
}

// readRows parses CSV content. Ragged rows are tolerated here and length
// checked per row during validation.
func readRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true // spreadsheet exports embed ="..." cells

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty csv file")
	}
	return rows, nil
}

// findHeader locates the header row: the first row containing every required
// column for the import type. Returns the column index and the row number.
func findHeader(rows [][]string, specs []FieldSpec) (map[string]int, int, error) {
	required := requiredColumns(specs)

	for rowNum, row := range rows {
		idx := make(map[string]int, len(row))
		for i, cell := range row {
			idx[cleanHeader(cell)] = i
		}

		found := 0
		for _, name := range required {
			if _, ok := idx[name]; ok {
				found++
			}
		}
		if found == len(required) {
			return idx, rowNum, nil
		}
	}

	return nil, 0, fmt.Errorf("no header row found with required columns: %s", strings.Join(required, ", "))
}

// validateRow checks one data row against the specs and returns canonical
// column name to cleaned value, or a row error.
func validateRow(row []string, headerIdx map[string]int, specs []FieldSpec, line int) (map[string]string, *RowError) {
	values := make(map[string]string, len(specs))

	for _, spec := range specs {
		pos, ok := headerIdx[strings.ToLower(spec.Name)]
		if !ok || pos >= len(row) {
			if spec.Required {
				return nil, &RowError{Line: line, Field: spec.Name, Message: "missing required column"}
			}
			continue
		}

		raw := cleanCell(row[pos])
		if raw == "" {
			if spec.Required {
				return nil, &RowError{Line: line, Field: spec.Name, Message: "empty required field"}
			}
			values[spec.Name] = ""
			continue
		}

		switch spec.Kind {
		case FieldDate:
			if _, err := parseDate(raw); err != nil {
				return nil, &RowError{Line: line, Field: spec.Name, Message: err.Error()}
			}
		case FieldBool:
			if _, err := parseBool(raw); err != nil {
				return nil, &RowError{Line: line, Field: spec.Name, Message: err.Error()}
			}
		case FieldEnum:
			canonical, err := matchEnum(raw, spec.EnumValues)
			if err != nil {
				return nil, &RowError{Line: line, Field: spec.Name, Message: err.Error()}
			}
			raw = canonical
		case FieldText:
			// no-op
		}

		values[spec.Name] = raw
	}

	return values, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func encodeRowErrors(rowErrors []RowError) string {
	if len(rowErrors) == 0 {
		return ""
	}
	data, err := json.Marshal(rowErrors)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeRowErrors parses the JSON error list stored on an import record.
func DecodeRowErrors(encoded string) []RowError {
	if encoded == "" {
		return nil
	}
	var rowErrors []RowError
	if err := json.Unmarshal([]byte(encoded), &rowErrors); err != nil {
		return nil
	}
	return rowErrors
}
