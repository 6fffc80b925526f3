package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
)

// exportDateLayout is the unambiguous layout used for all exported dates.
// The import pipeline accepts it back without a pivot.
const exportDateLayout = "2006-01-02"

// Export writes the user's data for the given import type as CSV. The output
// round-trips through the import pipeline.
func (im *Importer) Export(w io.Writer, userID uint, importType string) error {
	header, err := HeaderFor(importType)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	switch importType {
	case datastore.ImportTypeTaxonomy:
		err = im.exportTaxonomy(cw)
	case datastore.ImportTypeInstances:
		err = im.exportInstances(cw, userID)
	case datastore.ImportTypePropagations:
		err = im.exportPropagations(cw, userID)
	}
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func (im *Importer) exportTaxonomy(cw *csv.Writer) error {
	plants, err := im.ds.AllPlants()
	if err != nil {
		return err
	}
	for i := range plants {
		p := &plants[i]
		row := []string{p.Family, p.Genus, p.Species, p.Cultivar, p.CommonName, p.CareGuide}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	return nil
}

// exportPageSize bounds one datastore page while streaming an export.
const exportPageSize = 500

func (im *Importer) exportInstances(cw *csv.Writer, userID uint) error {
	filters := &datastore.InstanceFilters{PerPage: exportPageSize}
	for page := 1; ; page++ {
		filters.Page = page
		instances, total, err := im.ds.FilterPlantInstances(userID, filters)
		if err != nil {
			return err
		}
		for i := range instances {
			inst := &instances[i]
			row := []string{
				inst.Plant.Family,
				inst.Plant.Genus,
				inst.Plant.Species,
				inst.Plant.Cultivar,
				inst.Plant.CommonName,
				inst.Nickname,
				inst.Location,
				inst.FertilizerSchedule,
				formatDate(inst.LastFertilized),
				formatDate(inst.LastRepot),
				inst.Notes,
				formatBool(inst.IsActive),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing csv row: %w", err)
			}
		}
		if len(instances) == 0 || int64(page*exportPageSize) >= total {
			return nil
		}
	}
}

func (im *Importer) exportPropagations(cw *csv.Writer, userID uint) error {
	props, err := im.ds.ListPropagations(userID, false)
	if err != nil {
		return err
	}
	for i := range props {
		p := &props[i]
		row := []string{
			p.Plant.Family,
			p.Plant.Genus,
			p.Plant.Species,
			p.Plant.Cultivar,
			p.Plant.CommonName,
			p.Nickname,
			p.Location,
			p.DateStarted.Format(exportDateLayout),
			p.Status,
			p.Source,
			p.ExternalSource,
			p.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportDateLayout)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
