// Package importer implements the CSV import and export pipeline for plant
// taxonomy, plant instances and propagations.
package importer

import (
	"fmt"
	"strings"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
)

// FieldKind determines how a CSV cell is validated and coerced.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldDate
	FieldBool
	FieldEnum
)

// FieldSpec describes one expected CSV column for an import type.
type FieldSpec struct {
	Name       string    // column header, matched case-insensitively
	Required   bool      // row is rejected when the column is missing or empty
	Kind       FieldKind // validation/coercion rule
	EnumValues []string  // allowed values for FieldEnum
}

// taxonomyColumns are shared by every import type since instances and
// propagations resolve their taxonomy record from the same columns.
var taxonomyColumns = []FieldSpec{
	{Name: "Family", Required: true},
	{Name: "Genus", Required: true},
	{Name: "Species", Required: true},
	{Name: "Cultivar"},
	{Name: "Common Name"},
}

var schemas = map[string][]FieldSpec{
	datastore.ImportTypeTaxonomy: append(append([]FieldSpec{}, taxonomyColumns...),
		FieldSpec{Name: "Care Guide"},
	),
	datastore.ImportTypeInstances: append(append([]FieldSpec{}, taxonomyColumns...),
		FieldSpec{Name: "Nickname"},
		FieldSpec{Name: "Location"},
		FieldSpec{Name: "Fertilizer Schedule"},
		FieldSpec{Name: "Last Fertilized", Kind: FieldDate},
		FieldSpec{Name: "Last Repot", Kind: FieldDate},
		FieldSpec{Name: "Notes"},
		FieldSpec{Name: "Is Active", Kind: FieldBool},
	),
	datastore.ImportTypePropagations: append(append([]FieldSpec{}, taxonomyColumns...),
		FieldSpec{Name: "Nickname"},
		FieldSpec{Name: "Location"},
		FieldSpec{Name: "Date Started", Required: true, Kind: FieldDate},
		FieldSpec{Name: "Status", Kind: FieldEnum, EnumValues: []string{
			datastore.PropagationStarted,
			datastore.PropagationRooting,
			datastore.PropagationPlanted,
			datastore.PropagationEstablished,
		}},
		FieldSpec{Name: "Source", Kind: FieldEnum, EnumValues: []string{
			datastore.SourceInternal,
			datastore.SourceExternal,
		}},
		FieldSpec{Name: "External Source"},
		FieldSpec{Name: "Notes"},
	),
}

// SchemaFor returns the column specs for an import type.
func SchemaFor(importType string) ([]FieldSpec, error) {
	specs, ok := schemas[importType]
	if !ok {
		return nil, fmt.Errorf("unknown import type %q", importType)
	}
	return specs, nil
}

// ImportTypes lists the supported import type identifiers.
func ImportTypes() []string {
	return []string{
		datastore.ImportTypeTaxonomy,
		datastore.ImportTypeInstances,
		datastore.ImportTypePropagations,
	}
}

// HeaderFor returns the canonical header row for an import type, also used
// by the CSV exporter.
func HeaderFor(importType string) ([]string, error) {
	specs, err := SchemaFor(importType)
	if err != nil {
		return nil, err
	}
	header := make([]string, 0, len(specs))
	for _, spec := range specs {
		header = append(header, spec.Name)
	}
	return header, nil
}

// requiredColumns returns the lowercased names of required columns.
func requiredColumns(specs []FieldSpec) []string {
	var required []string
	for _, spec := range specs {
		if spec.Required {
			required = append(required, strings.ToLower(spec.Name))
		}
	}
	return required
}
