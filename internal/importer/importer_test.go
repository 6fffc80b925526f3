package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
)

func newTestImporter(t *testing.T) (*Importer, datastore.Interface) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "planties.db")
	settings.Import.MaxRows = 100

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		_ = ds.Close()
	})

	return New(ds, settings, nil), ds
}

func seedUser(t *testing.T, ds datastore.Interface) datastore.User {
	t.Helper()
	user := datastore.User{Email: "importer@example.com", PasswordHash: "x"}
	require.NoError(t, ds.CreateUser(&user))
	return user
}

func TestImportTaxonomy(t *testing.T) {
	im, ds := newTestImporter(t)
	user := seedUser(t, ds)

	// Preamble rows before the header and mixed-case column names
	content := strings.Join([]string{
		"Exported from Fancy Planties,,,,",
		",,,,",
		"family,GENUS,Species,Cultivar,Common Name,Care Guide",
		"Araceae,Monstera,deliciosa,,Swiss Cheese Plant,Bright indirect light",
		`Araceae,Epipremnum,aureum,="Marble Queen",Pothos,`,
		",,,,,",
		"Araceae,Monstera,deliciosa,,Duplicate,",
	}, "\n")

	summary, err := im.Run(context.Background(), user.ID, datastore.ImportTypeTaxonomy, "plants.csv", content)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalRows, "empty row skipped from count")
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 7, summary.Errors[0].Line)
	assert.Contains(t, summary.Errors[0].Message, "already exists")

	plant, err := ds.FindPlant("Araceae", "Epipremnum", "aureum", "Marble Queen")
	require.NoError(t, err)
	assert.Equal(t, "Pothos", plant.CommonName)

	record, err := ds.GetImportRecord(user.ID, summary.ImportID)
	require.NoError(t, err)
	assert.Equal(t, datastore.ImportCompleted, record.Status)
	assert.Equal(t, 2, record.ImportedRows)
	require.Len(t, DecodeRowErrors(record.RowErrors), 1)
}

func TestImportInstancesComputesFertilizerDue(t *testing.T) {
	im, ds := newTestImporter(t)
	user := seedUser(t, ds)

	content := strings.Join([]string{
		"Family,Genus,Species,Cultivar,Common Name,Nickname,Location,Fertilizer Schedule,Last Fertilized,Last Repot,Notes,Is Active",
		"Araceae,Monstera,deliciosa,,Monstera,Monty,Living Room,every 2 weeks,2025-03-01,2024-11-15,thriving,yes",
		"Araceae,Monstera,deliciosa,,Monstera,Minny,Office,,,,,no",
	}, "\n")

	summary, err := im.Run(context.Background(), user.ID, datastore.ImportTypeInstances, "instances.csv", content)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Empty(t, summary.Errors)

	instances, _, err := ds.FilterPlantInstances(user.ID, &datastore.InstanceFilters{SortBy: "nickname"})
	require.NoError(t, err)
	require.Len(t, instances, 2)

	monty := instances[1]
	assert.Equal(t, "Monty", monty.Nickname)
	require.NotNil(t, monty.FertilizerDue)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), monty.FertilizerDue.UTC())
	assert.True(t, monty.IsActive)
	assert.False(t, instances[0].IsActive, "explicit 'no' overrides the default")
}

func TestImportPropagationsValidation(t *testing.T) {
	im, ds := newTestImporter(t)
	user := seedUser(t, ds)

	content := strings.Join([]string{
		"Family,Genus,Species,Cultivar,Common Name,Nickname,Location,Date Started,Status,Source,External Source,Notes",
		"Araceae,Philodendron,hederaceum,,Heartleaf,Cutting A,Kitchen,3/1/25,ROOTING,external,plant swap,",
		"Araceae,Philodendron,hederaceum,,Heartleaf,Cutting B,Kitchen,,started,internal,,",
		"Araceae,Philodendron,hederaceum,,Heartleaf,Cutting C,Kitchen,2025-04-01,germinating,internal,,",
	}, "\n")

	summary, err := im.Run(context.Background(), user.ID, datastore.ImportTypePropagations, "props.csv", content)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, summary.Errors, 2)
	assert.Equal(t, "Date Started", summary.Errors[0].Field)
	assert.Equal(t, "Status", summary.Errors[1].Field)

	props, err := ds.ListPropagations(user.ID, true)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, datastore.PropagationRooting, props[0].Status, "enum value canonicalized")
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), props[0].DateStarted.UTC())
}

func TestImportFailsWithoutHeader(t *testing.T) {
	im, ds := newTestImporter(t)
	user := seedUser(t, ds)

	content := "just,some,cells\nwithout,a,header"
	_, err := im.Run(context.Background(), user.ID, datastore.ImportTypeTaxonomy, "bad.csv", content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")

	records, err := ds.ListImportRecords(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, datastore.ImportFailed, records[0].Status)
}

func TestImportRejectsUnknownType(t *testing.T) {
	im, _ := newTestImporter(t)
	_, err := im.Run(context.Background(), 1, "houseplants", "x.csv", "a,b\n1,2")
	require.Error(t, err)
}

func TestImportEnforcesRowLimit(t *testing.T) {
	im, ds := newTestImporter(t)
	user := seedUser(t, ds)
	im.settings.Import.MaxRows = 2

	content := strings.Join([]string{
		"Family,Genus,Species",
		"Araceae,Monstera,deliciosa",
		"Araceae,Monstera,adansonii",
		"Araceae,Monstera,dubia",
	}, "\n")

	_, err := im.Run(context.Background(), user.ID, datastore.ImportTypeTaxonomy, "big.csv", content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit is 2")
}

func TestExportRoundTrip(t *testing.T) {
	im, ds := newTestImporter(t)
	user := seedUser(t, ds)

	content := strings.Join([]string{
		"Family,Genus,Species,Cultivar,Common Name,Nickname,Location,Fertilizer Schedule,Last Fertilized,Last Repot,Notes,Is Active",
		"Araceae,Monstera,deliciosa,,Monstera,Monty,Living Room,every 4 weeks,2025-03-01,,,true",
	}, "\n")
	_, err := im.Run(context.Background(), user.ID, datastore.ImportTypeInstances, "in.csv", content)
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, im.Export(&out, user.ID, datastore.ImportTypeInstances))

	rows, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	header, _ := HeaderFor(datastore.ImportTypeInstances)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "Monty", rows[1][5])
	assert.Equal(t, "2025-03-01", rows[1][8])

	// Exported file imports cleanly again
	summary, err := im.Run(context.Background(), user.ID, datastore.ImportTypeInstances, "out.csv", out.String())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
}

func TestExportIncludesAllInstances(t *testing.T) {
	im, ds := newTestImporter(t)
	user := seedUser(t, ds)

	// More instances than one default datastore page holds
	lines := []string{
		"Family,Genus,Species,Cultivar,Common Name,Nickname,Location,Fertilizer Schedule,Last Fertilized,Last Repot,Notes,Is Active",
	}
	for i := 0; i < 25; i++ {
		lines = append(lines, fmt.Sprintf("Araceae,Monstera,deliciosa,,Monstera,Plant%02d,Shelf,,,,,true", i))
	}
	summary, err := im.Run(context.Background(), user.ID, datastore.ImportTypeInstances, "many.csv", strings.Join(lines, "\n"))
	require.NoError(t, err)
	require.Equal(t, 25, summary.Imported)

	var out strings.Builder
	require.NoError(t, im.Export(&out, user.ID, datastore.ImportTypeInstances))

	rows, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 26, "header plus every instance")

	nicknames := make(map[string]bool)
	for _, row := range rows[1:] {
		nicknames[row[5]] = true
	}
	assert.True(t, nicknames["Plant00"])
	assert.True(t, nicknames["Plant24"])
}

func TestImportAcceptsByteOrderMarkHeader(t *testing.T) {
	im, ds := newTestImporter(t)
	user := seedUser(t, ds)

	content := "\uFEFF" + strings.Join([]string{
		"Family,Genus,Species,Cultivar,Common Name,Care Guide",
		"Moraceae,Ficus,lyrata,,Fiddle Leaf Fig,",
	}, "\n")

	summary, err := im.Run(context.Background(), user.ID, datastore.ImportTypeTaxonomy, "bom.csv", content)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
}

func TestParseDateTwoDigitYearPivot(t *testing.T) {
	got, err := parseDate("3/15/25")
	require.NoError(t, err)
	assert.Equal(t, 2025, got.Year())

	// Far-future 2-digit years belong to the previous century
	got, err = parseDate("1/2/68")
	require.NoError(t, err)
	assert.Equal(t, 1968, got.Year())
}

func TestCleanCellStripsExcelArtifacts(t *testing.T) {
	assert.Equal(t, "Marble Queen", cleanCell(`="Marble Queen"`))
	assert.Equal(t, "plain", cleanCell("  plain  "))
	assert.Equal(t, "quoted", cleanCell(`"quoted"`))
}
