// Package importcsv implements the CSV import command.
package importcsv

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/importer"
)

// Command creates the import command for loading CSV files from the
// command line.
func Command(settings *conf.Settings) *cobra.Command {
	var importType string
	var userEmail string

	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import a CSV file into a user's collection",
		Long:  "Import taxonomy, plant instance or propagation rows from a CSV file on behalf of a user.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(settings, args[0], importType, userEmail)
		},
	}

	cmd.Flags().StringVar(&importType, "type", "", "Import type: plant_taxonomy, plant_instances or propagations")
	cmd.Flags().StringVar(&userEmail, "user", "", "Email address of the account to import into")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runImport(settings *conf.Settings, fileName, importType, userEmail string) error {
	content, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("reading %s: %w", fileName, err)
	}

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()

	user, err := ds.GetUserByEmail(strings.ToLower(strings.TrimSpace(userEmail)))
	if err != nil {
		return fmt.Errorf("no account with email %s", userEmail)
	}

	im := importer.New(ds, settings, nil)
	summary, err := im.Run(context.Background(), user.ID, importType, fileName, string(content))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Import #%d (%s) finished: %d rows, %d imported, %d skipped\n",
		summary.ImportID, summary.ImportType, summary.TotalRows, summary.Imported, summary.Skipped)
	for _, rowErr := range summary.Errors {
		if rowErr.Field != "" {
			fmt.Printf("  line %d (%s): %s\n", rowErr.Line, rowErr.Field, rowErr.Message)
		} else {
			fmt.Printf("  line %d: %s\n", rowErr.Line, rowErr.Message)
		}
	}
	return nil
}
