package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapml/internal/cli/output"
)

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List datasets registered in the catalog",
		Long: `List every dataset entry in the catalog with its storage type,
location, and file format.

Use --output to override the format: auto, text, json`,
		Example: `  # List all datasets
  leapml catalog

  # List datasets as JSON
  leapml catalog --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCatalog(cmd)
		},
	}
}

type catalogEntryView struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Filepath   string `json:"filepath,omitempty"`
	FileFormat string `json:"file_format,omitempty"`
}

func runCatalog(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)

	cat, err := cmdCtx.OpenCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	views := make([]catalogEntryView, 0, len(cat.List()))
	for _, name := range cat.List() {
		entry, err := cat.Get(name)
		if err != nil {
			return err
		}
		views = append(views, catalogEntryView{
			Name:       name,
			Type:       entry.Type,
			Filepath:   entry.Filepath,
			FileFormat: entry.FileFormat,
		})
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(views)
	}

	rows := make([][]string, len(views))
	for i, v := range views {
		rows[i] = []string{v.Name, v.Type, v.Filepath, v.FileFormat}
	}
	r.Printf("Datasets (%d total)\n", len(views))
	r.Table([]string{"Name", "Type", "Filepath", "Format"}, rows)
	return nil
}
