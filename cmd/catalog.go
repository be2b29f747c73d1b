package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanpos/internal/catalog"
	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/pricing"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product catalog",
		Long: `Manage the product catalog.

The catalog is the base catalog (catalog.base, a file or URL) overlaid with
products recorded on this register. Documents may be JSON, YAML or Parquet,
chosen by file extension.`,
	}

	cmd.AddCommand(newCatalogImportCmd())
	cmd.AddCommand(newCatalogExportCmd())
	cmd.AddCommand(newCatalogSearchCmd())
	cmd.AddCommand(newCatalogAddCmd())

	return cmd
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a catalog document into the register's products",
		Example: `  scanpos catalog import products.yaml
  scanpos catalog import products.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := catalog.ReadFile(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), prompt.Declined{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.register.Catalog().Import(cmd.Context(), entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products (%d in catalog)\n", len(entries), a.register.Catalog().Len())
			return nil
		},
	}
}

func newCatalogExportCmd() *cobra.Command {
	var userOnly bool

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the catalog to a document",
		Example: `  scanpos catalog export catalog.json
  scanpos catalog export recorded.yaml --user`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), prompt.Declined{})
			if err != nil {
				return err
			}
			defer a.Close()

			entries := a.register.Catalog().Merged()
			if userOnly {
				entries = a.register.Catalog().User()
			}
			if err := catalog.WriteFile(args[0], entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d products to %s\n", len(entries), args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&userOnly, "user", false, "Export only products recorded on this register")

	return cmd
}

func newCatalogSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find products by code or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), prompt.Declined{})
			if err != nil {
				return err
			}
			defer a.Close()

			results := a.register.Catalog().Search(args[0], limit)
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No matches"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEntries(results))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")

	return cmd
}

func newCatalogAddCmd() *cobra.Command {
	var (
		name  string
		price int64
	)

	cmd := &cobra.Command{
		Use:   "add <code>",
		Short: "Record a product",
		Example: `  scanpos catalog add 4901234567894 --name "Green Tea" --price 150`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			a, err := newApp(cmd.Context(), prompt.Declined{})
			if err != nil {
				return err
			}
			defer a.Close()

			entry := models.CatalogEntry{Code: args[0], Name: name, Price: price}
			if err := a.register.Catalog().Put(cmd.Context(), entry); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEntries([]models.CatalogEntry{entry}))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Product name")
	cmd.Flags().Int64Var(&price, "price", 0, "Price in yen")

	return cmd
}

func renderEntries(entries []models.CatalogEntry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Code", "Name", "Price").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, e := range entries {
		t.Row(e.Code, e.Name, pricing.FormatYen(e.Price))
	}
	return t.String() + "\n" + mutedStyle.Render(strconv.Itoa(len(entries))+" products")
}
