package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage catalogs and subcatalogs",
	Long:  `Create and browse the two-level catalog hierarchy that holds documents.`,
}

var catalogCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogCreate,
}

var catalogCreateSubCmd = &cobra.Command{
	Use:   "create-sub [catalog/subcatalog]",
	Short: "Create a subcatalog in an existing catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogCreateSub,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogs and their subcatalogs",
	Args:  cobra.NoArgs,
	RunE:  runCatalogList,
}

var catalogTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show every catalog, subcatalog and document",
	Args:  cobra.NoArgs,
	RunE:  runCatalogTree,
}

func init() {
	catalogCmd.AddCommand(catalogCreateCmd)
	catalogCmd.AddCommand(catalogCreateSubCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogTreeCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogCreate(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	if err := catalogService.CreateCatalog(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}

	cmd.Printf("Created catalog %s\n", args[0])
	return nil
}

func runCatalogCreateSub(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	path, err := domain.ParseSubcatalogPath(args[0])
	if err != nil {
		return err
	}
	if err := catalogService.CreateSubcatalog(cmd.Context(), path); err != nil {
		return fmt.Errorf("failed to create subcatalog: %w", err)
	}

	cmd.Printf("Created subcatalog %s\n", path)
	return nil
}

func runCatalogList(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	ctx := cmd.Context()
	catalogs, err := catalogService.ListCatalogs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list catalogs: %w", err)
	}

	if len(catalogs) == 0 {
		cmd.Println("No catalogs found.")
		return nil
	}

	for _, name := range catalogs {
		subs, err := catalogService.ListSubcatalogs(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to list subcatalogs of %s: %w", name, err)
		}
		cmd.Println(titleStyle.Render(name))
		for _, sub := range subs {
			cmd.Printf("  %s\n", sub)
		}
	}

	cmd.Printf("\nTotal: %d catalogs\n", len(catalogs))
	return nil
}

func runCatalogTree(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	tree, err := catalogService.Tree(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read catalog tree: %w", err)
	}

	if len(tree) == 0 {
		cmd.Println("No catalogs found.")
		return nil
	}

	docs := 0
	for _, c := range tree {
		cmd.Println(titleStyle.Render(c.Name + "/"))
		for _, sub := range c.Subcatalogs {
			cmd.Printf("  %s\n", subtitleStyle.Render(sub.Name+"/"))
			for i := range sub.Documents {
				d := &sub.Documents[i]
				cmd.Printf("    %-24s %s  %s\n", d.Name, statusText(d.Status), mutedStyle.Render(d.DocumentID))
				docs++
			}
		}
	}

	cmd.Printf("\nTotal: %d catalogs, %d documents\n", len(tree), docs)
	return nil
}
