package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docpipe/internal/adapters/driving/watch"
	"github.com/custodia-labs/docpipe/internal/core/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch [inbox-dir] [catalog/subcatalog]",
	Short: "Upload files dropped into an inbox directory",
	Long: `Watches a directory and uploads every new or rewritten file into a
subcatalog once it has stopped changing. Hidden files are ignored.

Examples:
  # Ingest PDFs and Word files only
  docpipe watch ~/inbox research/papers --pattern "*.{pdf,docx}"

  # Pick up files already present and replace documents with the same name
  docpipe watch ~/inbox research/papers --existing --replace`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

// Watch flags.
var (
	watchPatterns []string
	watchIgnore   []string
	watchExisting bool
	watchReplace  bool
	watchDebounce time.Duration
)

func init() {
	watchCmd.Flags().StringArrayVar(&watchPatterns, "pattern", nil, "File name glob to ingest (repeatable, default all)")
	watchCmd.Flags().StringArrayVar(&watchIgnore, "ignore", nil, "File name glob to skip (repeatable)")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Also ingest files already in the inbox")
	watchCmd.Flags().BoolVar(&watchReplace, "replace", false, "Replace documents that already exist")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	into, err := domain.ParseSubcatalogPath(args[1])
	if err != nil {
		return err
	}

	w, err := watch.New(catalogService, watch.Options{
		Dir:      args[0],
		Into:     into,
		Patterns: watchPatterns,
		Ignore:   watchIgnore,
		Debounce: watchDebounce,
		Existing: watchExisting,
		Replace:  watchReplace,
		OnResult: func(r watch.Result) {
			switch {
			case r.Err != nil:
				cmd.Printf("%s %s: %v\n", errorStyle.Render("rejected"), r.Path, r.Err)
			case r.Replaced:
				cmd.Printf("%s %s as %s (%s)\n", successStyle.Render("replaced"), r.Path, r.Metadata.DocumentID, statusText(r.Metadata.Status))
			default:
				cmd.Printf("%s %s as %s (%s)\n", successStyle.Render("added"), r.Path, r.Metadata.DocumentID, statusText(r.Metadata.Status))
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	cmd.Printf("Watching %s for %s (Ctrl+C to stop)\n", args[0], into)
	return w.Run(cmd.Context())
}
