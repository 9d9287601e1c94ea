package cli

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Run and manage chunkers",
	Long:  `Split converted Markdown with a registered chunker and manage the chunked files.`,
}

var chunkRunCmd = &cobra.Command{
	Use:   "run [doc-id] [chunker[@version]]",
	Short: "Run a chunker on a document",
	Long: `Runs a chunker on the converted Markdown of a document. The latest version
of the chunker is used unless one is given after @. Options override the
chunker defaults:

  docpipe chunk run 2f1c... sentence_v1 --set sentences_per_chunk=5
  docpipe chunk run 2f1c... recursive_v1@1.0 --config recursive.yaml

A run with the same Markdown and options as the stored one is skipped
unless --force is given.`,
	Args: cobra.ExactArgs(2),
	RunE: runChunkRun,
}

var chunkListCmd = &cobra.Command{
	Use:   "list [doc-id]",
	Short: "List the chunking runs of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunkList,
}

var chunkShowCmd = &cobra.Command{
	Use:   "show [doc-id] [chunker[@version]]",
	Short: "Print the chunks of one run",
	Args:  cobra.ExactArgs(2),
	RunE:  runChunkShow,
}

var chunkDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id] [chunker@version]",
	Short: "Delete one chunked file",
	Args:  cobra.ExactArgs(2),
	RunE:  runChunkDelete,
}

var chunkStrategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List registered chunkers and their defaults",
	Args:  cobra.NoArgs,
	RunE:  runChunkStrategies,
}

// Chunk flags.
var (
	chunkSet    []string
	chunkConfig string
	chunkForce  bool
)

func init() {
	chunkRunCmd.Flags().StringArrayVar(&chunkSet, "set", nil, "Chunker option as key=value (repeatable)")
	chunkRunCmd.Flags().StringVar(&chunkConfig, "config-file", "", "YAML file of chunker options")
	chunkRunCmd.Flags().BoolVar(&chunkForce, "force", false, "Regenerate even when unchanged")

	chunkCmd.AddCommand(chunkRunCmd)
	chunkCmd.AddCommand(chunkListCmd)
	chunkCmd.AddCommand(chunkShowCmd)
	chunkCmd.AddCommand(chunkDeleteCmd)
	chunkCmd.AddCommand(chunkStrategiesCmd)
	rootCmd.AddCommand(chunkCmd)
}

func runChunkRun(cmd *cobra.Command, args []string) error {
	if chunkingService == nil {
		return errNotConfigured("chunking")
	}

	cfg := domain.ChunkerConfig{}
	if chunkConfig != "" {
		fromFile, err := loadConfigFile(chunkConfig)
		if err != nil {
			return err
		}
		maps.Copy(cfg, fromFile)
	}
	fromFlags, err := parseConfigFlags(chunkSet)
	if err != nil {
		return err
	}
	maps.Copy(cfg, fromFlags)

	name, version := parseChunkerRef(args[1])
	res, err := chunkingService.Run(cmd.Context(), driving.ChunkRequest{
		DocumentID: args[0],
		Chunker:    name,
		Version:    version,
		Config:     cfg,
		Force:      chunkForce,
	})
	if err != nil {
		return fmt.Errorf("failed to chunk document: %w", err)
	}

	rec := res.Record
	if res.Skipped {
		cmd.Printf("Unchanged: %s@%s already produced %d chunks\n", rec.Chunker, rec.ChunkerVersion, rec.NumChunks)
		return nil
	}
	cmd.Printf("Chunked with %s@%s: %d chunks\n", rec.Chunker, rec.ChunkerVersion, rec.NumChunks)
	cmd.Printf("  %s\n", rec.Filename)
	if res.Archived != nil {
		cmd.Printf("  %s\n", mutedStyle.Render("previous chunked file archived as "+res.Archived.ID))
	}
	return nil
}

func runChunkList(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	meta, err := catalogService.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if len(meta.Chunking) == 0 {
		cmd.Printf("No chunking runs for %s\n", meta.Ref())
		return nil
	}

	cmd.Printf("Chunking runs for %s:\n\n", meta.Ref())
	for _, run := range meta.Chunking {
		cmd.Printf("  %s@%s\n", titleStyle.Render(run.Chunker), run.ChunkerVersion)
		cmd.Printf("    Chunks:  %d\n", run.NumChunks)
		cmd.Printf("    File:    %s\n", run.Filename)
		cmd.Printf("    Created: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
		if len(run.Variant) > 0 {
			cmd.Printf("    Options: %s\n", formatConfig(run.Variant))
		}
		cmd.Println()
	}
	return nil
}

func runChunkShow(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	ctx := cmd.Context()
	docID := args[0]
	name, version := parseChunkerRef(args[1])
	if version == "" {
		meta, err := catalogService.GetDocument(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}
		run := meta.LatestChunking(name)
		if run == nil {
			return fmt.Errorf("%w: no %s run for document %s", domain.ErrNotFound, name, docID)
		}
		version = run.ChunkerVersion
	}

	chunks, err := catalogService.ReadChunks(ctx, docID, name, version)
	if err != nil {
		return fmt.Errorf("failed to read chunks: %w", err)
	}

	for _, c := range chunks {
		cmd.Println(subtitleStyle.Render(c.ID))
		cmd.Println(c.Content)
		cmd.Println()
	}
	cmd.Printf("Total: %d chunks\n", len(chunks))
	return nil
}

func runChunkDelete(cmd *cobra.Command, args []string) error {
	if chunkingService == nil {
		return errNotConfigured("chunking")
	}

	name, version := parseChunkerRef(args[1])
	if version == "" {
		return fmt.Errorf("%w: give the run as chunker@version", domain.ErrInvalidInput)
	}
	if err := chunkingService.DeleteRun(cmd.Context(), args[0], name, version); err != nil {
		return fmt.Errorf("failed to delete chunked file: %w", err)
	}

	cmd.Printf("Deleted %s@%s from %s\n", name, version, args[0])
	return nil
}

func runChunkStrategies(cmd *cobra.Command, _ []string) error {
	if chunkingService == nil {
		return errNotConfigured("chunking")
	}

	infos := chunkingService.Chunkers()
	if len(infos) == 0 {
		cmd.Println("No chunkers registered.")
		return nil
	}

	for _, info := range infos {
		cmd.Printf("%s@%s\n", titleStyle.Render(info.Name), info.Version)
		if len(info.DefaultConfig) > 0 {
			cmd.Printf("  %s\n", mutedStyle.Render(formatConfig(info.DefaultConfig)))
		}
	}
	return nil
}

// formatConfig renders options as sorted key=value pairs.
func formatConfig(cfg domain.ChunkerConfig) string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, cfg[k])
	}
	return strings.Join(parts, " ")
}
