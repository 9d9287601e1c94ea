package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage documents",
	Long:  `Upload, inspect, replace or delete documents in a subcatalog.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add [catalog/subcatalog] [file...]",
	Short: "Upload files into a subcatalog",
	Long: `Uploads one or more files. Each file becomes a document named after the
file without its extension. Uploads are converted to Markdown right away
unless --no-convert is given.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDocumentAdd,
}

var documentListCmd = &cobra.Command{
	Use:   "list [catalog/subcatalog]",
	Short: "List documents of a subcatalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentReplaceCmd = &cobra.Command{
	Use:   "replace [doc-id] [file]",
	Short: "Replace the original of a document",
	Long: `Snapshots the document, stores the new original and discards the
Markdown and chunked files derived from the old one.`,
	Args: cobra.ExactArgs(2),
	RunE: runDocumentReplace,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document",
	Long:  `Snapshots the document and removes it. Use "archive restore" to bring it back.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

// Document flags.
var (
	documentMIME      string
	documentNoConvert bool
	documentJSON      bool
	documentMarkdown  bool
)

func init() {
	documentAddCmd.Flags().StringVar(&documentMIME, "mime", "", "Declared MIME type (default: from extension)")
	documentAddCmd.Flags().BoolVar(&documentNoConvert, "no-convert", false, "Upload without converting")
	documentReplaceCmd.Flags().StringVar(&documentMIME, "mime", "", "Declared MIME type (default: from extension)")
	documentShowCmd.Flags().BoolVar(&documentJSON, "json", false, "Print metadata.json")
	documentShowCmd.Flags().BoolVar(&documentMarkdown, "markdown", false, "Print the converted Markdown")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentReplaceCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	path, err := domain.ParseSubcatalogPath(args[0])
	if err != nil {
		return err
	}

	var errs []error
	for _, file := range args[1:] {
		content, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read %s: %w", file, err))
			continue
		}

		meta, err := catalogService.AddDocument(cmd.Context(), driving.AddDocumentRequest{
			Subcatalog:     path,
			Filename:       filepath.Base(file),
			Content:        content,
			MIMEType:       documentMIME,
			SkipConversion: documentNoConvert,
		})
		if err != nil {
			cmd.PrintErrf("%s %s: %v\n", errorStyle.Render("rejected"), file, err)
			errs = append(errs, fmt.Errorf("failed to add %s: %w", file, err))
			continue
		}

		cmd.Printf("Added %s as %s (%s)\n", meta.Ref(), meta.DocumentID, statusText(meta.Status))
		if meta.LastError != "" {
			cmd.Printf("  %s\n", warningStyle.Render(meta.LastError))
		}
	}

	return errors.Join(errs...)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	path, err := domain.ParseSubcatalogPath(args[0])
	if err != nil {
		return err
	}

	docs, err := catalogService.ListDocuments(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents found in %s\n", path)
		return nil
	}

	cmd.Printf("Documents in %s:\n\n", path)
	for i := range docs {
		d := &docs[i]
		cmd.Printf("  %s\n", d.DocumentID)
		cmd.Printf("    Name:   %s\n", d.Name)
		cmd.Printf("    Type:   %s (%.2f MB)\n", d.MIMEType, d.FileSizeMB)
		cmd.Printf("    Status: %s\n", statusText(d.Status))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	ctx := cmd.Context()
	docID := args[0]

	if documentMarkdown {
		md, err := catalogService.ReadConverted(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to read converted markdown: %w", err)
		}
		cmd.Print(string(md))
		return nil
	}

	meta, err := catalogService.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if documentJSON {
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Document: %s\n\n", titleStyle.Render(meta.DocumentID))
	cmd.Printf("  Location: %s\n", meta.Ref())
	cmd.Printf("  Original: %s\n", meta.OriginalFilename)
	cmd.Printf("  Type:     %s\n", meta.MIMEType)
	cmd.Printf("  Size:     %.2f MB\n", meta.FileSizeMB)
	cmd.Printf("  Status:   %s\n", statusText(meta.Status))
	cmd.Printf("  Created:  %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", meta.UpdatedAt.Format("2006-01-02 15:04:05"))
	if meta.LastError != "" {
		cmd.Printf("  Error:    %s\n", errorStyle.Render(meta.LastError))
	}

	if meta.Conversion != nil {
		cmd.Println("\n  " + subtitleStyle.Render("Conversion"))
		cmd.Printf("    Tool:     %s %s\n", meta.Conversion.Tool, meta.Conversion.Version)
		cmd.Printf("    File:     %s\n", meta.Conversion.Filename)
		if meta.ConvertedAt != nil {
			cmd.Printf("    At:       %s\n", meta.ConvertedAt.Format("2006-01-02 15:04:05"))
		}
	}

	if len(meta.Chunking) > 0 {
		cmd.Println("\n  " + subtitleStyle.Render("Chunking"))
		for _, run := range meta.Chunking {
			cmd.Printf("    %s@%s  %d chunks  %s\n", run.Chunker, run.ChunkerVersion, run.NumChunks,
				mutedStyle.Render(run.Filename))
		}
	}

	return nil
}

func runDocumentReplace(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	docID, file := args[0], args[1]
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	meta, err := catalogService.ReplaceOriginal(cmd.Context(), docID, filepath.Base(file), content, documentMIME)
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}

	cmd.Printf("Replaced original of %s (%s)\n", meta.Ref(), statusText(meta.Status))
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errNotConfigured("catalog")
	}

	if err := catalogService.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted document %s\n", args[0])
	cmd.Println(mutedStyle.Render("A snapshot was archived; use 'docpipe archive list " + args[0] + "' to see it."))
	return nil
}
