package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage document snapshots",
	Long: `Snapshots capture a document's original, Markdown, chunked files and
metadata as one zip. They are taken automatically before every destructive
change and can be restored at any time.`,
}

var archiveListCmd = &cobra.Command{
	Use:   "list [doc-id]",
	Short: "List the snapshots of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveList,
}

var archiveSnapshotCmd = &cobra.Command{
	Use:   "snapshot [doc-id]",
	Short: "Take a manual snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveSnapshot,
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore [doc-id] [archive-id]",
	Short: "Restore a document from a snapshot",
	Long: `Snapshots the current state and then replaces the document with the
archived one. Deleted documents are recreated at their archived location.`,
	Args: cobra.ExactArgs(2),
	RunE: runArchiveRestore,
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveSnapshotCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)
	rootCmd.AddCommand(archiveCmd)
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	if archiveService == nil {
		return errNotConfigured("archive")
	}

	entries, err := archiveService.List(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if len(entries) == 0 {
		cmd.Printf("No snapshots for %s\n", args[0])
		return nil
	}

	cmd.Printf("Snapshots of %s:\n\n", args[0])
	for _, e := range entries {
		cmd.Printf("  %s  %-18s %s\n", titleStyle.Render(e.ID), e.Reason, mutedStyle.Render(fmt.Sprintf("%d bytes", e.Size)))
	}
	cmd.Printf("\nTotal: %d snapshots\n", len(entries))
	return nil
}

func runArchiveSnapshot(cmd *cobra.Command, args []string) error {
	if archiveService == nil {
		return errNotConfigured("archive")
	}

	entry, err := archiveService.Snapshot(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to snapshot document: %w", err)
	}

	cmd.Printf("Archived %s as %s\n", entry.Ref, entry.ID)
	return nil
}

func runArchiveRestore(cmd *cobra.Command, args []string) error {
	if archiveService == nil {
		return errNotConfigured("archive")
	}

	meta, err := archiveService.Restore(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to restore document: %w", err)
	}

	cmd.Printf("Restored %s from %s (%s)\n", meta.Ref(), args[1], statusText(meta.Status))
	return nil
}
