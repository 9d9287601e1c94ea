package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docpipe/internal/converters/pdf"
)

var convertCmd = &cobra.Command{
	Use:   "convert [doc-id]",
	Short: "Convert a document to Markdown",
	Long: `Runs a converter on the original of a document. The converter is chosen by
MIME type unless --converter names one. An existing Markdown file is
snapshotted before it is overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

var convertConverter string

func init() {
	convertCmd.Flags().StringVar(&convertConverter, "converter", "", "Converter name (pdf, docx, plaintext)")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if conversionService == nil {
		return errNotConfigured("conversion")
	}

	res, err := conversionService.Convert(cmd.Context(), args[0], convertConverter)
	if err != nil {
		return fmt.Errorf("failed to convert document: %w", err)
	}

	cmd.Printf("Converted %s with %s %s\n", res.DocumentID, res.Tool, res.ToolVersion)
	cmd.Printf("  %s (%d bytes)\n", res.Filename, res.Bytes)
	if res.Archived != nil {
		cmd.Printf("  %s\n", mutedStyle.Render("previous Markdown archived as "+res.Archived.ID))
	}
	if hint := toolHint(res.Tool); hint != "" {
		cmd.Println()
		cmd.Println(mutedStyle.Render(hint))
	}
	return nil
}

// toolHint suggests installing pdftotext when the fallback PDF reader ran.
func toolHint(tool string) string {
	if tool == pdf.ToolNative {
		return pdf.InstallInstructions()
	}
	return ""
}
