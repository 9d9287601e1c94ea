package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docpipe/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can browse
catalogs, read converted Markdown and fetch chunks.

Resources:
  docpipe://catalogs
  docpipe://documents/{id}/metadata
  docpipe://documents/{id}/converted

Tools:
  list_documents  documents of a subcatalog
  get_chunks      chunks of one chunking run

By default the server communicates over stdio. Use --port to serve HTTP
instead; the HTTP server also exposes Prometheus metrics at /metrics.

Examples:
  # Stdio mode (for desktop assistants)
  docpipe mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  docpipe mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Catalog: catalogService,
	}
	if pipelineMetrics != nil {
		ports.Metrics = pipelineMetrics.Handler()
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
