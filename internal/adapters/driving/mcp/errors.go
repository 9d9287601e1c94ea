// Package mcp provides a read-only MCP (Model Context Protocol) server for docpipe.
// It lets AI assistants browse catalogs, read converted Markdown and fetch chunks.
package mcp

import "errors"

// ErrMissingCatalogService is returned when the catalog service is not provided.
var ErrMissingCatalogService = errors.New("mcp: catalog service is required")
