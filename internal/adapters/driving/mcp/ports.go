package mcp

import (
	"net/http"

	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

// Ports aggregates the dependencies of the MCP server.
type Ports struct {
	// Catalog reads catalogs, documents and their artifacts.
	Catalog driving.CatalogService

	// Metrics is served at /metrics in HTTP mode when set.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Catalog == nil {
		return ErrMissingCatalogService
	}
	return nil
}
