package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for docpipe resources.
	uriScheme = "docpipe://"

	metadataSuffix  = "/metadata"
	convertedSuffix = "/converted"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "catalogs",
		Name:        "catalogs",
		Description: "Catalogs with their subcatalogs and documents",
		MIMEType:    "application/json",
	}, s.handleCatalogsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}/metadata",
		Name:        "document-metadata",
		Description: "Metadata of a document, including conversion and chunking runs",
		MIMEType:    "application/json",
	}, s.handleMetadataResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}/converted",
		Name:        "document-converted",
		Description: "Converted Markdown of a document",
		MIMEType:    "text/markdown",
	}, s.handleConvertedResource)
}

type documentInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	NumChunks int    `json:"chunking_runs"`
}

type subcatalogInfo struct {
	Name      string         `json:"name"`
	Documents []documentInfo `json:"documents"`
}

type catalogInfo struct {
	Name        string           `json:"name"`
	Subcatalogs []subcatalogInfo `json:"subcatalogs"`
}

// handleCatalogsResource returns the whole catalog tree.
func (s *Server) handleCatalogsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	tree, err := s.ports.Catalog.Tree(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing catalogs: %w", err)
	}

	infos := make([]catalogInfo, len(tree))
	for i, c := range tree {
		infos[i] = catalogInfo{Name: c.Name, Subcatalogs: make([]subcatalogInfo, len(c.Subcatalogs))}
		for j, sub := range c.Subcatalogs {
			docs := make([]documentInfo, len(sub.Documents))
			for k := range sub.Documents {
				d := &sub.Documents[k]
				docs[k] = documentInfo{ID: d.DocumentID, Name: d.Name, Status: string(d.Status), NumChunks: len(d.Chunking)}
			}
			infos[i].Subcatalogs[j] = subcatalogInfo{Name: sub.Name, Documents: docs}
		}
	}

	return jsonResult(req.Params.URI, infos)
}

// handleMetadataResource returns the metadata.json view of a document.
func (s *Server) handleMetadataResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI, metadataSuffix)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	meta, err := s.ports.Catalog.GetDocument(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	return jsonResult(req.Params.URI, meta)
}

// handleConvertedResource returns the converted Markdown of a document.
func (s *Server) handleConvertedResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI, convertedSuffix)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	content, err := s.ports.Catalog.ReadConverted(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("reading converted markdown: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     string(content),
		}},
	}, nil
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentID extracts the id from a URI like docpipe://documents/{documentId}/metadata.
func extractDocumentID(uri, suffix string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}

	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
