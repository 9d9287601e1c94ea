package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Catalog    string `json:"catalog" jsonschema:"the catalog name"`
	Subcatalog string `json:"subcatalog" jsonschema:"the subcatalog name"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput summarises one document.
type DocumentOutput struct {
	DocumentID string   `json:"document_id"`
	Name       string   `json:"name"`
	MIMEType   string   `json:"mime_type"`
	Status     string   `json:"status"`
	Chunkings  []string `json:"chunkings,omitempty"`
}

// GetChunksInput is the input schema for the get_chunks tool.
type GetChunksInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document id"`
	Chunker    string `json:"chunker" jsonschema:"the chunker name, for example sentence_v1"`
	Version    string `json:"version,omitempty" jsonschema:"the chunker version (default: the most recent run)"`
}

// GetChunksOutput is the output schema for the get_chunks tool.
type GetChunksOutput struct {
	Chunker string        `json:"chunker"`
	Version string        `json:"version"`
	Chunks  []ChunkOutput `json:"chunks"`
	Count   int           `json:"count"`
}

// ChunkOutput is one chunk.
type ChunkOutput struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents of a subcatalog with their pipeline status",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_chunks",
		Description: "Return the chunks produced by one chunker for a document",
	}, s.handleGetChunks)
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	path := domain.SubcatalogPath{Catalog: input.Catalog, Subcatalog: input.Subcatalog}
	if err := path.Validate(); err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	docs, err := s.ports.Catalog.ListDocuments(ctx, path)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		d := &docs[i]
		out := DocumentOutput{
			DocumentID: d.DocumentID,
			Name:       d.Name,
			MIMEType:   d.MIMEType,
			Status:     string(d.Status),
		}
		for _, run := range d.Chunking {
			out.Chunkings = append(out.Chunkings, run.Chunker+"@"+run.ChunkerVersion)
		}
		output.Documents[i] = out
	}

	return nil, output, nil
}

// handleGetChunks handles the get_chunks tool invocation.
func (s *Server) handleGetChunks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetChunksInput,
) (*mcp.CallToolResult, GetChunksOutput, error) {
	if input.DocumentID == "" || input.Chunker == "" {
		return nil, GetChunksOutput{}, fmt.Errorf("%w: document_id and chunker are required", domain.ErrInvalidInput)
	}

	version := input.Version
	if version == "" {
		meta, err := s.ports.Catalog.GetDocument(ctx, input.DocumentID)
		if err != nil {
			return nil, GetChunksOutput{}, err
		}
		run := meta.LatestChunking(input.Chunker)
		if run == nil {
			return nil, GetChunksOutput{}, fmt.Errorf("%w: no %s run for document %s",
				domain.ErrNotFound, input.Chunker, input.DocumentID)
		}
		version = run.ChunkerVersion
	}

	chunks, err := s.ports.Catalog.ReadChunks(ctx, input.DocumentID, input.Chunker, version)
	if err != nil {
		return nil, GetChunksOutput{}, err
	}

	output := GetChunksOutput{
		Chunker: input.Chunker,
		Version: version,
		Chunks:  make([]ChunkOutput, len(chunks)),
		Count:   len(chunks),
	}
	for i, c := range chunks {
		output.Chunks[i] = ChunkOutput{ID: c.ID, Content: c.Content}
	}

	return nil, output, nil
}
