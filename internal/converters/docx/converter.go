// Package docx converts Office Open XML word processing documents to
// Markdown. Heading styles become '#' headings, numbered or bulleted
// paragraphs become list items and tables become pipe tables.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Ensure Converter implements the interface.
var _ driven.Converter = (*Converter)(nil)

const (
	// Name identifies the converter.
	Name = "docx"

	// Version is recorded with every conversion.
	Version = "1.0"

	documentPart = "word/document.xml"
)

// Converter handles DOCX documents.
type Converter struct{}

// New creates a new DOCX converter.
func New() *Converter {
	return &Converter{}
}

// Name returns the converter name.
func (c *Converter) Name() string { return Name }

// Version returns the converter version.
func (c *Converter) Version() string { return Version }

// SupportedMIMETypes returns the MIME types this converter handles.
func (c *Converter) SupportedMIMETypes() []string {
	return []string{domain.FormatDOCX.MIMEType}
}

// Priority returns the selection priority.
func (c *Converter) Priority() int {
	return 50
}

// Convert reads word/document.xml and renders its body as Markdown.
func (c *Converter) Convert(ctx context.Context, in driven.ConvertInput) (*driven.ConvertResult, error) {
	reader, err := zip.NewReader(bytes.NewReader(in.Content), int64(len(in.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a DOCX archive: %w", domain.ErrInvalidInput, err)
	}

	body, err := readPart(reader, documentPart)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blocks, err := parseDocumentXML(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidInput, documentPart, err)
	}

	return &driven.ConvertResult{
		Markdown:    []byte(render(blocks)),
		Tool:        Name,
		ToolVersion: Version,
	}, nil
}

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", domain.ErrInvalidInput, name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrInvalidInput, name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: %s missing", domain.ErrInvalidInput, name)
}

type blockKind int

const (
	kindParagraph blockKind = iota
	kindHeading
	kindListItem
	kindTable
)

type block struct {
	kind  blockKind
	level int
	text  string
	rows  [][]string
}

// paragraphState collects one w:p element.
type paragraphState struct {
	style string
	list  bool
	text  strings.Builder
}

// parseDocumentXML streams the document body in order. Paragraphs inside
// table cells are folded into the cell text.
func parseDocumentXML(content []byte) ([]block, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		blocks     []block
		para       *paragraphState
		inText     bool
		inProps    bool
		tableDepth int
		rows       [][]string
		row        []string
		cell       []string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para = &paragraphState{}
			case "pPr":
				inProps = true
			case "pStyle":
				if para != nil {
					para.style = attr(t, "val")
				}
			case "numPr":
				if para != nil {
					para.list = true
				}
			case "t":
				inText = true
			case "tab":
				if para != nil && !inProps {
					para.text.WriteByte('\t')
				}
			case "br", "cr":
				if para != nil {
					para.text.WriteByte('\n')
				}
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					rows = nil
				}
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell = nil
				}
			}

		case xml.CharData:
			if inText && para != nil {
				para.text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "pPr":
				inProps = false
			case "p":
				if para == nil {
					continue
				}
				text := strings.TrimSpace(para.text.String())
				if tableDepth > 0 {
					if text != "" {
						cell = append(cell, text)
					}
				} else if text != "" {
					blocks = append(blocks, paragraphBlock(para, text))
				}
				para = nil
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.Join(cell, " "))
				}
			case "tr":
				if tableDepth == 1 {
					rows = append(rows, row)
				}
			case "tbl":
				if tableDepth == 1 && len(rows) > 0 {
					blocks = append(blocks, block{kind: kindTable, rows: rows})
				}
				tableDepth--
			}
		}
	}
	return blocks, nil
}

func paragraphBlock(p *paragraphState, text string) block {
	if level := headingLevel(p.style); level > 0 {
		return block{kind: kindHeading, level: level, text: strings.ReplaceAll(text, "\n", " ")}
	}
	if p.list || strings.HasPrefix(strings.ToLower(p.style), "list") {
		return block{kind: kindListItem, text: text}
	}
	return block{kind: kindParagraph, text: text}
}

// headingLevel maps Title and HeadingN style ids to a Markdown level.
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return 1
	}
	if !strings.HasPrefix(s, "heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
	if err != nil || n < 1 {
		return 0
	}
	return min(n, 6)
}

// render joins blocks with blank lines. Consecutive list items form one list.
func render(blocks []block) string {
	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			if blk.kind == kindListItem && blocks[i-1].kind == kindListItem {
				b.WriteByte('\n')
			} else {
				b.WriteString("\n\n")
			}
		}
		switch blk.kind {
		case kindHeading:
			b.WriteString(strings.Repeat("#", blk.level) + " " + blk.text)
		case kindListItem:
			b.WriteString("- " + strings.ReplaceAll(blk.text, "\n", " "))
		case kindTable:
			renderTable(&b, blk.rows)
		default:
			b.WriteString(blk.text)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteByte('\n')
	return b.String()
}

func renderTable(b *strings.Builder, rows [][]string) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			var c string
			if i < len(cells) {
				c = strings.ReplaceAll(cells[i], "|", `\|`)
				c = strings.ReplaceAll(c, "\n", " ")
			}
			b.WriteString(" " + c + " |")
		}
	}
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeRow(r)
		if i == 0 {
			b.WriteString("\n|")
			for j := 0; j < width; j++ {
				b.WriteString(" --- |")
			}
		}
	}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
