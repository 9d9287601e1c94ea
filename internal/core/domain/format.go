package domain

import (
	"mime"
	"path/filepath"
	"strings"
)

// Format is a supported original document format.
type Format struct {
	MIMEType  string
	Extension string
}

// Supported original formats.
var (
	FormatPDF  = Format{MIMEType: "application/pdf", Extension: ".pdf"}
	FormatDOCX = Format{MIMEType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Extension: ".docx"}
	FormatTXT  = Format{MIMEType: "text/plain", Extension: ".txt"}
)

var formats = []Format{FormatPDF, FormatDOCX, FormatTXT}

// Formats returns the supported formats.
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// FormatForMIME looks up a format by MIME type, ignoring parameters.
func FormatForMIME(mimeType string) (Format, bool) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	for _, f := range formats {
		if f.MIMEType == mediaType {
			return f, true
		}
	}
	return Format{}, false
}

// FormatForExtension looks up a format by file extension.
func FormatForExtension(ext string) (Format, bool) {
	ext = strings.ToLower(ext)
	for _, f := range formats {
		if f.Extension == ext {
			return f, true
		}
	}
	return Format{}, false
}

// ResolveFormat determines the format of an upload. An empty declared MIME
// type is inferred from the extension; otherwise both must agree.
func ResolveFormat(filename, declaredMIME string) (Format, error) {
	ext := filepath.Ext(filename)
	byExt, extOK := FormatForExtension(ext)
	if strings.TrimSpace(declaredMIME) == "" {
		if !extOK {
			return Format{}, NewValidationError(ViolationUnsupportedFormat, "extension %q is not supported", ext)
		}
		return byExt, nil
	}
	byMIME, ok := FormatForMIME(declaredMIME)
	if !ok {
		return Format{}, NewValidationError(ViolationUnsupportedFormat, "MIME type %q is not supported", declaredMIME)
	}
	if !extOK || byExt != byMIME {
		return Format{}, NewValidationError(ViolationUnsupportedFormat,
			"extension %q does not match MIME type %q", ext, declaredMIME)
	}
	return byMIME, nil
}

// DocumentName derives the document name from an upload filename.
func DocumentName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
