// Package converters provides the converter registry and the built-in
// converters that turn original documents into Markdown. Each converter
// declares the MIME types it handles and a priority; the registry runs the
// highest priority converter for a document's MIME type.
//
// Converters are registered with the Registry at startup.
package converters
