// Package filesystem stores catalogs, documents and archives as plain files.
//
// Layout under the data root:
//
//	<catalog>/<subcatalog>/<document>/
//	    original/<document>.<ext>
//	    converted/<document>.md
//	    chunked/<document>__<chunker>__<version>.md
//	    metadata.json
//
// Snapshots live under the archive root as <document_id>/<timestamp>.zip.
// Entries whose names start with a dot are staging or temporary files and
// are never listed.
package filesystem
