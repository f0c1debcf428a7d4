package ragchat

import "context"

// DocumentReader turns files and raw bytes into Documents.
type DocumentReader interface {
	// LoadDocument reads the file at path, choosing a parser by extension.
	// Returns ENOTIMPLEMENTED for unsupported formats.
	LoadDocument(ctx context.Context, path string) ([]*Document, error)

	// DocumentFromPDF parses PDF bytes.
	DocumentFromPDF(data []byte) ([]*Document, error)

	// DocumentFromTXT wraps plain text bytes.
	DocumentFromTXT(data []byte) ([]*Document, error)

	// DocumentFromHTML extracts the main content of an HTML page.
	DocumentFromHTML(data []byte) ([]*Document, error)
}

// Parser converts the raw content of one file format into a Document.
// The returned metadata never includes source; callers set it.
type Parser interface {
	Parse(data []byte) (*Document, error)
}

// ExtractResult holds the extracted content from an HTML page.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// Author, Description and Sitename are empty when the page does not
	// declare them.
	Author      string
	Description string
	Sitename    string

	// ContentHTML is the main content as clean HTML with boilerplate
	// (nav, footer, sidebar, ads) removed.
	ContentHTML string
}

// Extractor extracts main content from HTML pages, removing boilerplate.
type Extractor interface {
	Extract(html string) (*ExtractResult, error)
}

// Converter converts clean HTML (e.g., from an Extractor) to Markdown.
type Converter interface {
	Convert(html string) (string, error)
}

// MetadataExtractor reads document metadata declared in an HTML head,
// keyed by metadata field name.
type MetadataExtractor interface {
	ExtractMetadata(html string) (map[string]string, error)
}

// Fetcher downloads a URL and parses it into a Document.
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) ([]*Document, error)
}
