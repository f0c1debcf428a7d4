package mock

import (
	"context"

	"github.com/fwojciec/ragchat"
)

var _ ragchat.DocumentReader = (*DocumentReader)(nil)

// DocumentReader is a mock implementation of ragchat.DocumentReader.
type DocumentReader struct {
	LoadDocumentFn     func(ctx context.Context, path string) ([]*ragchat.Document, error)
	DocumentFromPDFFn  func(data []byte) ([]*ragchat.Document, error)
	DocumentFromTXTFn  func(data []byte) ([]*ragchat.Document, error)
	DocumentFromHTMLFn func(data []byte) ([]*ragchat.Document, error)
}

func (r *DocumentReader) LoadDocument(ctx context.Context, path string) ([]*ragchat.Document, error) {
	return r.LoadDocumentFn(ctx, path)
}

func (r *DocumentReader) DocumentFromPDF(data []byte) ([]*ragchat.Document, error) {
	return r.DocumentFromPDFFn(data)
}

func (r *DocumentReader) DocumentFromTXT(data []byte) ([]*ragchat.Document, error) {
	return r.DocumentFromTXTFn(data)
}

func (r *DocumentReader) DocumentFromHTML(data []byte) ([]*ragchat.Document, error) {
	return r.DocumentFromHTMLFn(data)
}

var _ ragchat.Parser = (*Parser)(nil)

// Parser is a mock implementation of ragchat.Parser.
type Parser struct {
	ParseFn func(data []byte) (*ragchat.Document, error)
}

func (p *Parser) Parse(data []byte) (*ragchat.Document, error) {
	return p.ParseFn(data)
}

var _ ragchat.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of ragchat.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*ragchat.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*ragchat.ExtractResult, error) {
	return e.ExtractFn(html)
}

var _ ragchat.Converter = (*Converter)(nil)

// Converter is a mock implementation of ragchat.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}

var _ ragchat.MetadataExtractor = (*MetadataExtractor)(nil)

// MetadataExtractor is a mock implementation of ragchat.MetadataExtractor.
type MetadataExtractor struct {
	ExtractMetadataFn func(html string) (map[string]string, error)
}

func (m *MetadataExtractor) ExtractMetadata(html string) (map[string]string, error) {
	return m.ExtractMetadataFn(html)
}

var _ ragchat.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of ragchat.Fetcher.
type Fetcher struct {
	FetchDocumentFn func(ctx context.Context, url string) ([]*ragchat.Document, error)
}

func (f *Fetcher) FetchDocument(ctx context.Context, url string) ([]*ragchat.Document, error) {
	return f.FetchDocumentFn(ctx, url)
}
