// Package fs loads documents from the local filesystem.
package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/ragchat"
)

// Source values recorded for documents that were not read from a path.
const (
	SourcePDF  = "pdf"
	SourceTXT  = "txt"
	SourceHTML = "html"
)

// Ensure DocumentReader implements ragchat.DocumentReader at compile time.
var _ ragchat.DocumentReader = (*DocumentReader)(nil)

// DocumentReader implements ragchat.DocumentReader, delegating binary and
// markup formats to parsers.
type DocumentReader struct {
	pdf  ragchat.Parser
	html ragchat.Parser
}

// NewDocumentReader creates a DocumentReader using the given PDF and HTML
// parsers.
func NewDocumentReader(pdf, html ragchat.Parser) *DocumentReader {
	return &DocumentReader{pdf: pdf, html: html}
}

// LoadDocument reads the file at path and parses it according to its
// extension. The document source is the path.
func (r *DocumentReader) LoadDocument(ctx context.Context, path string) ([]*ragchat.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var parse func([]byte) ([]*ragchat.Document, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		parse = r.text
	case ".pdf":
		parse = r.parser(r.pdf)
	case ".html", ".htm":
		parse = r.parser(r.html)
	default:
		return nil, ragchat.Errorf(ragchat.ENOTIMPLEMENTED, "unsupported document format: %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ragchat.Errorf(ragchat.ENOTFOUND, "document not found: %s", path)
		}
		return nil, err
	}

	docs, err := parse(data)
	if err != nil {
		return nil, err
	}
	return withSource(docs, path), nil
}

// DocumentFromPDF implements ragchat.DocumentReader.
func (r *DocumentReader) DocumentFromPDF(data []byte) ([]*ragchat.Document, error) {
	docs, err := r.parser(r.pdf)(data)
	if err != nil {
		return nil, err
	}
	return withSource(docs, SourcePDF), nil
}

// DocumentFromTXT implements ragchat.DocumentReader.
func (r *DocumentReader) DocumentFromTXT(data []byte) ([]*ragchat.Document, error) {
	docs, _ := r.text(data)
	return withSource(docs, SourceTXT), nil
}

// DocumentFromHTML implements ragchat.DocumentReader.
func (r *DocumentReader) DocumentFromHTML(data []byte) ([]*ragchat.Document, error) {
	docs, err := r.parser(r.html)(data)
	if err != nil {
		return nil, err
	}
	return withSource(docs, SourceHTML), nil
}

func (r *DocumentReader) text(data []byte) ([]*ragchat.Document, error) {
	return []*ragchat.Document{{
		Content:  string(data),
		Metadata: map[string]string{},
	}}, nil
}

func (r *DocumentReader) parser(p ragchat.Parser) func([]byte) ([]*ragchat.Document, error) {
	return func(data []byte) ([]*ragchat.Document, error) {
		doc, err := p.Parse(data)
		if err != nil {
			return nil, err
		}
		return []*ragchat.Document{doc}, nil
	}
}

func withSource(docs []*ragchat.Document, source string) []*ragchat.Document {
	for _, doc := range docs {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]string)
		}
		doc.Metadata[ragchat.MetaSource] = source
	}
	return docs
}
