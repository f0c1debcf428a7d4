// Package pdf extracts text and document information from PDF files
// using ledongthuc/pdf.
package pdf

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/fwojciec/ragchat"
	"github.com/ledongthuc/pdf"
)

// Ensure Parser implements ragchat.Parser at compile time.
var _ ragchat.Parser = (*Parser)(nil)

var headerPattern = regexp.MustCompile(`^%PDF-(\d+\.\d+)`)

// infoFields maps keys of the PDF information dictionary to metadata
// field names. Keywords and Trapped have no persisted counterpart and
// travel as free-form metadata.
var infoFields = []struct {
	key   string
	field string
}{
	{"Title", ragchat.MetaTitle},
	{"Author", ragchat.MetaAuthor},
	{"Subject", ragchat.MetaSubject},
	{"Keywords", "keywords"},
	{"Creator", ragchat.MetaCreator},
	{"Producer", ragchat.MetaProducer},
	{"CreationDate", ragchat.MetaCreationDate},
	{"ModDate", ragchat.MetaModDate},
	{"Trapped", "trapped"},
}

// Parser converts PDF bytes into a single Document holding the text of
// all pages in order.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse implements ragchat.Parser.
func (p *Parser) Parse(data []byte) (doc *ragchat.Document, err error) {
	m := headerPattern.FindSubmatch(data)
	if m == nil {
		return nil, ragchat.Errorf(ragchat.EINVALID, "not a PDF document")
	}

	// The reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, ragchat.Errorf(ragchat.EINVALID, "malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ragchat.Errorf(ragchat.EINVALID, "malformed PDF: %v", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		s, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text.WriteString(s)
	}

	metadata := map[string]string{
		ragchat.MetaFormat: "PDF " + string(m[1]),
	}
	info := r.Trailer().Key("Info")
	for _, f := range infoFields {
		if v := strings.TrimSpace(info.Key(f.key).Text()); v != "" {
			metadata[f.field] = v
		}
	}

	return &ragchat.Document{
		Content:  text.String(),
		Metadata: metadata,
	}, nil
}
