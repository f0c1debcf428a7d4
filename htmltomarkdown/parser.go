package htmltomarkdown

import (
	"strings"

	"github.com/fwojciec/ragchat"
)

// Ensure Parser implements ragchat.Parser at compile time.
var _ ragchat.Parser = (*Parser)(nil)

// FormatHTML is the format recorded for documents parsed from HTML.
const FormatHTML = "HTML"

// Parser turns an HTML page into a Markdown Document. Boilerplate is
// stripped by the Extractor before conversion; metadata declared in the
// page head takes precedence over what the Extractor guesses.
type Parser struct {
	extractor ragchat.Extractor
	meta      ragchat.MetadataExtractor
	converter *Converter
}

// NewParser creates a Parser.
func NewParser(extractor ragchat.Extractor, meta ragchat.MetadataExtractor) *Parser {
	return &Parser{
		extractor: extractor,
		meta:      meta,
		converter: NewConverter(),
	}
}

// Parse implements ragchat.Parser.
func (p *Parser) Parse(data []byte) (*ragchat.Document, error) {
	raw := string(data)
	if strings.TrimSpace(raw) == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "empty HTML input")
	}

	declared, err := p.meta.ExtractMetadata(raw)
	if err != nil {
		return nil, err
	}

	extracted, err := p.extractor.Extract(raw)
	if err != nil {
		return nil, err
	}

	// Pages the extractor finds no main content in are converted whole.
	body := extracted.ContentHTML
	if strings.TrimSpace(body) == "" {
		body = raw
	}
	content, err := p.converter.Convert(body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "HTML page has no text content")
	}

	metadata := make(map[string]string, len(declared)+4)
	for k, v := range declared {
		if k == ragchat.MetaSource {
			continue
		}
		metadata[k] = v
	}
	setDefault(metadata, ragchat.MetaTitle, extracted.Title)
	setDefault(metadata, ragchat.MetaAuthor, extracted.Author)
	setDefault(metadata, ragchat.MetaSubject, extracted.Description)
	setDefault(metadata, ragchat.MetaCreator, extracted.Sitename)
	metadata[ragchat.MetaFormat] = FormatHTML

	return &ragchat.Document{
		Content:  strings.TrimSpace(content),
		Metadata: metadata,
	}, nil
}

func setDefault(m map[string]string, key, value string) {
	if m[key] != "" {
		return
	}
	if value = strings.TrimSpace(value); value != "" {
		m[key] = value
	}
}
