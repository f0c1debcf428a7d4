// Package readability extracts article content from HTML with
// go-readability. It backs up extractors that miss the main content of
// unusual page layouts.
package readability

import (
	"strings"

	"github.com/fwojciec/ragchat"
	"github.com/go-shiori/go-readability"
)

// Ensure the extractors implement ragchat.Extractor at compile time.
var (
	_ ragchat.Extractor = (*Extractor)(nil)
	_ ragchat.Extractor = (*FallbackExtractor)(nil)
)

// Extractor wraps go-readability to extract main content from HTML.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content.
func (e *Extractor) Extract(rawHTML string) (*ragchat.ExtractResult, error) {
	if rawHTML == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil {
		return nil, ragchat.Errorf(ragchat.EINVALID, "readability: %v", err)
	}

	return &ragchat.ExtractResult{
		Title:       article.Title,
		Author:      article.Byline,
		Description: article.Excerpt,
		Sitename:    article.SiteName,
		ContentHTML: article.Content,
	}, nil
}

// FallbackExtractor runs a primary extractor and falls back to readability
// when the primary fails or finds no main content. Metadata the primary
// found is kept.
type FallbackExtractor struct {
	primary  ragchat.Extractor
	fallback *Extractor
}

// NewFallbackExtractor creates a FallbackExtractor around primary.
func NewFallbackExtractor(primary ragchat.Extractor) *FallbackExtractor {
	return &FallbackExtractor{primary: primary, fallback: NewExtractor()}
}

// Extract implements ragchat.Extractor.
func (e *FallbackExtractor) Extract(rawHTML string) (*ragchat.ExtractResult, error) {
	result, err := e.primary.Extract(rawHTML)
	if err == nil && strings.TrimSpace(result.ContentHTML) != "" {
		return result, nil
	}

	backup, ferr := e.fallback.Extract(rawHTML)
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	if result == nil {
		return backup, nil
	}

	merged := *result
	merged.ContentHTML = backup.ContentHTML
	if merged.Title == "" {
		merged.Title = backup.Title
	}
	if merged.Author == "" {
		merged.Author = backup.Author
	}
	if merged.Description == "" {
		merged.Description = backup.Description
	}
	if merged.Sitename == "" {
		merged.Sitename = backup.Sitename
	}
	return &merged, nil
}
