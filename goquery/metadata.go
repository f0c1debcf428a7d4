// Package goquery reads document metadata from HTML using goquery.
package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/ragchat"
)

// Ensure MetadataExtractor implements ragchat.MetadataExtractor at compile time.
var _ ragchat.MetadataExtractor = (*MetadataExtractor)(nil)

// MetadataExtractor maps the metadata declared in an HTML head onto
// document metadata fields. Each field takes the first non-empty value
// among its candidate selectors.
type MetadataExtractor struct{}

// NewMetadataExtractor creates a new MetadataExtractor.
func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{}
}

var metaSelectors = []struct {
	field     string
	selectors []string
}{
	{ragchat.MetaTitle, []string{
		"meta[property='og:title']",
		"meta[name='citation_title']",
		"meta[name='dc.title']",
	}},
	{ragchat.MetaAuthor, []string{
		"meta[name='author']",
		"meta[name='citation_author']",
		"meta[property='article:author']",
		"meta[name='dc.creator']",
	}},
	{ragchat.MetaSubject, []string{
		"meta[name='description']",
		"meta[property='og:description']",
		"meta[name='dc.subject']",
	}},
	{ragchat.MetaCreator, []string{
		"meta[name='generator']",
	}},
	{ragchat.MetaCreationDate, []string{
		"meta[property='article:published_time']",
		"meta[name='citation_publication_date']",
		"meta[name='dc.date']",
		"meta[name='date']",
	}},
	{ragchat.MetaModDate, []string{
		"meta[property='article:modified_time']",
		"meta[name='last-modified']",
	}},
}

// ExtractMetadata implements ragchat.MetadataExtractor.
func (e *MetadataExtractor) ExtractMetadata(html string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ragchat.Errorf(ragchat.EINVALID, "failed to parse HTML: %v", err)
	}

	meta := make(map[string]string)
	for _, m := range metaSelectors {
		for _, sel := range m.selectors {
			if v := metaContent(doc, sel); v != "" {
				meta[m.field] = v
				break
			}
		}
	}

	// The document title wins over og:title, which is often shortened.
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		meta[ragchat.MetaTitle] = title
	}

	if producer := detectProducer(doc); producer != "" {
		meta[ragchat.MetaProducer] = producer
	}

	return meta, nil
}

// metaContent returns the trimmed content attribute of the first element
// matching sel.
func metaContent(doc *goquery.Document, sel string) string {
	content, _ := doc.Find(sel).First().Attr("content")
	return strings.TrimSpace(content)
}

// producerMarkers identifies site generators from structural markers left
// in the rendered page. Earlier entries take precedence.
var producerMarkers = []struct {
	name      string
	selectors []string
}{
	{"Docusaurus", []string{"#__docusaurus_skipToContent_fallback", ".theme-doc-sidebar-container"}},
	{"MkDocs", []string{"[data-md-color-scheme]", "[data-md-component]", ".md-nav--primary"}},
	{"Sphinx", []string{".toctree-wrapper", ".wy-nav-side", ".sphinxsidebar"}},
	{"VitePress", []string{"#VPContent", ".VPDoc"}},
	{"VuePress", []string{".theme-default-content", ".vuepress-navbar"}},
	{"GitBook", []string{"[data-testid='space.sidebar']"}},
	{"Nextra", []string{".nextra-navbar", ".nextra-sidebar"}},
	{"WordPress", []string{"link[href*='wp-content']", "body.wp-site-blocks"}},
}

// detectProducer names the generator that produced the page, or returns
// "" when no known marker is present.
func detectProducer(doc *goquery.Document) string {
	for _, m := range producerMarkers {
		for _, sel := range m.selectors {
			if doc.Find(sel).Length() > 0 {
				return m.name
			}
		}
	}
	return ""
}
