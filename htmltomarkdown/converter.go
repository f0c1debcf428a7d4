// Package htmltomarkdown turns HTML pages into Markdown documents with
// html-to-markdown.
package htmltomarkdown

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/ragchat"
)

// Ensure Converter implements ragchat.Converter at compile time.
var _ ragchat.Converter = (*Converter)(nil)

var (
	// Images carry no text worth embedding; their alt text is kept.
	imageRef   = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Converter converts extracted HTML to Markdown ready for splitting:
// tables become pipe tables, images are reduced to their alt text and
// runs of blank lines are collapsed.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a new Converter.
func NewConverter() *Converter {
	return &Converter{
		conv: converter.NewConverter(converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		)),
	}
}

// Convert implements ragchat.Converter.
func (c *Converter) Convert(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", ragchat.Errorf(ragchat.EINVALID, "empty HTML input")
	}

	md, err := c.conv.ConvertString(html)
	if err != nil {
		return "", ragchat.Errorf(ragchat.EINVALID, "convert HTML: %v", err)
	}

	md = imageRef.ReplaceAllString(md, "$1")
	md = blankLines.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md), nil
}
