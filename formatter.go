package ragchat

import (
	"fmt"
	"strings"
)

// FormatFragments formats search results for display or LLM context.
// Each fragment is headed by its document's display name and results are
// separated by blank lines.
func FormatFragments(results []*SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results))
	for i, r := range results {
		header := "unknown"
		if r.Metadata != nil {
			header = r.Metadata.DisplayName()
		}
		parts = append(parts, fmt.Sprintf("## Fragment %d: %s\n%s", i+1, header, r.Fragment.Content))
	}

	return strings.Join(parts, "\n\n")
}
