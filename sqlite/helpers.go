package sqlite

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fwojciec/ragchat"
)

// parseRFC3339 parses an RFC3339 formatted timestamp string.
// Returns an error if parsing fails with a descriptive message including the field name.
func parseRFC3339(value, fieldName string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", fieldName, err)
	}
	return t, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent validates a table name and returns it quoted for SQL.
func quoteIdent(name string) (string, error) {
	if !identifier.MatchString(name) {
		return "", ragchat.Errorf(ragchat.EINVALID, "invalid collection name %q", name)
	}
	return `"` + name + `"`, nil
}
