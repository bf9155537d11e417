package pagination

import (
	"fmt"
	"strings"
	"time"
)

// Cursor is an opaque keyset-pagination position: the sort timestamp and id
// of the last row a caller saw, per the Query Composer's cursor format
// (spec.md §6: `"<iso_sort_ts>|<item_id>"`).
type Cursor struct {
	SortAt time.Time
	ID     string
}

// EncodeCursor renders a Cursor in the spec's pipe-delimited form.
func EncodeCursor(c Cursor) string {
	return c.SortAt.UTC().Format(time.RFC3339) + "|" + c.ID
}

// DecodeCursor parses a cursor string produced by EncodeCursor. An empty
// string decodes to the zero Cursor with no error, representing "first
// page."
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	parts := strings.SplitN(s, "|", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("pagination: malformed cursor %q", s)
	}
	sortAt, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("pagination: malformed cursor timestamp: %w", err)
	}
	if parts[1] == "" {
		return Cursor{}, fmt.Errorf("pagination: malformed cursor %q: empty id", s)
	}
	return Cursor{SortAt: sortAt, ID: parts[1]}, nil
}
