package pseudonym

import (
	"fmt"
	"strings"
)

// DefaultSeparator is the ASCII unit separator, which does not occur in
// ordinary tabular text.
const DefaultSeparator = "\x1f"

// Canonicalizer joins identifying fields, in column order, into the single
// string that is hashed.
type Canonicalizer struct {
	Separator string
}

func (c Canonicalizer) separator() string {
	if c.Separator == "" {
		return DefaultSeparator
	}
	return c.Separator
}

// Canonical rejects fields containing the separator, since those could make
// two different tuples join to the same string.
func (c Canonicalizer) Canonical(fields []string) (string, error) {
	sep := c.separator()
	for i, f := range fields {
		if strings.Contains(f, sep) {
			return "", fmt.Errorf("field %d: %w", i, ErrAmbiguousCanonicalForm)
		}
	}
	return strings.Join(fields, sep), nil
}
