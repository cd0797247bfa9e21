package transform

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"strings"
)

// missingPart stands in for an absent natural-key component so that the
// remaining components still derive a stable identifier.
const missingPart = "-"

// MakeID derives a deterministic identifier from the natural-key parts of
// an entity. Identical tuples produce identical identifiers; a tuple whose
// parts are all missing produces "".
func MakeID(parts ...string) string {
	h := sha1.New()
	empty := true
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			part = missingPart
		} else {
			empty = false
		}
		_, _ = io.WriteString(h, part)
		_, _ = io.WriteString(h, "\x1f")
	}
	if empty {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
