package diff

import (
	"fmt"
	"strings"
)

// Labels maps every changed path to its single-letter status code.
func Labels(changes []Change) map[string]string {
	out := make(map[string]string, len(changes))
	for _, c := range changes {
		out[c.Path] = c.Type.Label()
	}
	return out
}

// FormatNameStatus renders changes one per line:
//
//	A path/added.txt
//	M path/modified.txt
//	D path/removed.txt
func FormatNameStatus(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		fmt.Fprintf(&b, "%s %s\n", c.Type.Label(), c.Path)
	}
	return b.String()
}
