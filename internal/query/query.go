// Package query parses the free-text search box into engine options.
package query

import "strings"

const (
	prefixPath = "path:"
	prefixType = "type:"
	prefixExt  = "ext:"
)

// Request is a parsed search query. Empty fields are unset.
type Request struct {
	// Path restricts matches to files whose path contains it.
	Path string
	// Type is passed to the engine as a file type filter.
	Type string
	// Pattern is the search expression: every non-option token joined by
	// single spaces.
	Pattern string
}

// Parse splits q on whitespace. Tokens prefixed with path:, type: or ext:
// set the corresponding option (last one wins); every other token is
// appended to the pattern in order.
func Parse(q string) Request {
	var req Request
	var pattern []string

	for _, tok := range strings.Fields(q) {
		switch {
		case strings.HasPrefix(tok, prefixPath):
			req.Path = strings.TrimPrefix(tok, prefixPath)
		case strings.HasPrefix(tok, prefixType):
			req.Type = strings.TrimPrefix(tok, prefixType)
		case strings.HasPrefix(tok, prefixExt):
			// TODO: map ext: onto a --glob once the engine invoker accepts per-request globs.
			req.Type = strings.TrimPrefix(tok, prefixExt)
		default:
			pattern = append(pattern, tok)
		}
	}

	req.Pattern = strings.Join(pattern, " ")
	return req
}
