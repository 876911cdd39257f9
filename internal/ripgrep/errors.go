package ripgrep

import "errors"

// Invocation errors.
var (
	// ErrNoPattern is returned before spawning when the query has no pattern.
	ErrNoPattern = errors.New("no search pattern")
)

// Engine errors.
var (
	// ErrEngine wraps a failed run: bad exit status, signal, timeout or
	// failure to start. The message carries the engine's stderr.
	ErrEngine = errors.New("ripgrep failed")

	// ErrEncoding indicates the engine wrote output that is not valid UTF-8.
	ErrEncoding = errors.New("ripgrep did not return valid utf8")

	// ErrMalformedOutput indicates a line that is not a well-formed event.
	ErrMalformedOutput = errors.New("malformed ripgrep output")
)
