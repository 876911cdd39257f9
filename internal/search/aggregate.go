// Package search turns engine output into the bounded result document
// returned to clients and serializes engine runs through a gate.
package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/jxr/internal/ripgrep"
)

// Result is an aggregated search. Events holds the retained begin and
// match events in engine order followed by exactly one summary.
type Result struct {
	Events    []ripgrep.Event
	Matches   int
	Truncated bool
}

// Summary returns the terminal summary event.
func (r *Result) Summary() *ripgrep.Summary {
	if len(r.Events) == 0 {
		return nil
	}
	s, _ := r.Events[len(r.Events)-1].(*ripgrep.Summary)
	return s
}

// MarshalJSON encodes the result as a JSON array of events.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Events)
}

// Aggregate consumes newline-delimited engine output.
//
// End events are dropped, matches without line text or outside filter are
// dropped, and a begin left without any retained match is removed before
// the next begin or the summary. Once maxMatches matches are retained, the
// next begin or match stops the scan; the summary is then recovered from
// the last line of output and marked truncated.
func Aggregate(output []byte, filter string, maxMatches int) (*Result, error) {
	res := &Result{Events: make([]ripgrep.Event, 0, 16)}

	rest := output
	for lineNo := 1; len(rest) > 0; lineNo++ {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte{'\n'})
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		ev, err := ripgrep.Decode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		switch ev := ev.(type) {
		case *ripgrep.End:
			continue
		case *ripgrep.Match:
			if !retain(ev, filter) {
				continue
			}
			if res.Matches >= maxMatches {
				return res.truncate(output)
			}
			res.Events = append(res.Events, ev)
			res.Matches++
		case *ripgrep.Begin:
			if res.Matches >= maxMatches {
				return res.truncate(output)
			}
			res.dropStaleBegin()
			res.Events = append(res.Events, ev)
		case *ripgrep.Summary:
			res.finish(ev)
			return res, nil
		}
	}

	return nil, ErrMissingSummary
}

func retain(m *ripgrep.Match, filter string) bool {
	if !m.Lines.HasText() {
		return false
	}
	return filter == "" || strings.Contains(m.Path.String(), filter)
}

// truncate recovers the engine's summary from the final line of output,
// which the scan never reached.
func (r *Result) truncate(output []byte) (*Result, error) {
	last := lastLine(output)
	if last == nil {
		return nil, ErrMissingSummary
	}
	ev, err := ripgrep.Decode(last)
	if err != nil {
		return nil, fmt.Errorf("last line: %w", err)
	}
	summary, ok := ev.(*ripgrep.Summary)
	if !ok {
		return nil, fmt.Errorf("%w: last line is a %s event", ErrMissingSummary, ev.Kind())
	}

	r.Truncated = true
	r.finish(summary)
	return r, nil
}

func (r *Result) finish(s *ripgrep.Summary) {
	r.dropStaleBegin()
	s.Stats.Truncated = r.Truncated
	r.Events = append(r.Events, s)
}

func (r *Result) dropStaleBegin() {
	n := len(r.Events)
	if n == 0 {
		return
	}
	if _, ok := r.Events[n-1].(*ripgrep.Begin); ok {
		r.Events = r.Events[:n-1]
	}
}

func lastLine(output []byte) []byte {
	trimmed := bytes.TrimRight(output, " \t\r\n")
	if len(trimmed) == 0 {
		return nil
	}
	if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
