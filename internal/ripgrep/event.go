// Package ripgrep runs the ripgrep search engine and decodes its --json
// output into typed events.
package ripgrep

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Kind identifies the type of an engine event.
type Kind string

const (
	KindBegin   Kind = "begin"
	KindMatch   Kind = "match"
	KindEnd     Kind = "end"
	KindSummary Kind = "summary"
)

// Event is one line of engine output. The set of implementations is closed:
// *Begin, *Match, *End and *Summary.
type Event interface {
	Kind() Kind
	event()
}

// Data is an engine text field. ripgrep emits valid UTF-8 as Text and
// anything else as base64 in Bytes.
type Data struct {
	Text  *string `json:"text,omitempty"`
	Bytes *string `json:"bytes,omitempty"`
}

// String returns the text form, decoding Bytes when needed.
func (d Data) String() string {
	if d.Text != nil {
		return *d.Text
	}
	if d.Bytes != nil {
		if b, err := base64.StdEncoding.DecodeString(*d.Bytes); err == nil {
			return string(b)
		}
	}
	return ""
}

// HasText reports whether the field was emitted as text.
func (d Data) HasText() bool {
	return d.Text != nil
}

// Duration is ripgrep's elapsed time representation.
type Duration struct {
	Secs  int64  `json:"secs"`
	Nanos int64  `json:"nanos"`
	Human string `json:"human"`
}

// Stats are per-file or whole-run search statistics.
type Stats struct {
	Elapsed           Duration `json:"elapsed"`
	Searches          int64    `json:"searches"`
	SearchesWithMatch int64    `json:"searches_with_match"`
	BytesSearched     int64    `json:"bytes_searched"`
	BytesPrinted      int64    `json:"bytes_printed"`
	MatchedLines      int64    `json:"matched_lines"`
	Matches           int64    `json:"matches"`
}

// SummaryStats are the whole-run statistics plus the truncation flag set
// by the aggregator.
type SummaryStats struct {
	Stats
	Truncated bool `json:"truncated"`
}

// Submatch is one pattern occurrence within a matched line.
type Submatch struct {
	Match Data `json:"match"`
	Start int  `json:"start"`
	End   int  `json:"end"`
}

// Begin opens the section of a file with at least one match.
type Begin struct {
	Path Data `json:"path"`
}

// Match is one matched line.
type Match struct {
	Path           Data       `json:"path"`
	Lines          Data       `json:"lines"`
	LineNumber     *int64     `json:"line_number"`
	AbsoluteOffset int64      `json:"absolute_offset"`
	Submatches     []Submatch `json:"submatches"`
}

// End closes a file section.
type End struct {
	Path         Data   `json:"path"`
	BinaryOffset *int64 `json:"binary_offset"`
	Stats        Stats  `json:"stats"`
}

// Summary is the final line of every engine run.
type Summary struct {
	ElapsedTotal Duration     `json:"elapsed_total"`
	Stats        SummaryStats `json:"stats"`
}

func (*Begin) Kind() Kind   { return KindBegin }
func (*Match) Kind() Kind   { return KindMatch }
func (*End) Kind() Kind     { return KindEnd }
func (*Summary) Kind() Kind { return KindSummary }

func (*Begin) event()   {}
func (*Match) event()   {}
func (*End) event()     {}
func (*Summary) event() {}

type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses one line of engine output.
func Decode(line []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: %q event has no data", ErrMalformedOutput, env.Type)
	}

	var ev Event
	switch env.Type {
	case KindBegin:
		ev = &Begin{}
	case KindMatch:
		ev = &Match{}
	case KindEnd:
		ev = &End{}
	case KindSummary:
		ev = &Summary{}
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedOutput, env.Type)
	}

	if err := json.Unmarshal(env.Data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", ErrMalformedOutput, env.Type, err)
	}
	return ev, nil
}

func encode(kind Kind, data interface{}) ([]byte, error) {
	return json.Marshal(struct {
		Type Kind        `json:"type"`
		Data interface{} `json:"data"`
	}{kind, data})
}

// The alias types below strip the MarshalJSON method so encode does not recurse.

func (b *Begin) MarshalJSON() ([]byte, error) {
	type plain Begin
	return encode(KindBegin, (*plain)(b))
}

func (m *Match) MarshalJSON() ([]byte, error) {
	type plain Match
	return encode(KindMatch, (*plain)(m))
}

func (e *End) MarshalJSON() ([]byte, error) {
	type plain End
	return encode(KindEnd, (*plain)(e))
}

func (s *Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return encode(KindSummary, (*plain)(s))
}
