package ripgrep

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	beginLine   = `{"type":"begin","data":{"path":{"text":"src/main.rs"}}}`
	matchLine   = `{"type":"match","data":{"path":{"text":"src/main.rs"},"lines":{"text":"fn main() {\n"},"line_number":3,"absolute_offset":20,"submatches":[{"match":{"text":"main"},"start":3,"end":7}]}}`
	endLine     = `{"type":"end","data":{"path":{"text":"src/main.rs"},"binary_offset":null,"stats":{"elapsed":{"secs":0,"nanos":1200,"human":"0.000001s"},"searches":1,"searches_with_match":1,"bytes_searched":80,"bytes_printed":200,"matched_lines":1,"matches":1}}}`
	summaryLine = `{"data":{"elapsed_total":{"human":"0.005s","nanos":5000000,"secs":0},"stats":{"bytes_printed":200,"bytes_searched":80,"elapsed":{"human":"0.000001s","nanos":1200,"secs":0},"matched_lines":1,"matches":1,"searches":1,"searches_with_match":1}},"type":"summary"}`
)

func TestDecode(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		ev, err := Decode([]byte(beginLine))
		require.NoError(t, err)
		begin, ok := ev.(*Begin)
		require.True(t, ok)
		assert.Equal(t, KindBegin, begin.Kind())
		assert.Equal(t, "src/main.rs", begin.Path.String())
	})

	t.Run("match", func(t *testing.T) {
		ev, err := Decode([]byte(matchLine))
		require.NoError(t, err)
		m, ok := ev.(*Match)
		require.True(t, ok)
		assert.Equal(t, "src/main.rs", m.Path.String())
		assert.True(t, m.Lines.HasText())
		assert.Equal(t, "fn main() {\n", m.Lines.String())
		require.NotNil(t, m.LineNumber)
		assert.Equal(t, int64(3), *m.LineNumber)
		assert.Equal(t, int64(20), m.AbsoluteOffset)
		require.Len(t, m.Submatches, 1)
		assert.Equal(t, "main", m.Submatches[0].Match.String())
		assert.Equal(t, 3, m.Submatches[0].Start)
		assert.Equal(t, 7, m.Submatches[0].End)
	})

	t.Run("end", func(t *testing.T) {
		ev, err := Decode([]byte(endLine))
		require.NoError(t, err)
		e, ok := ev.(*End)
		require.True(t, ok)
		assert.Nil(t, e.BinaryOffset)
		assert.Equal(t, int64(1), e.Stats.Matches)
	})

	t.Run("summary", func(t *testing.T) {
		ev, err := Decode([]byte(summaryLine))
		require.NoError(t, err)
		s, ok := ev.(*Summary)
		require.True(t, ok)
		assert.Equal(t, "0.005s", s.ElapsedTotal.Human)
		assert.Equal(t, int64(1), s.Stats.MatchedLines)
		assert.False(t, s.Stats.Truncated)
	})

	t.Run("bytes path", func(t *testing.T) {
		// "caf\xe9.txt" is not valid UTF-8
		ev, err := Decode([]byte(`{"type":"begin","data":{"path":{"bytes":"Y2Fm6S50eHQ="}}}`))
		require.NoError(t, err)
		begin := ev.(*Begin)
		assert.False(t, begin.Path.HasText())
		assert.Equal(t, "caf\xe9.txt", begin.Path.String())
	})

	t.Run("match with bytes lines", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"match","data":{"path":{"text":"a"},"lines":{"bytes":"/w=="},"line_number":1,"absolute_offset":0,"submatches":[]}}`))
		require.NoError(t, err)
		assert.False(t, ev.(*Match).Lines.HasText())
	})
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", `not json`},
		{"truncated", `{"type":"match","data":{`},
		{"unknown type", `{"type":"context","data":{}}`},
		{"missing type", `{"data":{}}`},
		{"missing data", `{"type":"begin"}`},
		{"wrong data shape", `{"type":"match","data":{"line_number":"three"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.line))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestEvent_MarshalKeepsEnvelope(t *testing.T) {
	for _, line := range []string{beginLine, matchLine, endLine} {
		ev, err := Decode([]byte(line))
		require.NoError(t, err)

		out, err := json.Marshal(ev)
		require.NoError(t, err)

		var env map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(out, &env))
		assert.Contains(t, env, "type")
		assert.Contains(t, env, "data")

		again, err := Decode(out)
		require.NoError(t, err)
		assert.Equal(t, ev, again)
	}
}

func TestSummary_MarshalIncludesTruncated(t *testing.T) {
	ev, err := Decode([]byte(summaryLine))
	require.NoError(t, err)
	s := ev.(*Summary)
	s.Stats.Truncated = true

	out, err := json.Marshal(s)
	require.NoError(t, err)

	var got struct {
		Type string `json:"type"`
		Data struct {
			Stats map[string]interface{} `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "summary", got.Type)
	assert.Equal(t, true, got.Data.Stats["truncated"])
	assert.Equal(t, float64(1), got.Data.Stats["matched_lines"])
}
