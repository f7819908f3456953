package exporter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/textfission/pkg/types"
)

func sampleRecords() []types.QARecord {
	return []types.QARecord{
		{
			Text:       "Go was designed at Google.",
			Question:   "Where was Go designed?",
			Answer:     "At Google.",
			Confidence: 0.9,
			Sources:    []string{"designed at Google"},
		},
		{
			Text:       "Line one,\n\"quoted\" <tag>",
			Question:   "What is quoted?",
			Answer:     "The word \"quoted\".",
			Confidence: 0.75,
			Sources:    []string{"a", "b"},
		},
		{
			Text:       "x",
			Question:   "Why?",
			Answer:     "Because.",
			Confidence: 1,
			Sources:    []string{},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		token string
		want  Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{" csv ", FormatCSV},
		{"txt", FormatText},
		{"TXT", FormatText},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.token)
		require.NoError(t, err, tt.token)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"", "xml", "jsonl", "text"} {
		_, err := ParseFormat(bad)
		assert.ErrorIs(t, err, types.ErrUnsupportedFormat, bad)
	}
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("out/data.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = FormatFromPath("out/data")
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, records, DefaultIndent))
	assert.Contains(t, buf.String(), "<tag>", "HTML is not escaped")
	assert.Contains(t, buf.String(), "\n  {")

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil, DefaultIndent))
	assert.Equal(t, "[]\n", buf.String())

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWriteJSON_NilSources(t *testing.T) {
	records := []types.QARecord{{Question: "q", Answer: "a"}}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, records, 0))
	assert.Contains(t, buf.String(), `"sources":[]`)
	assert.Nil(t, records[0].Sources, "input is not mutated")
}

func TestReadJSON_Invalid(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"text", "question", "answer", "confidence", "sources"}, rows[0])
	assert.Equal(t, []string{"Go was designed at Google.", "Where was Go designed?", "At Google.", "0.9", "designed at Google"}, rows[1])
	assert.Equal(t, "Line one,\n\"quoted\" <tag>", rows[2][0])
	assert.Equal(t, "0.75", rows[2][3])
	assert.Equal(t, "a | b", rows[2][4])
	assert.Equal(t, "1", rows[3][3])
	assert.Equal(t, "", rows[3][4])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "text,question,answer,confidence,sources\n", buf.String())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleRecords()[:1]))
	assert.Equal(t, "Q: Where was Go designed?\nA: At Google.\nConfidence: 0.9\nSources:\n  - designed at Google\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteText(&buf, sampleRecords()))
	blocks := strings.Split(buf.String(), "\n\n")
	require.Len(t, blocks, 3)
	assert.True(t, strings.HasPrefix(blocks[2], "Q: Why?\nA: Because.\nConfidence: 1"))
	assert.NotContains(t, blocks[2], "Sources:")
}

func TestWrite_Deterministic(t *testing.T) {
	for _, format := range Formats() {
		var a, b bytes.Buffer
		require.NoError(t, Write(&a, sampleRecords(), format, DefaultOptions()))
		require.NoError(t, Write(&b, sampleRecords(), format, DefaultOptions()))
		assert.Equal(t, a.String(), b.String(), format)
	}

	err := Write(&bytes.Buffer{}, nil, Format("xml"), DefaultOptions())
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, Export(sampleRecords(), path, FormatJSON, DefaultOptions()))

	got, err := ReadJSONFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestExport_RejectsTextToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	err := Export(sampleRecords(), path, Format("text"), DefaultOptions())
	assert.True(t, errors.Is(err, types.ErrUnsupportedFormat))
	assert.NoFileExists(t, path)
}

func TestExport_Errors(t *testing.T) {
	err := Export(sampleRecords(), filepath.Join(t.TempDir(), "out.xml"), Format("xml"), DefaultOptions())
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)

	err = Export(sampleRecords(), "", FormatJSON, DefaultOptions())
	assert.ErrorIs(t, err, types.ErrExport)

	// A regular file where a directory is expected
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	err = Export(sampleRecords(), filepath.Join(blocker, "out.json"), FormatJSON, DefaultOptions())
	assert.ErrorIs(t, err, types.ErrExport)
}
