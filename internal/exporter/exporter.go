package exporter

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dshills/textfission/pkg/types"
)

// Format is an export file format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

// DefaultIndent is the JSON indentation width
const DefaultIndent = 2

// SourceSeparator joins a record's sources into one CSV cell
const SourceSeparator = " | "

// csvHeader is the fixed column order of CSV exports
var csvHeader = []string{"text", "question", "answer", "confidence", "sources"}

// Options tunes serialization
type Options struct {
	Indent int `yaml:"indent"` // JSON indent; zero for compact output
}

// DefaultOptions returns the options used by the CLI
func DefaultOptions() Options {
	return Options{Indent: DefaultIndent}
}

// Formats lists the supported format tokens
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatText}
}

// ParseFormat maps a format token to a Format, case-insensitively
func ParseFormat(token string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(token))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatText:
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q (expected json, csv or txt)", types.ErrUnsupportedFormat, token)
}

// FormatFromPath infers the format from a file extension
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Write serializes records to w in the given format
func Write(w io.Writer, records []types.QARecord, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, records, opts.Indent)
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatText:
		return WriteText(w, records)
	}
	return fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, format)
}

// Export writes records to path. The file is written to a temporary sibling
// and renamed into place, so a failed export never leaves a truncated dataset.
func Export(records []types.QARecord, path string, format Format, opts Options) (err error) {
	parsed, err := ParseFormat(string(format))
	if err != nil {
		return err
	}
	format = parsed
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty output path", types.ErrExport)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", types.ErrExport, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s is not writable: %w", types.ErrExport, dir, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := Write(bw, records, format, opts); err != nil {
		return fmt.Errorf("%w: %w", types.ErrExport, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrExport, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrExport, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", types.ErrExport, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", types.ErrExport, path, err)
	}

	log.Debug().
		Str("path", path).
		Str("format", string(format)).
		Int("records", len(records)).
		Msg("dataset exported")

	return nil
}

// WriteJSON writes records as a JSON array in input order
func WriteJSON(w io.Writer, records []types.QARecord, indent int) error {
	if records == nil {
		records = []types.QARecord{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}

	return enc.Encode(normalizeSources(records))
}

// ReadJSON parses a JSON export
func ReadJSON(r io.Reader) ([]types.QARecord, error) {
	var records []types.QARecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	if records == nil {
		records = []types.QARecord{}
	}
	return normalizeSources(records), nil
}

// ReadJSONFile parses a JSON export from disk
func ReadJSONFile(path string) ([]types.QARecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return ReadJSON(f)
}

// WriteCSV writes a header row followed by one row per record
func WriteCSV(w io.Writer, records []types.QARecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			r.Text,
			r.Question,
			r.Answer,
			formatConfidence(r.Confidence),
			strings.Join(r.Sources, SourceSeparator),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteText writes human-readable question/answer blocks separated by a
// blank line
func WriteText(w io.Writer, records []types.QARecord) error {
	var b strings.Builder

	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Q: %s\n", r.Question)
		fmt.Fprintf(&b, "A: %s\n", r.Answer)
		fmt.Fprintf(&b, "Confidence: %s\n", formatConfidence(r.Confidence))
		if len(r.Sources) > 0 {
			b.WriteString("Sources:\n")
			for _, s := range r.Sources {
				fmt.Fprintf(&b, "  - %s\n", s)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatConfidence(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// normalizeSources returns records whose nil source lists are empty, so JSON
// always carries an array
func normalizeSources(records []types.QARecord) []types.QARecord {
	out := records
	copied := false
	for i := range records {
		if records[i].Sources != nil {
			continue
		}
		if !copied {
			out = make([]types.QARecord, len(records))
			copy(out, records)
			copied = true
		}
		out[i].Sources = []string{}
	}
	return out
}
