package source

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyPath is returned when Load is called without a path
	ErrEmptyPath = errors.New("empty source path")
	// ErrNotAFile is returned when the path names a directory or device
	ErrNotAFile = errors.New("source is not a regular file")
	// ErrUnsupportedEncoding is returned for charset names htmlindex does not know
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
)

// DefaultEncoding is assumed when Options.Encoding is empty
const DefaultEncoding = "utf-8"

// Kind is how a document's text was extracted
type Kind string

const (
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindHTML     Kind = "html"
)

// Document is a loaded input ready for chunking
type Document struct {
	Name     string // Path as given, used as the chunk source
	Kind     Kind
	Text     string
	Markdown bool // Chunk at markdown headings too
}

// Options controls how files are decoded
type Options struct {
	Encoding string `yaml:"encoding"`
}

// FromText wraps in-memory text as a Document
func FromText(name, text string) Document {
	return Document{
		Name: name,
		Kind: KindText,
		Text: normalize(text),
	}
}

// Load reads and decodes one file. HTML is reduced to headings and text
// blocks; markdown is kept verbatim but flagged for heading-aware chunking.
func Load(path string, opts Options) (Document, error) {
	if strings.TrimSpace(path) == "" {
		return Document{}, ErrEmptyPath
	}

	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return Document{}, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data, err := decode(raw, opts.Encoding)
	if err != nil {
		return Document{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	doc := Document{Name: path, Kind: KindOf(path)}
	switch doc.Kind {
	case KindHTML:
		text, err := htmlToText(bytes.NewReader(data))
		if err != nil {
			return Document{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		doc.Text = normalize(text)
		doc.Markdown = true
	case KindMarkdown:
		doc.Text = normalize(string(data))
		doc.Markdown = true
	default:
		doc.Text = normalize(string(data))
	}

	return doc, nil
}

// LoadAll loads paths in order, stopping at the first failure
func LoadAll(paths []string, opts Options) ([]Document, error) {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		doc, err := Load(p, opts)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// KindOf classifies a path by extension
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return KindHTML
	case ".md", ".markdown", ".mdown":
		return KindMarkdown
	default:
		return KindText
	}
}

// decode converts raw bytes in the named charset to UTF-8
func decode(raw []byte, name string) ([]byte, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")), nil
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lookupEncoding returns nil for UTF-8, which needs no transform
func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, name)
	}

	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return nil, nil
	}
	return enc, nil
}

// ValidateEncoding reports whether name is a known charset
func ValidateEncoding(name string) error {
	_, err := lookupEncoding(name)
	return err
}

// normalize applies NFC and converts CRLF and lone CR line endings to LF
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}
