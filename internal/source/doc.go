// Package source loads input documents for dataset generation.
//
// Plain text and markdown files are read as-is. HTML files are reduced to
// their readable content: headings become ATX headings and paragraphs, list
// items and table rows become blank-line separated blocks, so the chunker can
// keep them intact. Scripts, styles and navigation are dropped.
//
// Input in a legacy charset is decoded by name (any WHATWG encoding label,
// e.g. "gbk", "shift_jis", "windows-1252"). All text is NFC normalised with
// LF line endings, which keeps chunk content hashes stable across platforms.
package source
