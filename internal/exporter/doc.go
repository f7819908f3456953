// Package exporter serializes question/answer records to dataset files.
//
// Three formats are supported:
//   - json: an array of record objects in input order
//   - csv: header text,question,answer,confidence,sources with sources
//     joined by " | "
//   - txt: Q/A blocks separated by a blank line
//
// Output is deterministic for a given record list. Export writes through a
// temporary file and renames it into place.
package exporter
