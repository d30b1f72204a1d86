// Package export renders conversations to standalone HTML and saves binary
// exports (spreadsheets, word cloud images) returned by the API.
//
// The HTML template is embedded with //go:embed so the binary has no runtime
// file dependencies.
package export
