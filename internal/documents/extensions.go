// ABOUTME: Client-side file type checks for knowledge base uploads
// ABOUTME: Rejections name the full allowed set and happen before any network call

package documents

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrDisallowedExtension matches every DisallowedExtensionError.
var ErrDisallowedExtension = errors.New("file type not allowed")

// DefaultExtensions is the set of file types the backend can ingest.
var DefaultExtensions = Extensions{
	".docx", ".hwp", ".pdf", ".epub", ".txt", ".html", ".htm", ".ipynb",
	".md", ".mbox", ".pptx", ".csv", ".xlsx", ".xml", ".rtf", ".mp4",
}

// DisallowedExtensionError reports a rejected file.
type DisallowedExtensionError struct {
	Name    string
	Ext     string
	Allowed Extensions
}

func (e *DisallowedExtensionError) Error() string {
	return fmt.Sprintf("File type %s is not allowed. Allowed types are: %s", e.Ext, strings.Join(e.Allowed, ", "))
}

func (e *DisallowedExtensionError) Is(target error) bool {
	return target == ErrDisallowedExtension
}

// Extensions is an allow list of lower-case extensions with a leading dot.
type Extensions []string

// Validate returns a *DisallowedExtensionError unless name has an allowed
// extension. Matching ignores case.
func (e Extensions) Validate(name string) error {
	ext := Ext(name)
	if slices.Contains(e, ext) {
		return nil
	}
	return &DisallowedExtensionError{Name: name, Ext: ext, Allowed: e}
}

// ValidateExtension checks name against DefaultExtensions.
func ValidateExtension(name string) error {
	return DefaultExtensions.Validate(name)
}

// Ext returns the lower-cased text after the last dot of name, with a leading
// dot. A name without a dot is treated as all extension.
func Ext(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return "." + strings.ToLower(name)
}

// extensionsFrom normalises a configured allow list, falling back to the
// defaults when it is empty.
func extensionsFrom(configured []string) Extensions {
	if len(configured) == 0 {
		return DefaultExtensions
	}
	out := make(Extensions, 0, len(configured))
	for _, ext := range configured {
		out = append(out, strings.ToLower(ext))
	}
	return out
}
