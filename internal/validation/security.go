// Package validation holds input checks for paths, origins and document
// names, plus a well-formedness check for rendered markup.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidatePath validates a file path to prevent path traversal attacks
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}

	if strings.ContainsAny(path, ";&|$`<>\x00") {
		return fmt.Errorf("path contains dangerous character: %q", path)
	}
	return nil
}

// ValidateDocumentName checks a document name taken from a request path. It
// must be a relative path that stays inside the served directory.
func ValidateDocumentName(name string) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("document name must be relative: %s", name)
	}
	return nil
}

// ValidateOrigin validates a WebSocket origin against the allow list. An entry
// matches either the full origin or its host.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}
	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

// ValidateFileExtension validates file extensions against an allowlist
func ValidateFileExtension(filename string, allowedExtensions []string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("file must have an extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return fmt.Errorf("file extension '%s' is not allowed", ext)
}
