package validation

import (
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "valid relative path", path: "./docs/intro.bb", wantErr: false},
		{name: "valid filename", path: "intro.bb", wantErr: false},
		{name: "dots inside a name", path: "notes..bb", wantErr: false},
		{name: "empty path", path: "", wantErr: true},
		{name: "path traversal with dots", path: "../../../etc/passwd", wantErr: true},
		{name: "traversal after clean", path: "docs/../../x", wantErr: true},
		{name: "path with dangerous characters", path: "file; rm -rf /", wantErr: true},
		{name: "path with command substitution", path: "file$(whoami).bb", wantErr: true},
		{name: "null byte", path: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocumentName(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "plain name", doc: "intro.bb", wantErr: false},
		{name: "nested", doc: "guides/setup.bb", wantErr: false},
		{name: "absolute", doc: "/etc/passwd", wantErr: true},
		{name: "escape", doc: "../secret.bb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocumentName(tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocumentName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	allowedOrigins := []string{
		"http://localhost:3000",
		"example.com",
	}

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{name: "allowed full origin", origin: "http://localhost:3000", wantErr: false},
		{name: "allowed by host", origin: "https://example.com", wantErr: false},
		{name: "other port", origin: "http://localhost:4000", wantErr: true},
		{name: "empty origin", origin: "", wantErr: true},
		{name: "file scheme", origin: "file://example.com", wantErr: true},
		{name: "unknown host", origin: "https://evil.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrigin(tt.origin, allowedOrigins)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOrigin() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileExtension(t *testing.T) {
	allowed := []string{".bb", ".BBCODE"}

	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{name: "allowed", filename: "a.bb", wantErr: false},
		{name: "case insensitive", filename: "a.BbCode", wantErr: false},
		{name: "not allowed", filename: "a.html", wantErr: true},
		{name: "no extension", filename: "README", wantErr: true},
		{name: "empty", filename: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileExtension(tt.filename, allowed)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFileExtension() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
