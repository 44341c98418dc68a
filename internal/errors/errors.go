package errors

import (
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/conneroisu/bbcode/pkg/bbcode"
)

// Severity represents the severity of a diagnostic
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText writes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText reads a severity by name.
func (s *Severity) UnmarshalText(text []byte) error {
	for _, candidate := range []Severity{SeverityInfo, SeverityWarning, SeverityError} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Diagnostic is a problem found in a document, located by line and column.
type Diagnostic struct {
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Column    int       `json:"column"`
	Severity  Severity  `json:"severity"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

// FromProblem turns a parse problem into an error diagnostic. content is the
// document the problem's offset refers to.
func FromProblem(file, content string, problem *bbcode.Problem) Diagnostic {
	line, column := LineColumn(content, problem.Offset)
	return Diagnostic{
		File:     file,
		Line:     line,
		Column:   column,
		Severity: SeverityError,
		Kind:     problem.Kind.String(),
		Message:  problem.Error(),
	}
}

// LineColumn converts a byte offset into a 1-based line and a 1-based column
// counted in runes. Offsets past the end clamp to the end of content.
func LineColumn(content string, offset int) (int, int) {
	if offset > len(content) {
		offset = len(content)
	}
	if offset < 0 {
		offset = 0
	}

	line, lineStart := 1, 0
	for i := 0; i < offset; i++ {
		if content[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, utf8.RuneCountInString(content[lineStart:offset]) + 1
}

// Collector gathers diagnostics from concurrent producers, keyed by file so
// a re-check replaces the previous results.
type Collector struct {
	mu     sync.RWMutex
	byFile map[string][]Diagnostic
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{byFile: make(map[string][]Diagnostic)}
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byFile[d.File] = append(c.byFile[d.File], d)
}

// Reset forgets the diagnostics of file.
func (c *Collector) Reset(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byFile, file)
}

// Clear clears all diagnostics
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byFile = make(map[string][]Diagnostic)
}

// HasErrors reports whether any diagnostic has error severity.
func (c *Collector) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, diags := range c.byFile {
		for _, d := range diags {
			if d.Severity >= SeverityError {
				return true
			}
		}
	}
	return false
}

// Len returns the number of recorded diagnostics.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, diags := range c.byFile {
		n += len(diags)
	}
	return n
}

// ByFile returns a copy of the diagnostics recorded for file.
func (c *Collector) ByFile(file string) []Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Diagnostic(nil), c.byFile[file]...)
}

// All returns every diagnostic ordered by file, line and column.
func (c *Collector) All() []Diagnostic {
	c.mu.RLock()
	all := make([]Diagnostic, 0)
	for _, diags := range c.byFile {
		all = append(all, diags...)
	}
	c.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return all
}
