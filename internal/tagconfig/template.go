package tagconfig

import (
	"strings"
	"text/template"

	"github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/pkg/bbcode"
	"github.com/conneroisu/bbcode/pkg/tagset"
)

// TemplateData is the value a tag template executes against.
type TemplateData struct {
	Name    string
	Content string
	Attrs   map[string]string
}

// TemplateGenerator renders a tag through a parsed text/template.
type TemplateGenerator struct {
	tmpl *template.Template
}

// NewTemplateGenerator parses source as the template for the named tag.
// Missing map keys render as the empty string.
func NewTemplateGenerator(name, source string) (*TemplateGenerator, error) {
	tmpl, err := template.New(name).
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			// attr is replaced per execution; this stub lets Parse resolve it.
			"attr":   func(string) string { return "" },
			"escape": tagset.EscapeAttr,
		}).
		Parse(source)
	if err != nil {
		return nil, errors.NewTagSetError(errors.ErrCodeTemplateInvalid, "cannot parse template for tag "+name, err)
	}
	return &TemplateGenerator{tmpl: tmpl}, nil
}

// GenerateMarkup executes the template. An execution error yields the bare
// content, since a generator must not fail the whole document.
func (g *TemplateGenerator) GenerateMarkup(tag bbcode.Tag, content string, attrs map[string]string) string {
	// Clone gives each call its own function map, keeping the generator safe
	// for concurrent parsers.
	tmpl, err := g.tmpl.Clone()
	if err != nil {
		return content
	}
	tmpl.Funcs(template.FuncMap{
		"attr": func(key string) string { return tagset.EscapeAttr(attrs[key]) },
	})

	var b strings.Builder
	data := TemplateData{Name: tag.Name, Content: content, Attrs: attrs}
	if err := tmpl.Execute(&b, data); err != nil {
		return content
	}
	return b.String()
}
