// Package tagconfig loads BBCode tag definitions from YAML, TOML or JSON
// files so deployments can add tags without recompiling.
//
// A definition file lists tags with their flags and an output template:
//
//	tags:
//	  - name: quote
//	    suppress_line_breaks: true
//	    template: '<blockquote>{{.Content}}</blockquote>'
//	  - name: color
//	    template: '<span style="color:{{attr "color"}}">{{.Content}}</span>'
//
// Templates use text/template. .Content is the already rendered body, .Name
// the tag name and .Attrs the raw attribute map. The attr function returns an
// attribute value escaped for use inside a quoted HTML attribute and escape
// escapes an arbitrary string.
package tagconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/pkg/bbcode"
)

// File is the on-disk layout of a tag definition file.
type File struct {
	Tags []Definition `json:"tags" yaml:"tags" toml:"tags"`
}

// Definition describes one tag.
type Definition struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description"`

	// InsertLineBreaks defaults to true when omitted.
	InsertLineBreaks   *bool `json:"insert_line_breaks,omitempty" yaml:"insert_line_breaks,omitempty" toml:"insert_line_breaks"`
	SuppressLineBreaks bool  `json:"suppress_line_breaks,omitempty" yaml:"suppress_line_breaks,omitempty" toml:"suppress_line_breaks"`
	NoNesting          bool  `json:"no_nesting,omitempty" yaml:"no_nesting,omitempty" toml:"no_nesting"`

	// Template renders the tag. Empty means <name>content</name>.
	Template string `json:"template,omitempty" yaml:"template,omitempty" toml:"template"`
}

// Tag compiles the definition.
func (d Definition) Tag() (bbcode.Tag, error) {
	if err := bbcode.ValidateTagName(d.Name); err != nil {
		return bbcode.Tag{}, err
	}

	tag := bbcode.Tag{
		Name:               d.Name,
		InsertLineBreaks:   d.InsertLineBreaks == nil || *d.InsertLineBreaks,
		SuppressLineBreaks: d.SuppressLineBreaks,
		NoNesting:          d.NoNesting,
	}
	if strings.TrimSpace(d.Template) != "" {
		gen, err := NewTemplateGenerator(d.Name, d.Template)
		if err != nil {
			return bbcode.Tag{}, err
		}
		tag.Generator = gen
	}
	return tag, nil
}

// Decode parses a definition file. format is the file extension, with or
// without the leading dot: yml, yaml, toml or json. Unknown keys are
// rejected so typos in flag names do not pass silently.
func Decode(data []byte, format string) (*File, error) {
	var file File

	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yml", "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && err != io.EOF {
			return nil, err
		}

	case "toml":
		meta, err := toml.Decode(string(data), &file)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
		}

	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported tag file format %q", format)
	}

	return &file, nil
}

// LoadFile reads and compiles the tags defined in path.
func LoadFile(path string) ([]bbcode.Tag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileError("read", path, err)
	}

	file, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.NewTagSetError(errors.ErrCodeTagSetInvalid, "cannot parse tag file", err).
			WithLocation(path, 0, 0)
	}

	tags := make([]bbcode.Tag, 0, len(file.Tags))
	for i, def := range file.Tags {
		tag, err := def.Tag()
		if err != nil {
			return nil, errors.NewTagSetError(errors.ErrCodeTagSetInvalid,
				fmt.Sprintf("tag #%d %q is invalid", i+1, def.Name), err).
				WithLocation(path, 0, 0)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Load extends base with the tags defined in paths. Later files override
// earlier ones and both override base. Names inside one file that differ only
// in case are rejected as ambiguous, since tag matching is case-sensitive and
// such pairs are almost always a typo.
func Load(base *bbcode.Registry, paths ...string) (*bbcode.Registry, error) {
	merged := make(map[string]bbcode.Tag)
	var order []string

	for _, path := range paths {
		tags, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := checkAmbiguous(path, tags); err != nil {
			return nil, err
		}
		for _, tag := range tags {
			if _, seen := merged[tag.Name]; !seen {
				order = append(order, tag.Name)
			}
			merged[tag.Name] = tag
		}
	}

	tags := make([]bbcode.Tag, 0, len(order))
	for _, name := range order {
		tags = append(tags, merged[name])
	}

	registry, err := base.Extend(tags...)
	if err != nil {
		return nil, errors.NewTagSetError(errors.ErrCodeTagSetInvalid, "cannot build tag registry", err)
	}
	return registry, nil
}

func checkAmbiguous(path string, tags []bbcode.Tag) error {
	fold := cases.Fold()
	seen := make(map[string]string, len(tags))
	for _, tag := range tags {
		key := fold.String(tag.Name)
		if prev, ok := seen[key]; ok {
			msg := fmt.Sprintf("tags %q and %q differ only in case", prev, tag.Name)
			if prev == tag.Name {
				msg = fmt.Sprintf("tag %q is defined twice", tag.Name)
			}
			return errors.NewTagSetError(errors.ErrCodeTagSetInvalid, msg, nil).WithLocation(path, 0, 0)
		}
		seen[key] = tag.Name
	}
	return nil
}
