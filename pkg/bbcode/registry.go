package bbcode

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidTagName is returned for empty names or names containing
	// characters outside [A-Za-z0-9_-].
	ErrInvalidTagName = errors.New("bbcode: invalid tag name")

	// ErrDuplicateTag is returned when a name is registered twice.
	ErrDuplicateTag = errors.New("bbcode: duplicate tag")
)

// Registry is an immutable mapping from tag name to Tag definition.
//
// A Registry never changes after construction, so lookups need no locking and
// one instance can back any number of parsers.
type Registry struct {
	tags map[string]Tag
}

// NewRegistry builds a registry from the given tags. Names must be valid and
// unique.
func NewRegistry(tags ...Tag) (*Registry, error) {
	r := &Registry{tags: make(map[string]Tag, len(tags))}
	for _, tag := range tags {
		if err := ValidateTagName(tag.Name); err != nil {
			return nil, err
		}
		if _, exists := r.tags[tag.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTag, tag.Name)
		}
		r.tags[tag.Name] = tag
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Useful for init-time
// wiring of static tag sets.
func MustRegistry(tags ...Tag) *Registry {
	r, err := NewRegistry(tags...)
	if err != nil {
		panic(err)
	}
	return r
}

// Extend returns a new registry holding r's tags plus the given ones. A given
// tag replaces an existing tag of the same name; duplicates within tags are
// still rejected.
func (r *Registry) Extend(tags ...Tag) (*Registry, error) {
	added, err := NewRegistry(tags...)
	if err != nil {
		return nil, err
	}

	out := &Registry{tags: make(map[string]Tag, r.Len()+len(tags))}
	if r != nil {
		for name, tag := range r.tags {
			out.tags[name] = tag
		}
	}
	for name, tag := range added.tags {
		out.tags[name] = tag
	}
	return out, nil
}

// Lookup returns the tag registered under name.
func (r *Registry) Lookup(name string) (Tag, bool) {
	if r == nil {
		return Tag{}, false
	}
	tag, ok := r.tags[name]
	return tag, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Len returns the number of registered tags.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tags)
}

// Names returns the registered tag names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.tags))
	for name := range r.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tags returns the registered tags sorted by name.
func (r *Registry) Tags() []Tag {
	names := r.Names()
	tags := make([]Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, r.tags[name])
	}
	return tags
}

// ValidateTagName checks that name is a non-empty run of basic identifier
// characters.
func ValidateTagName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTagName)
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidTagName, name, name[i])
		}
	}
	return nil
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-'
}
