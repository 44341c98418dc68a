package bbcode

// MarkupGenerator wraps the rendered content of a tag in output markup.
//
// Implementations must be pure and must not panic for any attribute map,
// including a nil map or one missing the keys the generator expects.
type MarkupGenerator interface {
	GenerateMarkup(tag Tag, content string, attrs map[string]string) string
}

// GeneratorFunc adapts an ordinary function to the MarkupGenerator interface.
type GeneratorFunc func(tag Tag, content string, attrs map[string]string) string

// GenerateMarkup calls f(tag, content, attrs).
func (f GeneratorFunc) GenerateMarkup(tag Tag, content string, attrs map[string]string) string {
	return f(tag, content, attrs)
}

// DefaultGenerator renders <name>content</name>.
var DefaultGenerator MarkupGenerator = GeneratorFunc(func(tag Tag, content string, _ map[string]string) string {
	return "<" + tag.Name + ">" + content + "</" + tag.Name + ">"
})

// Tag describes how a single BBCode tag is recognised and rendered.
type Tag struct {
	// Name is the identifier between the brackets, e.g. "b" for [b].
	Name string

	// InsertLineBreaks converts line terminators in the tag's direct text
	// children into the parser's line-break marker.
	InsertLineBreaks bool

	// SuppressLineBreaks skips line-break conversion for the text sibling
	// immediately following the tag.
	SuppressLineBreaks bool

	// NoNesting captures the tag body verbatim up to the literal end marker,
	// so brackets inside it are never interpreted as markup.
	NoNesting bool

	// Generator produces the output markup. DefaultGenerator is used when nil.
	Generator MarkupGenerator
}

// NewSimpleTag returns a tag rendered as <name>content</name> that inserts
// line breaks in its content.
func NewSimpleTag(name string) Tag {
	return Tag{Name: name, InsertLineBreaks: true}
}

// NewTag returns a line-break inserting tag using the given generator.
func NewTag(name string, generator MarkupGenerator) Tag {
	return Tag{Name: name, InsertLineBreaks: true, Generator: generator}
}

// Markup renders content through the tag's generator.
func (t Tag) Markup(content string, attrs map[string]string) string {
	if t.Generator == nil {
		return DefaultGenerator.GenerateMarkup(t, content, attrs)
	}
	return t.Generator.GenerateMarkup(t, content, attrs)
}

// EndMarker returns the literal closing marker, e.g. "[/code]".
func (t Tag) EndMarker() string {
	return "[/" + t.Name + "]"
}
