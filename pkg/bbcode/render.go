package bbcode

import "strings"

// DefaultLineBreak is the marker substituted for line terminators.
const DefaultLineBreak = "<br>"

// RenderOptions control a single rendering pass.
type RenderOptions struct {
	// StripTags discards tag markup and emits only the rendered content.
	StripTags bool

	// InsertLineBreak converts line terminators in top-level text. Nested
	// text follows the InsertLineBreaks flag of its enclosing tag.
	InsertLineBreak bool

	// EscapeOutput escapes '&', '<' and '>' in text.
	EscapeOutput bool
}

// DefaultRenderOptions returns the options used by ParseString when none are
// given: line breaks inserted, text escaped, tags kept.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{InsertLineBreak: true, EscapeOutput: true}
}

// RenderOption adjusts RenderOptions.
type RenderOption func(*RenderOptions)

// WithStripTags sets RenderOptions.StripTags.
func WithStripTags(strip bool) RenderOption {
	return func(o *RenderOptions) { o.StripTags = strip }
}

// WithInsertLineBreak sets RenderOptions.InsertLineBreak.
func WithInsertLineBreak(insert bool) RenderOption {
	return func(o *RenderOptions) { o.InsertLineBreak = insert }
}

// WithEscapeOutput sets RenderOptions.EscapeOutput.
func WithEscapeOutput(escape bool) RenderOption {
	return func(o *RenderOptions) { o.EscapeOutput = escape }
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes the three characters reserved in HTML text: '&', '<'
// and '>'.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Renderer walks a parse tree and produces output markup.
type Renderer struct {
	registry  *Registry
	lineBreak *strings.Replacer
}

// NewRenderer creates a renderer that resolves tags in registry and replaces
// line terminators with lineBreak.
func NewRenderer(registry *Registry, lineBreak string) *Renderer {
	return &Renderer{
		registry:  registry,
		lineBreak: strings.NewReplacer("\r\n", lineBreak, "\n", lineBreak, "\r", lineBreak),
	}
}

// Render renders children in document order.
func (r *Renderer) Render(children []*Node, opts RenderOptions) string {
	var b strings.Builder
	r.render(&b, children, opts.InsertLineBreak, opts)
	return b.String()
}

func (r *Renderer) render(b *strings.Builder, children []*Node, insertLineBreak bool, opts RenderOptions) {
	suppress := false

	for _, child := range children {
		if child == nil {
			continue
		}

		switch child.Type {
		case NodeTag:
			tag, ok := r.registry.Lookup(child.Content)
			if !ok {
				r.render(b, child.Children, insertLineBreak, opts)
				suppress = false
				continue
			}

			var inner strings.Builder
			r.render(&inner, child.Children, tag.InsertLineBreaks, opts)
			if opts.StripTags {
				b.WriteString(inner.String())
			} else {
				b.WriteString(tag.Markup(inner.String(), child.Attributes))
			}
			suppress = tag.SuppressLineBreaks

		default:
			text := child.Content
			if opts.EscapeOutput {
				text = EscapeHTML(text)
			}
			if insertLineBreak && !suppress {
				text = r.lineBreak.Replace(text)
			}
			suppress = false
			b.WriteString(text)
		}
	}
}
