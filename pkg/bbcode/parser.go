package bbcode

// DefaultMaxDepth is the nesting limit applied by New unless overridden with
// WithMaxDepth. It bounds the recursion of the renderer on hostile input.
const DefaultMaxDepth = 256

// Parser converts BBCode to markup using a fixed tag registry.
type Parser struct {
	registry  *Registry
	tokenizer *Tokenizer
	builder   TreeBuilder
	renderer  *Renderer
	lineBreak string
}

// Option configures a Parser at construction.
type Option func(*Parser)

// WithMaxDepth limits how deeply tags may nest; documents exceeding it are
// treated as invalid. Zero or a negative value removes the limit.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		if depth < 0 {
			depth = 0
		}
		p.builder.MaxDepth = depth
	}
}

// WithLineBreak replaces the "<br>" marker substituted for line terminators.
func WithLineBreak(marker string) Option {
	return func(p *Parser) { p.lineBreak = marker }
}

// New creates a parser over registry.
func New(registry *Registry, opts ...Option) *Parser {
	p := &Parser{
		registry:  registry,
		builder:   TreeBuilder{MaxDepth: DefaultMaxDepth},
		lineBreak: DefaultLineBreak,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tokenizer = NewTokenizer(registry)
	p.renderer = NewRenderer(registry, p.lineBreak)
	return p
}

// Registry returns the parser's tag registry.
func (p *Parser) Registry() *Registry {
	return p.registry
}

// MaxDepth returns the configured nesting limit, zero meaning unlimited.
func (p *Parser) MaxDepth() int {
	return p.builder.MaxDepth
}

// Result is the outcome of Parse.
type Result struct {
	// Output is the rendered markup, or the unchanged input when Valid is false.
	Output string

	// Valid reports whether the document formed a well-nested tree.
	Valid bool

	// Problem explains an invalid document. Nil when Valid is true.
	Problem *Problem
}

// Inspection exposes the intermediate passes of a parse.
type Inspection struct {
	Tokens  []Token  `json:"tokens" yaml:"tokens"`
	Tree    *Node    `json:"tree" yaml:"tree"`
	Valid   bool     `json:"valid" yaml:"valid"`
	Problem *Problem `json:"problem,omitempty" yaml:"problem,omitempty"`
}

// ParseString converts content to markup. With no options, line breaks are
// inserted, text is escaped and tag markup is kept. A structurally invalid
// document is returned unchanged.
func (p *Parser) ParseString(content string, opts ...RenderOption) string {
	return p.Parse(content, opts...).Output
}

// Parse is ParseString reporting whether the document was valid and, if not,
// why it fell back to the raw input.
func (p *Parser) Parse(content string, opts ...RenderOption) Result {
	options := DefaultRenderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	ins := p.Inspect(content)
	if !ins.Valid {
		return Result{Output: content, Problem: ins.Problem}
	}
	return Result{
		Output: p.renderer.Render(ins.Tree.Children, options),
		Valid:  true,
	}
}

// Inspect runs the tokenizer and tree builder without rendering.
func (p *Parser) Inspect(content string) Inspection {
	tokens := p.Tokenize(content)
	tree, problem := p.builder.Diagnose(tokens)
	if tree != nil {
		tree.Content = content
	}
	return Inspection{
		Tokens:  tokens,
		Tree:    tree,
		Valid:   tree != nil && problem == nil && tree.IsValid(),
		Problem: problem,
	}
}

// Tokenize runs only the lexing pass.
func (p *Parser) Tokenize(content string) []Token {
	return p.tokenizer.Tokenize(content)
}

// BuildTree runs only the tree construction pass.
func (p *Parser) BuildTree(tokens []Token) (*Node, bool) {
	return p.builder.Build(tokens)
}

// Render renders already built nodes.
func (p *Parser) Render(children []*Node, opts ...RenderOption) string {
	options := DefaultRenderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return p.renderer.Render(children, options)
}
