// Package bbcode converts BBCode markup into HTML.
//
// Conversion runs in three passes over the input:
//
//   - Tokenizer: scans the raw string into Text, StartTag and EndTag tokens,
//     resolving the attribute syntax and the verbatim bodies of no-nesting tags.
//   - TreeBuilder: turns the token sequence into a rooted tree, or reports that
//     the document is structurally invalid.
//   - Renderer: walks the tree depth-first and asks each tag's markup generator
//     to wrap its rendered children.
//
// # Quick Start
//
//	registry := tagset.Default()
//	parser := bbcode.New(registry)
//
//	html := parser.ParseString("[b]bold[/b] and [i]italic[/i]")
//	// <b>bold</b> and <i>italic</i>
//
//	text := parser.ParseString("[b]bold[/b]", bbcode.WithStripTags(true))
//	// bold
//
// # Malformed Input
//
// Markup never produces an error. Tags missing from the registry are kept as
// literal text, and a document whose start and end tags do not pair up is
// returned unchanged rather than partially rendered.
//
// # Concurrency
//
// A Parser holds only an immutable Registry and its construction options, so a
// single instance may be shared by any number of goroutines.
package bbcode
