// Package docs is the entry point of the bbcode documentation.
//
// bbcode renders BBCode markup to HTML in three passes: a tokenizer splits
// the input into text and tag tokens, a tree builder nests them, and a
// renderer asks each tag's generator for its markup. Input that does not
// form a well nested tree is returned unchanged, so a broken post is shown
// as the author wrote it rather than half rendered.
//
// # Quick Start
//
//	// Write a configuration, an example tag file and a sample document
//	bbcode init --example
//
//	// Render a document to stdout
//	bbcode render docs/welcome.bb
//
//	// Report documents that are not well formed
//	bbcode check
//
//	// Live preview with reload on save
//	bbcode serve
//
// # Library Use
//
//	parser := bbcode.New(tagset.Default())
//	html := parser.ParseString("[b]hello[/b]") // <b>hello</b>
//
//	res := parser.Parse("[b]x[/i]")
//	// res.Valid == false, res.Output == "[b]x[/i]", res.Problem says why
//
// Tags beyond the defaults are registered in code with bbcode.NewTag and a
// GeneratorFunc, or declared in a tag file:
//
//	tags:
//	  - name: quote
//	    template: '<blockquote>{{.Content}}</blockquote>'
//
// # Architecture
//
//   - pkg/bbcode: Tokenizer, tree builder, renderer and tag registry
//   - pkg/tagset: The default tags (b, i, u, text, img, url, code)
//   - pkg/bbtempl: templ components for rendered documents
//   - cmd/: Cobra based command interface
//   - internal/services: Rendering of files and directory trees
//   - internal/server: Preview server with websocket live reload
//   - internal/watcher: Debounced file system monitoring
//
// # Configuration
//
// Settings come from .bbcode.yml, BBCODE_ prefixed environment variables
// and command-line flags, in increasing order of precedence:
//
//	parser:
//	  max_depth: 256
//	  escape_output: true
//	  sanitize: false
//	tags:
//	  files: [tags.yml]
//	server:
//	  port: 8080
//	watch:
//	  paths: [docs]
//	  output_dir: public
package docs
