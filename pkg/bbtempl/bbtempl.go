// Package bbtempl renders BBCode documents as templ components, so a
// document can be embedded in a templ page like any other component:
//
//	templ Post(p *bbcode.Parser, body string) {
//		<article>@bbtempl.Component(p, body)</article>
//	}
package bbtempl

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/bbcode/pkg/bbcode"
)

// Component renders content with parser when the component is rendered. A
// document that is not well formed is written as escaped plain text, since
// its raw input must not be interpreted as markup.
func Component(parser *bbcode.Parser, content string, opts ...bbcode.RenderOption) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := parser.Parse(content, opts...)
		out := result.Output
		if !result.Valid {
			out = bbcode.EscapeHTML(out)
		}
		_, err := io.WriteString(w, out)
		return err
	})
}

// Markup wraps already rendered output. The caller vouches for its safety.
func Markup(html string) templ.Component {
	return templ.Raw(html)
}
