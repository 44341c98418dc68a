package server

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/sahilm/fuzzy"

	bberrors "github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/server/middleware"
	"github.com/conneroisu/bbcode/internal/services"
	"github.com/conneroisu/bbcode/pkg/bbcode"
	"github.com/conneroisu/bbcode/pkg/bbtempl"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:0;padding:20px;background:#f5f5f5}
main{max-width:960px;margin:0 auto;background:#fff;padding:20px;border-radius:8px;box-shadow:0 2px 10px rgba(0,0,0,.1)}
h1{border-bottom:2px solid #007acc;padding-bottom:10px}
.fallback{border-left:4px solid #d9534f;padding-left:10px}
.problem{color:#d9534f;font-size:14px}
.tags code{margin-right:6px}
pre{white-space:pre-wrap}`

// reloadScript reloads the page when the server reports a change to target,
// or to any document when target is empty.
const reloadScript = `(function(){
var target=document.body.dataset.target||"";
function connect(){
var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/ws");
ws.onmessage=function(e){var m=JSON.parse(e.data);if(m.type==="reload"&&(target===""||m.target===target)){location.reload();}};
ws.onclose=function(){setTimeout(connect,1000);};
}
connect();
})();`

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

func layout(title string, body templ.Component, target string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		err := write(w,
			`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`,
			templ.EscapeString(title), ` - bbcode preview</title><style>`, pageStyle,
			`</style></head><body data-target="`, templ.EscapeString(target), `"><main>`,
		)
		if err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		nonce := middleware.NonceFromContext(ctx)
		return write(w, `</main><script nonce="`, templ.EscapeString(nonce), `">`, reloadScript, `</script></body></html>`)
	})
}

func documentHref(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/doc/" + strings.Join(parts, "/")
}

func indexPage(docs []DocumentRef, diags *bberrors.Collector, tags []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w, `<h1>Documents</h1>`); err != nil {
			return err
		}
		if len(docs) == 0 {
			if err := write(w, `<p>No documents found in the watched paths.</p>`); err != nil {
				return err
			}
		} else {
			if err := write(w, `<ul>`); err != nil {
				return err
			}
			for _, d := range docs {
				class := ""
				if len(diags.ByFile(d.Path)) > 0 {
					class = ` class="fallback"`
				}
				err := write(w, `<li`, class, `><a href="`, templ.EscapeString(documentHref(d.Name)), `">`,
					templ.EscapeString(d.Name), `</a></li>`)
				if err != nil {
					return err
				}
			}
			if err := write(w, `</ul>`); err != nil {
				return err
			}
		}

		if err := write(w, `<h2>Tags</h2><p class="tags">`); err != nil {
			return err
		}
		for _, t := range tags {
			if err := write(w, `<code>[`, templ.EscapeString(t), `]</code>`); err != nil {
				return err
			}
		}
		return write(w, `</p>`)
	})
}

func documentPage(name string, doc services.Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w, `<p><a href="/">All documents</a></p><h1>`, templ.EscapeString(name), `</h1>`); err != nil {
			return err
		}
		if doc.Valid {
			if err := write(w, `<article>`); err != nil {
				return err
			}
			if err := bbtempl.Markup(doc.HTML).Render(ctx, w); err != nil {
				return err
			}
			return write(w, `</article>`)
		}
		msg := "document is not well formed"
		if doc.Problem != nil {
			msg = doc.Problem.Error()
		}
		return write(w,
			`<p class="problem">Shown as plain text: `, templ.EscapeString(msg), `</p>`,
			`<article class="fallback"><pre>`, bbcode.EscapeHTML(doc.HTML), `</pre></article>`,
		)
	})
}

func notFoundPage(name string, suggestions []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		err := write(w, `<h1>Not found</h1><p>`,
			templ.EscapeString(fmt.Sprintf("No watched document is named %q.", name)), `</p>`)
		if err != nil {
			return err
		}
		if len(suggestions) > 0 {
			if err := write(w, `<p>Did you mean:</p><ul>`); err != nil {
				return err
			}
			for _, sug := range suggestions {
				err := write(w, `<li><a href="`, templ.EscapeString(documentHref(sug)), `">`,
					templ.EscapeString(sug), `</a></li>`)
				if err != nil {
					return err
				}
			}
			if err := write(w, `</ul>`); err != nil {
				return err
			}
		}
		return write(w, `<p><a href="/">All documents</a></p>`)
	})
}

// maxSuggestions bounds the "did you mean" list of the not found page.
const maxSuggestions = 3

// suggest returns the document names that fuzzily match name, best first.
func suggest(name string, docs []DocumentRef) []string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	matches := fuzzy.Find(name, names)
	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// Fragment renders content as a templ component for embedding in other
// pages served alongside the preview.
func (s *PreviewServer) Fragment(content string, opts ...bbcode.RenderOption) templ.Component {
	return bbtempl.Component(s.render.Parser(), content, opts...)
}
