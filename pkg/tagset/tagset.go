// Package tagset provides the default BBCode tags: b, i, u, text, img, url
// and code.
package tagset

import (
	"strings"

	"github.com/conneroisu/bbcode/pkg/bbcode"
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
)

// EscapeAttr escapes a raw value for use inside a double-quoted HTML
// attribute.
func EscapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// quoteContent makes already rendered content safe inside a double-quoted
// attribute. The renderer has escaped the text characters, only quotes remain.
func quoteContent(s string) string {
	return strings.ReplaceAll(s, `"`, "&#34;")
}

// Bold renders [b] as <b>.
func Bold() bbcode.Tag { return bbcode.NewSimpleTag("b") }

// Italic renders [i] as <i>.
func Italic() bbcode.Tag { return bbcode.NewSimpleTag("i") }

// Underline renders [u] as <u>.
func Underline() bbcode.Tag { return bbcode.NewSimpleTag("u") }

// Text emits its body verbatim, without wrapping markup.
func Text() bbcode.Tag {
	return bbcode.Tag{
		Name:             "text",
		InsertLineBreaks: true,
		NoNesting:        true,
		Generator: bbcode.GeneratorFunc(func(_ bbcode.Tag, content string, _ map[string]string) string {
			return content
		}),
	}
}

// Image renders [img]src[/img] as <img src="src" />.
func Image() bbcode.Tag {
	return bbcode.NewTag("img", bbcode.GeneratorFunc(func(_ bbcode.Tag, content string, _ map[string]string) string {
		return `<img src="` + quoteContent(content) + `" />`
	}))
}

// Link renders [url]href[/url] and [url="href"]label[/url] as an anchor
// opening in a new window. Links without an http or https scheme get
// "http://" prepended.
func Link() bbcode.Tag {
	return bbcode.NewTag("url", bbcode.GeneratorFunc(func(tag bbcode.Tag, content string, attrs map[string]string) string {
		link := quoteContent(content)
		if href, ok := attrs[tag.Name]; ok {
			link = EscapeAttr(href)
		}
		if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
			link = "http://" + link
		}
		return `<a href="` + link + `" target="_blank">` + content + `</a>`
	}))
}

// Code captures its body verbatim and renders it in <code>, with the lang
// attribute as the element's class.
func Code() bbcode.Tag {
	return bbcode.Tag{
		Name:             "code",
		InsertLineBreaks: true,
		NoNesting:        true,
		Generator: bbcode.GeneratorFunc(func(_ bbcode.Tag, content string, attrs map[string]string) string {
			if lang, ok := attrs["lang"]; ok {
				return `<code class="` + EscapeAttr(lang) + `">` + content + `</code>`
			}
			return "<code>" + content + "</code>"
		}),
	}
}

// Tags returns the default tag definitions.
func Tags() []bbcode.Tag {
	return []bbcode.Tag{Bold(), Italic(), Underline(), Text(), Image(), Link(), Code()}
}

// Default returns a registry holding the default tags.
func Default() *bbcode.Registry {
	return bbcode.MustRegistry(Tags()...)
}
