package validation

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkupIssue is an element that was closed out of order or never closed.
type MarkupIssue struct {
	Element string `json:"element"`
	Message string `json:"message"`
}

func (i MarkupIssue) String() string {
	return fmt.Sprintf("<%s>: %s", i.Element, i.Message)
}

// voidElements never take an end tag.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Track: true,
	atom.Wbr: true,
}

// CheckMarkup tokenizes rendered output and reports elements that are not
// properly balanced. Void elements such as <br> and <img> are ignored.
func CheckMarkup(markup string) []MarkupIssue {
	var issues []MarkupIssue
	var open []string

	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				issues = append(issues, MarkupIssue{Message: z.Err().Error()})
			}
			for i := len(open) - 1; i >= 0; i-- {
				issues = append(issues, MarkupIssue{Element: open[i], Message: "never closed"})
			}
			return issues

		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[atom.Lookup(name)] {
				open = append(open, string(name))
			}

		case html.EndTagToken:
			raw, _ := z.TagName()
			name := string(raw)
			if voidElements[atom.Lookup(raw)] {
				continue
			}
			if len(open) == 0 || open[len(open)-1] != name {
				expected := ""
				if len(open) > 0 {
					expected = open[len(open)-1]
				}
				msg := "unexpected end tag"
				if expected != "" {
					msg = fmt.Sprintf("end tag does not close <%s>", expected)
				}
				issues = append(issues, MarkupIssue{Element: name, Message: msg})
				// Resynchronize on the nearest matching ancestor, if any.
				for i := len(open) - 1; i >= 0; i-- {
					if open[i] == name {
						open = open[:i]
						break
					}
				}
				continue
			}
			open = open[:len(open)-1]
		}
	}
}
