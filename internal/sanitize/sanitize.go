// Package sanitize filters rendered output through an allow-list HTML policy.
// Document text is already escaped by the parser; the policy covers the
// markup emitted by tag generators.
package sanitize

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	defaultOnce   sync.Once
	defaultPolicy *bluemonday.Policy
)

// Policy returns the shared output policy: bluemonday's user generated
// content policy extended with the attributes the default tags produce. A
// built policy is safe for concurrent use.
func Policy() *bluemonday.Policy {
	defaultOnce.Do(func() {
		policy := bluemonday.UGCPolicy()

		policy.AllowAttrs("class").
			Matching(regexp.MustCompile(`^[\w\- ]+$`)).
			OnElements("code", "span", "div", "blockquote", "pre")
		policy.AllowAttrs("target").
			Matching(regexp.MustCompile(`^_blank$`)).
			OnElements("a")
		policy.AllowStyles("color").
			Matching(regexp.MustCompile(`^#?[\w]+$`)).
			OnElements("span")
		policy.RequireNoReferrerOnFullyQualifiedLinks(true)

		defaultPolicy = policy
	})
	return defaultPolicy
}

// HTML sanitizes rendered markup with the shared policy.
func HTML(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return markup
	}
	return Policy().Sanitize(markup)
}
