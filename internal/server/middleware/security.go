package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/conneroisu/bbcode/internal/logging"
)

type nonceKey struct{}

// SecurityPolicy configures the headers set by Security.
type SecurityPolicy struct {
	// CSP is sent as Content-Security-Policy. A fresh nonce is added to
	// script-src on every request.
	CSP            *CSPConfig
	XFrameOptions  string
	ReferrerPolicy string
	NoSniff        bool
	Logger         logging.Logger
}

// CSPConfig lists the sources allowed per directive.
type CSPConfig struct {
	DefaultSrc []string
	ScriptSrc  []string
	StyleSrc   []string
	ImgSrc     []string
	ConnectSrc []string
}

// DefaultSecurityPolicy suits the preview pages: scripts only from the
// server or with the request nonce, images from anywhere since documents
// link to them, and inline styles for colored text.
func DefaultSecurityPolicy(logger logging.Logger) *SecurityPolicy {
	return &SecurityPolicy{
		CSP: &CSPConfig{
			DefaultSrc: []string{"'self'"},
			ScriptSrc:  []string{"'self'"},
			StyleSrc:   []string{"'self'", "'unsafe-inline'"},
			ImgSrc:     []string{"'self'", "data:", "http:", "https:"},
			ConnectSrc: []string{"'self'"},
		},
		XFrameOptions:  "SAMEORIGIN",
		ReferrerPolicy: "strict-origin-when-cross-origin",
		NoSniff:        true,
		Logger:         logger,
	}
}

// NonceFromContext returns the script nonce of the request, or "".
func NonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey{}).(string)
	return nonce
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Security sets the policy's response headers and stores a CSP nonce in
// the request context.
func Security(policy *SecurityPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			if policy.CSP != nil {
				nonce, err := generateNonce()
				if err != nil {
					if policy.Logger != nil {
						policy.Logger.Error(r.Context(), err, "Failed to generate CSP nonce")
					}
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), nonceKey{}, nonce))
				h.Set("Content-Security-Policy", buildCSPHeader(policy.CSP, nonce))
			}
			if policy.XFrameOptions != "" {
				h.Set("X-Frame-Options", policy.XFrameOptions)
			}
			if policy.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", policy.ReferrerPolicy)
			}
			if policy.NoSniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func buildCSPHeader(csp *CSPConfig, nonce string) string {
	var directives []string
	add := func(name string, values []string) {
		if len(values) > 0 {
			directives = append(directives, name+" "+strings.Join(values, " "))
		}
	}

	script := csp.ScriptSrc
	if nonce != "" {
		script = append(append([]string(nil), script...), "'nonce-"+nonce+"'")
	}

	add("default-src", csp.DefaultSrc)
	add("script-src", script)
	add("style-src", csp.StyleSrc)
	add("img-src", csp.ImgSrc)
	add("connect-src", csp.ConnectSrc)
	directives = append(directives, "object-src 'none'", "base-uri 'self'")
	return strings.Join(directives, "; ")
}
