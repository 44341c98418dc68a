package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	bberrors "github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/pkg/bbcode"
)

// RenderRequest is the body of POST /api/render. Unset options keep the
// configured defaults.
type RenderRequest struct {
	Content         string `json:"content"`
	StripTags       *bool  `json:"strip_tags,omitempty"`
	InsertLineBreak *bool  `json:"insert_line_break,omitempty"`
	EscapeOutput    *bool  `json:"escape_output,omitempty"`
}

func (r RenderRequest) options() []bbcode.RenderOption {
	var opts []bbcode.RenderOption
	if r.StripTags != nil {
		opts = append(opts, bbcode.WithStripTags(*r.StripTags))
	}
	if r.InsertLineBreak != nil {
		opts = append(opts, bbcode.WithInsertLineBreak(*r.InsertLineBreak))
	}
	if r.EscapeOutput != nil {
		opts = append(opts, bbcode.WithEscapeOutput(*r.EscapeOutput))
	}
	return opts
}

// RenderResponse is the reply to POST /api/render. HTML holds the raw input
// unchanged when Valid is false.
type RenderResponse struct {
	HTML    string               `json:"html"`
	Valid   bool                 `json:"valid"`
	Problem *bberrors.Diagnostic `json:"problem,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *PreviewServer) handleAPIRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.writeJSON(w, r, status, errorResponse{
			Error: "invalid render request: " + err.Error(),
			Code:  bberrors.ErrCodeValidationFailed,
		})
		return
	}

	doc := s.render.Render(r.Context(), "api", "", req.Content, req.options()...)
	resp := RenderResponse{HTML: doc.HTML, Valid: doc.Valid}
	if doc.Problem != nil {
		d := bberrors.FromProblem("", req.Content, doc.Problem)
		resp.Problem = &d
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

// handleRenderPath renders the unescaped remainder of the URL path and
// returns it as a fragment.
func (s *PreviewServer) handleRenderPath(w http.ResponseWriter, r *http.Request) {
	text := r.PathValue("text")
	doc := s.render.Render(r.Context(), "path", "", text)

	body := doc.HTML
	if !doc.Valid {
		body = bbcode.EscapeHTML(body)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-BBCode-Valid", strconv.FormatBool(doc.Valid))
	_, _ = w.Write([]byte(body))
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	docs, err := s.Documents()
	if err != nil {
		s.logger.Error(r.Context(), err, "Cannot list documents")
		http.Error(w, "cannot list documents", http.StatusInternalServerError)
		return
	}
	page := layout("Documents", indexPage(docs, s.render.Diagnostics(), s.render.Parser().Registry().Names()), "")
	templ.Handler(page).ServeHTTP(w, r)
}

func (s *PreviewServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, ok := s.resolveDocument(name)
	if !ok {
		docs, _ := s.Documents()
		page := layout("Not found", notFoundPage(name, suggest(name, docs)), "")
		templ.Handler(page, templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
		return
	}

	doc, err := s.render.RenderFile(r.Context(), "preview", path)
	if err != nil {
		s.logger.Error(r.Context(), err, "Cannot render document", "path", path)
		http.Error(w, "cannot read document", http.StatusInternalServerError)
		return
	}
	templ.Handler(layout(name, documentPage(name, doc), name)).ServeHTTP(w, r)
}

type diagnosticsResponse struct {
	Count       int                   `json:"count"`
	HasErrors   bool                  `json:"has_errors"`
	Diagnostics []bberrors.Diagnostic `json:"diagnostics"`
}

func (s *PreviewServer) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	c := s.render.Diagnostics()
	all := c.All()
	if file := r.URL.Query().Get("file"); file != "" {
		all = c.ByFile(file)
	}
	s.writeJSON(w, r, http.StatusOK, diagnosticsResponse{
		Count:       len(all),
		HasErrors:   c.HasErrors(),
		Diagnostics: all,
	})
}

type tagResponse struct {
	Name               string `json:"name"`
	InsertLineBreaks   bool   `json:"insert_line_breaks"`
	SuppressLineBreaks bool   `json:"suppress_line_breaks"`
	NoNesting          bool   `json:"no_nesting"`
}

func (s *PreviewServer) handleTags(w http.ResponseWriter, r *http.Request) {
	tags := s.render.Parser().Registry().Tags()
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagResponse{
			Name:               t.Name,
			InsertLineBreaks:   t.InsertLineBreaks,
			SuppressLineBreaks: t.SuppressLineBreaks,
			NoNesting:          t.NoNesting,
		})
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *PreviewServer) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.Documents()
	if err != nil {
		s.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if docs == nil {
		docs = []DocumentRef{}
	}
	s.writeJSON(w, r, http.StatusOK, docs)
}

func (s *PreviewServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode response")
	}
}
