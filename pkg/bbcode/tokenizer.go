package bbcode

import "strings"

// Tokenizer scans raw input into tokens, consulting a registry to decide
// which markers are markup and which tag bodies are verbatim.
type Tokenizer struct {
	registry *Registry
}

// NewTokenizer creates a tokenizer for the given registry.
func NewTokenizer(registry *Registry) *Tokenizer {
	return &Tokenizer{registry: registry}
}

// Tokenize splits content into Text, StartTag and EndTag tokens. It accepts
// any string: markers that do not resolve are kept as text and tags missing
// from the registry are downgraded to text holding their original literal.
func (t *Tokenizer) Tokenize(content string) []Token {
	s := &scanner{
		input:    content,
		registry: t.registry,
		textFrom: -1,
	}
	s.run()
	return s.tokens
}

// scanner holds the state of one Tokenize call. Pending text is always a
// contiguous span of the input, so only its bounds are tracked.
type scanner struct {
	input    string
	registry *Registry
	tokens   []Token

	textFrom int
	textTo   int
}

func (s *scanner) run() {
	in := s.input
	pos := 0

	for pos < len(in) {
		rel := strings.IndexByte(in[pos:], '[')
		if rel < 0 {
			s.pending(pos, len(in))
			break
		}
		open := pos + rel
		s.pending(pos, open)

		end := -1
		for j := open + 1; j < len(in); j++ {
			if in[j] == ']' {
				end = j
				break
			}
			// A new '[' abandons the marker opened so far.
			if in[j] == '[' {
				s.pending(open, j)
				open = j
			}
		}
		if end < 0 {
			s.pending(open, len(in))
			break
		}
		pos = end + 1

		tok, ok := parseMarker(in[open:pos])
		if !ok {
			s.pending(open, pos)
			continue
		}
		tok.Offset = open

		tag, registered := s.registry.Lookup(tok.Content)
		if !registered {
			tok.asText()
		}
		s.emit(tok)

		if registered && tag.NoNesting && tok.Type == TokenStartTag {
			pos = s.verbatim(tag, pos)
		}
	}

	s.flush()
}

// verbatim captures everything from pos up to the tag's literal end marker
// and returns the position just past that marker. Without an end marker the
// remainder of the input becomes pending text.
func (s *scanner) verbatim(tag Tag, pos int) int {
	marker := tag.EndMarker()
	rel := strings.Index(s.input[pos:], marker)
	if rel < 0 {
		s.pending(pos, len(s.input))
		return len(s.input)
	}
	bodyEnd := pos + rel

	s.emit(Token{Type: TokenText, Content: s.input[pos:bodyEnd], Offset: pos})
	s.emit(Token{Type: TokenEndTag, Content: tag.Name, Raw: marker, Offset: bodyEnd})
	return bodyEnd + len(marker)
}

func (s *scanner) pending(from, to int) {
	if from >= to {
		return
	}
	if s.textFrom < 0 {
		s.textFrom = from
	}
	s.textTo = to
}

func (s *scanner) flush() {
	if s.textFrom < 0 {
		return
	}
	s.tokens = append(s.tokens, Token{
		Type:    TokenText,
		Content: s.input[s.textFrom:s.textTo],
		Offset:  s.textFrom,
	})
	s.textFrom = -1
}

func (s *scanner) emit(tok Token) {
	s.flush()
	s.tokens = append(s.tokens, tok)
}

// parseMarker interprets a complete "[...]" marker. It reports false when the
// marker is not a well-formed tag.
func parseMarker(marker string) (Token, bool) {
	if len(marker) < 3 {
		return Token{}, false
	}

	if marker[1] == '/' {
		return Token{Type: TokenEndTag, Content: marker[2 : len(marker)-1], Raw: marker}, true
	}

	name, attrs, ok := parseStartTag(marker[1 : len(marker)-1])
	if !ok {
		return Token{}, false
	}
	return Token{Type: TokenStartTag, Content: name, Attributes: attrs, Raw: marker}, true
}

// parseStartTag applies the attribute grammar to the interior of a start
// marker:
//
//	name ( '=' quoted )? ( ' '+ key '=' quoted )* ' '*
//
// The shorthand value after the name is stored under the tag's own name. The
// first occurrence of a repeated key wins.
func parseStartTag(interior string) (string, map[string]string, bool) {
	nameEnd := strings.IndexAny(interior, " =")
	if nameEnd < 0 {
		return interior, nil, true
	}
	name := interior[:nameEnd]
	if name == "" {
		return "", nil, false
	}

	var attrs map[string]string
	set := func(key, value string) {
		if attrs == nil {
			attrs = make(map[string]string)
		}
		if _, exists := attrs[key]; !exists {
			attrs[key] = value
		}
	}

	rest := interior[nameEnd:]
	if rest[0] == '=' {
		value, remaining, ok := readQuoted(rest[1:])
		if !ok {
			return "", nil, false
		}
		set(name, value)
		rest = remaining
	}

	for {
		trimmed := strings.TrimLeft(rest, " ")
		if trimmed == "" {
			break
		}
		// Attribute groups must be separated by at least one space.
		if len(trimmed) == len(rest) {
			return "", nil, false
		}

		eq := strings.IndexByte(trimmed, '=')
		if eq <= 0 {
			return "", nil, false
		}
		key := trimmed[:eq]
		if strings.ContainsAny(key, " \"") {
			return "", nil, false
		}

		value, remaining, ok := readQuoted(trimmed[eq+1:])
		if !ok {
			return "", nil, false
		}
		set(key, value)
		rest = remaining
	}

	return name, attrs, true
}

// readQuoted reads a double-quoted value, skipping leading spaces, and returns
// the value and the input following the closing quote.
func readQuoted(s string) (string, string, bool) {
	s = strings.TrimLeft(s, " ")
	if s == "" || s[0] != '"' {
		return "", "", false
	}
	closing := strings.IndexByte(s[1:], '"')
	if closing < 0 {
		return "", "", false
	}
	return s[1 : closing+1], s[closing+2:], true
}
