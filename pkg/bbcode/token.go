package bbcode

import "fmt"

// TokenType identifies the kind of a Token.
type TokenType int

const (
	TokenText TokenType = iota
	TokenStartTag
	TokenEndTag
)

// String returns the string representation of the token type
func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "Text"
	case TokenStartTag:
		return "StartTag"
	case TokenEndTag:
		return "EndTag"
	default:
		return "Unknown"
	}
}

// MarshalText lets token types appear by name in JSON and YAML dumps.
func (t TokenType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText reads a token type written by MarshalText.
func (t *TokenType) UnmarshalText(text []byte) error {
	for _, candidate := range []TokenType{TokenText, TokenStartTag, TokenEndTag} {
		if candidate.String() == string(text) {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown token type %q", text)
}

// Token is an atomic lexical unit produced by the Tokenizer.
type Token struct {
	Type TokenType `json:"type" yaml:"type"`

	// Content is the text of a Text token or the name of a tag token.
	Content string `json:"content" yaml:"content"`

	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// Raw is the original bracketed literal of a tag token.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`

	// Offset is the byte offset of the token in the input.
	Offset int `json:"offset" yaml:"offset"`
}

// TextToken creates a text token.
func TextToken(content string) Token {
	return Token{Type: TokenText, Content: content}
}

// StartTagToken creates a start tag token.
func StartTagToken(name string, attrs map[string]string) Token {
	return Token{Type: TokenStartTag, Content: name, Attributes: attrs, Raw: "[" + name + "]"}
}

// EndTagToken creates an end tag token.
func EndTagToken(name string) Token {
	return Token{Type: TokenEndTag, Content: name, Raw: "[/" + name + "]"}
}

// Equal compares kind and content only; attributes are ignored.
func (t Token) Equal(other Token) bool {
	return t.Type == other.Type && t.Content == other.Content
}

// String renders the token as "content (Type)".
func (t Token) String() string {
	return fmt.Sprintf("%s (%s)", t.Content, t.Type)
}

// asText downgrades a tag token to a text token holding its original literal.
func (t *Token) asText() {
	if t.Type == TokenText {
		return
	}
	t.Content = t.Raw
	t.Type = TokenText
	t.Attributes = nil
}
