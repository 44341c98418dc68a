package bbcode_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/bbcode/pkg/bbcode"
	"github.com/conneroisu/bbcode/pkg/tagset"
)

func TestParser_ParseString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bold", input: "[b]test[/b]", want: "<b>test</b>"},
		{
			name:  "nested",
			input: "tja [b][i]alla[/i][/b] noobs",
			want:  "tja <b><i>alla</i></b> noobs",
		},
		{
			name:  "code followed by line break",
			input: "bra [code]x=e^x[/code]?\n[b]Okej da![/b]",
			want:  "bra <code>x=e^x</code>?<br><b>Okej da!</b>",
		},
		{
			name:  "unterminated end tag",
			input: "tja [b]fan[/b da",
			want:  "tja [b]fan[/b da",
		},
		{
			name:  "unregistered tag",
			input: "Fungerar foljande: [troll]The troll tag[/troll]?",
			want:  "Fungerar foljande: [troll]The troll tag[/troll]?",
		},
		{
			name:  "unregistered tag beside registered",
			input: "Fungerar [b]foljande[/b]: [troll]The troll tag[/troll]?",
			want:  "Fungerar <b>foljande</b>: [troll]The troll tag[/troll]?",
		},
		{
			name:  "code with language",
			input: `Kod: [code lang="javascript"]function troll() { return lol[0](); }[/code]`,
			want:  `Kod: <code class="javascript">function troll() { return lol[0](); }</code>`,
		},
		{
			name:  "code body keeps brackets",
			input: "[code][[1,2,3],[4,5,6]][/code]",
			want:  "<code>[[1,2,3],[4,5,6]]</code>",
		},
		{name: "crlf", input: "Test\r\ndå!", want: "Test<br>då!"},
		{
			name:  "link with attribute",
			input: `[url="http://google.se"]Google.se[/url]`,
			want:  `<a href="http://google.se" target="_blank">Google.se</a>`,
		},
		{
			name:  "link from content",
			input: "[url]example.com[/url]",
			want:  `<a href="http://example.com" target="_blank">example.com</a>`,
		},
		{
			name:  "image",
			input: "[img]https://x/y.png[/img]",
			want:  `<img src="https://x/y.png" />`,
		},
		{
			name:  "text tag",
			input: "[text][b]raw[/b][/text]",
			want:  "[b]raw[/b]",
		},
		{name: "empty marker before open tag", input: "[b]test[]", want: "[b]test[]"},
		{name: "stray end tag", input: "[]test[/b]", want: "[]test[/b]"},
		{name: "repeated start tag", input: "[b]test[b]", want: "[b]test[b]"},
		{name: "crossed tags", input: "[b][i]x[/b][/i]", want: "[b][i]x[/b][/i]"},
		{name: "empty input", input: "", want: ""},
		{name: "plain text", input: "no markup here", want: "no markup here"},
		{name: "invalid output is not escaped", input: "<b>[i]", want: "<b>[i]"},
	}

	parser := newParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parser.ParseString(tt.input))
		})
	}
}

func TestParser_StripTags(t *testing.T) {
	parser := newParser()
	assert.Equal(t, "test", parser.ParseString("[b][i]test[/i][/b]", bbcode.WithStripTags(true)))
	assert.Equal(t, "Google.se", parser.ParseString(`[url="http://google.se"]Google.se[/url]`, bbcode.WithStripTags(true)))
}

func TestParser_AttributeEscaping(t *testing.T) {
	parser := newParser()

	out := parser.ParseString(`[url="javascript:x&quot;<"]a[/url]`)
	assert.Equal(t, `<a href="http://javascript:x&amp;quot;&lt;" target="_blank">a</a>`, out)

	out = parser.ParseString(`[img]a" onerror="x[/img]`)
	assert.Equal(t, `<img src="a&#34; onerror=&#34;x" />`, out)

	out = parser.ParseString(`[code lang="a&lt;"]x[/code]`)
	assert.Equal(t, `<code class="a&amp;lt;">x</code>`, out)
}

func TestParser_Parse(t *testing.T) {
	parser := newParser()

	result := parser.Parse("[b]ok[/b]")
	assert.True(t, result.Valid)
	assert.Nil(t, result.Problem)
	assert.Equal(t, "<b>ok</b>", result.Output)

	result = parser.Parse("[b]ok[/i]")
	assert.False(t, result.Valid)
	require.NotNil(t, result.Problem)
	assert.Equal(t, bbcode.ProblemMismatchedEndTag, result.Problem.Kind)
	assert.Equal(t, "[b]ok[/i]", result.Output)
}

func TestParser_MaxDepth(t *testing.T) {
	nested := func(depth int) string {
		return strings.Repeat("[b]", depth) + "x" + strings.Repeat("[/b]", depth)
	}

	parser := newParser()
	assert.Equal(t, bbcode.DefaultMaxDepth, parser.MaxDepth())

	deep := nested(bbcode.DefaultMaxDepth + 1)
	result := parser.Parse(deep)
	assert.False(t, result.Valid)
	require.NotNil(t, result.Problem)
	assert.Equal(t, bbcode.ProblemDepthExceeded, result.Problem.Kind)
	assert.Equal(t, deep, result.Output)

	atLimit := nested(bbcode.DefaultMaxDepth)
	assert.True(t, parser.Parse(atLimit).Valid)

	unlimited := bbcode.New(tagset.Default(), bbcode.WithMaxDepth(0))
	assert.Equal(t, 0, unlimited.MaxDepth())
	out := unlimited.ParseString(deep)
	assert.True(t, strings.HasPrefix(out, "<b><b>"))
	assert.True(t, strings.HasSuffix(out, "</b></b>"))

	negative := bbcode.New(tagset.Default(), bbcode.WithMaxDepth(-5))
	assert.Equal(t, 0, negative.MaxDepth())
}

func TestParser_Inspect(t *testing.T) {
	parser := newParser()

	ins := parser.Inspect("a[b]c[/b]")
	assert.True(t, ins.Valid)
	assert.Nil(t, ins.Problem)
	assert.Len(t, ins.Tokens, 4)
	require.NotNil(t, ins.Tree)
	assert.Equal(t, "a[b]c[/b]", ins.Tree.Content)
	assert.Len(t, ins.Tree.Children, 2)

	ins = parser.Inspect("[b]c")
	assert.False(t, ins.Valid)
	require.NotNil(t, ins.Problem)
	assert.Equal(t, bbcode.ProblemUnclosedTag, ins.Problem.Kind)
	assert.Equal(t, 0, ins.Problem.Offset)
}

func TestParser_Passes(t *testing.T) {
	parser := newParser()

	tokens := parser.Tokenize("x[i]y[/i]")
	tree, valid := parser.BuildTree(tokens)
	require.True(t, valid)
	assert.Equal(t, "x<i>y</i>", parser.Render(tree.Children))
	assert.Same(t, parser.Registry(), parser.Registry())
}

func TestParser_Concurrent(t *testing.T) {
	parser := newParser()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := fmt.Sprintf("[b]%d[/b]\n[code]%d[/code]", i, i)
			want := fmt.Sprintf("<b>%d</b><br><code>%d</code>", i, i)
			for range 50 {
				assert.Equal(t, want, parser.ParseString(input))
			}
		}(i)
	}
	wg.Wait()
}
