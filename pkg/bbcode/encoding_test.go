package bbcode_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/bbcode/pkg/bbcode"
	"github.com/conneroisu/bbcode/pkg/tagset"
)

func TestTextEncoding_Names(t *testing.T) {
	for _, typ := range []bbcode.TokenType{bbcode.TokenText, bbcode.TokenStartTag, bbcode.TokenEndTag} {
		var got bbcode.TokenType
		text, err := typ.MarshalText()
		require.NoError(t, err)
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, typ, got)
	}

	for _, typ := range []bbcode.NodeType{bbcode.NodeRoot, bbcode.NodeText, bbcode.NodeTag} {
		var got bbcode.NodeType
		text, err := typ.MarshalText()
		require.NoError(t, err)
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, typ, got)
	}

	kinds := []bbcode.ProblemKind{
		bbcode.ProblemMismatchedEndTag,
		bbcode.ProblemUnclosedTag,
		bbcode.ProblemDepthExceeded,
	}
	for _, kind := range kinds {
		var got bbcode.ProblemKind
		text, err := kind.MarshalText()
		require.NoError(t, err)
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, kind, got)
	}
}

func TestTextEncoding_UnknownNames(t *testing.T) {
	var tokenType bbcode.TokenType
	assert.Error(t, tokenType.UnmarshalText([]byte("Comment")))

	var nodeType bbcode.NodeType
	assert.Error(t, nodeType.UnmarshalText([]byte("")))

	var kind bbcode.ProblemKind
	assert.Error(t, kind.UnmarshalText([]byte("unknown")))
}

func TestProblem_JSONRoundTrip(t *testing.T) {
	want := bbcode.Problem{Kind: bbcode.ProblemUnclosedTag, Tag: "b", Offset: 3}

	data, err := json.Marshal(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"unclosed tag"`)

	var got bbcode.Problem
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, got)
}

func TestInspection_RoundTrip(t *testing.T) {
	parser := bbcode.New(tagset.Default())
	equateEmpty := cmpopts.EquateEmpty()

	for _, input := range []string{`[url="http://a.se"]a[/url] [b]x[/b]`, "[b][i]x[/b]"} {
		want := parser.Inspect(input)

		t.Run("json "+input, func(t *testing.T) {
			data, err := json.Marshal(want)
			require.NoError(t, err)

			var got bbcode.Inspection
			require.NoError(t, json.Unmarshal(data, &got))
			if diff := cmp.Diff(want, got, equateEmpty); diff != "" {
				t.Errorf("json round trip mismatch (-want +got):\n%s", diff)
			}
		})

		t.Run("yaml "+input, func(t *testing.T) {
			data, err := yaml.Marshal(want)
			require.NoError(t, err)

			var got bbcode.Inspection
			require.NoError(t, yaml.Unmarshal(data, &got))
			if diff := cmp.Diff(want, got, equateEmpty); diff != "" {
				t.Errorf("yaml round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
