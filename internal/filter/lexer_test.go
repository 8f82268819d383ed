package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTokens(t *testing.T, src string) []Token {
	t.Helper()
	lex := NewLexer(src)
	var toks []Token
	for {
		tok, err := lex.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks
		}
	}
}

func TestLexer_Keywords_CaseInsensitive(t *testing.T) {
	toks := allTokens(t, `userName EQ "alice" AND active Pr`)
	types := make([]Type, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []Type{Ident, Eq, String, And, Ident, Pr, EOF}, types)
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := allTokens(t, `"line\nbreak \"quoted\" A"`)
	require.Len(t, toks, 2)
	assert.Equal(t, "line\nbreak \"quoted\" A", toks[0].Literal)
}

func TestLexer_Number(t *testing.T) {
	toks := allTokens(t, `-12.5e2`)
	require.Len(t, toks, 2)
	assert.Equal(t, Number, toks[0].Type)
	assert.Equal(t, "-12.5e2", toks[0].Literal)
}

func TestLexer_URNQualifiedIdent(t *testing.T) {
	toks := allTokens(t, `urn:ietf:params:scim:schemas:core:2.0:User:userName eq "x"`)
	require.GreaterOrEqual(t, len(toks), 2)
	assert.Equal(t, Ident, toks[0].Type)
	assert.Equal(t, "urn:ietf:params:scim:schemas:core:2.0:User:userName", toks[0].Literal)
}

func TestLexer_UnterminatedString(t *testing.T) {
	lex := NewLexer(`"unterminated`)
	_, err := lex.Next()
	require.Error(t, err)
}

func TestLexer_UnknownRune(t *testing.T) {
	lex := NewLexer(`@`)
	_, err := lex.Next()
	require.Error(t, err)
}
