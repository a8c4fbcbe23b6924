package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litecode-org/lcc/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexKeywordsAndTypes(t *testing.T) {
	toks := Lex([]byte("val num X = 2;"))
	require.True(t, len(toks) > 0)
	assert.Equal(t, []token.Kind{
		token.KwVal, token.KwNum, token.Identifier, token.Assign,
		token.IntLiteral, token.Semicolon, token.EOF,
	}, kinds(toks))
}

func TestLexAlwaysEndsInEOF(t *testing.T) {
	for _, src := range []string{"", "run {};", "@@@ !!! $$$"} {
		toks := Lex([]byte(src))
		require.NotEmpty(t, toks)
		last := toks[len(toks)-1]
		assert.Equal(t, token.EOF, last.Kind)
		// Exactly one EOF, at the end.
		for _, tok := range toks[:len(toks)-1] {
			assert.NotEqual(t, token.EOF, tok.Kind)
		}
	}
}

func TestLexLineAndColumnTracking(t *testing.T) {
	toks := Lex([]byte("a\nbb cc"))
	// a
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 1, toks[0].Column)
	// newline token
	assert.Equal(t, token.Newline, toks[1].Kind)
	// bb starts line 2 col 1
	assert.Equal(t, 2, toks[2].Line)
	assert.Equal(t, 1, toks[2].Column)
	// cc starts line 2 col 4
	assert.Equal(t, 2, toks[3].Line)
	assert.Equal(t, 4, toks[3].Column)
}

func TestLexOperators(t *testing.T) {
	toks := Lex([]byte("+>> -> == != <= >= && || !! < > + - * / %"))
	want := []token.Kind{
		token.Concat, token.Arrow, token.Eq, token.NotEq, token.Le, token.Ge,
		token.AndAnd, token.OrOr, token.NotNot, token.Lt, token.Gt,
		token.Plus, token.Minus, token.Star, token.Slash, token.Percent,
		token.EOF,
	}
	assert.Equal(t, want, kinds(toks))
}

func TestLexComments(t *testing.T) {
	toks := Lex([]byte("val num X = 1; // trailing comment\nval num Y = 2;"))
	for _, tok := range toks {
		assert.NotContains(t, tok.Lexeme, "comment")
	}
}

func TestLexBlockComment(t *testing.T) {
	toks := Lex([]byte("val /? this is a\nmultiline comment ?/ num X = 1;"))
	assert.Equal(t, []token.Kind{
		token.KwVal, token.KwNum, token.Identifier, token.Assign,
		token.IntLiteral, token.Semicolon, token.EOF,
	}, kinds(toks))
}

func TestLexUnterminatedBlockCommentToleratedToEOF(t *testing.T) {
	toks := Lex([]byte("val /? never closes"))
	assert.Equal(t, []token.Kind{token.KwVal, token.EOF}, kinds(toks))
}

func TestLexStringLiteralPreservesEscapesRaw(t *testing.T) {
	toks := Lex([]byte(`"a\nb"`))
	require.Len(t, toks, 2)
	assert.Equal(t, token.TextLiteral, toks[0].Kind)
	assert.Equal(t, `a\nb`, toks[0].Lexeme)
}

func TestLexUnterminatedStringEmitsNothing(t *testing.T) {
	toks := Lex([]byte(`"never closed`))
	assert.Equal(t, []token.Kind{token.EOF}, kinds(toks))
}

func TestLexCharLiteral(t *testing.T) {
	toks := Lex([]byte(`'a' '\n'`))
	require.Len(t, toks, 3)
	assert.Equal(t, token.CharLiteral, toks[0].Kind)
	assert.Equal(t, "a", toks[0].Lexeme)
	assert.Equal(t, `\n`, toks[1].Lexeme)
}

func TestLexInvalidCharLiteralEmitsNothing(t *testing.T) {
	toks := Lex([]byte(`'ab'`))
	// 'a is scanned, then b' remains -- "ab" with closing quote missing
	// right after 'a' means the literal is rejected and lexing resumes.
	assert.NotContains(t, kinds(toks), token.CharLiteral)
}

func TestDecodeEscapes(t *testing.T) {
	assert.Equal(t, "a\nb\tc\r\\\"'", DecodeEscapes(`a\nb\tc\r\\\"\'`))
}

func TestLexFormatSpecifierTokens(t *testing.T) {
	toks := Lex([]byte(":d :f :s"))
	assert.Equal(t, []token.Kind{token.FmtD, token.FmtF, token.FmtS, token.EOF}, kinds(toks))
}

func TestLexColonBeforeIdentifierStaysColon(t *testing.T) {
	toks := Lex([]byte(":dx :y"))
	assert.Equal(t, []token.Kind{
		token.Colon, token.Identifier, token.Colon, token.Identifier, token.EOF,
	}, kinds(toks))
}

func TestLexDecimalNumberLowersToInteger(t *testing.T) {
	toks := Lex([]byte("3.14"))
	require.Len(t, toks, 2)
	assert.Equal(t, token.IntLiteral, toks[0].Kind)
	assert.Equal(t, "3.14", toks[0].Lexeme)
}
