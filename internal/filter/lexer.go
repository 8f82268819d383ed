package filter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/imulab/scim-proxy/internal/scimerr"
)

// Lexer produces a stream of Tokens over a RFC 7644 §3.4.2.2 filter
// expression. Whitespace separates tokens and is otherwise insignificant.
type Lexer struct {
	src string
	pos int // byte offset of the next rune to read
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src}
}

// Next scans and returns the next Token, or an *scimerr.Error wrapping
// scimerr.ErrInvalidFilter on an unterminated string or unrecognized rune.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()

	if l.pos >= len(l.src) {
		return Token{Type: EOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.peek()

	switch {
	case ch == '(':
		l.advance()
		return Token{Type: LParen, Literal: "(", Pos: start}, nil
	case ch == ')':
		l.advance()
		return Token{Type: RParen, Literal: ")", Pos: start}, nil
	case ch == '[':
		l.advance()
		return Token{Type: LBrack, Literal: "[", Pos: start}, nil
	case ch == ']':
		l.advance()
		return Token{Type: RBrack, Literal: "]", Pos: start}, nil
	case ch == '.':
		l.advance()
		return Token{Type: Dot, Literal: ".", Pos: start}, nil
	case ch == '"':
		return l.scanString()
	case ch == '-' || isDigit(ch):
		return l.scanNumber()
	case isIdentStart(ch):
		return l.scanIdentOrKeyword()
	default:
		return Token{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "unexpected character %q at position %d", ch, start)
	}
}

func (l *Lexer) peek() rune {
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	return r
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		r := l.peek()
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			break
		}
		l.advance()
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > utf8.RuneSelf
}

// isIdentPart additionally allows digits, hyphens, and colons so that
// schema-URN-qualified attribute names (urn:ietf:...:User:userName) and
// hyphenated attribute names lex as a single token.
func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r) || r == '-' || r == ':'
}

func (l *Lexer) scanIdentOrKeyword() (Token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if isIdentPart(r) {
			l.advance()
			continue
		}
		// A dot followed by a digit is part of a schema URN version
		// ("...:core:2.0:User"); attribute names never start with a digit.
		if r == '.' && l.pos+1 < len(l.src) && isDigit(rune(l.src[l.pos+1])) {
			l.advance()
			continue
		}
		break
	}
	text := l.src[start:l.pos]
	if typ, ok := keywords[strings.ToLower(text)]; ok {
		return Token{Type: typ, Literal: text, Pos: start}, nil
	}
	return Token{Type: Ident, Literal: text, Pos: start}, nil
}

func (l *Lexer) scanNumber() (Token, error) {
	start := l.pos
	if l.peek() == '-' {
		l.advance()
	}
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	if l.pos < len(l.src) && l.peek() == '.' {
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.pos < len(l.src) && (l.peek() == 'e' || l.peek() == 'E') {
		l.advance()
		if l.pos < len(l.src) && (l.peek() == '+' || l.peek() == '-') {
			l.advance()
		}
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	return Token{Type: Number, Literal: l.src[start:l.pos], Pos: start}, nil
}

func (l *Lexer) scanString() (Token, error) {
	start := l.pos
	l.advance() // opening quote

	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "unterminated string literal starting at position %d", start)
		}
		ch := l.advance()
		if ch == '"' {
			break
		}
		if ch != '\\' {
			b.WriteRune(ch)
			continue
		}
		if l.pos >= len(l.src) {
			return Token{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "unterminated escape sequence at position %d", start)
		}
		esc := l.advance()
		switch esc {
		case '"':
			b.WriteRune('"')
		case '\\':
			b.WriteRune('\\')
		case '/':
			b.WriteRune('/')
		case 'b':
			b.WriteRune('\b')
		case 'f':
			b.WriteRune('\f')
		case 'n':
			b.WriteRune('\n')
		case 'r':
			b.WriteRune('\r')
		case 't':
			b.WriteRune('\t')
		case 'u':
			if l.pos+4 > len(l.src) {
				return Token{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "truncated unicode escape at position %d", l.pos)
			}
			var code rune
			if _, err := fmt.Sscanf(l.src[l.pos:l.pos+4], "%04x", &code); err != nil {
				return Token{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "invalid unicode escape at position %d", l.pos)
			}
			l.pos += 4
			b.WriteRune(code)
		default:
			return Token{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "invalid escape %q at position %d", esc, l.pos-1)
		}
	}
	return Token{Type: String, Literal: b.String(), Pos: start}, nil
}
