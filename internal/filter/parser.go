package filter

import (
	"strconv"
	"strings"

	"github.com/imulab/scim-proxy/internal/scimerr"
)

// DefaultMaxComplexity is used when a caller does not configure
// MAX_FILTER_COMPLEXITY explicitly.
const DefaultMaxComplexity = 50

// Parser is a recursive-descent parser over the grammar:
//
//	filter  := or
//	or      := and ("or" and)*
//	and     := not ("and" not)*
//	not     := "not" primary | primary
//	primary := "(" filter ")" | comp | pres | complex
//	comp    := path OP literal
//	pres    := path "pr"
//	complex := path "[" filter "]" ("." attrname)?
//	path    := ident ("[" filter "]")? ("." ident)*
//
// Each comparison, presence check, logical connective, and complex node
// increments an internal complexity counter; once it exceeds maxComplexity
// parsing fails with scimerr.ErrTooMany.
type Parser struct {
	lex           *Lexer
	tok           Token
	peeked        bool
	maxComplexity int
	complexity    int
}

// NewParser returns a Parser over src, rejecting filters whose complexity
// counter (§3 invariant ii) exceeds maxComplexity.
func NewParser(src string, maxComplexity int) *Parser {
	if maxComplexity <= 0 {
		maxComplexity = DefaultMaxComplexity
	}
	return &Parser{lex: NewLexer(src), maxComplexity: maxComplexity}
}

// Parse compiles the filter into an AST. It is the sole entry point into the
// grammar above.
func Parse(src string, maxComplexity int) (Node, error) {
	p := NewParser(src, maxComplexity)
	node, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) current() (Token, error) {
	if !p.peeked {
		tok, err := p.lex.Next()
		if err != nil {
			return Token{}, err
		}
		p.tok = tok
		p.peeked = true
	}
	return p.tok, nil
}

func (p *Parser) advance() error {
	if _, err := p.current(); err != nil {
		return err
	}
	p.peeked = false
	return nil
}

func (p *Parser) expectEOF() error {
	tok, err := p.current()
	if err != nil {
		return err
	}
	if tok.Type != EOF {
		return scimerr.Wrap(scimerr.ErrInvalidFilter, "unexpected token %q at position %d", tok.Literal, tok.Pos)
	}
	return nil
}

func (p *Parser) bumpComplexity() error {
	p.complexity++
	if p.complexity > p.maxComplexity {
		return scimerr.Wrap(scimerr.ErrTooMany, "filter complexity %d exceeds limit %d", p.complexity, p.maxComplexity)
	}
	return nil
}

func (p *Parser) parseFilter() (Node, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.current()
		if err != nil {
			return nil, err
		}
		if tok.Type != Or {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if err := p.bumpComplexity(); err != nil {
			return nil, err
		}
		left = &OrNode{Left: left, Right: right}
	}
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.current()
		if err != nil {
			return nil, err
		}
		if tok.Type != And {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if err := p.bumpComplexity(); err != nil {
			return nil, err
		}
		left = &AndNode{Left: left, Right: right}
	}
}

func (p *Parser) parseNot() (Node, error) {
	tok, err := p.current()
	if err != nil {
		return nil, err
	}
	if tok.Type == Not {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if err := p.bumpComplexity(); err != nil {
			return nil, err
		}
		return &NotNode{Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	tok, err := p.current()
	if err != nil {
		return nil, err
	}

	if tok.Type == LParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		tok, err = p.current()
		if err != nil {
			return nil, err
		}
		if tok.Type != RParen {
			return nil, scimerr.Wrap(scimerr.ErrInvalidFilter, "expected ')' at position %d", tok.Pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	}

	if tok.Type != Ident {
		return nil, scimerr.Wrap(scimerr.ErrInvalidFilter, "expected attribute path at position %d, got %q", tok.Pos, tok.Literal)
	}

	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}

	tok, err = p.current()
	if err != nil {
		return nil, err
	}

	switch {
	case tok.Type == Pr:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.bumpComplexity(); err != nil {
			return nil, err
		}
		return &PresentNode{Path: path}, nil

	case tok.Type.IsCompareOp():
		op := compareOpFor(tok.Type)
		if err := p.advance(); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if err := p.bumpComplexity(); err != nil {
			return nil, err
		}
		return &CompareNode{Path: path, Op: op, Value: lit}, nil

	default:
		if path.Selector == nil {
			return nil, scimerr.Wrap(scimerr.ErrInvalidFilter, "expected comparison operator or 'pr' at position %d", tok.Pos)
		}
		if err := p.bumpComplexity(); err != nil {
			return nil, err
		}
		return &ComplexNode{
			Path:      AttrPath{URI: path.URI, Attr: path.Attr},
			Predicate: path.Selector,
			Sub:       path.Sub,
		}, nil
	}
}

func compareOpFor(t Type) CompareOp {
	switch t {
	case Eq:
		return OpEq
	case Ne:
		return OpNe
	case Co:
		return OpCo
	case Sw:
		return OpSw
	case Ew:
		return OpEw
	case Gt:
		return OpGt
	case Ge:
		return OpGe
	case Lt:
		return OpLt
	case Le:
		return OpLe
	default:
		panic("not a comparison operator")
	}
}

// parsePath parses `ident ("[" filter "]")? ("." ident)*`. The bracketed
// selector, if any, may only follow the base attribute — a sub-attribute is
// never itself complex (§4.5).
func (p *Parser) parsePath() (AttrPath, error) {
	tok, err := p.current()
	if err != nil {
		return AttrPath{}, err
	}
	if tok.Type != Ident {
		return AttrPath{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "expected attribute name at position %d", tok.Pos)
	}
	uri, attr := splitURI(tok.Literal)
	if err := p.advance(); err != nil {
		return AttrPath{}, err
	}

	path := AttrPath{URI: uri, Attr: attr}

	tok, err = p.current()
	if err != nil {
		return AttrPath{}, err
	}
	if tok.Type == LBrack {
		if err := p.advance(); err != nil {
			return AttrPath{}, err
		}
		pred, err := p.parseFilter()
		if err != nil {
			return AttrPath{}, err
		}
		tok, err = p.current()
		if err != nil {
			return AttrPath{}, err
		}
		if tok.Type != RBrack {
			return AttrPath{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "expected ']' at position %d", tok.Pos)
		}
		if err := p.advance(); err != nil {
			return AttrPath{}, err
		}
		path.Selector = pred
	}

	for {
		tok, err = p.current()
		if err != nil {
			return AttrPath{}, err
		}
		if tok.Type != Dot {
			break
		}
		if err := p.advance(); err != nil {
			return AttrPath{}, err
		}
		tok, err = p.current()
		if err != nil {
			return AttrPath{}, err
		}
		if tok.Type != Ident {
			return AttrPath{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "expected sub-attribute name at position %d", tok.Pos)
		}
		if strings.Contains(tok.Literal, "[") {
			return AttrPath{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "sub-attribute may not itself be complex at position %d", tok.Pos)
		}
		path.Sub = append(path.Sub, tok.Literal)
		if err := p.advance(); err != nil {
			return AttrPath{}, err
		}
	}

	return path, nil
}

func (p *Parser) parseLiteral() (Literal, error) {
	tok, err := p.current()
	if err != nil {
		return Literal{}, err
	}
	switch tok.Type {
	case String:
		if err := p.advance(); err != nil {
			return Literal{}, err
		}
		return Literal{Kind: LitString, Str: tok.Literal}, nil
	case Number:
		num, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return Literal{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "invalid number %q at position %d", tok.Literal, tok.Pos)
		}
		if err := p.advance(); err != nil {
			return Literal{}, err
		}
		return Literal{Kind: LitNumber, Num: num}, nil
	case True, False:
		b := tok.Type == True
		if err := p.advance(); err != nil {
			return Literal{}, err
		}
		return Literal{Kind: LitBool, Bool: b}, nil
	case Null:
		if err := p.advance(); err != nil {
			return Literal{}, err
		}
		return Literal{Kind: LitNull}, nil
	default:
		return Literal{}, scimerr.Wrap(scimerr.ErrInvalidFilter, "expected literal value at position %d, got %q", tok.Pos, tok.Literal)
	}
}

// splitURI separates a schema-URN-qualified identifier (e.g.
// "urn:ietf:params:scim:schemas:core:2.0:User:userName") into its URI
// prefix and trailing attribute name. Identifiers without a colon are
// returned unqualified.
func splitURI(ident string) (uri, attr string) {
	idx := strings.LastIndex(ident, ":")
	if idx < 0 {
		return "", ident
	}
	return ident[:idx], ident[idx+1:]
}

// ParsePath parses a bare attribute path (no top-level boolean grammar, no
// trailing operator) — the same `path` production used inside filters — for
// use by the PATCH path parser (§4.5) and by sortBy.
func ParsePath(src string, maxComplexity int) (AttrPath, error) {
	p := NewParser(src, maxComplexity)
	path, err := p.parsePath()
	if err != nil {
		return AttrPath{}, scimerr.Wrap(scimerr.ErrInvalidPath, "%v", err)
	}
	tok, err := p.current()
	if err != nil {
		return AttrPath{}, scimerr.Wrap(scimerr.ErrInvalidPath, "%v", err)
	}
	if tok.Type != EOF {
		return AttrPath{}, scimerr.Wrap(scimerr.ErrInvalidPath, "unexpected trailing token %q at position %d", tok.Literal, tok.Pos)
	}
	return path, nil
}
