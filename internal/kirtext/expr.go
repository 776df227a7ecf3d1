package kirtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kestrel-lang/kestrel/internal/kir"
)

// symtab resolves identifiers while decoding a kernel file. Scalars and
// buffers share one namespace.
type symtab struct {
	vars map[string]*kir.Var
	bufs map[string]*kir.Buffer
}

func newSymtab() *symtab {
	return &symtab{vars: make(map[string]*kir.Var), bufs: make(map[string]*kir.Buffer)}
}

// tokKind enumerates scanner token kinds.
type tokKind int

const (
	tokEOF tokKind = iota
	tokInt
	tokIdent
	tokString
	tokOp // punctuation and operators, Text holds the spelling
)

type token struct {
	Kind tokKind
	Text string
	Int  int64
}

type scanner struct {
	src string
	pos int
	tok token
}

func (s *scanner) next() error {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
	if s.pos >= len(s.src) {
		s.tok = token{Kind: tokEOF}
		return nil
	}
	c := s.src[s.pos]
	switch {
	case c >= '0' && c <= '9':
		start := s.pos
		for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
			s.pos++
		}
		v, err := strconv.ParseInt(s.src[start:s.pos], 10, 64)
		if err != nil {
			return fmt.Errorf("kirtext: bad integer at %d: %v", start, err)
		}
		s.tok = token{Kind: tokInt, Int: v}
		return nil
	case isIdentStart(c):
		start := s.pos
		for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
			s.pos++
		}
		s.tok = token{Kind: tokIdent, Text: s.src[start:s.pos]}
		return nil
	case c == '"':
		end := strings.IndexByte(s.src[s.pos+1:], '"')
		if end < 0 {
			return fmt.Errorf("kirtext: unterminated string at %d", s.pos)
		}
		s.tok = token{Kind: tokString, Text: s.src[s.pos+1 : s.pos+1+end]}
		s.pos += end + 2
		return nil
	default:
		for _, op := range []string{"<=", ">=", "==", "!=", "&&", "||"} {
			if strings.HasPrefix(s.src[s.pos:], op) {
				s.tok = token{Kind: tokOp, Text: op}
				s.pos += 2
				return nil
			}
		}
		if strings.IndexByte("+-*/%()[]<>,:", c) >= 0 {
			s.tok = token{Kind: tokOp, Text: string(c)}
			s.pos++
			return nil
		}
		return fmt.Errorf("kirtext: unexpected character %q at %d", c, s.pos)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.'
}

// exprParser is a precedence-climbing parser over one expression string.
type exprParser struct {
	sc  scanner
	sym *symtab
}

// parseExpr parses src against the symbol table. Unknown identifiers are
// an error; buffers appear only in index or call-argument position.
func parseExpr(src string, sym *symtab) (kir.Expr, error) {
	p := &exprParser{sc: scanner{src: src}, sym: sym}
	if err := p.sc.next(); err != nil {
		return nil, err
	}
	e, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if p.sc.tok.Kind != tokEOF {
		return nil, fmt.Errorf("kirtext: trailing input in %q", src)
	}
	return e, nil
}

var binOps = map[string]struct {
	op   kir.BinOp
	prec int
}{
	"||": {kir.OpOr, 1},
	"&&": {kir.OpAnd, 2},
	"<":  {kir.OpLT, 3},
	"<=": {kir.OpLE, 3},
	">":  {kir.OpGT, 3},
	">=": {kir.OpGE, 3},
	"==": {kir.OpEQ, 3},
	"!=": {kir.OpNE, 3},
	"+":  {kir.OpAdd, 4},
	"-":  {kir.OpSub, 4},
	"*":  {kir.OpMul, 5},
	"/":  {kir.OpDiv, 5},
	"%":  {kir.OpMod, 5},
}

func (p *exprParser) binary(minPrec int) (kir.Expr, error) {
	lhs, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.sc.tok.Kind == tokOp {
		info, ok := binOps[p.sc.tok.Text]
		if !ok || info.prec < minPrec {
			break
		}
		if err := p.sc.next(); err != nil {
			return nil, err
		}
		rhs, err := p.binary(info.prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = kir.Bin(info.op, lhs, rhs)
	}
	return lhs, nil
}

func (p *exprParser) primary() (kir.Expr, error) {
	tok := p.sc.tok
	switch tok.Kind {
	case tokInt:
		if err := p.sc.next(); err != nil {
			return nil, err
		}
		return kir.Int(tok.Int), nil
	case tokString:
		if err := p.sc.next(); err != nil {
			return nil, err
		}
		return kir.Str(tok.Text), nil
	case tokIdent:
		if err := p.sc.next(); err != nil {
			return nil, err
		}
		return p.ident(tok.Text)
	case tokOp:
		switch tok.Text {
		case "(":
			if err := p.sc.next(); err != nil {
				return nil, err
			}
			e, err := p.binary(0)
			if err != nil {
				return nil, err
			}
			return e, p.expect(")")
		case "-":
			if err := p.sc.next(); err != nil {
				return nil, err
			}
			e, err := p.primary()
			if err != nil {
				return nil, err
			}
			return kir.Sub(kir.Int(0), e), nil
		}
	}
	return nil, fmt.Errorf("kirtext: unexpected token %q", tok.Text)
}

func (p *exprParser) ident(name string) (kir.Expr, error) {
	switch p.sc.tok.Text {
	case "(":
		return p.call(name)
	case "[":
		return p.load(name)
	}
	switch name {
	case "min", "max":
		return nil, fmt.Errorf("kirtext: %s requires arguments", name)
	}
	v, ok := p.sym.vars[name]
	if !ok {
		return nil, fmt.Errorf("kirtext: unknown variable %q", name)
	}
	return v, nil
}

func (p *exprParser) call(name string) (kir.Expr, error) {
	if err := p.sc.next(); err != nil {
		return nil, err
	}
	var args []kir.Expr
	for p.sc.tok.Text != ")" {
		a, err := p.binary(0)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.sc.tok.Text == "," {
			if err := p.sc.next(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	switch name {
	case "min", "max":
		if len(args) != 2 {
			return nil, fmt.Errorf("kirtext: %s takes two arguments", name)
		}
		op := kir.OpMin
		if name == "max" {
			op = kir.OpMax
		}
		return kir.Bin(op, args[0], args[1]), nil
	}
	return &kir.Call{Name: name, Args: args}, nil
}

// load parses B[index] and B[index : extent].
func (p *exprParser) load(name string) (kir.Expr, error) {
	buf, ok := p.sym.bufs[name]
	if !ok {
		return nil, fmt.Errorf("kirtext: unknown buffer %q", name)
	}
	if err := p.sc.next(); err != nil {
		return nil, err
	}
	index, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	var extent kir.Expr
	if p.sc.tok.Text == ":" {
		if err := p.sc.next(); err != nil {
			return nil, err
		}
		if extent, err = p.binary(0); err != nil {
			return nil, err
		}
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	if extent != nil {
		return kir.LoadRange(buf, index, extent), nil
	}
	return kir.LoadOf(buf, index), nil
}

func (p *exprParser) expect(text string) error {
	if p.sc.tok.Kind != tokOp || p.sc.tok.Text != text {
		return fmt.Errorf("kirtext: expected %q, found %q", text, p.sc.tok.Text)
	}
	return p.sc.next()
}
