package formula

import "fmt"

// node es el AST tipado de una expresión ya validada sintácticamente.
type node interface {
	eval(vars Vars) (Value, error)
}

type numLit struct{ v Value }

type boolLit struct{ v bool }

type identNode struct{ name string }

type unaryNode struct {
	op token
	x  node
}

type binaryNode struct {
	op   token
	l, r node
}

type condNode struct {
	cond, then, els node
}

type callNode struct {
	name string
	args []node
}

type parser struct {
	toks []token
	pos  int
}

func parse(expr string) (node, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokEOF {
		return nil, fmt.Errorf("token inesperado %q", p.peek().describe())
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(tt tokenType, what string) error {
	if p.peek().typ != tt {
		return fmt.Errorf("se esperaba %s, se encontró %q", what, p.peek().describe())
	}
	p.next()
	return nil
}

// ternary: or ('?' ternary ':' ternary)?
func (p *parser) ternary() (node, error) {
	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokQuestion {
		return cond, nil
	}
	p.next()
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &condNode{cond: cond, then: then, els: els}, nil
}

func (p *parser) or() (node, error) {
	return p.binaryLevel(p.and, tokOr)
}

func (p *parser) and() (node, error) {
	return p.binaryLevel(p.equality, tokAnd)
}

func (p *parser) equality() (node, error) {
	return p.binaryLevel(p.relational, tokEQ, tokNE)
}

func (p *parser) relational() (node, error) {
	return p.binaryLevel(p.additive, tokLT, tokLE, tokGT, tokGE)
}

func (p *parser) additive() (node, error) {
	return p.binaryLevel(p.multiplicative, tokPlus, tokMinus)
}

func (p *parser) multiplicative() (node, error) {
	return p.binaryLevel(p.unary, tokStar, tokSlash)
}

func (p *parser) binaryLevel(sub func() (node, error), ops ...tokenType) (node, error) {
	left, err := sub()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range ops {
			if p.peek().typ == op {
				tok := p.next()
				right, err := sub()
				if err != nil {
					return nil, err
				}
				left = &binaryNode{op: tok, l: left, r: right}
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
	}
}

func (p *parser) unary() (node, error) {
	switch p.peek().typ {
	case tokNot, tokMinus:
		tok := p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tok, x: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	tok := p.peek()
	switch tok.typ {
	case tokNumber:
		p.next()
		d, err := parseDecimal(tok.lit)
		if err != nil {
			return nil, err
		}
		return &numLit{v: Number(d)}, nil
	case tokIdent:
		p.next()
		switch tok.lit {
		case "true":
			return &boolLit{v: true}, nil
		case "false":
			return &boolLit{v: false}, nil
		}
		if p.peek().typ == tokLParen {
			return p.call(tok.lit)
		}
		return &identNode{name: tok.lit}, nil
	case tokLParen:
		p.next()
		n, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("token inesperado %q", tok.describe())
}

func (p *parser) call(name string) (node, error) {
	if _, ok := builtins[name]; !ok {
		return nil, fmt.Errorf("función no permitida %q", name)
	}
	p.next() // '('
	var args []node
	if p.peek().typ != tokRParen {
		for {
			a, err := p.ternary()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().typ != tokComma {
				break
			}
			p.next()
		}
	}
	if err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return &callNode{name: name, args: args}, nil
}
