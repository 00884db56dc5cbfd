package formula

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Program es una expresión compilada, reutilizable sobre distintos contextos.
type Program struct {
	expr string
	root node
}

// Compile parsea la expresión a un AST cerrado. No resuelve variables todavía.
func Compile(expr string) (*Program, error) {
	root, err := parse(expr)
	if err != nil {
		return nil, &Error{Expr: expr, Reason: err.Error()}
	}
	return &Program{expr: expr, root: root}, nil
}

func (p *Program) Eval(vars Vars) (Value, error) {
	v, err := p.root.eval(vars)
	if err != nil {
		if fe, ok := err.(*Error); ok {
			if fe.Expr == "" {
				fe.Expr = p.expr
			}
			return Value{}, fe
		}
		return Value{}, &Error{Expr: p.expr, Reason: err.Error()}
	}
	return v, nil
}

// Eval compila y evalúa en un paso.
func Eval(expr string, vars Vars) (Value, error) {
	p, err := Compile(expr)
	if err != nil {
		return Value{}, err
	}
	return p.Eval(vars)
}

// EvalBool exige un resultado booleano (condiciones de reglas).
func EvalBool(expr string, vars Vars) (bool, error) {
	v, err := Eval(expr, vars)
	if err != nil {
		return false, err
	}
	if v.Kind() != KindBool {
		return false, errf(expr, "se esperaba un resultado booleano, se obtuvo %s", v)
	}
	return v.Bool(), nil
}

// EvalNumber exige un resultado numérico (fórmulas de cantidad).
func EvalNumber(expr string, vars Vars) (decimal.Decimal, error) {
	v, err := Eval(expr, vars)
	if err != nil {
		return decimal.Zero, err
	}
	if v.Kind() != KindNumber {
		return decimal.Zero, errf(expr, "se esperaba un resultado numérico, se obtuvo %s", v)
	}
	return v.Num(), nil
}

func parseDecimal(lit string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("literal numérico inválido %q", lit)
	}
	return d, nil
}

func (n *numLit) eval(Vars) (Value, error) { return n.v, nil }

func (n *boolLit) eval(Vars) (Value, error) { return Bool(n.v), nil }

func (n *identNode) eval(vars Vars) (Value, error) {
	v, ok := vars[n.name]
	if !ok {
		return Value{}, errf("", "identificador fuera de la lista blanca: %q", n.name)
	}
	return v, nil
}

func (n *unaryNode) eval(vars Vars) (Value, error) {
	x, err := n.x.eval(vars)
	if err != nil {
		return Value{}, err
	}
	switch n.op.typ {
	case tokNot:
		if x.Kind() != KindBool {
			return Value{}, errf("", "'!' requiere un booleano")
		}
		return Bool(!x.Bool()), nil
	case tokMinus:
		if x.Kind() != KindNumber {
			return Value{}, errf("", "'-' unario requiere un número")
		}
		return Number(x.Num().Neg()), nil
	}
	return Value{}, errf("", "operador unario desconocido %q", n.op.lit)
}

func (n *binaryNode) eval(vars Vars) (Value, error) {
	l, err := n.l.eval(vars)
	if err != nil {
		return Value{}, err
	}

	// && y || con cortocircuito
	switch n.op.typ {
	case tokAnd, tokOr:
		if l.Kind() != KindBool {
			return Value{}, errf("", "%q requiere operandos booleanos", n.op.lit)
		}
		if n.op.typ == tokAnd && !l.Bool() {
			return Bool(false), nil
		}
		if n.op.typ == tokOr && l.Bool() {
			return Bool(true), nil
		}
		r, err := n.r.eval(vars)
		if err != nil {
			return Value{}, err
		}
		if r.Kind() != KindBool {
			return Value{}, errf("", "%q requiere operandos booleanos", n.op.lit)
		}
		return Bool(r.Bool()), nil
	}

	r, err := n.r.eval(vars)
	if err != nil {
		return Value{}, err
	}

	switch n.op.typ {
	case tokEQ, tokNE:
		if l.Kind() != r.Kind() {
			return Value{}, errf("", "%q compara tipos distintos", n.op.lit)
		}
		var eq bool
		if l.Kind() == KindBool {
			eq = l.Bool() == r.Bool()
		} else {
			eq = l.Num().Equal(r.Num())
		}
		if n.op.typ == tokNE {
			eq = !eq
		}
		return Bool(eq), nil
	}

	if l.Kind() != KindNumber || r.Kind() != KindNumber {
		return Value{}, errf("", "%q requiere operandos numéricos", n.op.lit)
	}
	a, b := l.Num(), r.Num()
	switch n.op.typ {
	case tokPlus:
		return Number(a.Add(b)), nil
	case tokMinus:
		return Number(a.Sub(b)), nil
	case tokStar:
		return Number(a.Mul(b)), nil
	case tokSlash:
		if b.IsZero() {
			return Value{}, errf("", "división por cero")
		}
		return Number(a.Div(b)), nil
	case tokLT:
		return Bool(a.LessThan(b)), nil
	case tokLE:
		return Bool(a.LessThanOrEqual(b)), nil
	case tokGT:
		return Bool(a.GreaterThan(b)), nil
	case tokGE:
		return Bool(a.GreaterThanOrEqual(b)), nil
	}
	return Value{}, errf("", "operador desconocido %q", n.op.lit)
}

func (n *condNode) eval(vars Vars) (Value, error) {
	c, err := n.cond.eval(vars)
	if err != nil {
		return Value{}, err
	}
	if c.Kind() != KindBool {
		return Value{}, errf("", "la condición de '?:' debe ser booleana")
	}
	if c.Bool() {
		return n.then.eval(vars)
	}
	return n.els.eval(vars)
}

func (n *callNode) eval(vars Vars) (Value, error) {
	fn := builtins[n.name]
	args := make([]Value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(vars)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return fn(n.name, args)
}

type builtin func(name string, args []Value) (Value, error)

var builtins = map[string]builtin{
	"min":   minMax(func(a, b decimal.Decimal) bool { return a.LessThan(b) }),
	"max":   minMax(func(a, b decimal.Decimal) bool { return a.GreaterThan(b) }),
	"ceil":  rounding(func(d decimal.Decimal) decimal.Decimal { return d.Ceil() }),
	"floor": rounding(func(d decimal.Decimal) decimal.Decimal { return d.Floor() }),
	"round": roundFn,
}

func numArgs(name string, args []Value) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(args))
	for i, a := range args {
		if a.Kind() != KindNumber {
			return nil, errf("", "%s requiere argumentos numéricos", name)
		}
		out[i] = a.Num()
	}
	return out, nil
}

func minMax(better func(a, b decimal.Decimal) bool) builtin {
	return func(name string, args []Value) (Value, error) {
		if len(args) < 1 {
			return Value{}, errf("", "%s requiere al menos un argumento", name)
		}
		nums, err := numArgs(name, args)
		if err != nil {
			return Value{}, err
		}
		best := nums[0]
		for _, d := range nums[1:] {
			if better(d, best) {
				best = d
			}
		}
		return Number(best), nil
	}
}

func rounding(f func(decimal.Decimal) decimal.Decimal) builtin {
	return func(name string, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, errf("", "%s requiere exactamente un argumento", name)
		}
		nums, err := numArgs(name, args)
		if err != nil {
			return Value{}, err
		}
		return Number(f(nums[0])), nil
	}
}

func roundFn(name string, args []Value) (Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return Value{}, errf("", "round requiere uno o dos argumentos")
	}
	nums, err := numArgs(name, args)
	if err != nil {
		return Value{}, err
	}
	places := int32(0)
	if len(nums) == 2 {
		if !nums[1].Equal(nums[1].Truncate(0)) {
			return Value{}, errf("", "round: los decimales deben ser enteros")
		}
		places = int32(nums[1].IntPart())
	}
	return Number(nums[0].Round(places)), nil
}
