package formula

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind distingue los dos tipos que puede producir una fórmula.
type Kind int

const (
	KindNumber Kind = iota
	KindBool
)

// Value es el resultado de evaluar una expresión: número decimal o booleano.
type Value struct {
	kind Kind
	num  decimal.Decimal
	b    bool
}

func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

func NumberFromFloat(f float64) Value { return Number(decimal.NewFromFloat(f)) }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Num() decimal.Decimal { return v.num }

func (v Value) Bool() bool { return v.b }

func (v Value) String() string {
	if v.kind == KindBool {
		return fmt.Sprintf("%t", v.b)
	}
	return v.num.String()
}

// Vars es el conjunto cerrado de variables disponibles para una expresión.
// Solo la capa de cálculo arma este mapa; las fórmulas no pueden resolver
// nombres fuera de él.
type Vars map[string]Value

// Error indica una expresión mal formada, un identificador fuera de la lista
// blanca o un fallo en tiempo de evaluación. Siempre es un defecto de
// configuración, no de la orden.
type Error struct {
	Expr   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("formula %q: %s", e.Expr, e.Reason)
}

func errf(expr, format string, args ...any) *Error {
	return &Error{Expr: expr, Reason: fmt.Sprintf(format, args...)}
}
