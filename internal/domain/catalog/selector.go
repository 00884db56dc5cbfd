package catalog

import (
	"log/slog"

	"github.com/decorsur/cortiplan/internal/domain/formula"
)

// Selector recorre listas ordenadas de reglas y devuelve el primer componente
// cuya condición evalúa verdadera. Determinista: mismas reglas y contexto,
// mismo resultado.
type Selector struct {
	log *slog.Logger
}

func NewSelector(log *slog.Logger) *Selector {
	return &Selector{log: log}
}

// Pick devuelve el componente de la primera regla verdadera, o el componente
// por defecto si ninguna coincide. Una condición que falla al evaluar es un
// defecto de configuración: se loguea y se salta la regla.
func (s *Selector) Pick(rules []SelectionRule, vars formula.Vars, def Component) Component {
	for i, r := range rules {
		ok, err := formula.EvalBool(r.Condition, vars)
		if err != nil {
			s.log.Warn("regla de selección inválida, se omite",
				"index", i, "condition", r.Condition, "err", err)
			continue
		}
		if ok {
			return r.Component
		}
	}
	return def
}
