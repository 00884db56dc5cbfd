package catalog

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decorsur/cortiplan/internal/domain/formula"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func tubeRules() []SelectionRule {
	return []SelectionRule{
		{Condition: "ancho <= 2.00", Component: Component{Code: "T32", Description: "Tubo 32mm", DiameterMM: 32, Kind: "tubo"}},
		{Condition: "ancho <= 3.00", Component: Component{Code: "T38", Description: "Tubo 38mm", DiameterMM: 38, Kind: "tubo"}},
		{Condition: "ancho > 3.00", Component: Component{Code: "T45", Description: "Tubo 45mm", DiameterMM: 45, Kind: "tubo"}},
	}
}

func TestPick_PrimeraReglaVerdadera(t *testing.T) {
	s := NewSelector(testLogger())
	vars := formula.Vars{"ancho": formula.NumberFromFloat(2.5)}

	got := s.Pick(tubeRules(), vars, Component{Code: "DEF"})
	assert.Equal(t, "T38", got.Code)
}

func TestPick_Determinista(t *testing.T) {
	s := NewSelector(testLogger())
	vars := formula.Vars{"ancho": formula.NumberFromFloat(1.2)}

	first := s.Pick(tubeRules(), vars, Component{Code: "DEF"})
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, s.Pick(tubeRules(), vars, Component{Code: "DEF"}))
	}
}

func TestPick_DefaultCuandoNingunaCoincide(t *testing.T) {
	s := NewSelector(testLogger())
	rules := []SelectionRule{
		{Condition: "ancho > 10", Component: Component{Code: "XL"}},
	}
	vars := formula.Vars{"ancho": formula.NumberFromFloat(1.0)}

	got := s.Pick(rules, vars, Component{Code: "DEF", Description: "por defecto"})
	assert.Equal(t, "DEF", got.Code)
}

func TestPick_ReglaInvalidaSeOmite(t *testing.T) {
	s := NewSelector(testLogger())
	rules := []SelectionRule{
		{Condition: "variableInexistente > 1", Component: Component{Code: "MALA"}},
		{Condition: "ancho <= 3.00", Component: Component{Code: "T38"}},
	}
	vars := formula.Vars{"ancho": formula.NumberFromFloat(2.0)}

	got := s.Pick(rules, vars, Component{Code: "DEF"})
	assert.Equal(t, "T38", got.Code)
}

func TestPick_ObligatorioVieneDeLaRegla(t *testing.T) {
	s := NewSelector(testLogger())
	// La condición menciona "> 3" pero el componente NO es obligatorio: el
	// flag se lee del campo, no del texto de la condición.
	rules := []SelectionRule{
		{Condition: "ancho > 3", Component: Component{Code: "M1", Obligatory: false}},
	}
	vars := formula.Vars{"ancho": formula.NumberFromFloat(3.5)}

	got := s.Pick(rules, vars, Component{Code: "DEF"})
	require.Equal(t, "M1", got.Code)
	assert.False(t, got.Obligatory)
}

func TestStaticSource_Cascada(t *testing.T) {
	exact := &SystemConfig{System: "roller", Product: "blackout"}
	bySystem := &SystemConfig{System: "roller"}
	generic := &SystemConfig{System: "*"}
	src := NewStaticSource(exact, bySystem, generic)

	ctx := context.Background()

	got, err := src.GetConfig(ctx, "roller", "blackout")
	require.NoError(t, err)
	assert.Same(t, exact, got)

	got, err = src.GetConfig(ctx, "roller", "screen")
	require.NoError(t, err)
	assert.Same(t, bySystem, got)

	got, err = src.GetConfig(ctx, "toldo", "lona")
	require.NoError(t, err)
	assert.Same(t, generic, got)
}
