package bom

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/decorsur/cortiplan/internal/domain/catalog"
	"github.com/decorsur/cortiplan/internal/domain/formula"
)

// Calculator arma la lista de materiales de una pieza a partir de las reglas
// del sistema. Función pura de (pieza, configuración): nunca muta la pieza.
type Calculator struct {
	log *slog.Logger
	sel *catalog.Selector
}

func NewCalculator(log *slog.Logger) *Calculator {
	return &Calculator{log: log, sel: catalog.NewSelector(log)}
}

// SelectComponents elige tubo y mecanismo/motor para la pieza según las
// listas ordenadas de reglas de la configuración.
func (c *Calculator) SelectComponents(p Piece, cfg *catalog.SystemConfig) (tube, mechanism catalog.Component) {
	vars := baseVars(p, cfg.Params)
	tube = c.sel.Pick(cfg.TubeRules, vars, cfg.DefaultTube)
	vars["diametroTubo"] = formula.NumberFromFloat(float64(tube.DiameterMM))
	mechanism = c.sel.Pick(cfg.MechanismRules, vars, cfg.DefaultMechanism)
	return tube, mechanism
}

// ComputeMaterials recorre las reglas de materiales en orden y emite las
// líneas resultantes por unidad de pieza. Una regla que falla al evaluar se
// loguea y se omite; el resto de la pieza sigue calculándose.
func (c *Calculator) ComputeMaterials(p Piece, cfg *catalog.SystemConfig) []MaterialLine {
	tube, _ := c.SelectComponents(p, cfg)
	galleryActive := p.Galeria.Active()
	fabric := ComputeFabricRequirement(p, galleryActive, cfg.Params)

	vars := baseVars(p, cfg.Params)
	vars["diametroTubo"] = formula.NumberFromFloat(float64(tube.DiameterMM))
	vars["girado"] = formula.Bool(fabric.Rotated)
	vars["anchoRollo"] = formula.Number(fabric.RollWidth)

	lines := make([]MaterialLine, 0, len(cfg.Materials))
	for i, rule := range cfg.Materials {
		if rule.Condition != "" {
			ok, err := formula.EvalBool(rule.Condition, vars)
			if err != nil {
				c.log.Warn("condición de material inválida, se omite la regla",
					"piece", p.Ref, "index", i, "code", rule.Code, "err", err)
				continue
			}
			if !ok {
				continue
			}
		}

		line := MaterialLine{
			Kind:        rule.Kind,
			Code:        rule.Code,
			Description: rule.Description,
			Unit:        rule.Unit,
			UnitPrice:   rule.UnitPrice,
		}

		// La tela de sistemas a rollo no usa fórmula genérica: delega en el
		// cálculo de rotación.
		if rule.Kind == catalog.KindFabric && cfg.Params.RollBased {
			line.Quantity = fabric.LinearMeters
			if !fabric.Feasible {
				line.Observation = "la dimensión del paño excede el ancho del rollo"
			}
			if fabric.RequiresHeatWelding {
				if line.Observation != "" {
					line.Observation += "; "
				}
				line.Observation += "requiere termosellado"
			}
			lines = append(lines, line)
			continue
		}

		qty, err := formula.EvalNumber(rule.Formula, vars)
		if err != nil {
			c.log.Warn("fórmula de material inválida, se omite la regla",
				"piece", p.Ref, "index", i, "code", rule.Code, "err", err)
			continue
		}
		line.Quantity = qty
		lines = append(lines, line)
	}
	return lines
}

func baseVars(p Piece, params catalog.OptimizationParams) formula.Vars {
	rollWidth := p.AnchoRollo
	if rollWidth.IsZero() {
		rollWidth = params.FallbackRollWidth
	}
	return formula.Vars{
		"ancho":         formula.Number(p.Ancho),
		"alto":          formula.Number(p.Alto),
		"area":          formula.Number(p.Area()),
		"cantidad":      formula.Number(decimal.NewFromInt(int64(p.Cantidad))),
		"motorizado":    formula.Bool(p.Motorizado),
		"galeria":       formula.Bool(p.Galeria.Active()),
		"anchoRollo":    formula.Number(rollWidth),
		"alturaMaxGiro": formula.Number(params.RotationHeightCap),
	}
}
