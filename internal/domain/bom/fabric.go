package bom

import (
	"github.com/shopspring/decimal"

	"github.com/decorsur/cortiplan/internal/domain/catalog"
)

// FabricRequirement es el resultado del cálculo de tela de una pieza.
type FabricRequirement struct {
	Rotated             bool
	LinearMeters        decimal.Decimal
	RollWidth           decimal.Decimal
	RequiresHeatWelding bool
	// Feasible en falso es una advertencia: la dimensión que gobierna excede
	// el ancho del rollo. No es un error.
	Feasible bool
}

// ComputeFabricRequirement decide la rotación del paño sobre el rollo y los
// metros lineales necesarios por unidad.
//
// Prioridad de rotación: flag explícito en la pieza (fuerza o bloquea);
// si no hay flag, se rota cuando el ancho supera el rollo y el alto entra
// en el tope de rotación.
func ComputeFabricRequirement(p Piece, galleryActive bool, params catalog.OptimizationParams) FabricRequirement {
	rollWidth := p.AnchoRollo
	if rollWidth.IsZero() {
		rollWidth = params.FallbackRollWidth
	}

	var rotated bool
	switch {
	case p.Girado != nil:
		rotated = *p.Girado
	case p.Ancho.GreaterThan(rollWidth) && p.Alto.LessThanOrEqual(params.RotationHeightCap):
		rotated = true
	}

	allowance := params.AllowanceBase
	if galleryActive {
		allowance = params.AllowanceGallery
	}

	// Rotado: el eje del ancho del rollo cubre el alto del paño y se corta a
	// lo largo del ancho. Sin rotar, al revés.
	governing := p.Ancho
	linear := p.Alto
	if rotated {
		governing = p.Alto
		linear = p.Ancho
	}

	meters := linear.Add(allowance)
	if meters.IsNegative() {
		meters = decimal.Zero
	}

	return FabricRequirement{
		Rotated:             rotated,
		LinearMeters:        meters,
		RollWidth:           rollWidth,
		RequiresHeatWelding: rotated && p.Alto.GreaterThan(params.NoWeldHeightCap),
		Feasible:            governing.LessThanOrEqual(rollWidth),
	}
}
