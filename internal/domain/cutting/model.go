package cutting

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cut es un largo requerido sobre un material, con referencia a la pieza que
// lo origina.
type Cut struct {
	Length   decimal.Decimal `json:"length"`
	PieceRef string          `json:"piece_ref"`
}

// OriginType distingue barras nuevas de retazos reutilizados.
type OriginType string

const (
	OriginNew     OriginType = "new"
	OriginRemnant OriginType = "remnant"
)

// Origin identifica de dónde sale una barra del plan.
type Origin struct {
	Type      OriginType `json:"type"`
	RemnantID uuid.UUID  `json:"remnant_id,omitempty"`
	Label     string     `json:"label,omitempty"`
}

// Bar es una barra asignada con sus cortes. Solo el optimizador crea barras;
// el plan producido es un valor inmutable, no un libro de movimientos.
type Bar struct {
	Origin         Origin          `json:"origin"`
	OriginalLength decimal.Decimal `json:"original_length"`
	Cuts           []Cut           `json:"cuts"`
	Used           decimal.Decimal `json:"used"`
	Leftover       decimal.Decimal `json:"leftover"`
	Efficiency     decimal.Decimal `json:"efficiency"`
}

// Stats agrega las métricas del plan de un código de material.
type Stats struct {
	TotalBars        int             `json:"total_bars"`
	NewBars          int             `json:"new_bars"`
	RemnantBars      int             `json:"remnant_bars"`
	GlobalEfficiency decimal.Decimal `json:"global_efficiency"`
	// RemnantSavings son los metros cortados sobre retazos en lugar de abrir
	// barras nuevas.
	RemnantSavings decimal.Decimal `json:"remnant_savings"`
}

// Plan es el resultado del optimizador para un código de material.
type Plan struct {
	Code  string `json:"code"`
	Bars  []Bar  `json:"bars"`
	Stats Stats  `json:"stats"`
}

// RemnantStock es la vista mínima de un retazo disponible que necesita el
// optimizador.
type RemnantStock struct {
	ID     uuid.UUID
	Label  string
	Length decimal.Decimal
}

// Params parametriza el empaquetado de un código de material.
type Params struct {
	StandardBarLength decimal.Decimal
	CutMargin         decimal.Decimal
}

// CutTooLongError: un corte que ni con margen entra en una barra estándar.
// Requiere un plan de empalme aparte; nunca se descarta en silencio.
type CutTooLongError struct {
	Code              string
	PieceRef          string
	Length            decimal.Decimal
	Margin            decimal.Decimal
	StandardBarLength decimal.Decimal
}

func (e *CutTooLongError) Error() string {
	return fmt.Sprintf("cutting: corte de %s m (+%s de margen) en %s excede la barra estándar de %s m (pieza %s)",
		e.Length, e.Margin, e.Code, e.StandardBarLength, e.PieceRef)
}
