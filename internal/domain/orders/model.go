package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/decorsur/cortiplan/internal/domain/bom"
	"github.com/decorsur/cortiplan/internal/domain/catalog"
	"github.com/decorsur/cortiplan/internal/domain/cutting"
	"github.com/decorsur/cortiplan/internal/domain/remnants"
	"github.com/decorsur/cortiplan/internal/domain/stock"
)

// Order es una orden de producción: las piezas pedidas y su identificador.
type Order struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	Pieces    []bom.Piece `json:"pieces"`
}

// Line es una línea de materiales de una pieza con su total por cantidad.
type Line struct {
	PieceRef string `json:"piece_ref"`
	bom.MaterialLine
	Total decimal.Decimal `json:"total"`
}

// PieceComponents son los componentes mecánicos elegidos para una pieza.
type PieceComponents struct {
	PieceRef  string            `json:"piece_ref"`
	Tube      catalog.Component `json:"tube"`
	Mechanism catalog.Component `json:"mechanism"`
}

// PlanResult es el resultado completo de planificar una orden: un valor, no
// un libro mutable.
type PlanResult struct {
	OrderID       string                     `json:"order_id"`
	Lines         []Line                     `json:"lines"`
	Components    []PieceComponents          `json:"components"`
	Totals        map[string]decimal.Decimal `json:"totals"`
	CutPlans      map[string]*cutting.Plan   `json:"cut_plans"`
	NewRemnants   []remnants.Remnant         `json:"new_remnants"`
	RemnantAlerts []remnants.ReviewAlert     `json:"remnant_alerts,omitempty"`
	ReorderAlerts []stock.Item               `json:"reorder_alerts,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
}

// Shortage detalla un faltante de stock de un código.
type Shortage struct {
	Code      string          `json:"code"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
	Missing   decimal.Decimal `json:"missing"`
}

// InsufficientStockError lleva el detalle completo de faltantes. Es
// recuperable por el llamador (p. ej. disparar compras) y nunca se enmascara
// con fallos posteriores.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	codes := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		codes[i] = fmt.Sprintf("%s (falta %s)", s.Code, s.Missing)
	}
	return "orders: stock insuficiente: " + strings.Join(codes, ", ")
}
