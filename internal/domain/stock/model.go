package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Item es una existencia de material. El invariante reserved <= on_hand debe
// sostenerse después de cada operación; por eso las mutaciones son
// condicionales en la capa de almacenamiento, no aritmética en memoria.
type Item struct {
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	Unit         string          `json:"unit"`
	OnHand       decimal.Decimal `json:"on_hand"`
	Reserved     decimal.Decimal `json:"reserved"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Available es lo comprometible: existencia menos reservas.
func (i Item) Available() decimal.Decimal { return i.OnHand.Sub(i.Reserved) }

// BelowReorder indica si conviene disparar reposición.
func (i Item) BelowReorder() bool { return i.OnHand.LessThanOrEqual(i.ReorderPoint) }

// MoveType clasifica un movimiento de stock.
type MoveType string

const (
	MoveEntry      MoveType = "entry"
	MoveExit       MoveType = "exit"
	MoveAdjustment MoveType = "adjustment"
)

// Movement es el registro de auditoría de un cambio de existencia. Solo se
// inserta, nunca se muta.
type Movement struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Type         MoveType        `json:"type"`
	Qty          decimal.Decimal `json:"qty"`
	BeforeOnHand decimal.Decimal `json:"before_on_hand"`
	AfterOnHand  decimal.Decimal `json:"after_on_hand"`
	OrderID      string          `json:"order_id"`
	Note         string          `json:"note"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MovementMeta acompaña una mutación de existencia para el registro de
// auditoría.
type MovementMeta struct {
	Type    MoveType
	OrderID string
	Note    string
}

var (
	// ErrInsufficient: la actualización condicional no encontró existencia
	// disponible suficiente.
	ErrInsufficient = errors.New("stock: existencia insuficiente")
	// ErrNotFound: el código no existe.
	ErrNotFound = errors.New("stock: código no encontrado")
)
