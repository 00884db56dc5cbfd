package remnants

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/decorsur/cortiplan/internal/domain/catalog"
)

// State es el estado del ciclo de vida de un retazo.
// available → reserved → used | available; available → discarded.
// used y discarded son terminales.
type State string

const (
	StateAvailable State = "available"
	StateReserved  State = "reserved"
	StateUsed      State = "used"
	StateDiscarded State = "discarded"
)

// MinReusableLength es el largo mínimo (m) para guardar un sobrante como
// retazo reutilizable. Por debajo se descarta en el registro.
var MinReusableLength = decimal.RequireFromString("0.60")

// ReviewThreshold: cantidad de retazos disponibles de un mismo (tipo, código)
// a partir de la cual el registro adjunta una alerta de revisión.
const ReviewThreshold = 10

// ReusableKinds define qué materiales admiten retazo. La tela no: el sobrante
// de rollo se maneja aparte.
var ReusableKinds = map[catalog.MaterialKind]bool{
	catalog.KindTube:          true,
	catalog.KindCounterweight: true,
}

// Remnant es un sobrante reutilizable con trazabilidad de origen.
type Remnant struct {
	ID         uuid.UUID            `json:"id"`
	Kind       catalog.MaterialKind `json:"kind"`
	Code       string               `json:"code"`
	DiameterMM int                  `json:"diameter_mm"`
	Length     decimal.Decimal      `json:"length"`
	State      State                `json:"state"`
	ProjectID  string               `json:"project_id"`
	OrderID    string               `json:"order_id"`
	Label      string               `json:"label"`
	Grade      string               `json:"grade"`
	CreatedAt  time.Time            `json:"created_at"`
}

// ReviewAlert es un aviso no fatal: hay demasiados retazos disponibles del
// mismo material, conviene revisarlos. El registro igual tiene éxito.
type ReviewAlert struct {
	Kind           catalog.MaterialKind `json:"kind"`
	Code           string               `json:"code"`
	CantidadActual int                  `json:"cantidad_actual"`
}

// Origin es la procedencia o destino de uso de un retazo.
type Origin struct {
	ProjectID string
	OrderID   string
}

var (
	// ErrKindNotReusable: el material no admite retazos; el sobrante debe
	// descartarse.
	ErrKindNotReusable = errors.New("remnants: material no reutilizable")
	// ErrBelowMinimum: el sobrante no llega al largo mínimo reutilizable.
	ErrBelowMinimum = errors.New("remnants: largo menor al mínimo reutilizable")
	// ErrStateConflict lo devuelve el repositorio cuando una transición
	// condicional no encuentra el estado esperado.
	ErrStateConflict = errors.New("remnants: estado no coincide")
	// ErrNotFound: el retazo no existe.
	ErrNotFound = errors.New("remnants: retazo no encontrado")
)

// InvalidStateError: operación de ciclo de vida desde un estado no permitido.
// Siempre es un bug del llamador; no se reintenta.
type InvalidStateError struct {
	ID    uuid.UUID
	State State
	Op    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("remnants: %s no permitido sobre retazo %s en estado %q", e.Op, e.ID, e.State)
}
