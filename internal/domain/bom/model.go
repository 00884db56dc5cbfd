package bom

import (
	"github.com/shopspring/decimal"

	"github.com/decorsur/cortiplan/internal/domain/catalog"
)

// GalleryType indica el tipo de galería/cenefa decorativa de la pieza.
type GalleryType string

const (
	GalleryNone    GalleryType = "none"
	GalleryStd     GalleryType = "galeria"
	GalleryPelmet  GalleryType = "cenefa"
	GalleryBox     GalleryType = "cajon"
)

// Active informa si la pieza lleva galería (consume tolerancia extra de tela).
func (g GalleryType) Active() bool { return g != "" && g != GalleryNone }

// Piece es la especificación inmutable de una pieza pedida. Todas las
// dimensiones están en metros.
type Piece struct {
	Ref        string          `json:"ref"`
	System     string          `json:"system"`
	Product    string          `json:"product"`
	Ancho      decimal.Decimal `json:"ancho"`
	Alto       decimal.Decimal `json:"alto"`
	Cantidad   int             `json:"cantidad"`
	Motorizado bool            `json:"motorizado"`
	Color      string          `json:"color"`
	Galeria    GalleryType     `json:"galeria"`
	// Girado fuerza (true) o bloquea (false) la rotación de la tela; nil deja
	// decidir a la regla de ancho de rollo.
	Girado *bool `json:"girado,omitempty"`
	// AnchoRollo es el ancho del rollo elegido para la pieza; cero usa el
	// ancho de rollo de respaldo de la configuración.
	AnchoRollo decimal.Decimal `json:"ancho_rollo"`
}

// Area devuelve ancho por alto de una unidad.
func (p Piece) Area() decimal.Decimal { return p.Ancho.Mul(p.Alto) }

// MaterialLine es una línea de la lista de materiales de una pieza, en
// cantidades por unidad.
type MaterialLine struct {
	Kind        catalog.MaterialKind `json:"kind"`
	Code        string               `json:"code"`
	Description string               `json:"description"`
	Quantity    decimal.Decimal      `json:"quantity"`
	Unit        string               `json:"unit"`
	UnitPrice   decimal.Decimal      `json:"unit_price"`
	// Observation lleva advertencias no fatales (p. ej. tela infactible para
	// el ancho de rollo); nunca aborta el cálculo.
	Observation string `json:"observation,omitempty"`
}
