package catalog

import "github.com/shopspring/decimal"

// MaterialKind clasifica los consumibles de un sistema.
type MaterialKind string

const (
	KindFabric        MaterialKind = "tela"
	KindTube          MaterialKind = "tubo"
	KindCounterweight MaterialKind = "contrapeso"
	KindMechanism     MaterialKind = "mecanismo"
	KindMotor         MaterialKind = "motor"
	KindBracket       MaterialKind = "soporte"
	KindHardware      MaterialKind = "herraje"
	KindAccessory     MaterialKind = "accesorio"
)

// Component describe un componente mecánico seleccionable (tubo, mecanismo,
// motor). Obligatory viene siempre de configuración explícita, nunca se
// infiere del texto de la condición.
type Component struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	DiameterMM  int    `json:"diameter_mm"`
	Kind        string `json:"kind"`
	Obligatory  bool   `json:"obligatory"`
}

// SelectionRule asocia una condición con el componente que resulta de ella.
// Las reglas se evalúan en orden de lista; gana la primera verdadera.
type SelectionRule struct {
	Condition string    `json:"condition"`
	Component Component `json:"component"`
}

// MaterialRule define cómo calcular la cantidad de un consumible.
type MaterialRule struct {
	Kind        MaterialKind    `json:"kind"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Formula     string          `json:"formula"`
	Condition   string          `json:"condition,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// OptimizationParams son los parámetros de corte y rotación del sistema.
type OptimizationParams struct {
	StandardBarLength decimal.Decimal                  `json:"standard_bar_length"`
	CutMargins        map[MaterialKind]decimal.Decimal `json:"cut_margins"`
	DefaultCutMargin  decimal.Decimal                  `json:"default_cut_margin"`
	RotationHeightCap decimal.Decimal                  `json:"rotation_height_cap"`
	NoWeldHeightCap   decimal.Decimal                  `json:"no_weld_height_cap"`
	FallbackRollWidth decimal.Decimal                  `json:"fallback_roll_width"`
	AllowanceGallery  decimal.Decimal                  `json:"allowance_gallery"`
	AllowanceBase     decimal.Decimal                  `json:"allowance_base"`
	RollBased         bool                             `json:"roll_based"`
}

// CutMargin devuelve el margen de corte del tipo de material, con el margen
// por defecto como respaldo. El margen es configuración por material, no una
// constante global.
func (p OptimizationParams) CutMargin(kind MaterialKind) decimal.Decimal {
	if m, ok := p.CutMargins[kind]; ok {
		return m
	}
	return p.DefaultCutMargin
}

// SystemConfig es la configuración activa de un par (sistema, producto).
// La búsqueda cae a sistema-solo y luego a la genérica; gana la primera
// coincidencia, nunca se mezclan configuraciones.
type SystemConfig struct {
	System           string             `json:"system"`
	Product          string             `json:"product"`
	TubeRules        []SelectionRule    `json:"tube_rules"`
	MechanismRules   []SelectionRule    `json:"mechanism_rules"`
	DefaultTube      Component          `json:"default_tube"`
	DefaultMechanism Component          `json:"default_mechanism"`
	Materials        []MaterialRule     `json:"materials"`
	Params           OptimizationParams `json:"params"`
}
