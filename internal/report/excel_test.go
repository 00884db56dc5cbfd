package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/decorsur/cortiplan/internal/domain/bom"
	"github.com/decorsur/cortiplan/internal/domain/catalog"
	"github.com/decorsur/cortiplan/internal/domain/cutting"
	"github.com/decorsur/cortiplan/internal/domain/orders"
	"github.com/decorsur/cortiplan/internal/domain/remnants"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleResult() *orders.PlanResult {
	return &orders.PlanResult{
		OrderID: "ORD-42",
		Lines: []orders.Line{
			{
				PieceRef: "P1",
				MaterialLine: bom.MaterialLine{
					Kind: catalog.KindTube, Code: "T38", Description: "Tubo 38mm",
					Quantity: d("2.47"), Unit: "m",
				},
				Total: d("2.47"),
			},
		},
		Components: []orders.PieceComponents{
			{PieceRef: "P1", Tube: catalog.Component{Code: "T38"}, Mechanism: catalog.Component{Code: "MEC-STD"}},
		},
		Totals: map[string]decimal.Decimal{"T38": d("2.47")},
		CutPlans: map[string]*cutting.Plan{
			"T38": {
				Code: "T38",
				Bars: []cutting.Bar{
					{
						Origin:         cutting.Origin{Type: cutting.OriginNew},
						OriginalLength: d("5.80"),
						Cuts:           []cutting.Cut{{Length: d("2.47"), PieceRef: "P1"}},
						Used:           d("2.57"),
						Leftover:       d("3.23"),
						Efficiency:     d("0.4431"),
					},
				},
				Stats: cutting.Stats{TotalBars: 1, NewBars: 1, GlobalEfficiency: d("0.4431")},
			},
		},
		NewRemnants: []remnants.Remnant{
			{Label: "TU-T38-ABC-XYZ", Kind: catalog.KindTube, Code: "T38", Length: d("3.23"), State: remnants.StateAvailable},
		},
		CreatedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuildWorkbook(t *testing.T) {
	data, err := BuildWorkbook(sampleResult(), 2)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Resumen")
	assert.Contains(t, sheets, "Cortes T38")
	assert.Contains(t, sheets, "Retazos")

	orderID, err := f.GetCellValue("Resumen", "B1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-42", orderID)

	// Primera línea de materiales bajo la cabecera.
	code, err := f.GetCellValue("Resumen", "C5")
	require.NoError(t, err)
	assert.Equal(t, "T38", code)

	// Hoja de cortes: la barra nueva con su corte.
	origin, err := f.GetCellValue("Cortes T38", "B2")
	require.NoError(t, err)
	assert.Equal(t, "nueva", origin)
	cuts, err := f.GetCellValue("Cortes T38", "E2")
	require.NoError(t, err)
	assert.Equal(t, "2.47", cuts)

	// La eficiencia se redondea a la precisión de presentación.
	eff, err := f.GetCellValue("Cortes T38", "H2")
	require.NoError(t, err)
	assert.Equal(t, "0.44", eff)

	// Retazo nuevo con su etiqueta.
	label, err := f.GetCellValue("Retazos", "A2")
	require.NoError(t, err)
	assert.Equal(t, "TU-T38-ABC-XYZ", label)
}

func TestBuildWorkbook_SinRetazosNiCortes(t *testing.T) {
	result := sampleResult()
	result.CutPlans = map[string]*cutting.Plan{}
	result.NewRemnants = nil

	data, err := BuildWorkbook(result, 2)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.NotContains(t, sheets, "Retazos")
	assert.Len(t, sheets, 1)
}

func TestBuildWorkbook_PrecisionConfigurable(t *testing.T) {
	data, err := BuildWorkbook(sampleResult(), 1)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	used, err := f.GetCellValue("Cortes T38", "F2")
	require.NoError(t, err)
	assert.Equal(t, "2.6", used)
	length, err := f.GetCellValue("Retazos", "D2")
	require.NoError(t, err)
	assert.Equal(t, "3.2", length)
}
