package cutting

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mkCuts(lengths ...string) []Cut {
	cuts := make([]Cut, len(lengths))
	for i, l := range lengths {
		cuts[i] = Cut{Length: d(l), PieceRef: "p" + l}
	}
	return cuts
}

func TestOptimize_TresCortesEnUnaBarra(t *testing.T) {
	// [2.00, 2.00, 1.50] con margen 0.10 llenan exacto una barra de 5.80.
	plan, err := Optimize("T38", mkCuts("2.00", "2.00", "1.50"),
		Params{StandardBarLength: d("5.80"), CutMargin: d("0.10")}, nil)
	require.NoError(t, err)

	require.Len(t, plan.Bars, 1)
	bar := plan.Bars[0]
	assert.Equal(t, OriginNew, bar.Origin.Type)
	assert.Len(t, bar.Cuts, 3)
	assert.True(t, bar.Used.Equal(d("5.80")), "used %s", bar.Used)
	assert.True(t, bar.Leftover.Equal(d("0.00")), "leftover %s", bar.Leftover)
	assert.True(t, bar.Efficiency.Equal(d("1")), "efficiency %s", bar.Efficiency)
}

func TestOptimize_RetazoPrimero(t *testing.T) {
	remnant := RemnantStock{ID: uuid.New(), Label: "TU-T38-X", Length: d("1.80")}

	plan, err := Optimize("T38", mkCuts("1.60", "1.60"),
		Params{StandardBarLength: d("5.80"), CutMargin: d("0.03")},
		[]RemnantStock{remnant})
	require.NoError(t, err)

	require.Len(t, plan.Bars, 2)

	rbar := plan.Bars[0]
	require.Equal(t, OriginRemnant, rbar.Origin.Type)
	assert.Equal(t, remnant.ID, rbar.Origin.RemnantID)
	assert.Len(t, rbar.Cuts, 1)
	assert.True(t, rbar.Used.Equal(d("1.63")), "used %s", rbar.Used)
	// 0.17 de sobrante: bajo el piso reutilizable, se descarta aguas arriba.
	assert.True(t, rbar.Leftover.Equal(d("0.17")), "leftover %s", rbar.Leftover)

	nbar := plan.Bars[1]
	assert.Equal(t, OriginNew, nbar.Origin.Type)
	assert.Len(t, nbar.Cuts, 1)
	assert.True(t, nbar.OriginalLength.Equal(d("5.80")))

	assert.Equal(t, 1, plan.Stats.RemnantBars)
	assert.Equal(t, 1, plan.Stats.NewBars)
	assert.True(t, plan.Stats.RemnantSavings.Equal(d("1.63")))
}

func TestOptimize_RetazosAscendentes(t *testing.T) {
	// El retazo chico se usa primero para preservar el grande.
	big := RemnantStock{ID: uuid.New(), Label: "G", Length: d("4.00")}
	small := RemnantStock{ID: uuid.New(), Label: "C", Length: d("2.00")}

	plan, err := Optimize("T38", mkCuts("1.50"),
		Params{StandardBarLength: d("5.80"), CutMargin: d("0.10")},
		[]RemnantStock{big, small})
	require.NoError(t, err)

	require.Len(t, plan.Bars, 1)
	assert.Equal(t, small.ID, plan.Bars[0].Origin.RemnantID)
}

func TestOptimize_EnRetazoElCorteMasLargoQueQuepa(t *testing.T) {
	r := RemnantStock{ID: uuid.New(), Label: "R", Length: d("2.10")}

	plan, err := Optimize("T38", mkCuts("1.00", "2.00", "1.50"),
		Params{StandardBarLength: d("5.80"), CutMargin: d("0.10")},
		[]RemnantStock{r})
	require.NoError(t, err)

	// En el retazo de 2.10 entra 2.00+0.10 justo: el más largo primero.
	rbar := plan.Bars[0]
	require.Equal(t, OriginRemnant, rbar.Origin.Type)
	require.Len(t, rbar.Cuts, 1)
	assert.True(t, rbar.Cuts[0].Length.Equal(d("2.00")))
}

func TestOptimize_FFDAbreBarrasSoloCuandoHaceFalta(t *testing.T) {
	plan, err := Optimize("CP", mkCuts("3.00", "3.00", "2.00", "1.00"),
		Params{StandardBarLength: d("5.80"), CutMargin: d("0.10")}, nil)
	require.NoError(t, err)

	// FFD: 3.10 + 2.10 = 5.20 en la primera; 3.10 + 1.10 en la segunda.
	require.Len(t, plan.Bars, 2)
	assert.Len(t, plan.Bars[0].Cuts, 2)
	assert.Len(t, plan.Bars[1].Cuts, 2)
}

func TestOptimize_CorteDemasiadoLargo(t *testing.T) {
	_, err := Optimize("T38", mkCuts("6.00"),
		Params{StandardBarLength: d("5.80"), CutMargin: d("0.10")}, nil)

	var tooLong *CutTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, "T38", tooLong.Code)
	assert.True(t, tooLong.Length.Equal(d("6.00")))
}

func TestOptimize_JustoEnElLimiteNoEsError(t *testing.T) {
	plan, err := Optimize("T38", mkCuts("5.70"),
		Params{StandardBarLength: d("5.80"), CutMargin: d("0.10")}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Bars, 1)
}

func TestOptimize_InvarianteDeCapacidad(t *testing.T) {
	cuts := mkCuts("2.73", "1.19", "0.45", "3.11", "2.02", "0.88", "1.64", "2.55", "0.97", "1.33")
	remnants := []RemnantStock{
		{ID: uuid.New(), Label: "R1", Length: d("2.40")},
		{ID: uuid.New(), Label: "R2", Length: d("1.10")},
		{ID: uuid.New(), Label: "R3", Length: d("3.75")},
	}
	params := Params{StandardBarLength: d("5.80"), CutMargin: d("0.10")}

	plan, err := Optimize("T38", cuts, params, remnants)
	require.NoError(t, err)

	total := 0
	for _, bar := range plan.Bars {
		sum := decimal.Zero
		for _, c := range bar.Cuts {
			sum = sum.Add(c.Length.Add(params.CutMargin))
		}
		assert.True(t, sum.LessThanOrEqual(bar.OriginalLength),
			"barra %s: %s > %s", bar.Origin.Type, sum, bar.OriginalLength)
		assert.True(t, sum.Equal(bar.Used))
		assert.True(t, bar.Leftover.Equal(bar.OriginalLength.Sub(sum)))
		total += len(bar.Cuts)
	}
	// Ningún corte se pierde en silencio.
	assert.Equal(t, len(cuts), total)
}

func TestOptimize_Determinista(t *testing.T) {
	cuts := mkCuts("2.00", "2.00", "1.50", "1.50", "3.00")
	remnants := []RemnantStock{
		{ID: uuid.New(), Label: "R1", Length: d("2.20")},
		{ID: uuid.New(), Label: "R2", Length: d("2.20")},
	}
	params := Params{StandardBarLength: d("5.80"), CutMargin: d("0.05")}

	first, err := Optimize("T38", cuts, params, remnants)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Optimize("T38", cuts, params, remnants)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestOptimize_SinCortes(t *testing.T) {
	plan, err := Optimize("T38", nil, Params{StandardBarLength: d("5.80"), CutMargin: d("0.10")}, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Bars)
	assert.Equal(t, 0, plan.Stats.TotalBars)
}
