package cutting

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Optimize empaqueta los cortes de un código de material: primero sobre los
// retazos disponibles, después sobre barras estándar nuevas con
// First-Fit-Decreasing. Determinista: los empates se resuelven por orden de
// entrada.
func Optimize(code string, cuts []Cut, params Params, available []RemnantStock) (*Plan, error) {
	// Un corte imposible corta el plan entero de este material antes de
	// asignar nada.
	for _, c := range cuts {
		if c.Length.Add(params.CutMargin).GreaterThan(params.StandardBarLength) {
			return nil, &CutTooLongError{
				Code:              code,
				PieceRef:          c.PieceRef,
				Length:            c.Length,
				Margin:            params.CutMargin,
				StandardBarLength: params.StandardBarLength,
			}
		}
	}

	plan := &Plan{Code: code}
	if len(cuts) == 0 {
		return plan, nil
	}

	placed := make([]bool, len(cuts))

	// Fase 1: retazos primero, del más corto utilizable al más largo, para
	// conservar los retazos grandes para trabajos futuros. En cada retazo se
	// coloca repetidamente el corte más largo que quepa.
	remnants := make([]RemnantStock, len(available))
	copy(remnants, available)
	sort.SliceStable(remnants, func(i, j int) bool {
		return remnants[i].Length.LessThan(remnants[j].Length)
	})

	for _, r := range remnants {
		bar := Bar{
			Origin:         Origin{Type: OriginRemnant, RemnantID: r.ID, Label: r.Label},
			OriginalLength: r.Length,
		}
		remaining := r.Length
		for {
			idx := largestFitting(cuts, placed, remaining, params.CutMargin)
			if idx < 0 {
				break
			}
			placed[idx] = true
			bar.Cuts = append(bar.Cuts, cuts[idx])
			remaining = remaining.Sub(cuts[idx].Length.Add(params.CutMargin))
		}
		if len(bar.Cuts) > 0 {
			finishBar(&bar, params.CutMargin)
			plan.Bars = append(plan.Bars, bar)
		}
	}

	// Fase 2: FFD sobre barras nuevas. Orden descendente estable por largo.
	var pending []int
	for i := range cuts {
		if !placed[i] {
			pending = append(pending, i)
		}
	}
	sort.SliceStable(pending, func(a, b int) bool {
		return cuts[pending[a]].Length.GreaterThan(cuts[pending[b]].Length)
	})

	type openBar struct {
		bar      Bar
		residual decimal.Decimal
	}
	var open []openBar
	for _, idx := range pending {
		need := cuts[idx].Length.Add(params.CutMargin)
		seated := false
		for i := range open {
			if need.LessThanOrEqual(open[i].residual) {
				open[i].bar.Cuts = append(open[i].bar.Cuts, cuts[idx])
				open[i].residual = open[i].residual.Sub(need)
				seated = true
				break
			}
		}
		if !seated {
			open = append(open, openBar{
				bar: Bar{
					Origin:         Origin{Type: OriginNew},
					OriginalLength: params.StandardBarLength,
					Cuts:           []Cut{cuts[idx]},
				},
				residual: params.StandardBarLength.Sub(need),
			})
		}
	}
	for i := range open {
		finishBar(&open[i].bar, params.CutMargin)
		plan.Bars = append(plan.Bars, open[i].bar)
	}

	plan.Stats = computeStats(plan.Bars)
	return plan, nil
}

// largestFitting devuelve el índice del corte más largo sin colocar que entra
// en la capacidad restante, o -1. Empates por orden de entrada (estable).
func largestFitting(cuts []Cut, placed []bool, remaining, margin decimal.Decimal) int {
	best := -1
	for i, c := range cuts {
		if placed[i] {
			continue
		}
		if c.Length.Add(margin).GreaterThan(remaining) {
			continue
		}
		if best < 0 || c.Length.GreaterThan(cuts[best].Length) {
			best = i
		}
	}
	return best
}

func finishBar(b *Bar, margin decimal.Decimal) {
	used := decimal.Zero
	for _, c := range b.Cuts {
		used = used.Add(c.Length.Add(margin))
	}
	b.Used = used
	b.Leftover = b.OriginalLength.Sub(used)
	if !b.OriginalLength.IsZero() {
		b.Efficiency = used.Div(b.OriginalLength).Round(4)
	}
}

func computeStats(bars []Bar) Stats {
	s := Stats{TotalBars: len(bars)}
	totalUsed := decimal.Zero
	totalLength := decimal.Zero
	for _, b := range bars {
		totalUsed = totalUsed.Add(b.Used)
		totalLength = totalLength.Add(b.OriginalLength)
		if b.Origin.Type == OriginRemnant {
			s.RemnantBars++
			s.RemnantSavings = s.RemnantSavings.Add(b.Used)
		} else {
			s.NewBars++
		}
	}
	if !totalLength.IsZero() {
		s.GlobalEfficiency = totalUsed.Div(totalLength).Round(4)
	}
	return s
}
