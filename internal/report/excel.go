package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/decorsur/cortiplan/internal/domain/cutting"
	"github.com/decorsur/cortiplan/internal/domain/orders"
)

// BuildWorkbook arma el libro de taller de una orden planificada: resumen de
// materiales, una hoja de cortes por código y el inventario de retazos nuevos.
// Los valores se redondean a precision decimales recién acá: el redondeo es
// solo de presentación, el cálculo corre con precisión completa.
func BuildWorkbook(result *orders.PlanResult, precision int32) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})

	summary := "Resumen"
	f.SetSheetName("Sheet1", summary)
	if err := writeSummary(f, summary, headerStyle, result, precision); err != nil {
		return nil, err
	}

	for _, code := range sortedPlanCodes(result) {
		plan := result.CutPlans[code]
		sheet := "Cortes " + code
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("report: hoja de %s: %w", code, err)
		}
		writeCutSheet(f, sheet, headerStyle, plan, precision)
	}

	if len(result.NewRemnants) > 0 {
		if err := writeRemnants(f, headerStyle, result, precision); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: serializar libro: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, sheet string, headerStyle int, result *orders.PlanResult, precision int32) error {
	f.SetCellValue(sheet, "A1", "Orden")
	f.SetCellValue(sheet, "B1", result.OrderID)
	f.SetCellValue(sheet, "A2", "Planificada")
	f.SetCellValue(sheet, "B2", result.CreatedAt.Format("2006-01-02 15:04"))

	headers := []string{"Pieza", "Tipo", "Código", "Descripción", "Cantidad", "Total", "Unidad", "Observación"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 4)
	f.SetCellStyle(sheet, "A4", last, headerStyle)

	row := 5
	for _, l := range result.Lines {
		setRow(f, sheet, row,
			l.PieceRef, string(l.Kind), l.Code, l.Description,
			num(l.Quantity, precision), num(l.Total, precision), l.Unit, l.Observation)
		row++
	}

	row += 2
	f.SetCellValue(sheet, cell(1, row), "Componentes")
	f.SetCellStyle(sheet, cell(1, row), cell(1, row), headerStyle)
	row++
	for _, pc := range result.Components {
		setRow(f, sheet, row, pc.PieceRef, "tubo "+pc.Tube.Code, "mecanismo "+pc.Mechanism.Code)
		row++
	}

	if len(result.ReorderAlerts) > 0 {
		row += 2
		f.SetCellValue(sheet, cell(1, row), "Reposición sugerida")
		f.SetCellStyle(sheet, cell(1, row), cell(1, row), headerStyle)
		row++
		for _, it := range result.ReorderAlerts {
			setRow(f, sheet, row, it.Code, it.Description,
				num(it.OnHand, precision), num(it.ReorderPoint, precision))
			row++
		}
	}
	return nil
}

func writeCutSheet(f *excelize.File, sheet string, headerStyle int, plan *cutting.Plan, precision int32) {
	headers := []string{"Barra", "Origen", "Etiqueta", "Largo", "Cortes", "Usado", "Sobrante", "Eficiencia"}
	for i, h := range headers {
		f.SetCellValue(sheet, cell(i+1, 1), h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheet, "A1", last, headerStyle)

	row := 2
	for i, bar := range plan.Bars {
		origin := "nueva"
		if bar.Origin.Type == cutting.OriginRemnant {
			origin = "retazo"
		}
		setRow(f, sheet, row, i+1, origin, bar.Origin.Label,
			num(bar.OriginalLength, precision), cutsCell(bar, precision),
			num(bar.Used, precision), num(bar.Leftover, precision),
			num(bar.Efficiency, precision))
		row++
	}

	row++
	setRow(f, sheet, row, "Barras nuevas", plan.Stats.NewBars)
	setRow(f, sheet, row+1, "Retazos usados", plan.Stats.RemnantBars)
	setRow(f, sheet, row+2, "Eficiencia global", num(plan.Stats.GlobalEfficiency, precision))
	setRow(f, sheet, row+3, "Metros ahorrados", num(plan.Stats.RemnantSavings, precision))
}

func writeRemnants(f *excelize.File, headerStyle int, result *orders.PlanResult, precision int32) error {
	sheet := "Retazos"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("report: hoja de retazos: %w", err)
	}
	headers := []string{"Etiqueta", "Tipo", "Código", "Largo", "Estado"}
	for i, h := range headers {
		f.SetCellValue(sheet, cell(i+1, 1), h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheet, "A1", last, headerStyle)

	for i, r := range result.NewRemnants {
		setRow(f, sheet, i+2, r.Label, string(r.Kind), r.Code, num(r.Length, precision), string(r.State))
	}
	return nil
}

// cutsCell arma la lista de cortes de una barra como texto de celda.
func cutsCell(bar cutting.Bar, precision int32) string {
	s := ""
	for i, c := range bar.Cuts {
		if i > 0 {
			s += " + "
		}
		s += c.Length.Round(precision).String()
	}
	return s
}

func num(v decimal.Decimal, precision int32) float64 {
	f, _ := v.Round(precision).Float64()
	return f
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	for i, v := range values {
		f.SetCellValue(sheet, cell(i+1, row), v)
	}
}

func sortedPlanCodes(result *orders.PlanResult) []string {
	codes := make([]string, 0, len(result.CutPlans))
	for c := range result.CutPlans {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
