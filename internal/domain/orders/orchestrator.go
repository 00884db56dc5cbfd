package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/decorsur/cortiplan/internal/domain/bom"
	"github.com/decorsur/cortiplan/internal/domain/catalog"
	"github.com/decorsur/cortiplan/internal/domain/cutting"
	"github.com/decorsur/cortiplan/internal/domain/remnants"
	"github.com/decorsur/cortiplan/internal/domain/stock"
	"github.com/decorsur/cortiplan/internal/infra/metrics"
)

// cuttableKinds son los materiales que pasan por el optimizador de corte.
var cuttableKinds = map[catalog.MaterialKind]bool{
	catalog.KindTube:          true,
	catalog.KindCounterweight: true,
}

// Orchestrator ejecuta el pipeline de planificación de una orden:
// calcular → verificar → reservar → optimizar cortes → consumir →
// registrar retazos → liberar reservas. No es una transacción de base de
// datos: es una secuencia compensable a nivel de aplicación.
type Orchestrator struct {
	configs  catalog.Source
	calc     *bom.Calculator
	stock    stock.Repo
	remnants *remnants.Manager
	plans    PlanRepo
	log      *slog.Logger
}

func New(configs catalog.Source, calc *bom.Calculator, st stock.Repo, rem *remnants.Manager, plans PlanRepo, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		configs:  configs,
		calc:     calc,
		stock:    st,
		remnants: rem,
		plans:    plans,
		log:      log,
	}
}

type cutGroup struct {
	kind   catalog.MaterialKind
	cuts   []cutting.Cut
	params cutting.Params
}

// planState acumula lo tomado durante una corrida para poder compensarlo.
// reservedQty es la reserva viva por código: el consumo la convierte en
// salida, así que lo que queda por liberar es reservedQty, no el total.
type planState struct {
	reserved     []string
	reservedQty  map[string]decimal.Decimal
	heldRemnants []uuid.UUID
}

// Plan planifica la orden completa. Idempotente por ID de orden: si ya hay un
// plan guardado, se devuelve ese sin volver a mutar stock.
func (o *Orchestrator) Plan(ctx context.Context, order Order) (*PlanResult, error) {
	start := time.Now()

	if existing, ok, err := o.plans.GetByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("orders: consultar plan previo: %w", err)
	} else if ok {
		o.log.Info("orden ya planificada, se devuelve el plan guardado", "order", order.ID)
		return existing, nil
	}

	if err := validate(order); err != nil {
		metrics.PlanFailures.WithLabelValues("invalid_order").Inc()
		return nil, err
	}

	// Etapa 1: cálculo puro, sin mutaciones.
	result, groups, err := o.compute(ctx, order)
	if err != nil {
		metrics.PlanFailures.WithLabelValues("config").Inc()
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		metrics.PlanFailures.WithLabelValues("canceled").Inc()
		return nil, err
	}

	codes := sortedCodes(result.Totals)
	st := &planState{reservedQty: map[string]decimal.Decimal{}}

	// Etapa 2: verificación de disponibilidad antes de reservar nada.
	shortages, err := o.checkAvailability(ctx, codes, result.Totals)
	if err != nil {
		return nil, fmt.Errorf("orders: verificar disponibilidad: %w", err)
	}
	if len(shortages) > 0 {
		metrics.PlanFailures.WithLabelValues("insufficient_stock").Inc()
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	// Etapa 3: reservas por el total lineal. Desde acá, cualquier fallo
	// compensa liberando en orden inverso.
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, o.rollback(ctx, st, err, "canceled")
		}
		if err := o.stock.Reserve(ctx, code, result.Totals[code]); err != nil {
			if errors.Is(err, stock.ErrInsufficient) {
				short := o.shortageFor(ctx, code, result.Totals[code])
				return nil, o.rollback(ctx, st,
					&InsufficientStockError{Shortages: []Shortage{short}}, "insufficient_stock")
			}
			return nil, o.rollback(ctx, st,
				fmt.Errorf("orders: reservar %s: %w", code, err), "reserve")
		}
		st.reserved = append(st.reserved, code)
		st.reservedQty[code] = result.Totals[code]
	}

	// Etapa 4: optimización de cortes con retazos primero. Los retazos que
	// entran al plan se reservan acá mismo; la barra abre existencia entera,
	// así que la reserva se completa hasta el total cuantizado en barras.
	for _, code := range sortedCodes(groups) {
		g := groups[code]
		plan, held, err := o.planCuts(ctx, code, g)
		if err != nil {
			reason := "remnants"
			var tooLong *cutting.CutTooLongError
			if errors.As(err, &tooLong) {
				reason = "cut_too_long"
			}
			return nil, o.rollback(ctx, st, err, reason)
		}
		st.heldRemnants = append(st.heldRemnants, held...)
		result.CutPlans[code] = plan

		barQty := o.consumedQuantity(code, result)
		if delta := barQty.Sub(result.Totals[code]); delta.IsPositive() {
			if err := o.stock.Reserve(ctx, code, delta); err != nil {
				if errors.Is(err, stock.ErrInsufficient) {
					short := o.shortageFor(ctx, code, barQty)
					return nil, o.rollback(ctx, st,
						&InsufficientStockError{Shortages: []Shortage{short}}, "insufficient_stock")
				}
				return nil, o.rollback(ctx, st,
					fmt.Errorf("orders: reservar barras de %s: %w", code, err), "reserve")
			}
			st.reservedQty[code] = st.reservedQty[code].Add(delta)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, o.rollback(ctx, st, err, "canceled")
	}

	// Etapa 5: movimientos de salida. El consumo convierte la reserva, por
	// eso acá se descuenta también lo que queda por liberar.
	for _, code := range codes {
		qty := o.consumedQuantity(code, result)
		if qty.IsZero() {
			continue
		}
		err := o.stock.ConsumeOnHand(ctx, code, qty, stock.MovementMeta{
			Type:    stock.MoveExit,
			OrderID: order.ID,
			Note:    "consumo de orden de producción",
		})
		if err != nil {
			return nil, o.rollback(ctx, st,
				fmt.Errorf("orders: consumir %s: %w", code, err), "consume")
		}
		rest := st.reservedQty[code].Sub(qty)
		if rest.IsNegative() {
			rest = decimal.Zero
		}
		st.reservedQty[code] = rest
	}

	// Etapa 6: ciclo de vida de retazos: consumir los reutilizados y
	// registrar los sobrantes nuevos.
	if err := o.settleRemnants(ctx, order, result); err != nil {
		return nil, o.rollback(ctx, st, err, "remnants")
	}
	st.heldRemnants = nil

	// Etapa 7: liberar lo que quedó reservado sin consumir, en orden inverso.
	o.releaseAll(ctx, st)

	o.reorderAdvisories(ctx, codes, result)

	result.CreatedAt = time.Now()
	if err := o.plans.Save(ctx, result); err != nil {
		// El plan ya se ejecutó; perder la marca de idempotencia se loguea
		// pero no invalida el resultado.
		o.log.Error("no se pudo guardar el plan", "order", order.ID, "err", err)
	}

	o.observe(result)
	metrics.OrdersPlanned.Inc()
	metrics.PlanDuration.Observe(time.Since(start).Seconds())
	o.log.Info("orden planificada",
		"order", order.ID,
		"pieces", len(order.Pieces),
		"codes", len(codes),
		"remnants_new", len(result.NewRemnants))
	return result, nil
}

func validate(order Order) error {
	if order.ID == "" {
		return fmt.Errorf("orders: la orden no tiene identificador")
	}
	for _, p := range order.Pieces {
		if !p.Ancho.IsPositive() || !p.Alto.IsPositive() {
			return fmt.Errorf("orders: pieza %s con dimensiones no positivas", p.Ref)
		}
		if p.Cantidad < 1 {
			return fmt.Errorf("orders: pieza %s con cantidad inválida %d", p.Ref, p.Cantidad)
		}
	}
	return nil
}

func (o *Orchestrator) compute(ctx context.Context, order Order) (*PlanResult, map[string]*cutGroup, error) {
	result := &PlanResult{
		OrderID:  order.ID,
		Totals:   map[string]decimal.Decimal{},
		CutPlans: map[string]*cutting.Plan{},
	}
	groups := map[string]*cutGroup{}

	for _, piece := range order.Pieces {
		cfg, err := o.configs.GetConfig(ctx, piece.System, piece.Product)
		if err != nil {
			return nil, nil, fmt.Errorf("orders: configuración de pieza %s: %w", piece.Ref, err)
		}

		tube, mech := o.calc.SelectComponents(piece, cfg)
		result.Components = append(result.Components, PieceComponents{
			PieceRef: piece.Ref, Tube: tube, Mechanism: mech,
		})

		qty := decimal.NewFromInt(int64(piece.Cantidad))
		for _, l := range o.calc.ComputeMaterials(piece, cfg) {
			total := l.Quantity.Mul(qty)
			result.Lines = append(result.Lines, Line{PieceRef: piece.Ref, MaterialLine: l, Total: total})
			if l.Code == "" {
				continue
			}
			result.Totals[l.Code] = result.Totals[l.Code].Add(total)

			if cuttableKinds[l.Kind] {
				g, ok := groups[l.Code]
				if !ok {
					g = &cutGroup{
						kind: l.Kind,
						params: cutting.Params{
							StandardBarLength: cfg.Params.StandardBarLength,
							CutMargin:         cfg.Params.CutMargin(l.Kind),
						},
					}
					groups[l.Code] = g
				}
				for i := 0; i < piece.Cantidad; i++ {
					g.cuts = append(g.cuts, cutting.Cut{Length: l.Quantity, PieceRef: piece.Ref})
				}
			}
		}
	}
	return result, groups, nil
}

func (o *Orchestrator) checkAvailability(ctx context.Context, codes []string, totals map[string]decimal.Decimal) ([]Shortage, error) {
	var mu sync.Mutex
	var shortages []Shortage

	g, gctx := errgroup.WithContext(ctx)
	for _, code := range codes {
		g.Go(func() error {
			item, err := o.stock.GetByCode(gctx, code)
			if err != nil {
				if errors.Is(err, stock.ErrNotFound) {
					mu.Lock()
					shortages = append(shortages, Shortage{
						Code: code, Required: totals[code],
						Available: decimal.Zero, Missing: totals[code],
					})
					mu.Unlock()
					return nil
				}
				return err
			}
			if item.Available().LessThan(totals[code]) {
				mu.Lock()
				shortages = append(shortages, Shortage{
					Code:      code,
					Required:  totals[code],
					Available: item.Available(),
					Missing:   totals[code].Sub(item.Available()),
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(shortages, func(i, j int) bool { return shortages[i].Code < shortages[j].Code })
	return shortages, nil
}

// planCuts optimiza los cortes de un código y reserva los retazos que entran
// al plan. Si otro proceso ganó un retazo entre la búsqueda y la reserva, se
// replanifica con el estado fresco; como última salida se planifica solo con
// barras nuevas.
func (o *Orchestrator) planCuts(ctx context.Context, code string, g *cutGroup) (*cutting.Plan, []uuid.UUID, error) {
	for attempt := 0; attempt < 2; attempt++ {
		avail, err := o.availableRemnants(ctx, g, code)
		if err != nil {
			return nil, nil, fmt.Errorf("orders: buscar retazos de %s: %w", code, err)
		}
		plan, err := cutting.Optimize(code, g.cuts, g.params, avail)
		if err != nil {
			return nil, nil, err
		}
		held, err := o.holdRemnantBars(ctx, plan)
		if err == nil {
			return plan, held, nil
		}
		var conflict *remnants.InvalidStateError
		if !errors.As(err, &conflict) {
			return nil, nil, fmt.Errorf("orders: reservar retazos de %s: %w", code, err)
		}
		o.log.Debug("retazo perdido en carrera, se replanifica",
			"code", code, "remnant", conflict.ID)
	}
	plan, err := cutting.Optimize(code, g.cuts, g.params, nil)
	if err != nil {
		return nil, nil, err
	}
	return plan, nil, nil
}

func (o *Orchestrator) holdRemnantBars(ctx context.Context, plan *cutting.Plan) ([]uuid.UUID, error) {
	var held []uuid.UUID
	for _, bar := range plan.Bars {
		if bar.Origin.Type != cutting.OriginRemnant {
			continue
		}
		if err := o.remnants.Reserve(ctx, bar.Origin.RemnantID); err != nil {
			o.releaseRemnants(ctx, held)
			return nil, err
		}
		held = append(held, bar.Origin.RemnantID)
	}
	return held, nil
}

func (o *Orchestrator) releaseRemnants(ctx context.Context, held []uuid.UUID) {
	rctx := context.WithoutCancel(ctx)
	for i := len(held) - 1; i >= 0; i-- {
		if err := o.remnants.Release(rctx, held[i]); err != nil {
			o.log.Error("fallo liberando retazo reservado", "remnant", held[i], "err", err)
		}
	}
}

func (o *Orchestrator) availableRemnants(ctx context.Context, g *cutGroup, code string) ([]cutting.RemnantStock, error) {
	minNeed := minCutNeed(g)
	found, err := o.remnants.FindBestFit(ctx, g.kind, code, minNeed)
	if err != nil {
		return nil, err
	}
	avail := make([]cutting.RemnantStock, len(found))
	for i, r := range found {
		avail[i] = cutting.RemnantStock{ID: r.ID, Label: r.Label, Length: r.Length}
	}
	return avail, nil
}

func minCutNeed(g *cutGroup) decimal.Decimal {
	if len(g.cuts) == 0 {
		return decimal.Zero
	}
	min := g.cuts[0].Length
	for _, c := range g.cuts[1:] {
		if c.Length.LessThan(min) {
			min = c.Length
		}
	}
	return min.Add(g.params.CutMargin)
}

// consumedQuantity: en materiales de corte lo que sale de existencia son las
// barras nuevas enteras; los cortes sobre retazos no tocan stock. En el resto
// sale el total calculado.
func (o *Orchestrator) consumedQuantity(code string, result *PlanResult) decimal.Decimal {
	plan, ok := result.CutPlans[code]
	if !ok {
		return result.Totals[code]
	}
	newBars := decimal.NewFromInt(int64(plan.Stats.NewBars))
	var std decimal.Decimal
	for _, b := range plan.Bars {
		if b.Origin.Type == cutting.OriginNew {
			std = b.OriginalLength
			break
		}
	}
	return newBars.Mul(std)
}

func (o *Orchestrator) settleRemnants(ctx context.Context, order Order, result *PlanResult) error {
	usage := remnants.Origin{ProjectID: order.ProjectID, OrderID: order.ID}
	for _, code := range sortedCodes(result.CutPlans) {
		plan := result.CutPlans[code]
		kind := catalog.KindTube
		for _, l := range result.Lines {
			if l.Code == code {
				kind = l.Kind
				break
			}
		}
		for _, bar := range plan.Bars {
			if bar.Origin.Type == cutting.OriginRemnant {
				child, err := o.remnants.Consume(ctx, bar.Origin.RemnantID, bar.Used, usage)
				if err != nil {
					return fmt.Errorf("orders: consumir retazo %s: %w", bar.Origin.Label, err)
				}
				if child != nil {
					result.NewRemnants = append(result.NewRemnants, *child)
				}
				continue
			}

			if !bar.Leftover.IsPositive() {
				continue
			}
			child, alert, err := o.remnants.Register(ctx, remnants.RegisterInput{
				Kind:   kind,
				Code:   code,
				Length: bar.Leftover,
				Origin: usage,
			})
			switch {
			case errors.Is(err, remnants.ErrBelowMinimum), errors.Is(err, remnants.ErrKindNotReusable):
				o.log.Debug("sobrante descartado", "code", code, "leftover", bar.Leftover.String(), "reason", err.Error())
			case err != nil:
				return fmt.Errorf("orders: registrar retazo de %s: %w", code, err)
			default:
				result.NewRemnants = append(result.NewRemnants, *child)
				metrics.RemnantsRegistered.Inc()
				if alert != nil {
					result.RemnantAlerts = append(result.RemnantAlerts, *alert)
				}
			}
		}
	}
	return nil
}

// rollback compensa en orden inverso todo lo tomado en esta corrida: la
// reserva viva de cada código y los retazos reservados. Los fallos de
// compensación se loguean con contexto completo pero nunca reemplazan al
// error original.
func (o *Orchestrator) rollback(ctx context.Context, st *planState, original error, reason string) error {
	metrics.PlanFailures.WithLabelValues(reason).Inc()
	// La compensación corre aunque el contexto ya esté cancelado.
	rctx := context.WithoutCancel(ctx)
	for i := len(st.reserved) - 1; i >= 0; i-- {
		code := st.reserved[i]
		qty := st.reservedQty[code]
		if !qty.IsPositive() {
			continue
		}
		if err := o.stock.Release(rctx, code, qty); err != nil {
			o.log.Error("fallo liberando reserva en rollback",
				"code", code, "qty", qty.String(), "stage", reason, "err", err)
		}
	}
	o.releaseRemnants(ctx, st.heldRemnants)
	return original
}

func (o *Orchestrator) releaseAll(ctx context.Context, st *planState) {
	rctx := context.WithoutCancel(ctx)
	for i := len(st.reserved) - 1; i >= 0; i-- {
		code := st.reserved[i]
		qty := st.reservedQty[code]
		if !qty.IsPositive() {
			continue
		}
		if err := o.stock.Release(rctx, code, qty); err != nil {
			o.log.Error("fallo liberando reserva", "code", code, "err", err)
		}
	}
}

func (o *Orchestrator) shortageFor(ctx context.Context, code string, required decimal.Decimal) Shortage {
	s := Shortage{Code: code, Required: required, Missing: required}
	if item, err := o.stock.GetByCode(ctx, code); err == nil {
		s.Available = item.Available()
		s.Missing = required.Sub(item.Available())
	}
	return s
}

func (o *Orchestrator) reorderAdvisories(ctx context.Context, codes []string, result *PlanResult) {
	for _, code := range codes {
		item, err := o.stock.GetByCode(ctx, code)
		if err != nil {
			o.log.Warn("no se pudo evaluar punto de reposición", "code", code, "err", err)
			continue
		}
		if item.BelowReorder() {
			result.ReorderAlerts = append(result.ReorderAlerts, *item)
		}
	}
}

func (o *Orchestrator) observe(result *PlanResult) {
	for _, plan := range result.CutPlans {
		metrics.BarsOpened.WithLabelValues(string(cutting.OriginNew)).Add(float64(plan.Stats.NewBars))
		metrics.BarsOpened.WithLabelValues(string(cutting.OriginRemnant)).Add(float64(plan.Stats.RemnantBars))
		saved, _ := plan.Stats.RemnantSavings.Float64()
		metrics.RemnantMetersSaved.Add(saved)
	}
}

func sortedCodes[V any](m map[string]V) []string {
	codes := make([]string, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
