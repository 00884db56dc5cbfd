package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/decorsur/cortiplan/internal/domain/cutting"
	"github.com/decorsur/cortiplan/internal/domain/orders"
	"github.com/decorsur/cortiplan/internal/domain/stock"
	"github.com/decorsur/cortiplan/internal/report"
)

// Planner es la operación que expone el servidor; el orquestador la cumple.
type Planner interface {
	Plan(ctx context.Context, order orders.Order) (*orders.PlanResult, error)
}

// Receiver registra entradas y ajustes de existencia; lo cumple el
// repositorio de stock.
type Receiver interface {
	Receive(ctx context.Context, code string, qty decimal.Decimal, meta stock.MovementMeta) error
}

type Server struct {
	srv       *http.Server
	log       *slog.Logger
	precision int32
}

func New(addr string, exposeMetrics bool, planner Planner, plans orders.PlanRepo, stocks Receiver, precision int32, log *slog.Logger) *Server {
	s := &Server{log: log, precision: precision}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if exposeMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("POST /orders/plan", s.handlePlan(planner))
	mux.HandleFunc("GET /orders/{id}/report", s.handleReport(plans))
	mux.HandleFunc("POST /stock/receipts", s.handleReceipt(stocks))

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handlePlan(planner Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var order orders.Order
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			s.writeError(w, http.StatusBadRequest, "cuerpo inválido: "+err.Error())
			return
		}

		result, err := planner.Plan(r.Context(), order)
		if err != nil {
			s.writePlanError(w, order.ID, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

// writePlanError traduce los errores del dominio a estados HTTP: el faltante
// de stock es un conflicto recuperable con detalle, el corte imposible es una
// orden no procesable.
func (s *Server) writePlanError(w http.ResponseWriter, orderID string, err error) {
	var insufficient *orders.InsufficientStockError
	if errors.As(err, &insufficient) {
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "stock insuficiente",
			"shortages": insufficient.Shortages,
		})
		return
	}
	var tooLong *cutting.CutTooLongError
	if errors.As(err, &tooLong) {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": tooLong.Error(),
		})
		return
	}
	if errors.Is(err, context.Canceled) {
		s.writeError(w, http.StatusRequestTimeout, "planificación cancelada")
		return
	}
	s.log.Error("fallo planificando orden", "order", orderID, "err", err)
	s.writeError(w, http.StatusInternalServerError, "error interno")
}

func (s *Server) handleReport(plans orders.PlanRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := r.PathValue("id")
		result, ok, err := plans.GetByOrder(r.Context(), orderID)
		if err != nil {
			s.log.Error("fallo buscando plan", "order", orderID, "err", err)
			s.writeError(w, http.StatusInternalServerError, "error interno")
			return
		}
		if !ok {
			s.writeError(w, http.StatusNotFound, "orden sin plan")
			return
		}

		data, err := report.BuildWorkbook(result, s.precision)
		if err != nil {
			s.log.Error("fallo generando reporte", "order", orderID, "err", err)
			s.writeError(w, http.StatusInternalServerError, "error interno")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "plan-"+orderID+".xlsx"))
		_, _ = w.Write(data)
	}
}

type receiptRequest struct {
	Code string          `json:"code"`
	Qty  decimal.Decimal `json:"qty"`
	Type string          `json:"type,omitempty"`
	Note string          `json:"note,omitempty"`
}

func (s *Server) handleReceipt(stocks Receiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req receiptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "cuerpo inválido: "+err.Error())
			return
		}
		if req.Code == "" {
			s.writeError(w, http.StatusBadRequest, "falta el código")
			return
		}

		moveType := stock.MoveEntry
		switch req.Type {
		case "", string(stock.MoveEntry):
			if !req.Qty.IsPositive() {
				s.writeError(w, http.StatusBadRequest, "la entrada requiere cantidad positiva")
				return
			}
		case string(stock.MoveAdjustment):
			moveType = stock.MoveAdjustment
			if req.Qty.IsZero() {
				s.writeError(w, http.StatusBadRequest, "el ajuste requiere cantidad distinta de cero")
				return
			}
		default:
			s.writeError(w, http.StatusBadRequest, "tipo de movimiento desconocido: "+req.Type)
			return
		}

		err := stocks.Receive(r.Context(), req.Code, req.Qty, stock.MovementMeta{
			Type: moveType,
			Note: req.Note,
		})
		if err != nil {
			if errors.Is(err, stock.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "código no encontrado: "+req.Code)
				return
			}
			s.log.Error("fallo registrando entrada", "code", req.Code, "err", err)
			s.writeError(w, http.StatusInternalServerError, "error interno")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("fallo escribiendo respuesta", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
