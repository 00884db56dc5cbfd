package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortiplan_orders_planned_total",
		Help: "Órdenes de producción planificadas con éxito.",
	})

	PlanFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortiplan_plan_failures_total",
		Help: "Planificaciones fallidas por motivo.",
	}, []string{"reason"})

	BarsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortiplan_bars_opened_total",
		Help: "Barras asignadas en planes de corte, por origen.",
	}, []string{"origin"})

	RemnantsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortiplan_remnants_registered_total",
		Help: "Retazos nuevos registrados como reutilizables.",
	})

	RemnantMetersSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortiplan_remnant_meters_saved_total",
		Help: "Metros cortados sobre retazos en lugar de barras nuevas.",
	})

	PlanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cortiplan_plan_duration_seconds",
		Help:    "Duración de la planificación de una orden.",
		Buckets: prometheus.DefBuckets,
	})
)
