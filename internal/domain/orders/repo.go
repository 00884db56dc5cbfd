package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlanRepo guarda el resultado de cada planificación. GetByOrder es la base
// de la idempotencia: un pedido ya planificado devuelve el plan almacenado.
type PlanRepo interface {
	GetByOrder(ctx context.Context, orderID string) (*PlanResult, bool, error)
	Save(ctx context.Context, result *PlanResult) error
}

type PGPlanRepo struct{ pool *pgxpool.Pool }

func NewPGPlanRepo(pool *pgxpool.Pool) *PGPlanRepo { return &PGPlanRepo{pool: pool} }

func (r *PGPlanRepo) GetByOrder(ctx context.Context, orderID string) (*PlanResult, bool, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `
		SELECT payload FROM order_plans WHERE order_id = $1
	`, orderID).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	var result PlanResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("deserializar plan del pedido %s: %w", orderID, err)
	}
	return &result, true, nil
}

func (r *PGPlanRepo) Save(ctx context.Context, result *PlanResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serializar plan del pedido %s: %w", result.OrderID, err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO order_plans (order_id, payload, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO UPDATE SET payload = EXCLUDED.payload
	`, result.OrderID, payload, result.CreatedAt)
	return err
}
