package stock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo expone las operaciones de existencia que usa el orquestador. Las
// mutaciones son atómicas y condicionales: nunca leer-y-escribir desde la
// aplicación.
type Repo interface {
	GetByCode(ctx context.Context, code string) (*Item, error)
	// Reserve incrementa reserved solo si on_hand - reserved >= qty.
	Reserve(ctx context.Context, code string, qty decimal.Decimal) error
	// Release descuenta reserved con piso en cero: liberar de más es un
	// no-op, no un error.
	Release(ctx context.Context, code string, qty decimal.Decimal) error
	// ConsumeOnHand convierte reserva en salida: descuenta on_hand y
	// reserved en la misma sentencia y registra el movimiento en la misma
	// transacción. Descontar solo on_hand rompería reserved <= on_hand
	// mientras la reserva de la propia orden sigue tomada.
	ConsumeOnHand(ctx context.Context, code string, qty decimal.Decimal, meta MovementMeta) error
}

type PGRepo struct{ pool *pgxpool.Pool }

func NewPGRepo(pool *pgxpool.Pool) *PGRepo { return &PGRepo{pool: pool} }

func (r *PGRepo) GetByCode(ctx context.Context, code string) (*Item, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT code, description, unit, on_hand, reserved, reorder_point, updated_at
		FROM stock_items
		WHERE code = $1
	`, code)
	var it Item
	if err := row.Scan(
		&it.Code,
		&it.Description,
		&it.Unit,
		&it.OnHand,
		&it.Reserved,
		&it.ReorderPoint,
		&it.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, err
	}
	return &it, nil
}

// Reserve usa una actualización condicional: la condición y el incremento son
// una sola sentencia, así dos órdenes concurrentes no pueden sobrevender.
func (r *PGRepo) Reserve(ctx context.Context, code string, qty decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE stock_items
		SET reserved = reserved + $2, updated_at = now()
		WHERE code = $1 AND on_hand - reserved >= $2
	`, code, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByCode(ctx, code); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInsufficient, code)
	}
	return nil
}

func (r *PGRepo) Release(ctx context.Context, code string, qty decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE stock_items
		SET reserved = GREATEST(reserved - $2, 0), updated_at = now()
		WHERE code = $1
	`, code, qty)
	return err
}

func (r *PGRepo) ConsumeOnHand(ctx context.Context, code string, qty decimal.Decimal, meta MovementMeta) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var before decimal.Decimal
	if err := tx.QueryRow(ctx, `
		SELECT on_hand FROM stock_items WHERE code = $1 FOR UPDATE
	`, code).Scan(&before); err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE stock_items
		SET on_hand = on_hand - $2,
		    reserved = GREATEST(reserved - $2, 0),
		    updated_at = now()
		WHERE code = $1 AND on_hand >= $2
	`, code, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrInsufficient, code)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (code, type, qty, before_on_hand, after_on_hand, order_id, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, code, string(meta.Type), qty.Neg(), before, before.Sub(qty), meta.OrderID, meta.Note); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Receive suma existencia (entrada de compra) y deja el movimiento en la
// misma transacción.
func (r *PGRepo) Receive(ctx context.Context, code string, qty decimal.Decimal, meta MovementMeta) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var before decimal.Decimal
	if err := tx.QueryRow(ctx, `
		SELECT on_hand FROM stock_items WHERE code = $1 FOR UPDATE
	`, code).Scan(&before); err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stock_items SET on_hand = on_hand + $2, updated_at = now() WHERE code = $1
	`, code, qty); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (code, type, qty, before_on_hand, after_on_hand, order_id, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, code, string(meta.Type), qty, before, before.Add(qty), meta.OrderID, meta.Note); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
