package remnants

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/decorsur/cortiplan/internal/domain/catalog"
)

type PGRepo struct{ pool *pgxpool.Pool }

func NewPGRepo(pool *pgxpool.Pool) *PGRepo { return &PGRepo{pool: pool} }

func (r *PGRepo) Persist(ctx context.Context, rem *Remnant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO remnants (id, kind, code, diameter_mm, length, state, project_id, order_id, label, grade, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, rem.ID, string(rem.Kind), rem.Code, rem.DiameterMM, rem.Length, string(rem.State),
		rem.ProjectID, rem.OrderID, rem.Label, rem.Grade, rem.CreatedAt)
	return err
}

func (r *PGRepo) Get(ctx context.Context, id uuid.UUID) (*Remnant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, kind, code, diameter_mm, length, state, project_id, order_id, label, grade, created_at
		FROM remnants
		WHERE id = $1
	`, id)
	var rem Remnant
	if err := row.Scan(
		&rem.ID,
		&rem.Kind,
		&rem.Code,
		&rem.DiameterMM,
		&rem.Length,
		&rem.State,
		&rem.ProjectID,
		&rem.OrderID,
		&rem.Label,
		&rem.Grade,
		&rem.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &rem, nil
}

// UpdateState es condicional sobre el estado actual: la fila solo cambia si
// sigue en from. Eso hace seguras las transiciones concurrentes.
func (r *PGRepo) UpdateState(ctx context.Context, id uuid.UUID, from, to State) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE remnants SET state = $3, updated_at = now()
		WHERE id = $1 AND state = $2
	`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: retazo %s, se esperaba %q", ErrStateConflict, id, from)
	}
	return nil
}

func (r *PGRepo) FindAvailable(ctx context.Context, kind catalog.MaterialKind, code string, minLength decimal.Decimal) ([]Remnant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, code, diameter_mm, length, state, project_id, order_id, label, grade, created_at
		FROM remnants
		WHERE kind = $1 AND code = $2 AND state = 'available' AND length >= $3
		ORDER BY length ASC, created_at ASC
	`, string(kind), code, minLength)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Remnant
	for rows.Next() {
		var rem Remnant
		if err := rows.Scan(
			&rem.ID,
			&rem.Kind,
			&rem.Code,
			&rem.DiameterMM,
			&rem.Length,
			&rem.State,
			&rem.ProjectID,
			&rem.OrderID,
			&rem.Label,
			&rem.Grade,
			&rem.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *PGRepo) CountAvailable(ctx context.Context, kind catalog.MaterialKind, code string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM remnants
		WHERE kind = $1 AND code = $2 AND state = 'available'
	`, string(kind), code).Scan(&n)
	return n, err
}
