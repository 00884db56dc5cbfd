package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Source entrega la configuración activa para un par (sistema, producto).
// Solo lectura desde el motor.
type Source interface {
	GetConfig(ctx context.Context, system, product string) (*SystemConfig, error)
}

// ErrConfigNotFound indica que no hay configuración ni siquiera genérica.
var ErrConfigNotFound = fmt.Errorf("catalog: configuración no encontrada")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// GetConfig busca en cascada: (sistema, producto) exacto, luego sistema sin
// producto, luego la genérica ('*'). Primera coincidencia gana; no se mezclan.
func (r *Repo) GetConfig(ctx context.Context, system, product string) (*SystemConfig, error) {
	lookups := []struct {
		system  string
		product string
	}{
		{system, product},
		{system, ""},
		{"*", ""},
	}
	for _, l := range lookups {
		cfg, err := r.getOne(ctx, l.system, l.product)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("%w: system=%s product=%s", ErrConfigNotFound, system, product)
}

func (r *Repo) getOne(ctx context.Context, system, product string) (*SystemConfig, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT payload
		FROM system_configs
		WHERE system = $1 AND product = $2 AND active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`, system, product)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var cfg SystemConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, fmt.Errorf("catalog: payload corrupto system=%s product=%s: %w", system, product, err)
	}
	return &cfg, nil
}

// Save inserta o reemplaza la configuración del par (sistema, producto).
func (r *Repo) Save(ctx context.Context, cfg *SystemConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO system_configs (system, product, payload, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (system, product)
		DO UPDATE SET payload = EXCLUDED.payload, active = TRUE, updated_at = now()
	`, cfg.System, cfg.Product, payload)
	return err
}

// StaticSource sirve configuraciones desde memoria; útil para arranque sin
// base de datos y para tests.
type StaticSource struct {
	configs map[string]*SystemConfig
}

func NewStaticSource(cfgs ...*SystemConfig) *StaticSource {
	s := &StaticSource{configs: make(map[string]*SystemConfig, len(cfgs))}
	for _, c := range cfgs {
		s.configs[c.System+"|"+c.Product] = c
	}
	return s
}

func (s *StaticSource) GetConfig(_ context.Context, system, product string) (*SystemConfig, error) {
	for _, key := range []string{system + "|" + product, system + "|", "*|"} {
		if c, ok := s.configs[key]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: system=%s product=%s", ErrConfigNotFound, system, product)
}
