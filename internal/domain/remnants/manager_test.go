package remnants

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decorsur/cortiplan/internal/domain/catalog"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memRepo es un repositorio en memoria con la misma semántica condicional que
// la implementación pgx.
type memRepo struct {
	items map[uuid.UUID]*Remnant
}

func newMemRepo() *memRepo { return &memRepo{items: map[uuid.UUID]*Remnant{}} }

func (m *memRepo) Persist(_ context.Context, r *Remnant) error {
	cp := *r
	m.items[r.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (*Remnant, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) UpdateState(_ context.Context, id uuid.UUID, from, to State) error {
	r, ok := m.items[id]
	if !ok || r.State != from {
		return ErrStateConflict
	}
	r.State = to
	return nil
}

func (m *memRepo) FindAvailable(_ context.Context, kind catalog.MaterialKind, code string, minLength decimal.Decimal) ([]Remnant, error) {
	var out []Remnant
	for _, r := range m.items {
		if r.Kind == kind && r.Code == code && r.State == StateAvailable && r.Length.GreaterThanOrEqual(minLength) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRepo) CountAvailable(_ context.Context, kind catalog.MaterialKind, code string) (int, error) {
	n := 0
	for _, r := range m.items {
		if r.Kind == kind && r.Code == code && r.State == StateAvailable {
			n++
		}
	}
	return n, nil
}

func newTestManager() (*Manager, *memRepo) {
	repo := newMemRepo()
	return NewManager(repo, slog.New(slog.DiscardHandler)), repo
}

func tubeInput(length string) RegisterInput {
	return RegisterInput{
		Kind:       catalog.KindTube,
		Code:       "T38",
		DiameterMM: 38,
		Length:     d(length),
		Origin:     Origin{ProjectID: "PRJ-1", OrderID: "ORD-1"},
	}
}

func TestRegister_CreaDisponible(t *testing.T) {
	m, _ := newTestManager()
	r, alert, err := m.Register(context.Background(), tubeInput("1.20"))
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Nil(t, alert)
	assert.Equal(t, StateAvailable, r.State)
	assert.Equal(t, "PRJ-1", r.ProjectID)
}

func TestRegister_RechazaBajoElPiso(t *testing.T) {
	m, _ := newTestManager()
	_, _, err := m.Register(context.Background(), tubeInput("0.59"))
	require.ErrorIs(t, err, ErrBelowMinimum)

	// El piso exacto sí se guarda.
	r, _, err := m.Register(context.Background(), tubeInput("0.60"))
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestRegister_RechazaMaterialNoReutilizable(t *testing.T) {
	m, _ := newTestManager()
	in := tubeInput("1.50")
	in.Kind = catalog.KindFabric
	_, _, err := m.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrKindNotReusable)
}

func TestRegister_AlertaEnElUmbral(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	for i := 0; i < ReviewThreshold-1; i++ {
		_, alert, err := m.Register(ctx, tubeInput("1.00"))
		require.NoError(t, err)
		assert.Nil(t, alert, "registro %d no debe alertar", i+1)
	}

	// El décimo disponible dispara la alerta y el registro igual tiene éxito.
	r, alert, err := m.Register(ctx, tubeInput("1.00"))
	require.NoError(t, err)
	require.NotNil(t, r)
	require.NotNil(t, alert)
	assert.Equal(t, ReviewThreshold, alert.CantidadActual)
	assert.Equal(t, "T38", alert.Code)
}

func TestReserveRelease(t *testing.T) {
	m, repo := newTestManager()
	ctx := context.Background()
	r, _, err := m.Register(ctx, tubeInput("1.50"))
	require.NoError(t, err)

	require.NoError(t, m.Reserve(ctx, r.ID))
	got, _ := repo.Get(ctx, r.ID)
	assert.Equal(t, StateReserved, got.State)

	// Reservar dos veces es un bug del llamador.
	var ise *InvalidStateError
	require.ErrorAs(t, m.Reserve(ctx, r.ID), &ise)

	require.NoError(t, m.Release(ctx, r.ID))
	got, _ = repo.Get(ctx, r.ID)
	assert.Equal(t, StateAvailable, got.State)

	// Liberar algo ya disponible es un no-op.
	require.NoError(t, m.Release(ctx, r.ID))
}

func TestConsume_GeneraResto(t *testing.T) {
	m, repo := newTestManager()
	ctx := context.Background()
	r, _, err := m.Register(ctx, tubeInput("2.00"))
	require.NoError(t, err)

	child, err := m.Consume(ctx, r.ID, d("1.20"), Origin{OrderID: "ORD-9"})
	require.NoError(t, err)

	got, _ := repo.Get(ctx, r.ID)
	assert.Equal(t, StateUsed, got.State)

	require.NotNil(t, child)
	assert.Equal(t, StateAvailable, child.State)
	assert.True(t, child.Length.Equal(d("0.80")), "resto %s", child.Length)
	assert.Equal(t, "ORD-9", child.OrderID)
}

func TestConsume_RestoCortoSeDescarta(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	r, _, err := m.Register(ctx, tubeInput("1.80"))
	require.NoError(t, err)

	// 1.80 - 1.63 = 0.17: bajo el piso, no se registra.
	child, err := m.Consume(ctx, r.ID, d("1.63"), Origin{OrderID: "ORD-9"})
	require.NoError(t, err)
	assert.Nil(t, child)
}

func TestConsume_DesdeReservado(t *testing.T) {
	m, repo := newTestManager()
	ctx := context.Background()
	r, _, err := m.Register(ctx, tubeInput("1.50"))
	require.NoError(t, err)
	require.NoError(t, m.Reserve(ctx, r.ID))

	_, err = m.Consume(ctx, r.ID, d("1.50"), Origin{})
	require.NoError(t, err)
	got, _ := repo.Get(ctx, r.ID)
	assert.Equal(t, StateUsed, got.State)
}

func TestConsume_EstadoTerminal(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	r, _, err := m.Register(ctx, tubeInput("1.50"))
	require.NoError(t, err)
	_, err = m.Consume(ctx, r.ID, d("1.50"), Origin{})
	require.NoError(t, err)

	var ise *InvalidStateError
	_, err = m.Consume(ctx, r.ID, d("0.50"), Origin{})
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, StateUsed, ise.State)
}

func TestDiscard_FallaSinMutarSiAlgunoNoEstaDisponible(t *testing.T) {
	m, repo := newTestManager()
	ctx := context.Background()
	a, _, _ := m.Register(ctx, tubeInput("1.00"))
	b, _, _ := m.Register(ctx, tubeInput("1.10"))
	require.NoError(t, m.Reserve(ctx, b.ID))

	var ise *InvalidStateError
	err := m.Discard(ctx, []uuid.UUID{a.ID, b.ID}, "revisión")
	require.ErrorAs(t, err, &ise)

	// a sigue disponible: el lote no se tocó.
	got, _ := repo.Get(ctx, a.ID)
	assert.Equal(t, StateAvailable, got.State)
}

func TestDiscard_EnBloque(t *testing.T) {
	m, repo := newTestManager()
	ctx := context.Background()
	a, _, _ := m.Register(ctx, tubeInput("1.00"))
	b, _, _ := m.Register(ctx, tubeInput("1.10"))

	require.NoError(t, m.Discard(ctx, []uuid.UUID{a.ID, b.ID}, "stock viejo"))
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		got, _ := repo.Get(ctx, id)
		assert.Equal(t, StateDiscarded, got.State)
	}
}

func TestFindBestFit_AscendentePorLargo(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	for _, l := range []string{"2.50", "0.80", "1.60", "3.20"} {
		_, _, err := m.Register(ctx, tubeInput(l))
		require.NoError(t, err)
	}

	found, err := m.FindBestFit(ctx, catalog.KindTube, "T38", d("1.00"))
	require.NoError(t, err)
	require.Len(t, found, 3) // el de 0.80 no alcanza

	assert.True(t, found[0].Length.Equal(d("1.60")))
	assert.True(t, found[1].Length.Equal(d("2.50")))
	assert.True(t, found[2].Length.Equal(d("3.20")))
}

func TestGenerateLabel_Formato(t *testing.T) {
	m, _ := newTestManager()
	m.now = func() time.Time { return time.UnixMilli(1735689600000) }

	re := regexp.MustCompile(`^TU-T38-[0-9A-Z]+-[0-9A-Z]{3}$`)
	label := m.generateLabel(catalog.KindTube, "T38")
	assert.Regexp(t, re, label)

	generic := m.generateLabel(catalog.KindCounterweight, "")
	assert.Regexp(t, regexp.MustCompile(`^CP-GEN-[0-9A-Z]+-[0-9A-Z]{3}$`), generic)
}

func TestGenerateLabel_SinColisiones(t *testing.T) {
	m, _ := newTestManager()
	tick := int64(0)
	m.now = func() time.Time {
		tick++
		return time.UnixMilli(1735689600000 + tick)
	}

	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		l := m.generateLabel(catalog.KindTube, "T38")
		assert.False(t, seen[l], "etiqueta repetida %s", l)
		seen[l] = true
	}
}
