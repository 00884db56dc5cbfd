package remnants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/decorsur/cortiplan/internal/domain/catalog"
)

// Repo es el acceso a almacenamiento de retazos. El motor nunca consulta la
// base directamente.
type Repo interface {
	Persist(ctx context.Context, r *Remnant) error
	Get(ctx context.Context, id uuid.UUID) (*Remnant, error)
	// UpdateState aplica la transición solo si el estado actual es from;
	// devuelve ErrStateConflict si no coincide.
	UpdateState(ctx context.Context, id uuid.UUID, from, to State) error
	FindAvailable(ctx context.Context, kind catalog.MaterialKind, code string, minLength decimal.Decimal) ([]Remnant, error)
	CountAvailable(ctx context.Context, kind catalog.MaterialKind, code string) (int, error)
}

// Manager es el dueño de las transiciones de estado de los retazos.
type Manager struct {
	repo Repo
	log  *slog.Logger
	now  func() time.Time
}

func NewManager(repo Repo, log *slog.Logger) *Manager {
	return &Manager{repo: repo, log: log, now: time.Now}
}

// RegisterInput describe el sobrante a registrar.
type RegisterInput struct {
	Kind       catalog.MaterialKind
	Code       string
	DiameterMM int
	Length     decimal.Decimal
	Grade      string
	Origin     Origin
}

// Register crea un retazo disponible, o lo rechaza si el material no es
// reutilizable o el largo no llega al piso. Cuando el stock disponible del
// mismo (tipo, código) alcanza el umbral de revisión, devuelve además una
// alerta no fatal.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*Remnant, *ReviewAlert, error) {
	if !ReusableKinds[in.Kind] {
		return nil, nil, fmt.Errorf("%w: %s", ErrKindNotReusable, in.Kind)
	}
	if in.Length.LessThan(MinReusableLength) {
		return nil, nil, fmt.Errorf("%w: %s m", ErrBelowMinimum, in.Length)
	}

	r := &Remnant{
		ID:         uuid.New(),
		Kind:       in.Kind,
		Code:       in.Code,
		DiameterMM: in.DiameterMM,
		Length:     in.Length,
		State:      StateAvailable,
		ProjectID:  in.Origin.ProjectID,
		OrderID:    in.Origin.OrderID,
		Label:      m.generateLabel(in.Kind, in.Code),
		Grade:      in.Grade,
		CreatedAt:  m.now(),
	}
	if err := m.repo.Persist(ctx, r); err != nil {
		return nil, nil, err
	}

	count, err := m.repo.CountAvailable(ctx, in.Kind, in.Code)
	if err != nil {
		// La alerta es consultiva: un fallo contando no invalida el registro.
		m.log.Warn("no se pudo contar retazos disponibles", "kind", in.Kind, "code", in.Code, "err", err)
		return r, nil, nil
	}
	if count >= ReviewThreshold {
		return r, &ReviewAlert{Kind: in.Kind, Code: in.Code, CantidadActual: count}, nil
	}
	return r, nil, nil
}

// Reserve pasa un retazo de disponible a reservado.
func (m *Manager) Reserve(ctx context.Context, id uuid.UUID) error {
	if err := m.repo.UpdateState(ctx, id, StateAvailable, StateReserved); err != nil {
		return m.stateError(ctx, id, "reserve", err)
	}
	return nil
}

// Release devuelve un retazo reservado a disponible. Liberar uno ya
// disponible es un no-op.
func (m *Manager) Release(ctx context.Context, id uuid.UUID) error {
	err := m.repo.UpdateState(ctx, id, StateReserved, StateAvailable)
	if err == nil {
		return nil
	}
	if r, getErr := m.repo.Get(ctx, id); getErr == nil && r.State == StateAvailable {
		return nil
	}
	return m.stateError(ctx, id, "release", err)
}

// Consume marca el retazo como usado y, si el resto llega al piso
// reutilizable, registra un retazo nuevo por el sobrante.
func (m *Manager) Consume(ctx context.Context, id uuid.UUID, usedLength decimal.Decimal, usage Origin) (*Remnant, error) {
	r, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.State != StateAvailable && r.State != StateReserved {
		return nil, &InvalidStateError{ID: id, State: r.State, Op: "consume"}
	}
	if err := m.repo.UpdateState(ctx, id, r.State, StateUsed); err != nil {
		return nil, m.stateError(ctx, id, "consume", err)
	}

	residual := r.Length.Sub(usedLength)
	if residual.LessThan(MinReusableLength) {
		if residual.IsPositive() {
			m.log.Debug("sobrante de retazo descartado por corto",
				"remnant", r.Label, "residual", residual.String())
		}
		return nil, nil
	}

	child, alert, err := m.Register(ctx, RegisterInput{
		Kind:       r.Kind,
		Code:       r.Code,
		DiameterMM: r.DiameterMM,
		Length:     residual,
		Grade:      r.Grade,
		Origin:     usage,
	})
	if err != nil {
		return nil, fmt.Errorf("remnants: registrar resto de %s: %w", r.Label, err)
	}
	if alert != nil {
		m.log.Info("umbral de revisión de retazos alcanzado",
			"kind", alert.Kind, "code", alert.Code, "cantidad", alert.CantidadActual)
	}
	return child, nil
}

// Discard descarta en bloque retazos disponibles. Si alguno no está
// disponible falla con InvalidStateError antes de mutar nada.
func (m *Manager) Discard(ctx context.Context, ids []uuid.UUID, reason string) error {
	for _, id := range ids {
		r, err := m.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if r.State != StateAvailable {
			return &InvalidStateError{ID: id, State: r.State, Op: "discard"}
		}
	}
	for _, id := range ids {
		if err := m.repo.UpdateState(ctx, id, StateAvailable, StateDiscarded); err != nil {
			return m.stateError(ctx, id, "discard", err)
		}
	}
	m.log.Info("retazos descartados", "count", len(ids), "reason", reason)
	return nil
}

// FindBestFit devuelve los retazos disponibles que alcanzan el largo
// necesario, del más corto al más largo (ajuste más cercano primero, para
// minimizar el desperdicio por reutilización).
func (m *Manager) FindBestFit(ctx context.Context, kind catalog.MaterialKind, code string, neededLength decimal.Decimal) ([]Remnant, error) {
	found, err := m.repo.FindAvailable(ctx, kind, code, neededLength)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Length.LessThan(found[j].Length)
	})
	return found, nil
}

func (m *Manager) stateError(ctx context.Context, id uuid.UUID, op string, err error) error {
	if !errors.Is(err, ErrStateConflict) {
		return err
	}
	if r, getErr := m.repo.Get(ctx, id); getErr == nil {
		return &InvalidStateError{ID: id, State: r.State, Op: op}
	}
	return err
}

var labelPrefixes = map[catalog.MaterialKind]string{
	catalog.KindTube:          "TU",
	catalog.KindCounterweight: "CP",
	catalog.KindFabric:        "TE",
}

// generateLabel arma una etiqueta humana única:
// {prefijo}-{código|GEN}-{timestamp base36}-{3 aleatorios}.
func (m *Manager) generateLabel(kind catalog.MaterialKind, code string) string {
	prefix, ok := labelPrefixes[kind]
	if !ok {
		prefix = "RE"
	}
	if code == "" {
		code = "GEN"
	}
	ts := strings.ToUpper(strconv.FormatInt(m.now().UnixMilli(), 36))
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 3)
	for i := range suffix {
		suffix[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return fmt.Sprintf("%s-%s-%s-%s", prefix, code, ts, suffix)
}
