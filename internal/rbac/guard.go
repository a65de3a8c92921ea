package rbac

import (
	"context"
	"errors"
	"sync"

	"github.com/dropDatabas3/rbacadm/internal/observability/logger"
)

// Outcome es el resultado de evaluar una reasignación de rol propuesta.
type Outcome string

const (
	// OutcomeAllowed: el cambio puede aplicarse directamente.
	OutcomeAllowed Outcome = "allowed"
	// OutcomeRequiresConfirmation: auto-democión de admin; necesita
	// confirmación explícita antes de aplicarse.
	OutcomeRequiresConfirmation Outcome = "requires_confirmation"
	// OutcomeDenied: el cambio se rechaza sin tocar el backend.
	OutcomeDenied Outcome = "denied"
)

// Razones de denegación que la consola muestra tal cual.
const (
	ReasonNoPermission   = "you do not have permission to manage users"
	ReasonUnknownRole    = "unknown role"
	ReasonChangeInFlight = "a role change for this user is already in progress"
)

var (
	// ErrConfirmationRequired: se intentó aplicar un cambio que pedía
	// confirmación sin confirmarlo primero.
	ErrConfirmationRequired = errors.New("role change requires confirmation before apply")
	// ErrChangeResolved: el cambio ya fue aplicado, fallado o cancelado.
	ErrChangeResolved = errors.New("role change already resolved")
)

// Assigner es el colaborador backend que ejecuta la reasignación.
type Assigner interface {
	AssignRole(ctx context.Context, userID, roleID string) error
}

// PendingRoleChange es el valor transitorio entre "el guard evaluó el cambio"
// y "se aplicó, falló o se canceló". Se descarta en cualquiera de los tres.
type PendingRoleChange struct {
	TargetActorID string
	TargetRoleID  string

	role                 Role
	requiresConfirmation bool
	confirmed            bool
	resolved             bool
}

// Role retorna el rol candidato ya resuelto contra la lista cargada.
func (p *PendingRoleChange) Role() Role {
	return p.role
}

// RequiresConfirmation retorna true si el cambio es una auto-democión de
// admin pendiente de confirmar.
func (p *PendingRoleChange) RequiresConfirmation() bool {
	return p.requiresConfirmation && !p.confirmed
}

// Evaluation es la decisión del guard sobre un cambio propuesto.
type Evaluation struct {
	Outcome Outcome
	// Reason acompaña OutcomeDenied; vacío en otro caso.
	Reason string
	// Pending está presente cuando Outcome no es Denied.
	Pending *PendingRoleChange
}

// ApplyResult es la señal que el guard emite tras un apply exitoso.
type ApplyResult struct {
	// TeardownRequired: el cambio afectó a la propia sesión y el rol
	// resultante no es admin. El caller debe hacer Teardown() y redirigir
	// al login. El guard no lo hace por sí mismo.
	TeardownRequired bool
	// Role es el rol que quedó aplicado.
	Role Role
}

// Guard decide el resultado de "el actor A quiere poner el rol R al usuario
// U". Es una red de seguridad de UX del lado cliente, no una frontera de
// confianza: el backend vuelve a chequear todo.
//
// Protocolo en dos pasos: Propose → (Confirm | Cancel) → Apply. Mientras un
// cambio para un target está pendiente o en vuelo, propuestas nuevas para el
// mismo target se rechazan.
type Guard struct {
	session *Session

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGuard crea un guard atado a la sesión actuante.
func NewGuard(session *Session) *Guard {
	return &Guard{
		session:  session,
		inflight: make(map[string]struct{}),
	}
}

// Propose evalúa una reasignación de rol contra la sesión actual y la lista
// de roles ya cargada. No toca la red: una denegación acá garantiza cero
// llamadas al backend.
func (g *Guard) Propose(targetActorID, targetRoleID string, roles RoleList) Evaluation {
	role, ok := roles.FindByID(targetRoleID)
	if !ok {
		// Id que no matchea ningún rol cargado: irresoluble, se deniega
		// en vez de permitir a ciegas.
		return Evaluation{Outcome: OutcomeDenied, Reason: ReasonUnknownRole}
	}

	actingOnSelf := targetActorID == g.session.ActorID

	if !actingOnSelf && !g.session.CanManageUsers() {
		return Evaluation{Outcome: OutcomeDenied, Reason: ReasonNoPermission}
	}

	g.mu.Lock()
	if _, busy := g.inflight[targetActorID]; busy {
		g.mu.Unlock()
		return Evaluation{Outcome: OutcomeDenied, Reason: ReasonChangeInFlight}
	}
	g.inflight[targetActorID] = struct{}{}
	g.mu.Unlock()

	pending := &PendingRoleChange{
		TargetActorID: targetActorID,
		TargetRoleID:  targetRoleID,
		role:          role,
	}

	// Auto-democión de admin: el actor se quita su propio rol admin. Puede
	// ser irrecuperable desde la consola, así que pide confirmación.
	if actingOnSelf && g.session.IsAdmin() && !role.IsAdmin() {
		pending.requiresConfirmation = true
		return Evaluation{Outcome: OutcomeRequiresConfirmation, Pending: pending}
	}

	return Evaluation{Outcome: OutcomeAllowed, Pending: pending}
}

// Confirm marca como confirmado un cambio que pedía confirmación.
func (g *Guard) Confirm(p *PendingRoleChange) error {
	if p.resolved {
		return ErrChangeResolved
	}
	p.confirmed = true
	return nil
}

// Cancel descarta un cambio pendiente y libera el marcador in-flight.
// La sesión y la lista de roles quedan como estaban.
func (g *Guard) Cancel(p *PendingRoleChange) {
	if p.resolved {
		return
	}
	p.resolved = true
	g.release(p.TargetActorID)
}

// Apply ejecuta el cambio contra el backend, exactamente una vez.
//
// En fallo no hay mutación optimista ni teardown: la sesión y los datos
// cacheados quedan intactos y el error se reporta al caller. En éxito, si el
// afectado es la propia sesión y el rol resultante no es admin, el resultado
// señala que el caller debe hacer teardown.
func (g *Guard) Apply(ctx context.Context, backend Assigner, p *PendingRoleChange) (ApplyResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("guard"),
		logger.Op("Guard.Apply"),
		logger.TargetID(p.TargetActorID),
		logger.RoleID(p.TargetRoleID),
	)

	if p.resolved {
		return ApplyResult{}, ErrChangeResolved
	}
	if p.RequiresConfirmation() {
		return ApplyResult{}, ErrConfirmationRequired
	}

	err := backend.AssignRole(ctx, p.TargetActorID, p.TargetRoleID)

	p.resolved = true
	g.release(p.TargetActorID)

	if err != nil {
		log.Error("assign role failed", logger.Err(err))
		return ApplyResult{}, err
	}

	result := ApplyResult{Role: p.role}
	if p.TargetActorID == g.session.ActorID && !p.role.IsAdmin() {
		result.TeardownRequired = true
	}

	log.Info("role assigned",
		logger.RoleName(p.role.Name),
		logger.Bool("teardown_required", result.TeardownRequired),
	)
	return result, nil
}

func (g *Guard) release(targetActorID string) {
	g.mu.Lock()
	delete(g.inflight, targetActorID)
	g.mu.Unlock()
}
