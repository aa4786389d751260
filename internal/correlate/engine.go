// Package correlate reconciles projectile entity lifecycles with the
// detonation start/end game events, which share no identifier, and emits
// fire events attributed to the player who threw the grenade.
package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/demotimeline/internal/projectile"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// DistanceTolerance is the largest distance at which an end-only detonation
// may be matched to a projectile that was destroyed without a start.
const DistanceTolerance = 200

// maxDetonationDuration is how long a fire of each kind can burn, in seconds
// of demo time.
var maxDetonationDuration = [core.EquipmentKindCount]float64{
	core.Molotov:    10,
	core.Incendiary: 10,
}

// MaxDetonationDuration returns the burn limit for kind.
func MaxDetonationDuration(kind core.EquipmentKind) float64 {
	return maxDetonationDuration[mustKind(kind)]
}

// Emitter receives the enriched events, each exactly once.
type Emitter interface {
	FireStarted(e core.FireStarted)
	FireEnded(e core.FireEnded)
}

type failedDetonate struct {
	record projectile.Record
	time   float64
}

type throwerEntry struct {
	player     *core.Player
	resolvedAt float64
}

// Engine owns the live projectile records and every pending/failed
// collection. It is not safe for concurrent use; feed it one demo's
// notifications in recording order.
type Engine struct {
	logger  *slog.Logger
	tracker *projectile.Tracker
	emit    Emitter

	pending  [core.EquipmentKindCount][]core.DetonationStart
	failed   [core.EquipmentKindCount][]failedDetonate
	throwers [core.EquipmentKindCount]map[int]throwerEntry

	fireStarted metric.Int64Counter
	fireEnded   metric.Int64Counter
	pruned      metric.Int64Counter
}

// New creates an engine around tracker, sending enriched events to emit.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger *slog.Logger, tracker *projectile.Tracker, emit Emitter) (*Engine, error) {
	e := &Engine{
		logger:  logger,
		tracker: tracker,
		emit:    emit,
	}
	for k := range e.throwers {
		e.throwers[k] = make(map[int]throwerEntry)
	}

	m := meter()
	var err error

	e.fireStarted, err = m.Int64Counter(
		"correlate.fire.started",
		metric.WithDescription("Fire start events emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fire started counter: %w", err)
	}

	e.fireEnded, err = m.Int64Counter(
		"correlate.fire.ended",
		metric.WithDescription("Fire end events emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fire ended counter: %w", err)
	}

	e.pruned, err = m.Int64Counter(
		"correlate.failed_detonates.pruned",
		metric.WithDescription("Failed detonates discarded after their burn window"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pruned counter: %w", err)
	}

	return e, nil
}

func mustKind(k core.EquipmentKind) core.EquipmentKind {
	if !k.Valid() {
		panic(fmt.Sprintf("correlate: unsupported equipment kind %v", k))
	}
	return k
}

// OnEntityCreated starts tracking a projectile entity of a tracked class.
func (e *Engine) OnEntityCreated(class string, entityID int) bool {
	return e.tracker.Created(class, entityID)
}

// OnPropertyChanged applies a property change to a live projectile.
func (e *Engine) OnPropertyChanged(entityID int, prop projectile.Property) error {
	return e.tracker.PropertyChanged(entityID, prop)
}

// OnEntityDestroyed closes the projectile's lifecycle and tries to pair it
// with a pending detonation start of the same kind.
func (e *Engine) OnEntityDestroyed(entityID int, now float64) error {
	rec, err := e.tracker.Destroyed(entityID)
	if err != nil {
		return err
	}
	e.projectileDestroyed(rec, now)
	return nil
}

func (e *Engine) projectileDestroyed(rec projectile.Record, now float64) {
	k := mustKind(rec.Kind)

	idx := e.nearestStart(k, rec.DetonationPosition())
	if idx < 0 {
		// destroyed without a start: the molotov never landed or the start event was dropped
		e.failed[k] = append(e.failed[k], failedDetonate{record: rec, time: now})
		e.logger.Debug("Projectile destroyed without detonation start",
			"entityID", rec.EntityID, "kind", k, "time", now)
		return
	}

	start := e.pending[k][idx]
	e.pending[k] = slices.Delete(e.pending[k], idx, idx+1)
	e.throwers[k][start.DetonationID] = throwerEntry{player: rec.ThrownBy, resolvedAt: now}

	e.logger.Debug("Detonation start attributed",
		"entityID", rec.EntityID, "detonationID", start.DetonationID, "kind", k)

	e.fireStarted.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", k.String()),
		attribute.Bool("attributed", rec.ThrownBy != nil),
	))
	e.emit.FireStarted(core.FireStarted{
		Kind:         k,
		Position:     start.Position,
		DetonationID: start.DetonationID,
		Time:         start.Time,
		ThrownBy:     rec.ThrownBy,
	})
}

// nearestStart picks the pending start for a destroyed projectile. A single
// candidate always matches; with several, the closest one wins and the most
// recently queued one wins a tie. Returns -1 when nothing is pending.
func (e *Engine) nearestStart(k core.EquipmentKind, pos core.Vector3) int {
	starts := e.pending[k]
	switch len(starts) {
	case 0:
		return -1
	case 1:
		return 0
	}

	best := 0
	bestDist := pos.Distance(starts[0].Position)
	for i := 1; i < len(starts); i++ {
		if d := pos.Distance(starts[i].Position); d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// OnDetonationStart queues a raw start until a projectile of its kind is destroyed.
func (e *Engine) OnDetonationStart(ev core.DetonationStart) {
	k := mustKind(ev.Kind)
	e.pending[k] = append(e.pending[k], ev)
}

// OnDetonationEnd emits a fire end, attributed through the start it belongs
// to or, failing that, through the nearest projectile that died without one.
func (e *Engine) OnDetonationEnd(ev core.DetonationEnd) {
	k := mustKind(ev.Kind)
	maxDuration := maxDetonationDuration[k]

	var thrower *core.Player
	if entry, ok := e.throwers[k][ev.DetonationID]; ok {
		// an old detonation reusing this id may never have expired; only trust fresh entries
		delete(e.throwers[k], ev.DetonationID)
		if ev.Time-entry.resolvedAt < maxDuration {
			thrower = entry.player
		} else {
			e.logger.Debug("Stale thrower entry discarded",
				"detonationID", ev.DetonationID, "age", ev.Time-entry.resolvedAt)
		}
	} else {
		thrower = e.matchFailed(k, ev.Position, ev.Time)
	}

	e.fireEnded.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", k.String()),
		attribute.Bool("attributed", thrower != nil),
	))
	e.emit.FireEnded(core.FireEnded{
		Kind:         k,
		Position:     ev.Position,
		DetonationID: ev.DetonationID,
		Time:         ev.Time,
		ThrownBy:     thrower,
	})
}

// matchFailed prunes expired failed detonates of kind k and consumes the
// closest remaining one within DistanceTolerance of pos.
func (e *Engine) matchFailed(k core.EquipmentKind, pos core.Vector3, now float64) *core.Player {
	maxDuration := maxDetonationDuration[k]
	fails := e.failed[k]

	kept := fails[:0]
	for _, f := range fails {
		if now-f.time > maxDuration {
			continue
		}
		kept = append(kept, f)
	}
	if n := len(fails) - len(kept); n > 0 {
		clear(fails[len(kept):])
		e.pruned.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("kind", k.String())))
	}

	best := -1
	bestDist := float64(DistanceTolerance)
	for i, f := range kept {
		if d := pos.Distance(f.record.DetonationPosition()); d < bestDist {
			best, bestDist = i, d
		}
	}

	if best < 0 {
		e.failed[k] = kept
		return nil
	}

	thrower := kept[best].record.ThrownBy
	e.failed[k] = slices.Delete(kept, best, best+1)
	e.logger.Debug("End-only detonation matched by proximity",
		"kind", k, "distance", bestDist)
	return thrower
}

// PendingStarts returns the number of unmatched detonation starts of kind.
func (e *Engine) PendingStarts(kind core.EquipmentKind) int {
	return len(e.pending[mustKind(kind)])
}

// FailedDetonates returns the number of projectiles of kind destroyed
// without a start that are still waiting for an end.
func (e *Engine) FailedDetonates(kind core.EquipmentKind) int {
	return len(e.failed[mustKind(kind)])
}

// ThrowerEntries returns the number of attributed starts of kind still
// waiting for their end.
func (e *Engine) ThrowerEntries(kind core.EquipmentKind) int {
	return len(e.throwers[mustKind(kind)])
}

// LiveProjectiles returns the number of in-flight projectile records.
func (e *Engine) LiveProjectiles() int {
	return e.tracker.Live()
}
