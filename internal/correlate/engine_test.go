package correlate

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/demotimeline/internal/cache"
	"github.com/OCAP2/demotimeline/internal/geo"
	"github.com/OCAP2/demotimeline/internal/projectile"
	"github.com/OCAP2/demotimeline/pkg/core"
)

type recordingEmitter struct {
	started []core.FireStarted
	ended   []core.FireEnded
}

func (r *recordingEmitter) FireStarted(e core.FireStarted) { r.started = append(r.started, e) }
func (r *recordingEmitter) FireEnded(e core.FireEnded)     { r.ended = append(r.ended, e) }

type fixture struct {
	engine  *Engine
	players *cache.PlayerCache
	emitted *recordingEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	players := cache.NewPlayerCache()
	tracker := projectile.NewTracker(slog.Default(), geo.NewCellGrid(geo.DefaultCellBits), players)
	emitted := &recordingEmitter{}

	engine, err := New(slog.Default(), tracker, emitted)
	require.NoError(t, err)

	return &fixture{engine: engine, players: players, emitted: emitted}
}

// throw creates a projectile thrown by the player in slot, whose position
// becomes the projectile's detonation position.
func (f *fixture) throw(t *testing.T, entityID, slot int, at core.Vector3) {
	t.Helper()
	f.players.Upsert(core.Player{Slot: slot, Name: "p", Position: at})
	require.True(t, f.engine.OnEntityCreated(projectile.ClassMolotovProjectile, entityID))
	require.NoError(t, f.engine.OnPropertyChanged(entityID, projectile.Property{Field: projectile.FieldThrower, Int: slot + 1}))
}

func start(id int, pos core.Vector3) core.DetonationStart {
	return core.DetonationStart{Kind: core.Incendiary, Position: pos, DetonationID: id}
}

func end(id int, pos core.Vector3, at float64) core.DetonationEnd {
	return core.DetonationEnd{Kind: core.Incendiary, Position: pos, DetonationID: id, Time: at}
}

func TestEngine_CollectionsExistForEveryKind(t *testing.T) {
	f := newFixture(t)
	for k := core.EquipmentKind(0); k < core.EquipmentKindCount; k++ {
		assert.Equal(t, 0, f.engine.PendingStarts(k))
		assert.Equal(t, 0, f.engine.FailedDetonates(k))
		assert.Equal(t, 0, f.engine.ThrowerEntries(k))
	}
}

func TestEngine_DestroyWithoutStartLandsInFailed(t *testing.T) {
	f := newFixture(t)
	f.throw(t, 1, 0, core.NewVector3(0, 0, 0))

	require.NoError(t, f.engine.OnEntityDestroyed(1, 3))

	assert.Equal(t, 1, f.engine.FailedDetonates(core.Incendiary))
	assert.Empty(t, f.emitted.started)
	assert.Equal(t, 0, f.engine.LiveProjectiles())
}

func TestEngine_SinglePendingAlwaysMatches(t *testing.T) {
	f := newFixture(t)
	f.throw(t, 1, 0, core.NewVector3(0, 0, 0))
	f.engine.OnDetonationStart(start(9, core.NewVector3(5000, 5000, 0)))

	require.NoError(t, f.engine.OnEntityDestroyed(1, 1))

	require.Len(t, f.emitted.started, 1)
	assert.Equal(t, 9, f.emitted.started[0].DetonationID)
	assert.Equal(t, 0, f.engine.PendingStarts(core.Incendiary))
	assert.Equal(t, 1, f.engine.ThrowerEntries(core.Incendiary))
}

func TestEngine_NearestPendingStartWins(t *testing.T) {
	f := newFixture(t)
	f.engine.OnDetonationStart(start(10, core.NewVector3(10, 0, 0)))
	f.engine.OnDetonationStart(start(20, core.NewVector3(0, 0, 0)))
	f.throw(t, 1, 0, core.NewVector3(1, 0, 0))

	require.NoError(t, f.engine.OnEntityDestroyed(1, 1))

	require.Len(t, f.emitted.started, 1)
	got := f.emitted.started[0]
	assert.Equal(t, 20, got.DetonationID)
	assert.Equal(t, core.NewVector3(0, 0, 0), got.Position)
	assert.Equal(t, 1, f.engine.PendingStarts(core.Incendiary))
}

func TestEngine_PendingTieGoesToLatest(t *testing.T) {
	f := newFixture(t)
	f.engine.OnDetonationStart(start(1, core.NewVector3(-5, 0, 0)))
	f.engine.OnDetonationStart(start(2, core.NewVector3(5, 0, 0)))
	f.engine.OnDetonationStart(start(3, core.NewVector3(0, 5, 0)))
	f.throw(t, 1, 0, core.NewVector3(0, 0, 0))

	require.NoError(t, f.engine.OnEntityDestroyed(1, 1))
	require.Len(t, f.emitted.started, 1)
	assert.Equal(t, 3, f.emitted.started[0].DetonationID)
	assert.Equal(t, 2, f.engine.PendingStarts(core.Incendiary))
}

func TestEngine_PendingCloserEarlierStartBeatsLaterTie(t *testing.T) {
	f := newFixture(t)
	f.engine.OnDetonationStart(start(1, core.NewVector3(1, 0, 0)))
	f.engine.OnDetonationStart(start(2, core.NewVector3(5, 0, 0)))
	f.engine.OnDetonationStart(start(3, core.NewVector3(0, 5, 0)))
	f.throw(t, 1, 0, core.NewVector3(0, 0, 0))

	require.NoError(t, f.engine.OnEntityDestroyed(1, 1))
	require.Len(t, f.emitted.started, 1)
	assert.Equal(t, 1, f.emitted.started[0].DetonationID)
}

func TestEngine_PendingStartsAreScopedByKind(t *testing.T) {
	f := newFixture(t)
	f.engine.OnDetonationStart(core.DetonationStart{Kind: core.Molotov, DetonationID: 1})
	f.throw(t, 1, 0, core.NewVector3(0, 0, 0))

	require.NoError(t, f.engine.OnEntityDestroyed(1, 1))

	assert.Empty(t, f.emitted.started)
	assert.Equal(t, 1, f.engine.PendingStarts(core.Molotov))
	assert.Equal(t, 1, f.engine.FailedDetonates(core.Incendiary))
}

func TestEngine_EndInheritsThrowerWithinDuration(t *testing.T) {
	tests := []struct {
		name       string
		endTime    float64
		attributed bool
	}{
		{"inside window", 9, true},
		{"after window", 11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.throw(t, 1, 3, core.NewVector3(0, 0, 0))
			f.engine.OnDetonationStart(start(77, core.NewVector3(0, 0, 0)))
			require.NoError(t, f.engine.OnEntityDestroyed(1, 0))
			require.Equal(t, 1, f.engine.ThrowerEntries(core.Incendiary))

			f.engine.OnDetonationEnd(end(77, core.NewVector3(0, 0, 0), tt.endTime))

			require.Len(t, f.emitted.ended, 1)
			if tt.attributed {
				require.NotNil(t, f.emitted.ended[0].ThrownBy)
				assert.Equal(t, 3, f.emitted.ended[0].ThrownBy.Slot)
			} else {
				assert.Nil(t, f.emitted.ended[0].ThrownBy)
			}
			assert.Equal(t, 0, f.engine.ThrowerEntries(core.Incendiary))
		})
	}
}

func TestEngine_StaleEntryDoesNotFallBackToFailed(t *testing.T) {
	f := newFixture(t)
	f.throw(t, 1, 0, core.NewVector3(0, 0, 0))
	f.engine.OnDetonationStart(start(77, core.NewVector3(0, 0, 0)))
	require.NoError(t, f.engine.OnEntityDestroyed(1, 0))

	// a failed detonate right at the end position
	f.throw(t, 2, 1, core.NewVector3(0, 0, 0))
	require.NoError(t, f.engine.OnEntityDestroyed(2, 14))

	f.engine.OnDetonationEnd(end(77, core.NewVector3(0, 0, 0), 15))

	require.Len(t, f.emitted.ended, 1)
	assert.Nil(t, f.emitted.ended[0].ThrownBy)
	assert.Equal(t, 1, f.engine.FailedDetonates(core.Incendiary))
}

func TestEngine_FailedDetonateProximity(t *testing.T) {
	tests := []struct {
		name       string
		endPos     core.Vector3
		attributed bool
		remaining  int
	}{
		{"within tolerance", core.NewVector3(150, 0, 0), true, 0},
		{"beyond tolerance", core.NewVector3(250, 0, 0), false, 1},
		{"exactly at tolerance", core.NewVector3(200, 0, 0), false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.throw(t, 1, 4, core.NewVector3(0, 0, 0))
			require.NoError(t, f.engine.OnEntityDestroyed(1, 0))

			f.engine.OnDetonationEnd(end(5, tt.endPos, 5))

			require.Len(t, f.emitted.ended, 1)
			if tt.attributed {
				require.NotNil(t, f.emitted.ended[0].ThrownBy)
				assert.Equal(t, 4, f.emitted.ended[0].ThrownBy.Slot)
			} else {
				assert.Nil(t, f.emitted.ended[0].ThrownBy)
			}
			assert.Equal(t, tt.remaining, f.engine.FailedDetonates(core.Incendiary))
		})
	}
}

func TestEngine_UnmatchedFailedIsPrunedLater(t *testing.T) {
	f := newFixture(t)
	f.throw(t, 1, 0, core.NewVector3(0, 0, 0))
	require.NoError(t, f.engine.OnEntityDestroyed(1, 0))

	f.engine.OnDetonationEnd(end(5, core.NewVector3(250, 0, 0), 5))
	assert.Equal(t, 1, f.engine.FailedDetonates(core.Incendiary))

	f.engine.OnDetonationEnd(end(6, core.NewVector3(5000, 0, 0), 10.5))
	assert.Equal(t, 0, f.engine.FailedDetonates(core.Incendiary))
}

func TestEngine_ExpiredFailedExcludedEvenIfClosest(t *testing.T) {
	f := newFixture(t)
	f.throw(t, 1, 0, core.NewVector3(0, 0, 0))
	require.NoError(t, f.engine.OnEntityDestroyed(1, 0))
	f.throw(t, 2, 1, core.NewVector3(100, 0, 0))
	require.NoError(t, f.engine.OnEntityDestroyed(2, 8))

	f.engine.OnDetonationEnd(end(5, core.NewVector3(0, 0, 0), 12))

	require.Len(t, f.emitted.ended, 1)
	require.NotNil(t, f.emitted.ended[0].ThrownBy)
	assert.Equal(t, 1, f.emitted.ended[0].ThrownBy.Slot)
	assert.Equal(t, 0, f.engine.FailedDetonates(core.Incendiary))
}

func TestEngine_FailedPicksNearestAndFirstOnTie(t *testing.T) {
	f := newFixture(t)
	f.throw(t, 1, 0, core.NewVector3(100, 0, 0))
	require.NoError(t, f.engine.OnEntityDestroyed(1, 0))
	f.throw(t, 2, 1, core.NewVector3(10, 0, 0))
	require.NoError(t, f.engine.OnEntityDestroyed(2, 0))
	f.throw(t, 3, 2, core.NewVector3(-10, 0, 0))
	require.NoError(t, f.engine.OnEntityDestroyed(3, 0))
	f.throw(t, 4, 5, core.NewVector3(90, 0, 0))
	require.NoError(t, f.engine.OnEntityDestroyed(4, 0))

	f.engine.OnDetonationEnd(end(1, core.NewVector3(0, 0, 0), 1))
	f.engine.OnDetonationEnd(end(2, core.NewVector3(0, 0, 0), 1))

	require.Len(t, f.emitted.ended, 2)
	assert.Equal(t, 1, f.emitted.ended[0].ThrownBy.Slot)
	assert.Equal(t, 2, f.emitted.ended[1].ThrownBy.Slot)
	assert.Equal(t, 2, f.engine.FailedDetonates(core.Incendiary))
}

func TestEngine_EndWithNothingKnown(t *testing.T) {
	f := newFixture(t)
	f.engine.OnDetonationEnd(end(1, core.NewVector3(0, 0, 0), 1))

	require.Len(t, f.emitted.ended, 1)
	assert.Nil(t, f.emitted.ended[0].ThrownBy)
}

func TestEngine_UnknownEntityDestroyIsNotFatal(t *testing.T) {
	f := newFixture(t)
	err := f.engine.OnEntityDestroyed(404, 1)
	assert.ErrorIs(t, err, projectile.ErrUnknownEntity)
	assert.Empty(t, f.emitted.started)
}

func TestEngine_UnsupportedKindPanics(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() {
		f.engine.OnDetonationStart(core.DetonationStart{Kind: core.EquipmentKindCount})
	})
	assert.Panics(t, func() {
		f.engine.OnDetonationEnd(core.DetonationEnd{Kind: core.EquipmentKind(200)})
	})
	assert.Panics(t, func() { MaxDetonationDuration(core.EquipmentKindCount) })
}

func TestEngine_MaxDetonationDuration(t *testing.T) {
	assert.Equal(t, 10.0, MaxDetonationDuration(core.Incendiary))
	assert.Equal(t, 10.0, MaxDetonationDuration(core.Molotov))
}

func TestEngine_FrozenThrowerPositionDrivesMatching(t *testing.T) {
	f := newFixture(t)
	f.players.Upsert(core.Player{Slot: 0, Position: core.NewVector3(0, 0, 0)})
	require.True(t, f.engine.OnEntityCreated(projectile.ClassMolotovProjectile, 1))
	require.NoError(t, f.engine.OnPropertyChanged(1, projectile.Property{Field: projectile.FieldThrower, Int: 1}))

	// the projectile flies far away; the thrower walks away too
	require.NoError(t, f.engine.OnPropertyChanged(1, projectile.Property{Field: projectile.FieldCellX, Int: 600}))
	require.NoError(t, f.engine.OnPropertyChanged(1, projectile.Property{Field: projectile.FieldCellY, Int: 512}))
	require.NoError(t, f.engine.OnPropertyChanged(1, projectile.Property{Field: projectile.FieldCellZ, Int: 512}))
	f.players.Upsert(core.Player{Slot: 0, Position: core.NewVector3(3000, 3000, 0)})

	f.engine.OnDetonationStart(start(1, core.NewVector3(2816, 0, 0)))
	f.engine.OnDetonationStart(start(2, core.NewVector3(1, 0, 0)))

	require.NoError(t, f.engine.OnEntityDestroyed(1, 1))
	require.Len(t, f.emitted.started, 1)
	assert.Equal(t, 2, f.emitted.started[0].DetonationID)
}

func TestEngine_EndToEnd(t *testing.T) {
	f := newFixture(t)
	thrower := f.players.Upsert(core.Player{Slot: 3, Name: "thrower", Position: core.NewVector3(-400, 250, 64)})

	require.True(t, f.engine.OnEntityCreated(projectile.ClassMolotovProjectile, 150))
	require.NoError(t, f.engine.OnPropertyChanged(150, projectile.Property{Field: projectile.FieldCellX, Int: 500}))
	require.NoError(t, f.engine.OnPropertyChanged(150, projectile.Property{Field: projectile.FieldCellY, Int: 520}))
	require.NoError(t, f.engine.OnPropertyChanged(150, projectile.Property{Field: projectile.FieldCellZ, Int: 514}))
	require.NoError(t, f.engine.OnPropertyChanged(150, projectile.Property{Field: projectile.FieldOrigin, Vector: core.NewVector3(3, 4, 5)}))
	require.NoError(t, f.engine.OnPropertyChanged(150, projectile.Property{Field: projectile.FieldThrower, Int: 4 | (33 << cache.MaxEdictBits)}))

	f.engine.OnDetonationStart(core.DetonationStart{Kind: core.Incendiary, Position: core.NewVector3(-380, 260, 0), DetonationID: 77})
	require.NoError(t, f.engine.OnEntityDestroyed(150, 0))

	require.Len(t, f.emitted.started, 1)
	assert.Same(t, thrower, f.emitted.started[0].ThrownBy)
	assert.Equal(t, core.Incendiary, f.emitted.started[0].Kind)
	assert.Equal(t, 0, f.engine.PendingStarts(core.Incendiary))

	f.engine.OnDetonationEnd(core.DetonationEnd{Kind: core.Incendiary, Position: core.NewVector3(-380, 260, 0), DetonationID: 77, Time: 2})

	require.Len(t, f.emitted.ended, 1)
	assert.Same(t, thrower, f.emitted.ended[0].ThrownBy)
	assert.Equal(t, 0, f.engine.ThrowerEntries(core.Incendiary))
}
