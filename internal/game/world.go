package game

import (
	"math/rand"

	"rocket-arena/internal/config"
	"rocket-arena/internal/game/spatial"
)

// carSpawnClearance keeps freshly spawned cars away from the player spawn
const carSpawnClearance = 100.0

// World is the complete simulation state. Only Step and the lifecycle
// methods mutate it; it holds no goroutines and no locks.
type World struct {
	cfg   config.GameConfig
	Arena Arena

	Player      *Player
	Cars        []*Car
	Allies      []*Ally
	Projectiles []*Projectile

	Session Session
	Tick    uint64
	Seed    int64

	rng    *rand.Rand
	grid   *spatial.Grid
	events []Event
}

// NewWorld creates an idle world. The seed drives every random decision
// (car spawns, jump cooldowns, ally fire cooldowns), so equal seeds and equal
// input sequences replay identically.
func NewWorld(cfg config.GameConfig, seed int64) *World {
	arena := NewArena(cfg.Arena)
	maxCars := cfg.Limits.MaxCars
	if maxCars <= 0 {
		maxCars = 64
	}
	w := &World{
		cfg:         cfg,
		Arena:       arena,
		Player:      NewPlayer(arena, cfg.Arena),
		Cars:        make([]*Car, 0, maxCars),
		Allies:      make([]*Ally, 0, max(cfg.Shop.MaxAllies, 1)),
		Projectiles: make([]*Projectile, 0, max(cfg.Limits.MaxProjectiles, 1)),
		Seed:        seed,
		rng:         rand.New(rand.NewSource(seed)),
		grid:        spatial.NewGrid(arena.Width, arena.Height, 64, maxCars),
	}
	w.Session.TimeRemaining = cfg.Session.TimerSeconds
	return w
}

// Config returns the configuration the world was built with
func (w *World) Config() config.GameConfig { return w.cfg }

// Step advances the simulation by one tick and returns what happened.
//
// Order: input → physics → AI → collisions → prune → timer → win/lose.
// Outside the running phase Step is a no-op: nothing moves and no events are
// produced.
func (w *World) Step(in Input) []Event {
	if w.Session.Phase != PhaseRunning {
		return nil
	}
	w.Tick++
	in = in.sanitize()

	// Input + physics
	if dir, fired := w.Player.Update(in, w.Arena, w.cfg.Arena); fired {
		w.spawnProjectile(w.Player.Box.Center(), dir, OwnerPlayer)
	}
	for _, c := range w.Cars {
		c.Update(w.Arena, w.cfg.Arena, w.rng)
	}
	for _, al := range w.Allies {
		al.Patrol(w.Arena)
	}
	for _, p := range w.Projectiles {
		p.Update(w.Arena)
	}

	// AI
	w.runAllyAI()

	// Collisions
	w.resolveProjectileHits()
	w.resolveContacts()

	w.prune()

	if w.cfg.Session.TimerEnabled {
		w.Session.TimeRemaining -= 1 / float64(w.cfg.Arena.TickRate)
		if w.Session.TimeRemaining < 0 {
			w.Session.TimeRemaining = 0
		}
	}

	w.evaluate()
	return w.flush()
}

// prune drops dead entities in place, keeping the original order
func (w *World) prune() {
	n := 0
	for _, p := range w.Projectiles {
		if p.Alive() {
			w.Projectiles[n] = p
			n++
		}
	}
	clear(w.Projectiles[n:])
	w.Projectiles = w.Projectiles[:n]

	n = 0
	for _, c := range w.Cars {
		if c.Alive() {
			w.Cars[n] = c
			n++
		}
	}
	clear(w.Cars[n:])
	w.Cars = w.Cars[:n]

	n = 0
	for _, al := range w.Allies {
		if al.Alive() {
			w.Allies[n] = al
			n++
		}
	}
	clear(w.Allies[n:])
	w.Allies = w.Allies[:n]
}

// SpawnCar places a car on the floor line at x, clamped to the arena.
func (w *World) SpawnCar(x float64) *Car {
	c := NewCar(x, w.Arena, w.cfg.Arena, w.rng)
	w.Arena.ClampToWorld(&c.Box)
	w.Cars = append(w.Cars, c)
	return c
}

// randomCarX picks a floor x away from the player spawn when it can
func (w *World) randomCarX() float64 {
	maxX := w.Arena.Width - w.cfg.Arena.CarW
	playerX := w.Player.Box.Center().X

	x := RandRange(w.rng, 0, maxX)
	for try := 0; try < 8; try++ {
		if d := x + w.cfg.Arena.CarW/2 - playerX; d > carSpawnClearance || d < -carSpawnClearance {
			break
		}
		x = RandRange(w.rng, 0, maxX)
	}
	return x
}

// spawnAllies rebuilds the ally population evenly spread across the platform
func (w *World) spawnAllies() {
	clear(w.Allies)
	w.Allies = w.Allies[:0]

	n := w.allyTarget()
	if n <= 0 {
		return
	}
	plat := w.Arena.Platform
	slot := plat.W / float64(n)
	for i := 0; i < n; i++ {
		x := plat.X + slot*(float64(i)+0.5) - w.cfg.Arena.AllyW/2
		w.Allies = append(w.Allies, NewAlly(x, w.Arena, w.cfg.Arena, w.rng))
	}
}

// spawnProjectile appends a rocket unless the projectile cap is reached
func (w *World) spawnProjectile(origin, dir Vec2, owner Owner) {
	if lim := w.cfg.Limits.MaxProjectiles; lim > 0 && len(w.Projectiles) >= lim {
		return
	}
	a := w.cfg.Arena
	p := NewProjectile(origin, dir, owner, a.ProjectileW, a.ProjectileH, a.ProjectileSpeed, a.ProjectileLifetime)
	w.Projectiles = append(w.Projectiles, p)
	w.emit(Event{Type: EventTypeProjectileFired, Owner: owner, At: origin})
}

// emit stamps the current tick onto an event and buffers it
func (w *World) emit(e Event) {
	e.Tick = w.Tick
	w.events = append(w.events, e)
}

// flush hands the buffered events to the caller
func (w *World) flush() []Event {
	out := w.events
	w.events = nil
	return out
}

// Views appends the render record of every entity to dst: player, allies,
// cars, then projectiles.
func (w *World) Views(dst []EntityView) []EntityView {
	dst = append(dst, ViewOf(w.Player))
	for _, al := range w.Allies {
		dst = append(dst, ViewOf(al))
	}
	for _, c := range w.Cars {
		dst = append(dst, ViewOf(c))
	}
	for _, p := range w.Projectiles {
		dst = append(dst, ViewOf(p))
	}
	return dst
}
