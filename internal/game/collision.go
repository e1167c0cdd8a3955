package game

// resolveProjectileHits tests every in-flight projectile against the live
// cars. Cars are indexed in the spatial grid by center; candidates come back
// latest-spawned first, so ties resolve in reverse-insertion order.
//
// A projectile damages at most one car, then explodes and leaves the
// collision set. A car killed by an earlier projectile in the same tick is
// skipped by later ones.
func (w *World) resolveProjectileHits() {
	if len(w.Cars) == 0 || len(w.Projectiles) == 0 {
		return
	}

	w.grid.Clear()
	maxCarRadius := 0.0
	for i, c := range w.Cars {
		if !c.Alive() {
			continue
		}
		center := c.Box.Center()
		w.grid.Insert(uint32(i), center.X, center.Y)
		if r := c.Box.HalfDiagonal(); r > maxCarRadius {
			maxCarRadius = r
		}
	}

	damage := w.cfg.Arena.ProjectileDamage
	for _, p := range w.Projectiles {
		if !p.InFlight() {
			continue
		}
		center := p.Box.Center()
		candidates := w.grid.QueryRadius(center.X, center.Y, maxCarRadius+p.Box.HalfDiagonal())

		for _, idx := range candidates {
			car := w.Cars[idx]
			if !car.Alive() || !p.Box.Overlaps(car.Box) {
				continue
			}

			car.TakeDamage(damage)
			p.Explode(w.cfg.Arena.ExplosionFrames)
			w.emit(Event{Type: EventTypeProjectileHit, Owner: p.Owner, At: center, Value: car.Health})

			if !car.Alive() {
				w.awardKill(car)
			}
			break
		}
	}
}

// resolveContacts handles cars touching allies or the player. Each contact
// costs the target one life and knocks the car upward; a car resolves at most
// one contact per tick.
func (w *World) resolveContacts() {
	kb := w.cfg.Arena.KnockbackSpeed
	nudge := w.cfg.Arena.KnockbackNudge

	for _, car := range w.Cars {
		if !car.Alive() {
			continue
		}

		hit := false
		for _, ally := range w.Allies {
			if !ally.Alive() || !car.Box.Overlaps(ally.Box) {
				continue
			}
			died := ally.LoseLife()
			car.Knockback(kb, nudge)
			w.emit(Event{Type: EventTypeAllyHit, At: ally.Box.Center(), Value: ally.Lives})
			if died {
				w.emit(Event{Type: EventTypeAllyLost, At: ally.Box.Center()})
			}
			hit = true
			break
		}
		if hit {
			continue
		}

		if w.Player.Alive() && car.Box.Overlaps(w.Player.Box) {
			w.Player.LoseLife()
			car.Knockback(kb, nudge)
			w.emit(Event{Type: EventTypePlayerHit, At: w.Player.Box.Center(), Value: w.Player.Lives})
		}
	}
}
