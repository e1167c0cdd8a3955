package game

import "math"

// NearestCar returns the live car whose center is closest to from, and its
// index. Ties keep the first minimum encountered in slice order.
// Returns (nil, -1) when no car is alive.
func NearestCar(from Vec2, cars []*Car) (*Car, int) {
	var best *Car
	bestIdx := -1
	bestDist := math.MaxFloat64
	for i, c := range cars {
		if !c.Alive() {
			continue
		}
		d := Distance(from, c.Box.Center())
		if d < bestDist {
			best, bestIdx, bestDist = c, i, d
		}
	}
	return best, bestIdx
}

// runAllyAI counts down each ally's fire cooldown. When it expires the ally
// aims at the nearest car and fires from its center; with no car left it
// holds fire. The cooldown is re-rolled after every attempt either way.
func (w *World) runAllyAI() {
	cfg := w.cfg.Arena
	for _, al := range w.Allies {
		if !al.Alive() {
			continue
		}
		if al.FireCooldown > 0 {
			al.FireCooldown--
		}
		if al.FireCooldown > 0 {
			continue
		}

		origin := al.Box.Center()
		if target, _ := NearestCar(origin, w.Cars); target != nil {
			dir := Normalize(target.Box.Center().Sub(origin))
			w.spawnProjectile(origin, dir, OwnerAlly)
		}
		al.FireCooldown = RandRangeInt(w.rng, cfg.AllyFireCooldownLo, cfg.AllyFireCooldownHi)
	}
}
