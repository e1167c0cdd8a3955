package game

// Owner tags who fired a projectile
type Owner uint8

const (
	OwnerPlayer Owner = iota
	OwnerAlly
)

// String returns the owner tag
func (o Owner) String() string {
	if o == OwnerAlly {
		return "ally"
	}
	return "player"
}

// ProjectileState is the flying/exploding sub-state of a rocket
type ProjectileState uint8

const (
	Flying ProjectileState = iota
	Exploding
)

// Projectile is a rocket travelling in a straight line.
// Once it hits something it switches to Exploding: it stops moving, stops
// colliding, and is removed after its explosion frames run out.
type Projectile struct {
	Box   Rect
	Dir   Vec2    // Unit direction of travel
	Speed float64 // Pixels per tick
	Owner Owner

	State          ProjectileState
	Lifetime       int // Remaining flight ticks
	ExplosionFrame int // Remaining explosion ticks (Exploding only)
}

// NewProjectile centers a rocket on origin heading along dir.
// A zero direction falls back to pointing right so the rocket never stalls.
func NewProjectile(origin, dir Vec2, owner Owner, w, h, speed float64, lifetime int) *Projectile {
	d := Normalize(dir)
	if d == (Vec2{}) {
		d = Vec2{X: 1}
	}
	return &Projectile{
		Box:      Rect{X: origin.X - w/2, Y: origin.Y - h/2, W: w, H: h},
		Dir:      d,
		Speed:    speed,
		Owner:    owner,
		State:    Flying,
		Lifetime: lifetime,
	}
}

func (p *Projectile) Kind() Kind   { return KindProjectile }
func (p *Projectile) Bounds() Rect { return p.Box }

// Alive reports whether the projectile still belongs in the world
func (p *Projectile) Alive() bool {
	if p.State == Exploding {
		return p.ExplosionFrame > 0
	}
	return p.Lifetime > 0
}

// Visual returns flying or exploding
func (p *Projectile) Visual() Visual {
	if p.State == Exploding {
		return VisualExploding
	}
	return VisualFlying
}

// Update advances one tick. Returns false if the projectile should be removed
// (lifetime expired, left the arena, or explosion finished).
func (p *Projectile) Update(a Arena) bool {
	if p.State == Exploding {
		p.ExplosionFrame--
		return p.ExplosionFrame > 0
	}

	p.Box.X += p.Dir.X * p.Speed
	p.Box.Y += p.Dir.Y * p.Speed
	p.Lifetime--

	if !a.Contains(p.Box) {
		p.Lifetime = 0
		return false
	}
	return p.Lifetime > 0
}

// Explode freezes the projectile in place for the given number of frames
func (p *Projectile) Explode(frames int) {
	if frames < 1 {
		frames = 1
	}
	p.State = Exploding
	p.ExplosionFrame = frames
}

// InFlight reports whether the projectile still participates in collisions
func (p *Projectile) InFlight() bool {
	return p.State == Flying && p.Lifetime > 0
}
