package game

// Kind tags the closed set of entity variants in the arena.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindCar
	KindAlly
	KindProjectile
)

// String returns the kind name used in snapshots and logs
func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindCar:
		return "car"
	case KindAlly:
		return "ally"
	case KindProjectile:
		return "projectile"
	default:
		return "unknown"
	}
}

// Visual is the drawable state a renderer picks a sprite or color from.
type Visual uint8

const (
	VisualIdle Visual = iota
	VisualMoving
	VisualJumping
	VisualHurt
	VisualFlying
	VisualExploding
)

// String returns the visual state name
func (v Visual) String() string {
	switch v {
	case VisualIdle:
		return "idle"
	case VisualMoving:
		return "moving"
	case VisualJumping:
		return "jumping"
	case VisualHurt:
		return "hurt"
	case VisualFlying:
		return "flying"
	case VisualExploding:
		return "exploding"
	default:
		return "unknown"
	}
}

// Entity is the capability every arena variant shares.
// Behavior is selected by switching on Kind(), never by embedding.
type Entity interface {
	Kind() Kind
	Bounds() Rect
	Alive() bool
	Visual() Visual
}

// EntityView is the per-tick render record exposed to drawing routines.
type EntityView struct {
	Kind   Kind    `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
	Visual Visual  `json:"visual"`
	Facing int     `json:"facing,omitempty"`
	Health int     `json:"health,omitempty"` // Car health or lives for player/allies
}

// ViewOf builds the render record for any entity
func ViewOf(e Entity) EntityView {
	b := e.Bounds()
	v := EntityView{Kind: e.Kind(), X: b.X, Y: b.Y, W: b.W, H: b.H, Visual: e.Visual()}
	switch x := e.(type) {
	case *Player:
		v.Facing = x.Facing
		v.Health = x.Lives
	case *Car:
		v.Facing = x.Dir
		v.Health = x.Health
	case *Ally:
		v.Facing = x.Dir
		v.Health = x.Lives
	}
	return v
}

// hurtFrames is how long the hurt visual lingers after taking a hit
const hurtFrames = 10
