package game

// SoundID names a sound cue. The audio collaborator decides what it sounds like.
type SoundID uint8

const (
	SoundFire SoundID = iota
	SoundHit
	SoundEnemyDied
	SoundPlayerHit
	SoundAllyLost
	SoundPurchase
	SoundWon
	SoundLost
)

// String returns the cue name
func (s SoundID) String() string {
	switch s {
	case SoundFire:
		return "fire"
	case SoundHit:
		return "hit"
	case SoundEnemyDied:
		return "enemy_died"
	case SoundPlayerHit:
		return "player_hit"
	case SoundAllyLost:
		return "ally_lost"
	case SoundPurchase:
		return "purchase"
	case SoundWon:
		return "won"
	case SoundLost:
		return "lost"
	default:
		return "unknown"
	}
}

// SoundFor maps a simulation event to its cue, if it has one
func SoundFor(t EventType) (SoundID, bool) {
	switch t {
	case EventTypeProjectileFired:
		return SoundFire, true
	case EventTypeProjectileHit:
		return SoundHit, true
	case EventTypeEnemyDied:
		return SoundEnemyDied, true
	case EventTypePlayerHit:
		return SoundPlayerHit, true
	case EventTypeAllyLost:
		return SoundAllyLost, true
	case EventTypeAllyPurchased:
		return SoundPurchase, true
	case EventTypeSessionWon:
		return SoundWon, true
	case EventTypeSessionLost:
		return SoundLost, true
	}
	return 0, false
}

// AudioSink plays cues fire-and-forget. Implementations must not block the
// caller; the engine also recovers from a panicking sink.
type AudioSink interface {
	Play(id SoundID)
}

// HUDSink receives the display record once per tick and after every
// lifecycle action.
type HUDSink interface {
	UpdateHUD(h HUD)
}

// ProgressStore persists the counters that outlive a session.
// Errors are logged by the engine and never reach the simulation.
type ProgressStore interface {
	LoadProgress() (currency, purchasedAllies int, err error)
	SaveProgress(currency, purchasedAllies int) error
}
