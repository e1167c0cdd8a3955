package game

// Phase is the session state machine: idle → running → won | lost.
// won and lost are terminal until Start, Restart or NextWave.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseWon
	PhaseLost
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseWon:
		return "won"
	case PhaseLost:
		return "lost"
	default:
		return "unknown"
	}
}

// MarshalText lets phases appear by name in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "running":
		*p = PhaseRunning
	case "won":
		*p = PhaseWon
	case "lost":
		*p = PhaseLost
	default:
		*p = PhaseIdle
	}
	return nil
}

// Terminal reports whether the session ended
func (p Phase) Terminal() bool { return p == PhaseWon || p == PhaseLost }

// Session holds the progression counters of one run.
// Currency and PurchasedAllies are persisted; everything else is per run.
type Session struct {
	Phase           Phase
	Score           int
	Currency        int
	PurchasedAllies int
	Wave            int
	TimeRemaining   float64 // Seconds, only meaningful with the timer enabled
	LoseReason      int
}

// PurchaseResult explains the outcome of an ally purchase
type PurchaseResult uint8

const (
	PurchaseOK PurchaseResult = iota
	PurchaseInsufficientFunds
	PurchaseAtCap
)

// String returns the result name
func (r PurchaseResult) String() string {
	switch r {
	case PurchaseOK:
		return "ok"
	case PurchaseInsufficientFunds:
		return "insufficient_funds"
	case PurchaseAtCap:
		return "at_cap"
	default:
		return "unknown"
	}
}

// MarshalText lets results appear by name in JSON
func (r PurchaseResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// HUD is the per-tick display record for an external HUD updater.
type HUD struct {
	Phase           Phase   `json:"phase"`
	Score           int     `json:"score"`
	Lives           int     `json:"lives"`
	Wave            int     `json:"wave"`
	TimeRemaining   float64 `json:"timeRemaining"`
	TimerEnabled    bool    `json:"timerEnabled"`
	Currency        int     `json:"currency"`
	PurchasedAllies int     `json:"purchasedAllies"`
	Allies          int     `json:"allies"`
	Cars            int     `json:"cars"`
	Tick            uint64  `json:"tick"`
}

// LoadProgress seeds the persisted counters, clamping anything out of range.
func (w *World) LoadProgress(currency, purchasedAllies int) {
	if currency < 0 {
		currency = 0
	}
	if purchasedAllies < 0 {
		purchasedAllies = 0
	}
	if maxBuy := w.cfg.Shop.MaxAllies - w.cfg.Shop.BaseAllies; purchasedAllies > maxBuy {
		purchasedAllies = max(maxBuy, 0)
	}
	w.Session.Currency = currency
	w.Session.PurchasedAllies = purchasedAllies
}

// Start begins a fresh run at wave 1 from any phase. Score resets,
// persisted currency carries over.
func (w *World) Start() []Event {
	w.Session.Score = 0
	w.beginWave(1)
	return w.flush()
}

// Restart reinitializes the run and re-enters running.
func (w *World) Restart() []Event {
	return w.Start()
}

// NextWave advances to a larger batch after a win, keeping the score.
// Returns false (and changes nothing) from any other phase.
func (w *World) NextWave() ([]Event, bool) {
	if w.Session.Phase != PhaseWon {
		return nil, false
	}
	w.beginWave(w.Session.Wave + 1)
	return w.flush(), true
}

// PurchaseAlly spends currency on one more ally. With insufficient funds or
// the population at its cap nothing changes. While running the ally
// population is respawned to reflect the new count.
func (w *World) PurchaseAlly() (PurchaseResult, []Event) {
	shop := w.cfg.Shop
	if w.Session.Currency < shop.AllyCost {
		return PurchaseInsufficientFunds, nil
	}
	if w.allyTarget() >= shop.MaxAllies {
		return PurchaseAtCap, nil
	}

	w.Session.Currency -= shop.AllyCost
	w.Session.PurchasedAllies++
	w.emit(Event{Type: EventTypeCurrencyChanged, Value: w.Session.Currency})
	w.emit(Event{Type: EventTypeAllyPurchased, Value: w.Session.PurchasedAllies})

	if w.Session.Phase == PhaseRunning {
		w.spawnAllies()
	}
	return PurchaseOK, w.flush()
}

// allyTarget is the population size the purchased count allows
func (w *World) allyTarget() int {
	return min(w.cfg.Shop.BaseAllies+w.Session.PurchasedAllies, w.cfg.Shop.MaxAllies)
}

// beginWave resets the player and every collection, then spawns the batch
func (w *World) beginWave(wave int) {
	w.Session.Wave = wave
	w.Session.Phase = PhaseRunning
	w.Session.LoseReason = 0
	w.Session.TimeRemaining = w.cfg.Session.TimerSeconds

	w.Player = NewPlayer(w.Arena, w.cfg.Arena)
	clear(w.Projectiles)
	w.Projectiles = w.Projectiles[:0]
	clear(w.Cars)
	w.Cars = w.Cars[:0]

	for i := 0; i < w.waveSize(wave); i++ {
		w.SpawnCar(w.randomCarX())
	}
	w.spawnAllies()

	w.emit(Event{Type: EventTypeSessionStarted, Value: wave})
}

// waveSize grows linearly with the wave number, capped by the car limit
func (w *World) waveSize(wave int) int {
	n := w.cfg.Session.BaseWaveSize + w.cfg.Session.WaveGrowth*(wave-1)
	if lim := w.cfg.Limits.MaxCars; lim > 0 && n > lim {
		n = lim
	}
	return max(n, 1)
}

// awardKill applies the score and currency reward for a destroyed car
func (w *World) awardKill(c *Car) {
	w.Session.Score += w.cfg.Session.ScorePerKill
	w.Session.Currency += w.cfg.Session.CurrencyPerKill
	w.emit(Event{Type: EventTypeEnemyDied, At: c.Box.Center(), Value: w.Session.Score})
	w.emit(Event{Type: EventTypeCurrencyChanged, Value: w.Session.Currency})
}

// evaluate runs the win/lose checks at the end of a tick.
// Losing the last life wins over clearing the wave in the same tick.
func (w *World) evaluate() {
	switch {
	case !w.Player.Alive():
		w.lose(LoseReasonLives)
	case len(w.Cars) == 0:
		w.Session.Phase = PhaseWon
		w.emit(Event{Type: EventTypeSessionWon, Value: w.Session.Wave})
	case w.cfg.Session.TimerEnabled && w.Session.TimeRemaining <= 0:
		w.lose(LoseReasonTimer)
	}
}

func (w *World) lose(reason int) {
	w.Session.Phase = PhaseLost
	w.Session.LoseReason = reason
	w.emit(Event{Type: EventTypeSessionLost, Value: reason})
}

// HUD returns the current display record
func (w *World) HUD() HUD {
	return HUD{
		Phase:           w.Session.Phase,
		Score:           w.Session.Score,
		Lives:           w.Player.Lives,
		Wave:            w.Session.Wave,
		TimeRemaining:   w.Session.TimeRemaining,
		TimerEnabled:    w.cfg.Session.TimerEnabled,
		Currency:        w.Session.Currency,
		PurchasedAllies: w.Session.PurchasedAllies,
		Allies:          len(w.Allies),
		Cars:            len(w.Cars),
		Tick:            w.Tick,
	}
}
