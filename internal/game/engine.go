package game

import (
	"log"
	"sync"
	"time"

	"rocket-arena/internal/config"
	"rocket-arena/internal/game/spatial"
)

// CommandQueueSize bounds pending host commands between two ticks
const CommandQueueSize = 256

// EngineConfig wires an engine to its configuration and collaborators.
// Any collaborator may be nil.
type EngineConfig struct {
	Game  config.GameConfig
	Seed  int64 // 0 picks a time-based seed
	Audio AudioSink
	HUD   HUDSink
	Store ProgressStore
}

// Engine drives a World in real time and dispatches the events it produces
// to the audio, HUD and persistence collaborators. The world is only touched
// under mu; collaborators are called after the lock is released.
type Engine struct {
	mu    sync.RWMutex
	world *World
	input Input

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	commands     *spatial.LockFreeQueue[Command]
	snapshotPool *SnapshotPool
	eventLog     *EventLog

	audio AudioSink
	hud   HUDSink
	store ProgressStore

	// hudSeq numbers every HUD captured under mu. Saves run after mu is
	// released, so saveProgress drops any HUD older than the last one written.
	hudSeq   uint64
	saveMu   sync.Mutex
	savedSeq uint64

	// Event callbacks
	onEvent func(Event)
	onTick  func(elapsed time.Duration, hud HUD)
}

// NewEngine creates an engine with an idle world. Persisted progress is
// loaded from the store; a failing store starts from zero.
func NewEngine(cfg EngineConfig) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tickRate := cfg.Game.Arena.TickRate
	if tickRate <= 0 {
		tickRate = 60
	}

	capacity := 1 + cfg.Game.Shop.MaxAllies + cfg.Game.Limits.MaxCars + cfg.Game.Limits.MaxProjectiles
	e := &Engine{
		world:        NewWorld(cfg.Game, seed),
		tickRate:     tickRate,
		stopChan:     make(chan struct{}),
		commands:     spatial.NewLockFreeQueue[Command](CommandQueueSize),
		snapshotPool: NewSnapshotPool(capacity),
		eventLog:     NewEventLog(),
		audio:        cfg.Audio,
		hud:          cfg.HUD,
		store:        cfg.Store,
	}

	if e.store != nil {
		currency, purchased, err := e.store.LoadProgress()
		if err != nil {
			log.Printf("⚠️ Could not load progress, starting fresh: %v", err)
		} else {
			e.world.LoadProgress(currency, purchased)
			log.Printf("💾 Progress loaded: %d currency, %d purchased allies", currency, purchased)
		}
	}

	e.produceSnapshot()
	return e
}

// Start begins the real-time loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	ticker := e.ticker
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				e.Tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Arena engine started at %d TPS", e.tickRate)
}

// Stop stops the loop. The engine cannot be restarted afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Arena engine stopped")
}

// Tick applies queued commands, advances the world one step and dispatches
// the resulting events. The loop calls it; hosts and tests may drive it
// manually instead of calling Start.
func (e *Engine) Tick() {
	start := time.Now()

	e.mu.Lock()
	var events []Event
	e.commands.Drain(func(c Command) {
		events = append(events, e.applyLocked(c)...)
	})

	stepped := e.world.Session.Phase == PhaseRunning
	events = append(events, e.world.Step(e.input)...)
	if stepped {
		e.eventLog.Emit(NewRecord(EventTypeTick, e.world.Tick, TickPayload{
			RNGSeed: e.world.Seed,
			Phase:   e.world.Session.Phase.String(),
			Cars:    len(e.world.Cars),
			Allies:  len(e.world.Allies),
			Rockets: len(e.world.Projectiles),
		}))
	}
	e.produceSnapshotLocked()
	hud := e.world.HUD()
	e.hudSeq++
	seq := e.hudSeq
	onTick := e.onTick
	e.mu.Unlock()

	e.dispatch(events, hud, seq)
	if onTick != nil {
		onTick(time.Since(start), hud)
	}
}

// Submit queues a command for the next tick. Safe from any goroutine.
// Returns false when the queue is full.
func (e *Engine) Submit(c Command) bool {
	return e.commands.TryPush(c)
}

// applyLocked runs a command against the world (caller holds mu)
func (e *Engine) applyLocked(c Command) []Event {
	switch c.Kind {
	case CommandInput:
		e.input = c.Input
	case CommandStart:
		e.input = Input{}
		return e.world.Start()
	case CommandRestart:
		e.input = Input{}
		return e.world.Restart()
	case CommandNextWave:
		events, ok := e.world.NextWave()
		if ok {
			e.input = Input{}
		}
		return events
	case CommandPurchaseAlly:
		_, events := e.world.PurchaseAlly()
		return events
	}
	return nil
}

// SetInput replaces the held action set used by the following ticks
func (e *Engine) SetInput(in Input) {
	e.mu.Lock()
	e.input = in
	e.mu.Unlock()
}

// StartSession begins a fresh run at wave 1
func (e *Engine) StartSession() {
	e.mu.Lock()
	e.input = Input{}
	events := e.world.Start()
	hud, seq := e.finishLocked()
	e.dispatch(events, hud, seq)
}

// Restart reinitializes the run and re-enters running
func (e *Engine) Restart() {
	e.mu.Lock()
	e.input = Input{}
	events := e.world.Restart()
	hud, seq := e.finishLocked()
	e.dispatch(events, hud, seq)
}

// NextWave continues after a win. Returns false from any other phase.
func (e *Engine) NextWave() bool {
	e.mu.Lock()
	events, ok := e.world.NextWave()
	if ok {
		e.input = Input{}
	}
	hud, seq := e.finishLocked()
	e.dispatch(events, hud, seq)
	return ok
}

// PurchaseAlly spends currency on an ally
func (e *Engine) PurchaseAlly() PurchaseResult {
	e.mu.Lock()
	result, events := e.world.PurchaseAlly()
	hud, seq := e.finishLocked()
	if result != PurchaseOK {
		log.Printf("🛒 Ally purchase refused: %s (currency %d)", result, hud.Currency)
	}
	e.dispatch(events, hud, seq)
	return result
}

// finishLocked publishes a snapshot after a lifecycle action and releases
// mu. It returns the HUD with its sequence number.
func (e *Engine) finishLocked() (HUD, uint64) {
	e.produceSnapshotLocked()
	hud := e.world.HUD()
	e.hudSeq++
	seq := e.hudSeq
	e.mu.Unlock()
	return hud, seq
}

// dispatch forwards events to the collaborators. Called without mu held.
func (e *Engine) dispatch(events []Event, hud HUD, seq uint64) {
	e.mu.RLock()
	onEvent := e.onEvent
	hudSink := e.hud
	e.mu.RUnlock()

	progressChanged := false
	for _, ev := range events {
		e.eventLog.EmitEvent(ev)

		if id, ok := SoundFor(ev.Type); ok {
			e.playSound(id)
		}

		switch ev.Type {
		case EventTypeCurrencyChanged:
			progressChanged = true
		case EventTypeSessionStarted:
			log.Printf("🚦 Wave %d started", ev.Value)
		case EventTypeSessionWon:
			log.Printf("🏆 Wave %d cleared (score %d)", ev.Value, hud.Score)
		case EventTypeSessionLost:
			reason := "out of lives"
			if ev.Value == LoseReasonTimer {
				reason = "time ran out"
			}
			log.Printf("💀 Session lost on wave %d: %s (score %d)", hud.Wave, reason, hud.Score)
		case EventTypeAllyPurchased:
			progressChanged = true
			log.Printf("🛒 Ally purchased (%d total)", ev.Value)
		}

		if onEvent != nil {
			onEvent(ev)
		}
	}

	if progressChanged {
		e.saveProgress(hud, seq)
	}
	if hudSink != nil {
		hudSink.UpdateHUD(hud)
	}
}

// playSound calls the audio sink, swallowing any panic
func (e *Engine) playSound(id SoundID) {
	if e.audio == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Audio cue %s failed: %v", id, r)
		}
	}()
	e.audio.Play(id)
}

// saveProgress writes the persisted counters; failures are logged only.
// Saves are serialized and a HUD older than the last written one is dropped,
// so the store always ends on the newest world state.
func (e *Engine) saveProgress(hud HUD, seq uint64) {
	if e.store == nil {
		return
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if seq <= e.savedSeq {
		return
	}
	e.savedSeq = seq
	if err := e.store.SaveProgress(hud.Currency, hud.PurchasedAllies); err != nil {
		log.Printf("⚠️ Could not save progress: %v", err)
	}
}

// HUD returns the current display record
func (e *Engine) HUD() HUD {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.world.HUD()
}

// GetSnapshot returns the latest immutable snapshot for lock-free rendering.
// The pointed-to snapshot is recycled two publishes later; use Copy to keep it.
func (e *Engine) GetSnapshot() *Snapshot {
	return e.snapshotPool.AcquireRead()
}

// WithWorld runs fn with exclusive access to the world. For diagnostics and
// tests; fn must not call back into the engine.
func (e *Engine) WithWorld(fn func(w *World)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.world)
	e.produceSnapshotLocked()
}

// SetEventHandler registers a callback invoked for every dispatched event
func (e *Engine) SetEventHandler(fn func(Event)) {
	e.mu.Lock()
	e.onEvent = fn
	e.mu.Unlock()
}

// SetHUDSink replaces the HUD collaborator
func (e *Engine) SetHUDSink(sink HUDSink) {
	e.mu.Lock()
	e.hud = sink
	e.mu.Unlock()
}

// SetTickHandler registers a callback invoked after every tick with the
// time the tick took
func (e *Engine) SetTickHandler(fn func(elapsed time.Duration, hud HUD)) {
	e.mu.Lock()
	e.onTick = fn
	e.mu.Unlock()
}

// TickRate returns the configured ticks per second
func (e *Engine) TickRate() int { return e.tickRate }

// PendingCommands returns the approximate command queue depth
func (e *Engine) PendingCommands() int { return e.commands.Len() }

func (e *Engine) produceSnapshot() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.produceSnapshotLocked()
}

func (e *Engine) produceSnapshotLocked() {
	snap := e.snapshotPool.AcquireWrite()
	e.world.fillSnapshot(snap)
	e.snapshotPool.PublishWrite()
}

// StartEventLog starts the JSONL event log
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the event log
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log counters
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}
