package game

import (
	"encoding/json"
	"testing"

	"rocket-arena/internal/config"
)

func TestPurchaseAlly(t *testing.T) {
	tests := []struct {
		name      string
		currency  int
		purchased int
		running   bool
		want      PurchaseResult
		wantCur   int
		wantBuys  int
		wantAlly  int // Allies on the field afterwards
	}{
		{"ok while running", 250, 0, true, PurchaseOK, 150, 1, 2},
		{"ok while idle", 100, 0, false, PurchaseOK, 0, 1, 0},
		{"insufficient funds", 99, 0, true, PurchaseInsufficientFunds, 99, 0, 1},
		{"at cap", 1000, 4, true, PurchaseAtCap, 1000, 4, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorld(config.DefaultGame(), 3)
			w.LoadProgress(tt.currency, tt.purchased)
			if tt.running {
				w.Start()
			}

			got, events := w.PurchaseAlly()
			if got != tt.want {
				t.Fatalf("result = %s, want %s", got, tt.want)
			}
			if w.Session.Currency != tt.wantCur || w.Session.PurchasedAllies != tt.wantBuys {
				t.Errorf("currency %d purchased %d, want %d and %d",
					w.Session.Currency, w.Session.PurchasedAllies, tt.wantCur, tt.wantBuys)
			}
			if len(w.Allies) != tt.wantAlly {
				t.Errorf("allies = %d, want %d", len(w.Allies), tt.wantAlly)
			}

			if tt.want == PurchaseOK {
				if countEvents(events, EventTypeAllyPurchased) != 1 || countEvents(events, EventTypeCurrencyChanged) != 1 {
					t.Errorf("events = %+v", events)
				}
			} else if len(events) != 0 {
				t.Errorf("rejected purchase emitted %d events", len(events))
			}
		})
	}
}

func TestPurchaseUntilCap(t *testing.T) {
	w := NewWorld(config.DefaultGame(), 3)
	w.LoadProgress(10_000, 0)

	bought := 0
	for i := 0; i < 10; i++ {
		if res, _ := w.PurchaseAlly(); res == PurchaseOK {
			bought++
		}
	}
	shop := config.DefaultShop()
	if want := shop.MaxAllies - shop.BaseAllies; bought != want {
		t.Errorf("bought %d, want %d before the cap", bought, want)
	}

	w.Start()
	if len(w.Allies) != shop.MaxAllies {
		t.Errorf("allies = %d, want %d", len(w.Allies), shop.MaxAllies)
	}
}

func TestLoadProgressClamps(t *testing.T) {
	w := NewWorld(config.DefaultGame(), 1)

	w.LoadProgress(-5, 99)
	if w.Session.Currency != 0 {
		t.Errorf("currency = %d, want 0", w.Session.Currency)
	}
	if w.Session.PurchasedAllies != 4 {
		t.Errorf("purchased = %d, want clamped to 4", w.Session.PurchasedAllies)
	}
}

func TestNextWave(t *testing.T) {
	w := NewWorld(config.DefaultGame(), 5)

	if _, ok := w.NextWave(); ok {
		t.Fatal("NextWave from idle should be refused")
	}
	w.Start()
	if _, ok := w.NextWave(); ok {
		t.Fatal("NextWave while running should be refused")
	}
	if w.Session.Wave != 1 {
		t.Fatalf("wave = %d after refused NextWave", w.Session.Wave)
	}

	w.Session.Score = 40
	w.Session.Phase = PhaseWon

	events, ok := w.NextWave()
	if !ok {
		t.Fatal("NextWave after a win was refused")
	}
	if w.Session.Wave != 2 || w.Session.Phase != PhaseRunning {
		t.Errorf("wave %d phase %s, want running wave 2", w.Session.Wave, w.Session.Phase)
	}
	if len(w.Cars) != 6 {
		t.Errorf("cars = %d, want 6", len(w.Cars))
	}
	if w.Session.Score != 40 {
		t.Errorf("score = %d, want kept at 40", w.Session.Score)
	}
	if countEvents(events, EventTypeSessionStarted) != 1 {
		t.Error("missing SessionStarted event")
	}
}

func TestRestartResetsRun(t *testing.T) {
	w := NewWorld(config.DefaultGame(), 5)
	w.LoadProgress(70, 0)
	w.Start()

	w.Session.Score = 30
	w.Session.Wave = 3
	w.Player.Lives = 1
	w.Projectiles = append(w.Projectiles, NewProjectile(Vec2{X: 100, Y: 100}, Vec2{X: 1}, OwnerPlayer, 10, 4, 5, 100))
	w.lose(LoseReasonLives)

	w.Restart()
	if w.Session.Phase != PhaseRunning || w.Session.Wave != 1 || w.Session.Score != 0 {
		t.Errorf("phase %s wave %d score %d, want a fresh wave 1", w.Session.Phase, w.Session.Wave, w.Session.Score)
	}
	if w.Session.LoseReason != 0 {
		t.Errorf("lose reason = %d, want cleared", w.Session.LoseReason)
	}
	if w.Player.Lives != config.DefaultArena().PlayerLives {
		t.Errorf("lives = %d, want full", w.Player.Lives)
	}
	if len(w.Projectiles) != 0 {
		t.Errorf("projectiles = %d, want cleared", len(w.Projectiles))
	}
	if w.Session.Currency != 70 {
		t.Errorf("currency = %d, want carried over", w.Session.Currency)
	}
}

func TestWaveSizeCappedByLimit(t *testing.T) {
	cfg := config.DefaultGame()
	cfg.Limits.MaxCars = 5
	w := NewWorld(cfg, 1)

	if got := w.waveSize(1); got != 4 {
		t.Errorf("wave 1 = %d, want 4", got)
	}
	if got := w.waveSize(10); got != 5 {
		t.Errorf("wave 10 = %d, want capped at 5", got)
	}
}

func TestHUDJSON(t *testing.T) {
	w := NewWorld(config.DefaultGame(), 1)
	w.Start()

	data, err := json.Marshal(w.HUD())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["phase"] != "running" {
		t.Errorf("phase = %v, want \"running\"", out["phase"])
	}
	if out["cars"] != float64(4) || out["lives"] != float64(3) {
		t.Errorf("hud = %v", out)
	}
}

func TestPhaseTerminal(t *testing.T) {
	if !PhaseWon.Terminal() || !PhaseLost.Terminal() || PhaseRunning.Terminal() || PhaseIdle.Terminal() {
		t.Error("Terminal misclassifies phases")
	}
}
