package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rocket-arena/internal/api"
	"rocket-arena/internal/audio"
	"rocket-arena/internal/config"
	"rocket-arena/internal/game"
	"rocket-arena/internal/ipc"
	"rocket-arena/internal/render"
	"rocket-arena/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🚀 ================================")
	log.Println("🚀  ROCKET ARENA - SERVER")
	log.Println("🚀 ================================")

	appConfig := config.Load()
	arenaCfg := appConfig.Game.Arena
	log.Printf("🎮 Config: %d TPS, %.0fx%.0f arena, %d lives, timer %v (%.0fs)",
		arenaCfg.TickRate, arenaCfg.Width, arenaCfg.Height, arenaCfg.PlayerLives,
		appConfig.Game.Session.TimerEnabled, appConfig.Game.Session.TimerSeconds)

	counters, err := store.Open(appConfig.Store.Path)
	if err != nil {
		log.Printf("⚠️ Progress store unavailable, keeping progress in memory: %v", err)
		counters = store.NewMemoryStore()
	} else if appConfig.Store.Path != "" {
		log.Printf("💾 Progress file: %s", appConfig.Store.Path)
	}

	bank := audio.NewBank(appConfig.Audio)
	if appConfig.Audio.Enabled && appConfig.Audio.Speaker {
		if err := bank.EnableSpeaker(); err != nil {
			log.Printf("⚠️ Speaker disabled: %v", err)
		} else {
			log.Println("🔊 Speaker output enabled")
		}
	}

	// The publisher relays cues to the streamer next to the local bank. It
	// only joins the sinks once its socket is open.
	sinks := audio.Sinks{bank}
	var publisher *ipc.Publisher
	if appConfig.IPC.Enabled {
		publisher = startPublisher(appConfig)
		if publisher != nil {
			sinks = append(sinks, publisher)
		}
	}

	engine := game.NewEngine(game.EngineConfig{
		Game:  appConfig.Game,
		Audio: sinks,
		Store: store.NewProgress(counters),
	})

	if publisher != nil {
		publisher.SetCommandSink(engine)
		publisher.StartFeed(engine, appConfig.IPC.FPS)
	}

	if path := appConfig.Debug.EventLogPath; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
		}
	}

	api.RegisterEventLogGauges(engine)
	if err := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:    appConfig.Debug.Enabled,
		ListenAddr: appConfig.Debug.ListenAddr,
	}); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	renderer := render.NewRenderer(int(arenaCfg.Width), int(arenaCfg.Height))
	server := api.NewServer(engine, renderer, appConfig.Server)

	engine.Start()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	if publisher != nil {
		publisher.Stop()
	}
	engine.Stop()
	engine.StopEventLog()

	log.Println("👋 Goodbye!")
}

// startPublisher opens the IPC socket for the streamer and attached
// terminals. Returns nil when the socket cannot be opened.
func startPublisher(appConfig config.AppConfig) *ipc.Publisher {
	arena := appConfig.Game.Arena
	pub := ipc.NewPublisher(appConfig.IPC.SocketPath, nil)
	pub.SetConfig(int(arena.Width), int(arena.Height), arena.TickRate, appConfig.IPC.FPS)
	if err := pub.Start(); err != nil {
		log.Printf("⚠️ IPC publisher disabled: %v", err)
		return nil
	}
	return pub
}
