package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"rocket-arena/internal/audio"
	"rocket-arena/internal/config"
	"rocket-arena/internal/game"
	"rocket-arena/internal/ipc"
	"rocket-arena/internal/store"
	"rocket-arena/internal/streaming"
	"rocket-arena/internal/tui"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
)

func main() {
	attach := flag.Bool("attach", false, "play on a running server over its IPC socket instead of a local engine")
	socket := flag.String("socket", "", "IPC socket path for -attach (default IPC_SOCKET)")
	fps := flag.Int("fps", 30, "terminal redraw rate")
	flag.Parse()

	// The terminal belongs to tcell; logs go to a file instead
	logFile, err := os.OpenFile(envOr("ARENA_TUI_LOG", "arena-tui.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	appConfig := config.Load()

	bank := audio.NewBank(appConfig.Audio)
	if appConfig.Audio.Enabled {
		if err := bank.EnableSpeaker(); err != nil {
			log.Printf("⚠️ Speaker disabled: %v", err)
		}
	}

	var engine tui.Engine
	var shutdown func()
	if *attach {
		path := *socket
		if path == "" {
			path = appConfig.IPC.SocketPath
		}
		engine, shutdown = attachRemote(path, bank)
	} else {
		engine, shutdown = startLocal(appConfig, bank)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		shutdown()
		fmt.Fprintf(os.Stderr, "terminal unavailable: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		shutdown()
		fmt.Fprintf(os.Stderr, "terminal init failed: %v\n", err)
		os.Exit(1)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.HideCursor()
	screen.Clear()

	tui.NewHost(screen, engine, *fps).Run()

	shutdown()
	screen.Fini()
	log.Println("👋 Goodbye!")
}

// startLocal runs the simulation in this process
func startLocal(appConfig config.AppConfig, bank *audio.Bank) (tui.Engine, func()) {
	counters, err := store.Open(appConfig.Store.Path)
	if err != nil {
		log.Printf("⚠️ Progress store unavailable, keeping progress in memory: %v", err)
		counters = store.NewMemoryStore()
	}

	engine := game.NewEngine(game.EngineConfig{
		Game:  appConfig.Game,
		Audio: bank,
		Store: store.NewProgress(counters),
	})
	engine.Start()
	return engine, engine.Stop
}

// attachRemote plays on the server's arena; its cues play on the local speaker
func attachRemote(path string, bank *audio.Bank) (tui.Engine, func()) {
	sub := ipc.NewSubscriber(path)
	remote := streaming.NewIPCSource(sub, bank)
	if err := sub.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "attach failed: %v\n", err)
		os.Exit(1)
	}
	if sub.WaitForConfig(5*time.Second) == nil {
		sub.Stop()
		fmt.Fprintf(os.Stderr, "no arena server on %s\n", ipc.GetPlatformAddress(path))
		os.Exit(1)
	}
	log.Printf("📡 Attached to %s", ipc.GetPlatformAddress(path))
	return remote, sub.Stop
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
