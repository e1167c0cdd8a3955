// Command streamer renders the arena fed by the server's IPC socket and
// encodes it with ffmpeg. It runs as its own process so encoding stalls never
// reach the simulation.
//
//	go run ./cmd/server
//	STREAM_OUTPUT=rtmp://live.example/app/KEY go run ./cmd/streamer
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rocket-arena/internal/audio"
	"rocket-arena/internal/config"
	"rocket-arena/internal/ipc"
	"rocket-arena/internal/streaming"

	"github.com/joho/godotenv"
)

// restartDelay is the pause before reopening a stream ffmpeg dropped
const restartDelay = 5 * time.Second

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	log.Println("🎥 ================================")
	log.Println("🎥  ROCKET ARENA - STREAMER")
	log.Println("🎥 ================================")

	appConfig := config.Load()
	streamCfg := appConfig.Stream
	if streamCfg.Output == "" {
		log.Println("❌ No stream output configured")
		log.Println("   Set STREAM_OUTPUT (file, rtmp URL or \"null\") or STREAM_URL and STREAM_KEY")
		os.Exit(1)
	}

	// The bank only mixes into the stream; it never opens the speaker here
	bank := audio.NewBank(appConfig.Audio)

	subscriber := ipc.NewSubscriber(appConfig.IPC.SocketPath)
	source := streaming.NewIPCSource(subscriber, bank)

	subscriber.OnConnect(func() { log.Println("✅ Connected to arena server") })
	subscriber.OnDisconnect(func() { log.Println("🔌 Disconnected from arena server, reconnecting...") })
	subscriber.OnConfig(func(cfg *ipc.ConfigMessage) {
		log.Printf("📋 Server config: %dx%d arena, %d TPS, feed %d FPS",
			cfg.Width, cfg.Height, cfg.TickRate, cfg.FPS)
	})

	log.Printf("📡 Connecting to %s...", ipc.GetPlatformAddress(appConfig.IPC.SocketPath))
	if err := subscriber.Start(); err != nil {
		log.Fatalf("❌ Failed to start IPC subscriber: %v", err)
	}
	if subscriber.WaitForConfig(30*time.Second) == nil {
		log.Println("⚠️ No arena server yet, streaming the idle screen until it appears")
	}

	streamer := streaming.NewStreamManager(source, bank, streaming.StreamConfig{
		Width:        streamCfg.Width,
		Height:       streamCfg.Height,
		FPS:          streamCfg.FPS,
		Bitrate:      streamCfg.Bitrate,
		Output:       streamCfg.Output,
		SampleRate:   int(bank.SampleRate()),
		MusicEnabled: streamCfg.MusicEnabled,
		MusicVolume:  streamCfg.MusicVolume,
		MusicPath:    streamCfg.MusicPath,
	})

	// The callback runs on the writer goroutine, which Stop waits for
	lost := make(chan struct{}, 1)
	streamer.OnConnectionLost(func() {
		select {
		case lost <- struct{}{}:
		default:
		}
	})

	if err := streamer.Start(); err != nil {
		log.Printf("❌ Failed to start stream: %v", err)
	}

	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("🎬 Streamer ready! Press Ctrl+C to stop.")

	for {
		select {
		case <-quit:
			log.Println("🛑 Shutting down streamer...")
			streamer.Stop()
			subscriber.Stop()
			log.Println("👋 Goodbye!")
			return

		case <-lost:
			log.Printf("⚠️ Stream output lost, restarting in %v", restartDelay)
			streamer.Stop()
			time.Sleep(restartDelay)
			if err := streamer.Start(); err != nil {
				log.Printf("❌ Restart failed: %v", err)
			}

		case <-statsTicker.C:
			received, reconnects, errs := subscriber.GetStats()
			log.Printf("📊 IPC: snapshots=%d reconnects=%d errors=%d connected=%v",
				received, reconnects, errs, subscriber.IsConnected())
			stats := streamer.GetStats()
			log.Printf("📊 Stream: frames=%v dropped=%v fps=%v uptime=%v streaming=%v",
				stats["framesRendered"], stats["framesDropped"], stats["actualFps"],
				stats["uptime"], stats["streaming"])
		}
	}
}
