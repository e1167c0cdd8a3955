// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for arena tuning, session rules and host settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ARENA & PHYSICS CONFIGURATION
// =============================================================================

// ArenaConfig holds the arena geometry and per-tick physics constants.
// All speeds are in pixels per tick, accelerations in pixels per tick².
type ArenaConfig struct {
	Width    float64 // World width in pixels
	Height   float64 // World height in pixels
	FloorY   float64 // Floor line: resting bottom edge on the ground
	Gravity  float64 // Added to vertical velocity every tick (down is positive)
	TickRate int     // Simulation ticks per second

	// The single elevated platform
	PlatformX float64
	PlatformY float64 // Top surface
	PlatformW float64
	PlatformH float64 // Thickness; landing tolerance for undershooting jumps

	// Player
	PlayerW, PlayerH   float64
	PlayerLives        int
	PlayerMoveSpeed    float64
	PlayerJumpSpeed    float64 // Magnitude of the upward launch
	PlayerFireCooldown int     // Ticks between shots

	// Projectile (rocket)
	ProjectileW, ProjectileH float64
	ProjectileSpeed          float64
	ProjectileLifetime       int // Ticks before expiring in flight
	ExplosionFrames          int // Ticks spent exploding after a hit
	ProjectileDamage         int

	// Ground enemy (car)
	CarW, CarH        float64
	CarSpeed          float64
	CarHealth         int
	CarJumpCooldownLo int     // Ticks
	CarJumpCooldownHi int     // Ticks
	CarJumpJitter     float64 // ±fraction applied to the platform launch speed
	KnockbackSpeed    float64 // Upward velocity given to a car after contact
	KnockbackNudge    float64 // Upward position nudge after contact

	// Ally (NPC turret)
	AllyW, AllyH       float64
	AllyLives          int
	AllyPatrolSpeed    float64
	AllyFireCooldownLo int // Ticks
	AllyFireCooldownHi int // Ticks
}

// DefaultArena returns the default arena configuration.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		Width:    800,
		Height:   500,
		FloorY:   480,
		Gravity:  0.5,
		TickRate: 60,

		PlatformX: 60,
		PlatformY: 360,
		PlatformW: 220,
		PlatformH: 20,

		PlayerW:            24,
		PlayerH:            36,
		PlayerLives:        3,
		PlayerMoveSpeed:    4,
		PlayerJumpSpeed:    11,
		PlayerFireCooldown: 18, // ~300ms at 60 TPS

		ProjectileW:        10,
		ProjectileH:        4,
		ProjectileSpeed:    5,
		ProjectileLifetime: 150,
		ExplosionFrames:    12,
		ProjectileDamage:   50,

		CarW:              30,
		CarH:              15,
		CarSpeed:          2,
		CarHealth:         100,
		CarJumpCooldownLo: 90,
		CarJumpCooldownHi: 240,
		CarJumpJitter:     0.05,
		KnockbackSpeed:    6,
		KnockbackNudge:    10,

		AllyW:              20,
		AllyH:              20,
		AllyLives:          3,
		AllyPatrolSpeed:    1,
		AllyFireCooldownLo: 40,
		AllyFireCooldownHi: 100,
	}
}

// ArenaFromEnv returns arena configuration with environment variable overrides.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()

	if tps := getEnvInt("ARENA_TICK_RATE", 0); tps > 0 {
		cfg.TickRate = tps
	}
	if g := getEnvFloat("ARENA_GRAVITY", 0); g > 0 {
		cfg.Gravity = g
	}
	if lives := getEnvInt("ARENA_PLAYER_LIVES", 0); lives > 0 {
		cfg.PlayerLives = lives
	}

	return cfg
}

// =============================================================================
// SESSION CONFIGURATION
// =============================================================================

// SessionConfig holds win/lose rules and scoring.
type SessionConfig struct {
	TimerEnabled    bool    // Survival countdown ends the session with a loss at zero
	TimerSeconds    float64 // Countdown length per wave
	BaseWaveSize    int     // Cars in wave 1
	WaveGrowth      int     // Extra cars per subsequent wave
	ScorePerKill    int
	CurrencyPerKill int
}

// DefaultSession returns the default session rules.
func DefaultSession() SessionConfig {
	return SessionConfig{
		TimerEnabled:    true,
		TimerSeconds:    90,
		BaseWaveSize:    4,
		WaveGrowth:      2,
		ScorePerKill:    10,
		CurrencyPerKill: 10,
	}
}

// SessionFromEnv returns session configuration with environment variable overrides.
func SessionFromEnv() SessionConfig {
	cfg := DefaultSession()

	if os.Getenv("SESSION_TIMER_ENABLED") == "false" {
		cfg.TimerEnabled = false
	}
	if s := getEnvFloat("SESSION_TIMER_SECONDS", 0); s > 0 {
		cfg.TimerSeconds = s
	}
	if n := getEnvInt("SESSION_WAVE_SIZE", 0); n > 0 {
		cfg.BaseWaveSize = n
	}

	return cfg
}

// =============================================================================
// SHOP CONFIGURATION
// =============================================================================

// ShopConfig holds ally purchase rules.
type ShopConfig struct {
	AllyCost   int // Currency per ally
	BaseAllies int // Allies granted for free every session
	MaxAllies  int // Hard cap on the ally population
}

// DefaultShop returns the default shop rules.
func DefaultShop() ShopConfig {
	return ShopConfig{
		AllyCost:   100,
		BaseAllies: 1,
		MaxAllies:  5,
	}
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits caps entity collections so hosts cannot flood the world.
type ResourceLimits struct {
	MaxProjectiles int // Active projectiles (flying + exploding)
	MaxCars        int // Cars in a single wave
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxProjectiles: 64,
		MaxCars:        40,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int
	BroadcastRate time.Duration // WebSocket snapshot interval
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:          3000,
		BroadcastRate: 50 * time.Millisecond,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if ms := getEnvInt("BROADCAST_MS", 0); ms > 0 {
		cfg.BroadcastRate = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds sound cue settings.
type AudioConfig struct {
	SampleRate int     // Audio sample rate in Hz
	Volume     float64 // Master volume (0.0 to 1.0)
	Enabled    bool    // Whether cues are played at all
	Speaker    bool    // Route the mixer to the local sound device
}

// DefaultAudio returns the default audio configuration.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		SampleRate: 44100,
		Volume:     0.3,
		Enabled:    true,
		Speaker:    false,
	}
}

// AudioFromEnv returns audio configuration with environment variable overrides.
func AudioFromEnv() AudioConfig {
	cfg := DefaultAudio()

	if v := getEnvFloat("SOUND_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}
	if os.Getenv("SOUND_ENABLED") == "false" {
		cfg.Enabled = false
	}
	cfg.Speaker = getEnvBool("SOUND_SPEAKER", cfg.Speaker)

	return cfg
}

// =============================================================================
// STORE CONFIGURATION
// =============================================================================

// StoreConfig holds persisted-progress settings.
type StoreConfig struct {
	Path string // JSON file for currency and purchased allies; empty keeps it in memory
}

// StoreFromEnv returns store configuration with environment variable overrides.
func StoreFromEnv() StoreConfig {
	return StoreConfig{Path: getEnvString("PROGRESS_PATH", "progress.json")}
}

// =============================================================================
// IPC CONFIGURATION
// =============================================================================

// IPCConfig holds the snapshot feed for out-of-process viewers.
type IPCConfig struct {
	Enabled    bool
	SocketPath string
	FPS        int // Snapshot feed rate
}

// IPCFromEnv returns IPC configuration with environment variable overrides.
func IPCFromEnv() IPCConfig {
	return IPCConfig{
		Enabled:    getEnvBool("IPC_ENABLED", true),
		SocketPath: getEnvString("IPC_SOCKET", "/tmp/rocket-arena.sock"),
		FPS:        getEnvInt("IPC_FPS", 30),
	}
}

// =============================================================================
// STREAM CONFIGURATION
// =============================================================================

// StreamConfig holds the streamer process settings.
type StreamConfig struct {
	Width   int
	Height  int
	FPS     int
	Bitrate int    // kbit/s
	Output  string // RTMP URL, file path, or "null"

	MusicEnabled bool
	MusicVolume  float64
	MusicPath    string
}

// StreamFromEnv returns stream configuration with environment variable overrides.
// STREAM_URL and STREAM_KEY are joined when both are set.
func StreamFromEnv() StreamConfig {
	output := getEnvString("STREAM_OUTPUT", "")
	if url, key := os.Getenv("STREAM_URL"), os.Getenv("STREAM_KEY"); url != "" {
		output = url
		if key != "" {
			output = strings.TrimSuffix(url, "/") + "/" + key
		}
	}

	return StreamConfig{
		Width:        getEnvInt("STREAM_WIDTH", 1280),
		Height:       getEnvInt("STREAM_HEIGHT", 720),
		FPS:          getEnvInt("STREAM_FPS", 30),
		Bitrate:      getEnvInt("STREAM_BITRATE", 4000),
		Output:       output,
		MusicEnabled: getEnvBool("MUSIC_ENABLED", true),
		MusicVolume:  getEnvFloat("MUSIC_VOLUME", 0.15),
		MusicPath:    getEnvString("MUSIC_PATH", "assets/music/arena.ogg"),
	}
}

// =============================================================================
// DEBUG CONFIGURATION
// =============================================================================

// DebugConfig holds observability settings.
type DebugConfig struct {
	Enabled      bool
	ListenAddr   string
	EventLogPath string
}

// DebugFromEnv returns debug configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	return DebugConfig{
		Enabled:      os.Getenv("DISABLE_DEBUG_SERVER") != "true",
		ListenAddr:   "127.0.0.1:6060",
		EventLogPath: getEnvString("EVENT_LOG_PATH", "events.jsonl"),
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// GameConfig is the subset the simulation core needs.
type GameConfig struct {
	Arena   ArenaConfig
	Session SessionConfig
	Shop    ShopConfig
	Limits  ResourceLimits
}

// DefaultGame returns the default simulation configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		Arena:   DefaultArena(),
		Session: DefaultSession(),
		Shop:    DefaultShop(),
		Limits:  DefaultLimits(),
	}
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game   GameConfig
	Server ServerConfig
	Audio  AudioConfig
	Store  StoreConfig
	IPC    IPCConfig
	Stream StreamConfig
	Debug  DebugConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game: GameConfig{
			Arena:   ArenaFromEnv(),
			Session: SessionFromEnv(),
			Shop:    DefaultShop(),
			Limits:  DefaultLimits(),
		},
		Server: ServerFromEnv(),
		Audio:  AudioFromEnv(),
		Store:  StoreFromEnv(),
		IPC:    IPCFromEnv(),
		Stream: StreamFromEnv(),
		Debug:  DebugFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}
