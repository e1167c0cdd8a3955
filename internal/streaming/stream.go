// Package streaming renders arena snapshots into a live video stream: frames
// are drawn with the render package and piped as raw RGBA into ffmpeg, while
// cue and music audio goes in as s16le PCM on a second pipe.
package streaming

import (
	"fmt"
	"image"
	"image/draw"
	"io"
	"log"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"

	"rocket-arena/internal/render"
)

// StreamConfig holds streaming configuration
type StreamConfig struct {
	Width   int
	Height  int
	FPS     int
	Bitrate int    // Video bitrate in kbit/s
	Output  string // rtmp(s):// URL, a file path, or "null" to encode and discard

	SampleRate int // Must match the cue bank

	MusicEnabled bool
	MusicVolume  float64 // 0.0-1.0, recommended 0.1-0.2
	MusicPath    string

	FFmpegPath string // Defaults to "ffmpeg" on PATH
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.Bitrate <= 0 {
		c.Bitrate = 4000
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	return c
}

// StreamManager handles rendering and the ffmpeg process
type StreamManager struct {
	source SnapshotSource
	config StreamConfig
	cues   beep.Streamer

	renderer *render.Renderer
	frame    []byte
	ring     *FrameRingBuffer

	mu        sync.RWMutex
	streaming bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	ffmpeg    *exec.Cmd
	exited    chan struct{}
	videoPipe io.WriteCloser
	audioPipe *os.File
	writer    *AsyncFrameWriter
	music     *MusicPlayer
	startTime time.Time

	// Stats
	framesRendered int64 // atomic
	framesDropped  int64 // atomic
	frameTimeAccum int64 // atomic nanoseconds
	frameTimeCount int64 // atomic

	onConnectionLost func()
}

// NewStreamManager creates a stream of source. cues is the audio mixed over
// the music, normally the audio.Bank fed with the arena's cues; nil streams
// music only.
func NewStreamManager(source SnapshotSource, cues beep.Streamer, config StreamConfig) *StreamManager {
	config = config.withDefaults()
	frameSize := config.Width * config.Height * 4

	return &StreamManager{
		source:   source,
		config:   config,
		cues:     cues,
		renderer: render.NewRenderer(config.Width, config.Height),
		frame:    make([]byte, frameSize),
		ring:     NewFrameRingBuffer(frameSize, BufferSize),
	}
}

// OnConnectionLost registers a callback for when ffmpeg stops accepting
// frames (encoder crash, dropped RTMP connection)
func (s *StreamManager) OnConnectionLost(callback func()) {
	s.mu.Lock()
	s.onConnectionLost = callback
	s.mu.Unlock()
}

// buildArgs assembles the ffmpeg command line. With audioPipe the PCM mix
// arrives on fd 3; without it (Windows) music is read from the file and cues
// are not heard.
func buildArgs(cfg StreamConfig, audioPipe bool, musicFile string) []string {
	args := []string{
		"-y",
		"-loglevel", "warning",
		// Video input (pipe:0 - stdin)
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-r", fmt.Sprintf("%d", cfg.FPS),
		"-i", "pipe:0",
	}

	switch {
	case audioPipe:
		args = append(args,
			"-f", "s16le",
			"-ar", fmt.Sprintf("%d", cfg.SampleRate),
			"-ac", "2",
			"-i", "pipe:3",
		)
	case musicFile != "":
		args = append(args, "-stream_loop", "-1", "-i", musicFile)
	default:
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", cfg.SampleRate),
		)
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-b:v", fmt.Sprintf("%dk", cfg.Bitrate),
		"-maxrate", fmt.Sprintf("%dk", cfg.Bitrate),
		"-bufsize", fmt.Sprintf("%dk", cfg.Bitrate*2),
		"-pix_fmt", "yuv420p",
		"-g", fmt.Sprintf("%d", cfg.FPS*2),
		"-keyint_min", fmt.Sprintf("%d", cfg.FPS),
		"-sc_threshold", "0",
	)

	if !audioPipe && musicFile != "" {
		args = append(args, "-af", fmt.Sprintf("volume=%.2f", cfg.MusicVolume))
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-ac", "2",
		"-map", "0:v",
		"-map", "1:a",
	)

	switch {
	case cfg.Output == "null":
		args = append(args, "-f", "null", "-")
	case strings.HasPrefix(cfg.Output, "rtmp://"), strings.HasPrefix(cfg.Output, "rtmps://"):
		args = append(args, "-f", "flv", cfg.Output)
	default:
		args = append(args, cfg.Output) // Container from the file extension
	}
	return args
}

// redactOutput hides the stream key at the end of an RTMP URL
func redactOutput(output string) string {
	if !strings.HasPrefix(output, "rtmp") {
		return output
	}
	i := strings.LastIndex(output, "/")
	if i < 0 || i == len(output)-1 {
		return output
	}
	key := output[i+1:]
	return output[:i+1] + key[:min(4, len(key))] + "..."
}

// Start launches ffmpeg and the render, writer and audio loops
func (s *StreamManager) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streaming {
		return fmt.Errorf("already streaming")
	}
	if s.config.Output == "" {
		return fmt.Errorf("no stream output configured")
	}

	useAudioPipe := runtime.GOOS != "windows"
	musicFile := ""
	if s.config.MusicEnabled && s.config.MusicPath != "" {
		if _, err := os.Stat(s.config.MusicPath); err == nil {
			musicFile = s.config.MusicPath
		} else {
			log.Printf("⚠️ Music file not found: %s", s.config.MusicPath)
		}
	}

	log.Println("🎬 Starting stream...")
	log.Printf("   Resolution: %dx%d @ %d fps, %dk", s.config.Width, s.config.Height, s.config.FPS, s.config.Bitrate)
	log.Printf("   Output: %s", redactOutput(s.config.Output))

	cmd := exec.Command(s.config.FFmpegPath, buildArgs(s.config, useAudioPipe, musicFile)...)
	cmd.Stderr = os.Stderr

	videoPipe, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create video pipe: %w", err)
	}

	var audioReader, audioWriter *os.File
	if useAudioPipe {
		audioReader, audioWriter, err = os.Pipe()
		if err != nil {
			videoPipe.Close()
			return fmt.Errorf("failed to create audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioReader} // fd 3
	}

	if err := cmd.Start(); err != nil {
		videoPipe.Close()
		if useAudioPipe {
			audioReader.Close()
			audioWriter.Close()
		}
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	if useAudioPipe {
		audioReader.Close() // ffmpeg holds its own copy
	}

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		if err != nil {
			log.Printf("⚠️ ffmpeg exited: %v", err)
		}
		close(exited)
	}()

	s.ffmpeg = cmd
	s.exited = exited
	s.videoPipe = videoPipe
	s.audioPipe = audioWriter
	s.streaming = true
	s.startTime = time.Now()
	s.stopChan = make(chan struct{})
	atomic.StoreInt64(&s.framesRendered, 0)
	atomic.StoreInt64(&s.framesDropped, 0)

	s.ring.Reset()
	s.writer = NewAsyncFrameWriter(s.ring, videoPipe)
	s.writer.SetOnConnectionLost(s.handleConnectionLost)
	s.writer.Start(s.config.FPS)

	s.wg.Add(1)
	go s.frameLoop(s.stopChan)

	if useAudioPipe {
		var music beep.Streamer
		if musicFile != "" {
			s.music = NewMusicPlayer(musicFile, s.config.MusicVolume, beep.SampleRate(s.config.SampleRate))
			music = s.music
		}
		mixer := NewAudioMixer(s.cues, music, s.config.SampleRate, s.config.FPS)
		s.wg.Add(1)
		go s.audioLoop(s.stopChan, audioWriter, mixer)
	}

	log.Println("✅ Stream started!")
	return nil
}

func (s *StreamManager) handleConnectionLost() {
	s.mu.RLock()
	callback := s.onConnectionLost
	s.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

// Stop closes the pipes, stops the loops and terminates ffmpeg
func (s *StreamManager) Stop() {
	s.mu.Lock()
	if !s.streaming {
		s.mu.Unlock()
		return
	}
	s.streaming = false
	close(s.stopChan)
	writer, videoPipe, audioPipe := s.writer, s.videoPipe, s.audioPipe
	cmd, exited, music := s.ffmpeg, s.exited, s.music
	s.music = nil
	s.mu.Unlock()

	log.Println("🛑 Stopping stream...")

	// Closing the pipes unblocks any write stuck on a stalled ffmpeg
	videoPipe.Close()
	if audioPipe != nil {
		audioPipe.Close()
	}
	writer.Stop()
	s.wg.Wait()

	if music != nil {
		music.Close()
	}

	// ffmpeg usually exits on its own once stdin closes
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		log.Printf("🔪 Killing ffmpeg (PID: %d)...", cmd.Process.Pid)
		cmd.Process.Kill()
		select {
		case <-exited:
		case <-time.After(3 * time.Second):
			log.Println("⚠️ Timed out waiting for ffmpeg to terminate")
		}
	}

	log.Println("✅ Stream stopped")
}

// IsStreaming returns whether the stream is active
func (s *StreamManager) IsStreaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streaming
}

// GetStats returns streaming statistics
func (s *StreamManager) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := time.Duration(0)
	actualFPS := 0.0
	frames := atomic.LoadInt64(&s.framesRendered)
	if s.streaming {
		uptime = time.Since(s.startTime)
		if uptime > 0 {
			actualFPS = float64(frames) / uptime.Seconds()
		}
	}

	avgFrameMs := 0.0
	if n := atomic.LoadInt64(&s.frameTimeCount); n > 0 {
		avgFrameMs = float64(atomic.LoadInt64(&s.frameTimeAccum)) / float64(n) / 1e6
	}

	stats := map[string]interface{}{
		"streaming":      s.streaming,
		"framesRendered": frames,
		"framesDropped":  atomic.LoadInt64(&s.framesDropped),
		"avgFrameMs":     avgFrameMs,
		"uptime":         uptime.Round(time.Second).String(),
		"actualFps":      fmt.Sprintf("%.1f", actualFPS),
		"resolution":     fmt.Sprintf("%dx%d", s.config.Width, s.config.Height),
		"fps":            s.config.FPS,
		"bitrate":        s.config.Bitrate,
		"output":         redactOutput(s.config.Output),
	}
	if s.writer != nil {
		stats["writer"] = s.writer.GetStats()
	}
	return stats
}

func (s *StreamManager) frameLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.renderFrame()
		}
	}
}

// renderFrame draws the latest snapshot and queues it for the writer.
// Frames are drawn even when the snapshot is unchanged: the encoder needs a
// constant frame rate.
func (s *StreamManager) renderFrame() {
	start := time.Now()

	img := s.renderer.Draw(s.source.GetSnapshot())
	copyPixels(s.frame, img, s.config.Width, s.config.Height)

	if s.ring.TryWrite(s.frame) {
		atomic.AddInt64(&s.framesRendered, 1)
	} else {
		atomic.AddInt64(&s.framesDropped, 1)
	}

	atomic.AddInt64(&s.frameTimeAccum, time.Since(start).Nanoseconds())
	atomic.AddInt64(&s.frameTimeCount, 1)
}

// copyPixels writes img into buf as tightly packed RGBA
func copyPixels(buf []byte, img image.Image, width, height int) {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == width*4 && rgba.Rect.Dx() == width && rgba.Rect.Dy() == height {
		copy(buf, rgba.Pix)
		return
	}
	dst := &image.RGBA{Pix: buf, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	draw.Draw(dst, dst.Rect, img, img.Bounds().Min, draw.Src)
}

// audioLoop writes one frame of PCM per video frame to keep A/V in sync
func (s *StreamManager) audioLoop(stop <-chan struct{}, pipe io.Writer, mixer *AudioMixer) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := pipe.Write(mixer.GenerateFrame()); err != nil {
				return // Stream is stopping or ffmpeg died
			}
		}
	}
}
