// Package audio synthesizes the arena's sound cues and mixes them with beep.
//
// Bank implements the engine's AudioSink. Play only enqueues a cue id on a
// buffered channel; the goroutine pulling samples (the speaker, or any other
// consumer of Stream) turns queued ids into tones on a beep.Mixer. A full
// queue drops the cue, so Play never blocks the tick.
package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"

	"rocket-arena/internal/config"
	"rocket-arena/internal/game"
)

// PlayQueueSize bounds cues waiting for the mixer
const PlayQueueSize = 64

// WaveType selects an oscillator shape
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSaw
)

// cue describes how a sound id is synthesized
type cue struct {
	freq     float64 // Start frequency in Hz
	sweep    float64 // End frequency; equal to freq for a flat tone
	duration time.Duration
	wave     WaveType
	gain     float64
}

var cues = map[game.SoundID]cue{
	game.SoundFire:      {freq: 660, sweep: 330, duration: 90 * time.Millisecond, wave: WaveSquare, gain: 0.4},
	game.SoundHit:       {freq: 180, sweep: 60, duration: 160 * time.Millisecond, wave: WaveSaw, gain: 0.7},
	game.SoundEnemyDied: {freq: 520, sweep: 1040, duration: 200 * time.Millisecond, wave: WaveSine, gain: 0.8},
	game.SoundPlayerHit: {freq: 120, sweep: 90, duration: 220 * time.Millisecond, wave: WaveSquare, gain: 0.8},
	game.SoundAllyLost:  {freq: 300, sweep: 100, duration: 300 * time.Millisecond, wave: WaveSaw, gain: 0.6},
	game.SoundPurchase:  {freq: 880, sweep: 1320, duration: 150 * time.Millisecond, wave: WaveSine, gain: 0.6},
	game.SoundWon:       {freq: 440, sweep: 880, duration: 600 * time.Millisecond, wave: WaveSine, gain: 0.8},
	game.SoundLost:      {freq: 330, sweep: 110, duration: 700 * time.Millisecond, wave: WaveSaw, gain: 0.8},
}

// Bank queues cues and mixes the active ones.
type Bank struct {
	rate    beep.SampleRate
	volume  float64
	enabled bool

	playQueue chan game.SoundID

	mu    sync.Mutex // guards mixer; held by the consumer while streaming
	mixer *beep.Mixer

	played  atomic.Uint64
	dropped atomic.Uint64

	speakerOnce sync.Once
}

// NewBank creates a bank for the configured sample rate and master volume
func NewBank(cfg config.AudioConfig) *Bank {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 44100
	}
	return &Bank{
		rate:      beep.SampleRate(rate),
		volume:    cfg.Volume,
		enabled:   cfg.Enabled,
		playQueue: make(chan game.SoundID, PlayQueueSize),
		mixer:     &beep.Mixer{},
	}
}

// Play queues a cue without blocking. Unknown ids and a full queue are
// dropped silently.
func (b *Bank) Play(id game.SoundID) {
	if b == nil || !b.enabled {
		return
	}
	if _, ok := cues[id]; !ok {
		b.dropped.Add(1)
		return
	}
	select {
	case b.playQueue <- id:
		b.played.Add(1)
	default:
		b.dropped.Add(1)
	}
}

// Stream implements beep.Streamer: it starts queued cues and mixes every
// active one into samples. It never ends, producing silence when idle.
func (b *Bank) Stream(samples [][2]float64) (n int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		select {
		case id := <-b.playQueue:
			b.mixer.Add(b.synthesize(cues[id]))
			continue
		default:
		}
		break
	}
	return b.mixer.Stream(samples)
}

// Err implements beep.Streamer
func (b *Bank) Err() error { return nil }

// Active returns the number of cues currently sounding
func (b *Bank) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mixer.Len()
}

// Stats returns queued and dropped cue counts
func (b *Bank) Stats() (played, dropped uint64) {
	return b.played.Load(), b.dropped.Load()
}

// SampleRate returns the output rate
func (b *Bank) SampleRate() beep.SampleRate { return b.rate }

// EnableSpeaker routes the bank to the local sound device. Safe to call
// more than once; only the first call initializes the device.
func (b *Bank) EnableSpeaker() error {
	var err error
	b.speakerOnce.Do(func() {
		err = speaker.Init(b.rate, b.rate.N(100*time.Millisecond))
		if err == nil {
			speaker.Play(b)
		}
	})
	return err
}

// synthesize builds the streamer for one cue
func (b *Bank) synthesize(c cue) beep.Streamer {
	total := b.rate.N(c.duration)
	osc := &sweepOscillator{
		from:  c.freq,
		to:    c.sweep,
		total: total,
		wave:  c.wave,
		rate:  b.rate,
	}
	shaped := &decay{streamer: beep.Take(total, osc), total: total}
	return newVolume(shaped, c.gain*b.volume)
}

// sweepOscillator glides linearly from one frequency to another
type sweepOscillator struct {
	from, to float64
	phase    float64
	position int
	total    int
	wave     WaveType
	rate     beep.SampleRate
}

func (o *sweepOscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := 0.0
		if o.total > 0 {
			t = float64(o.position) / float64(o.total)
		}
		freq := o.from + (o.to-o.from)*t

		var val float64
		switch o.wave {
		case WaveSine:
			val = math.Sin(2 * math.Pi * o.phase)
		case WaveSquare:
			if o.phase < 0.5 {
				val = 1
			} else {
				val = -1
			}
		case WaveSaw:
			val = 2 * (o.phase - 0.5)
		}
		samples[i][0] = val
		samples[i][1] = val

		o.phase += freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *sweepOscillator) Err() error { return nil }

// decay fades a cue out linearly over its length to avoid clicks
type decay struct {
	streamer beep.Streamer
	position int
	total    int
}

func (d *decay) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = d.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		vol := 1.0
		if d.total > 0 {
			vol = 1 - float64(d.position)/float64(d.total)
		}
		samples[i][0] *= vol
		samples[i][1] *= vol
		d.position++
	}
	return n, ok
}

func (d *decay) Err() error { return d.streamer.Err() }

// newVolume wraps s with a linear gain. Zero or negative gain is silent,
// since the effect works on a log2 scale.
func newVolume(s beep.Streamer, gain float64) beep.Streamer {
	if gain <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(gain)}
}

// Sinks fans one cue out to several sinks, e.g. the local bank and the IPC
// publisher. Nil entries are skipped.
type Sinks []game.AudioSink

// Play forwards id to every sink
func (s Sinks) Play(id game.SoundID) {
	for _, sink := range s {
		if sink != nil {
			sink.Play(id)
		}
	}
}
