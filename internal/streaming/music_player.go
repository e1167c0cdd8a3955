package streaming

import (
	"log"
	"os"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/vorbis"
)

// MusicPlayer loops an OGG Vorbis track as a beep.Streamer. Decoding is
// incremental, so a long track never sits in memory as raw PCM.
type MusicPlayer struct {
	mu sync.Mutex

	streamer beep.StreamSeekCloser
	output   beep.Streamer // streamer, resampled to the target rate when needed
	format   beep.Format

	rate    beep.SampleRate // Output rate
	volume  float64
	enabled bool
	loaded  bool

	filePath string
}

// NewMusicPlayer opens filePath for playback at sampleRate. A missing or
// unreadable file yields a player that streams silence, so the stream keeps
// running with cues only.
func NewMusicPlayer(filePath string, volume float64, sampleRate beep.SampleRate) *MusicPlayer {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	mp := &MusicPlayer{
		filePath: filePath,
		rate:     sampleRate,
		volume:   clampVolume(volume),
		enabled:  true,
	}

	if err := mp.load(); err != nil {
		log.Printf("⚠️ Background music disabled: %v", err)
	}
	return mp
}

func (mp *MusicPlayer) load() error {
	file, err := os.Open(mp.filePath)
	if err != nil {
		return err
	}

	streamer, format, err := vorbis.Decode(file)
	if err != nil {
		file.Close()
		return err
	}

	mp.streamer = streamer
	mp.format = format
	mp.resetOutput()
	mp.loaded = true
	if format.SampleRate != mp.rate {
		log.Printf("   Resampling music from %d Hz to %d Hz", format.SampleRate, mp.rate)
	}

	log.Printf("🎵 Background music loaded: %s (%d Hz, %d channels)", mp.filePath, format.SampleRate, format.NumChannels)
	return nil
}

// resetOutput rebuilds the output chain; a resampler that saw the end of
// its source stays ended even after the source is rewound
func (mp *MusicPlayer) resetOutput() {
	mp.output = mp.streamer
	if mp.format.SampleRate != mp.rate {
		mp.output = beep.Resample(4, mp.format.SampleRate, mp.rate, mp.streamer)
	}
}

// Stream implements beep.Streamer. It rewinds at the end of the track and
// never reports exhaustion.
func (mp *MusicPlayer) Stream(samples [][2]float64) (n int, ok bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !mp.loaded || !mp.enabled {
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return len(samples), true
	}

	filled := 0
	for rewinds := 0; filled < len(samples); {
		got, more := mp.output.Stream(samples[filled:])
		filled += got
		if more && got > 0 {
			continue
		}
		// End of track: loop once per call at most, so an empty file can't spin
		if rewinds > 0 || mp.streamer.Seek(0) != nil {
			break
		}
		mp.resetOutput()
		rewinds++
	}
	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}

	for i := range samples[:filled] {
		samples[i][0] *= mp.volume
		samples[i][1] *= mp.volume
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (mp *MusicPlayer) Err() error { return nil }

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SetVolume adjusts the music volume (0.0 to 1.0)
func (mp *MusicPlayer) SetVolume(v float64) {
	mp.mu.Lock()
	mp.volume = clampVolume(v)
	mp.mu.Unlock()
}

// SetEnabled mutes or unmutes the music without closing the file
func (mp *MusicPlayer) SetEnabled(e bool) {
	mp.mu.Lock()
	mp.enabled = e
	mp.mu.Unlock()
}

// IsLoaded returns true if the track was decoded successfully
func (mp *MusicPlayer) IsLoaded() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.loaded
}

// Close releases the decoder and its file
func (mp *MusicPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !mp.loaded {
		return nil
	}
	mp.loaded = false
	return mp.streamer.Close()
}
