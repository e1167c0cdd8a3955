package streaming

import (
	"encoding/binary"
	"sync"

	"github.com/gopxl/beep"
)

// AudioMixer produces the stream's audio track: the cue bank mixed over the
// background music, one video frame's worth of s16le stereo PCM at a time.
type AudioMixer struct {
	mu         sync.Mutex
	sampleRate int
	fps        int
	frames     int64 // Audio frames generated, for drift-free frame sizes

	cues  beep.Streamer // usually the audio.Bank; may be nil
	music beep.Streamer // may be nil

	mix    [][2]float64
	scrap  [][2]float64
	output []byte
}

// NewAudioMixer creates a mixer for sampleRate Hz paced at fps frames per
// second. Either source may be nil.
func NewAudioMixer(cues, music beep.Streamer, sampleRate, fps int) *AudioMixer {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if fps <= 0 {
		fps = 30
	}
	maxSamples := sampleRate/fps + 1
	return &AudioMixer{
		sampleRate: sampleRate,
		fps:        fps,
		cues:       cues,
		music:      music,
		mix:        make([][2]float64, maxSamples),
		scrap:      make([][2]float64, maxSamples),
		output:     make([]byte, maxSamples*4),
	}
}

// samplesForFrame spreads the remainder of sampleRate/fps over frames so
// audio never drifts from video
func (m *AudioMixer) samplesForFrame(frame int64) int {
	rate, fps := int64(m.sampleRate), int64(m.fps)
	return int((frame+1)*rate/fps - frame*rate/fps)
}

// GenerateFrame returns the next frame of interleaved little-endian int16
// samples. The slice is reused by the next call.
func (m *AudioMixer) GenerateFrame() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.samplesForFrame(m.frames)
	m.frames++

	mix := m.mix[:n]
	for i := range mix {
		mix[i] = [2]float64{}
	}
	for _, src := range []beep.Streamer{m.music, m.cues} {
		if src == nil {
			continue
		}
		buf := m.scrap[:n]
		got, _ := src.Stream(buf)
		for i := 0; i < got; i++ {
			mix[i][0] += buf[i][0]
			mix[i][1] += buf[i][1]
		}
	}

	out := m.output[:n*4]
	for i, s := range mix {
		binary.LittleEndian.PutUint16(out[i*4:], uint16(floatToInt16(s[0])))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(floatToInt16(s[1])))
	}
	return out
}

// floatToInt16 converts a sample in [-1, 1] to int16. Peaks above ±30000
// are compressed instead of hard-clipped, leaving headroom for the mix.
func floatToInt16(sample float64) int16 {
	scaled := sample * 32767.0

	if scaled > 30000 {
		scaled = 30000 + (scaled-30000)/4
	} else if scaled < -30000 {
		scaled = -30000 + (scaled+30000)/4
	}

	if scaled > 32767 {
		scaled = 32767
	} else if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}
