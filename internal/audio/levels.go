package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// levelWindow is the number of recent level samples kept for display.
const levelWindow = 30

// LevelMeter tracks the RMS level of captured s16le PCM so the practice UI
// can render a rolling input meter while an answer is being recorded.
type LevelMeter struct {
	mu      sync.Mutex
	window  [levelWindow]float64
	next    int
	filled  int
	current float64
}

// NewLevelMeter returns an empty meter.
func NewLevelMeter() *LevelMeter {
	return &LevelMeter{}
}

// Sample folds one PCM chunk into the meter. Odd trailing bytes are ignored.
func (m *LevelMeter) Sample(pcm []byte) {
	level := rmsLevel(pcm)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = level
	m.window[m.next] = level
	m.next = (m.next + 1) % levelWindow
	if m.filled < levelWindow {
		m.filled++
	}
}

// Level reports the most recent normalized level in [0, 1].
func (m *LevelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Smoothed reports the mean level over the rolling window.
func (m *LevelMeter) Smoothed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.filled == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < m.filled; i++ {
		sum += m.window[i]
	}
	return sum / float64(m.filled)
}

// Reset clears the window between questions.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window = [levelWindow]float64{}
	m.next = 0
	m.filled = 0
	m.current = 0
}

// rmsLevel computes the root-mean-square of s16le samples normalized to
// [0, 1].
func rmsLevel(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}
