// Package ring provides the sliding sample buffer shared by the wake-word
// detector and the utterance recorder. A single lock makes append and
// extract-and-trim mutually exclusive; extraction hands out copies so no
// window is ever mutated concurrently.
package ring

import (
	"sync"
	"time"
)

// Buffer accumulates 16-bit mono PCM samples and serves tail windows.
type Buffer struct {
	rate int

	mu      sync.Mutex
	samples []int16
}

// New builds an empty buffer for the given sample rate.
func New(sampleRate int) *Buffer {
	return &Buffer{rate: sampleRate}
}

// Append adds one captured frame under the buffer lock.
func (b *Buffer) Append(frame []int16) {
	if len(frame) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, frame...)
}

// Len returns the buffered sample count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Duration returns the buffered audio length.
func (b *Buffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.rate)
}

// TryExtractWindow returns a copy of the most recent window-worth of samples
// and trims the stored buffer down to the most recent overlap-worth, so a
// word straddling the window boundary is seen again by the next extraction
// while older audio is never reprocessed. Returns false, leaving the buffer
// untouched, when less than a full window is buffered.
func (b *Buffer) TryExtractWindow(window, overlap time.Duration) ([]int16, bool) {
	need := b.samplesFor(window)
	if need <= 0 {
		return nil, false
	}
	keep := b.samplesFor(overlap)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) < need {
		return nil, false
	}

	out := make([]int16, need)
	copy(out, b.samples[len(b.samples)-need:])

	if len(b.samples) > keep {
		kept := make([]int16, keep)
		copy(kept, b.samples[len(b.samples)-keep:])
		b.samples = kept
	}

	return out, true
}

// Reset discards all buffered samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}

func (b *Buffer) samplesFor(d time.Duration) int {
	return int(d.Seconds() * float64(b.rate))
}
