package audio

import "math"

// RMS computes root-mean-square amplitude of a PCM frame in raw sample
// units, matching the thresholds used by the silence gates (a floor of
// ~100 rejects near-silent room noise at 16-bit scale).
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
