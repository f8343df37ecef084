package lipsync

import "time"

// Clock abstracts wall-clock reads and sleeps so the timed walk can run
// against a scripted clock in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

const (
	// deadlineEpsilon is the precision target: within this of the deadline
	// counts as arrived.
	deadlineEpsilon = 100 * time.Microsecond
	// fineWindow is where coarse sleeping stops and fine waiting begins.
	fineWindow = time.Millisecond
	// coarseMargin is held back from coarse sleeps so an oversleep cannot
	// overshoot the deadline.
	coarseMargin = 500 * time.Microsecond
	// fineQuantum is the fine-wait step inside the last millisecond.
	fineQuantum = 50 * time.Microsecond
)

// SleepUntil waits until clock reads target or later: coarse sleeps while
// far out, fine-grained waiting inside the last millisecond. This is the
// one place the codebase deliberately trades CPU for timing precision.
func SleepUntil(clock Clock, target time.Time) {
	for {
		remaining := target.Sub(clock.Now())
		switch {
		case remaining <= deadlineEpsilon:
			return
		case remaining > fineWindow:
			clock.Sleep(remaining - coarseMargin)
		default:
			clock.Sleep(fineQuantum)
		}
	}
}
