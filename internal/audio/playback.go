package audio

import (
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// Playback tracks one running external playback process. The process is the
// audio device collaborator: siriusd only needs to know when it started and
// be able to kill it on cancel.
type Playback struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

// PlayWAV launches the configured playback command against a WAV file path
// and returns once the process has actually started, which is the anchor
// moment for lip-sync timing.
func PlayWAV(argv []string, path string) (*Playback, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("playback command is empty")
	}

	args := append(append([]string(nil), argv[1:]...), path)
	cmd := exec.Command(argv[0], args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start playback %q: %w", argv[0], err)
	}

	p := &Playback{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

// Wait blocks until the playback process exits.
func (p *Playback) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done exposes process completion for select loops.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Terminate kills the playback process and waits up to grace for it to
// exit. Returns true when the process was still running.
func (p *Playback) Terminate(grace time.Duration) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}

	select {
	case <-p.done:
	case <-time.After(grace):
	}
	return true
}
