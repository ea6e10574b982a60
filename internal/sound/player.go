// Package sound plays the chime that marks a Pomodoro phase change.
package sound

import (
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/timer"
)

var goos = runtime.GOOS

type command struct {
	name string
	args []string
}

// Player tries the platform's sound commands for a phase and falls back to
// the terminal bell.
type Player struct {
	out io.Writer
	run func(name string, args ...string) error

	mu      sync.Mutex
	playing bool
}

type Option func(*Player)

// WithOutput sets where the terminal bell is written.
func WithOutput(w io.Writer) Option {
	return func(p *Player) {
		p.out = w
	}
}

// WithRunner replaces command execution, mainly for tests.
func WithRunner(run func(name string, args ...string) error) Option {
	return func(p *Player) {
		p.run = run
	}
}

// BellOnly skips the sound commands entirely.
func BellOnly() Option {
	return WithRunner(func(string, ...string) error { return exec.ErrNotFound })
}

func NewPlayer(opts ...Option) *Player {
	p := &Player{
		out: os.Stdout,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlayForPhase plays the chime announcing phase. Overlapping calls are
// dropped while a chime is still playing.
func (p *Player) PlayForPhase(phase model.Phase) error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return nil
	}
	p.playing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	for _, cmd := range commandsFor(goos, phase) {
		if err := p.run(cmd.name, cmd.args...); err == nil {
			return nil
		}
	}
	return p.bell()
}

func (p *Player) bell() error {
	_, err := io.WriteString(p.out, "\a")
	return err
}

// PhaseChanged plays in the background so the timer is never held up.
func (p *Player) PhaseChanged(transition timer.PhaseTransition) {
	go func() {
		if err := p.PlayForPhase(transition.To); err != nil {
			logging.Logger.Debug("chime failed", "phase", transition.To, "error", err)
		}
	}()
}

// Notifier serves every user with the same local player.
func (p *Player) Notifier(string) timer.PhaseNotifier {
	return p
}

func commandsFor(goos string, phase model.Phase) []command {
	switch goos {
	case "linux":
		name := "complete"
		if phase == model.PhaseFocus {
			name = "bell"
		}
		return []command{
			{"paplay", []string{"/usr/share/sounds/freedesktop/stereo/" + name + ".oga"}},
			{"aplay", []string{"/usr/share/sounds/freedesktop/stereo/" + name + ".wav"}},
		}
	case "darwin":
		name := "Glass"
		if phase == model.PhaseFocus {
			name = "Ping"
		}
		return []command{{"afplay", []string{"/System/Library/Sounds/" + name + ".aiff"}}}
	case "windows":
		return []command{
			{"powershell", []string{"-c", "[System.Media.SystemSounds]::Asterisk.Play()"}},
			{"powershell", []string{"-c", "[System.Media.SystemSounds]::Beep.Play()"}},
		}
	default:
		return nil
	}
}
