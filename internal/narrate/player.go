package narrate

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// Player is the single audio output owned by the narrator. Play starts
// playback and returns immediately; Stop silences the current stream and
// releases its resources.
type Player interface {
	Play(audio []byte) error
	Stop()
}

// NopPlayer discards audio. Used for --no-voice and in tests.
type NopPlayer struct{}

func (NopPlayer) Play([]byte) error { return nil }
func (NopPlayer) Stop()             {}

// playerCandidates are probed in order when no player command is
// configured. Extra args keep GUI-capable players quiet and terminating.
var playerCandidates = []struct {
	bin  string
	args []string
}{
	{"afplay", nil},
	{"paplay", nil},
	{"aplay", []string{"-q"}},
	{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{"mpg123", []string{"-q"}},
	{"play", []string{"-q"}},
}

// ExecPlayer plays WAV payloads by shelling out to a system audio player.
// Each Play writes the payload to a temp file, starts the player process
// and reaps it in the background; Stop kills the process and removes the
// file.
type ExecPlayer struct {
	argv []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	file string
}

// NewExecPlayer builds a player around the given command. With an empty
// command the usual system players are probed on PATH.
func NewExecPlayer(command string) (*ExecPlayer, error) {
	if command != "" {
		path, err := exec.LookPath(command)
		if err != nil {
			return nil, fmt.Errorf("audio player %q: %w", command, err)
		}
		return &ExecPlayer{argv: []string{path}}, nil
	}
	for _, c := range playerCandidates {
		if path, err := exec.LookPath(c.bin); err == nil {
			return &ExecPlayer{argv: append([]string{path}, c.args...)}, nil
		}
	}
	return nil, fmt.Errorf("no audio player found on PATH (tried afplay, paplay, aplay, ffplay, mpg123, play)")
}

func (p *ExecPlayer) Play(audio []byte) error {
	p.Stop()

	f, err := os.CreateTemp("", "vivavoce-*.wav")
	if err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write audio: %w", err)
	}
	f.Close()

	args := append(append([]string{}, p.argv[1:]...), f.Name())
	cmd := exec.Command(p.argv[0], args...)
	if err := cmd.Start(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("start player: %w", err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.file = f.Name()
	p.mu.Unlock()

	go p.reap(cmd, f.Name())
	return nil
}

func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	p.cmd = nil
	p.file = ""
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		// The reap goroutine cleans up after the kill.
		_ = cmd.Process.Kill()
	}
}

func (p *ExecPlayer) reap(cmd *exec.Cmd, file string) {
	if err := cmd.Wait(); err != nil {
		// Kills on Stop land here too; not worth surfacing.
		slog.Debug("player exited", "error", err)
	}
	os.Remove(file)

	p.mu.Lock()
	if p.cmd == cmd {
		p.cmd = nil
		p.file = ""
	}
	p.mu.Unlock()
}
