// Package narrate speaks examiner lines aloud. At most one narration is
// ever audible: every request is stamped with a monotonically increasing
// epoch, and a response whose epoch is no longer current is discarded
// without playing.
package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Synthesizer turns text into playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Narrator owns the playback resource and the request epoch.
type Narrator struct {
	synth  Synthesizer
	player Player
	delay  time.Duration
	notify func(error)

	mu     sync.Mutex
	epoch  uint64
	timer  *time.Timer
	closed bool
}

// New creates a narrator. delay is the debounce for ScheduleSpeak; notify
// receives non-fatal narration failures and may be nil.
func New(synth Synthesizer, player Player, delay time.Duration, notify func(error)) *Narrator {
	return &Narrator{
		synth:  synth,
		player: player,
		delay:  delay,
		notify: notify,
	}
}

// Speak narrates text. Any current playback stops synchronously before the
// synthesis request goes out; the fetch itself runs in the background and
// is discarded if a newer Speak supersedes it. Empty text is a no-op.
func (n *Narrator) Speak(text string) {
	if text == "" {
		return
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.cancelTimerLocked()
	n.epoch++
	id := n.epoch
	n.player.Stop()
	n.mu.Unlock()

	go n.fetchAndPlay(id, text)
}

// ScheduleSpeak narrates text after the debounce delay, coalescing rapid
// repeated triggers: each call cancels any pending one.
func (n *Narrator) ScheduleSpeak(text string) {
	if text == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.cancelTimerLocked()
	n.timer = time.AfterFunc(n.delay, func() { n.Speak(text) })
}

// Stop cancels any pending debounce, invalidates in-flight requests and
// silences playback.
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelTimerLocked()
	n.epoch++
	n.player.Stop()
}

// Close is Stop plus refusal of further narration. Safe to call twice.
func (n *Narrator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelTimerLocked()
	n.epoch++
	n.closed = true
	n.player.Stop()
}

func (n *Narrator) cancelTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Narrator) fetchAndPlay(id uint64, text string) {
	audio, err := n.synth.Synthesize(context.Background(), text)

	n.mu.Lock()
	defer n.mu.Unlock()
	if id != n.epoch || n.closed {
		// A newer request took over while this one was in flight.
		slog.Debug("stale narration discarded", "request", id, "current", n.epoch)
		return
	}
	if err != nil {
		n.reportLocked(fmt.Errorf("voice synthesis: %w", err))
		return
	}
	if err := n.player.Play(audio); err != nil {
		n.reportLocked(fmt.Errorf("audio playback: %w", err))
	}
}

func (n *Narrator) reportLocked(err error) {
	slog.Warn("narration failed", "error", err)
	if n.notify != nil {
		n.notify(err)
	}
}
