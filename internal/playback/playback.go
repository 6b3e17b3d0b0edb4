// Package playback drives one pet's animation over time. A Player owns the
// mutable per-pet state (current block, frame index, timers). Descriptors
// and the sprite cache are shared and read-only from its point of view.
package playback

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/auziqni/learn-shimeji-sub000/internal/condition"
	"github.com/auziqni/learn-shimeji-sub000/internal/descriptor"
	"github.com/auziqni/learn-shimeji-sub000/internal/logging"
	"github.com/auziqni/learn-shimeji-sub000/internal/observe"
	"github.com/auziqni/learn-shimeji-sub000/internal/sprite"
)

// State is the playback lifecycle state.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// maxCatchUpFrames bounds the frame catch-up loop in Update. A stalled
// host handing in a multi-second delta fast-forwards through at most this
// many frames per call instead of iterating without bound.
const maxCatchUpFrames = 1000

// SoundPlayer is the external audio collaborator. Play is fire-and-forget:
// no error, no acknowledgement, no backpressure.
type SoundPlayer interface {
	Play(path string, volumeDB int)
}

// Player is the per-pet playback state machine. It is not safe for
// concurrent use; the host drives it from a single loop.
type Player struct {
	packRoot string
	cache    *sprite.Cache
	eval     *condition.Evaluator
	sounds   SoundPlayer
	metrics  *observe.Metrics
	log      *logrus.Entry

	action *descriptor.Action
	block  *descriptor.Block

	frameIndex int
	timer      float64
	state      State
	loop       bool
	muted      bool

	soundPaths map[string]string
}

// NewPlayer builds a player bound to one pack root. cache is required;
// eval, sounds, metrics, and log may be nil.
func NewPlayer(packRoot string, cache *sprite.Cache, eval *condition.Evaluator, sounds SoundPlayer, opts ...PlayerOption) *Player {
	p := &Player{
		packRoot:   packRoot,
		cache:      cache,
		eval:       eval,
		sounds:     sounds,
		loop:       true,
		log:        logging.Discard(),
		soundPaths: make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metrics.PlayerStarted(context.Background())
	return p
}

// PlayerOption tweaks player construction.
type PlayerOption func(*Player)

// WithLogger attaches a log entry.
func WithLogger(log *logrus.Entry) PlayerOption {
	return func(p *Player) {
		if log != nil {
			p.log = log
		}
	}
}

// WithMetrics mirrors playback counters into otel instruments.
func WithMetrics(m *observe.Metrics) PlayerOption {
	return func(p *Player) { p.metrics = m }
}

// Close releases the player's slot in the active-player gauge.
func (p *Player) Close() {
	p.metrics.PlayerStopped(context.Background())
}

// SetAction switches the player to a new action and resolves which of its
// animation blocks should play under st. Looping follows the action's
// Loop attribute, defaulting to true. Playback state is reset.
func (p *Player) SetAction(a *descriptor.Action, st condition.State) {
	p.action = a
	p.loop = true
	if a != nil && a.Loop != nil {
		p.loop = *a.Loop
	}
	p.resolveBlock(st)
	p.frameIndex = 0
	p.timer = 0
}

// Refresh re-evaluates which animation block is current without touching
// the frame position unless the block actually changes. The host calls
// this when runtime state moves, never from inside Update, so frame
// advancement stays deterministic within a tick.
func (p *Player) Refresh(st condition.State) {
	prev := p.block
	p.resolveBlock(st)
	if p.block != prev {
		p.frameIndex = 0
		p.timer = 0
	}
}

func (p *Player) resolveBlock(st condition.State) {
	if p.action == nil {
		p.block = nil
		return
	}
	p.block = p.action.Resolve(func(cond string) bool {
		if p.eval == nil {
			return true
		}
		return p.eval.Eval(cond, st)
	})
	if p.block == nil {
		// Valid degenerate state: nothing to render until conditions
		// change.
		p.log.WithField("action", p.action.Name).Debug("no resolvable animation block")
	}
}

// Play starts playback from the first frame.
func (p *Player) Play() {
	p.state = StatePlaying
	p.frameIndex = 0
	p.timer = 0
}

// Pause freezes playback in place. Update becomes a no-op until Play or
// Resume.
func (p *Player) Pause() {
	if p.state == StatePlaying {
		p.state = StatePaused
	}
}

// Resume continues a paused playback without resetting position.
func (p *Player) Resume() {
	if p.state == StatePaused {
		p.state = StatePlaying
	}
}

// Stop halts playback and rewinds to the first frame.
func (p *Player) Stop() {
	p.state = StateStopped
	p.frameIndex = 0
	p.timer = 0
}

// SetLooping overrides the loop flag derived from the action.
func (p *Player) SetLooping(loop bool) { p.loop = loop }

// SetMuted suppresses frame sounds for this player only.
func (p *Player) SetMuted(muted bool) { p.muted = muted }

// State returns the current lifecycle state.
func (p *Player) State() State { return p.state }

// Update advances playback by dt seconds. Deltas larger than one frame
// fast-forward through intermediate frames, triggering each frame's sound
// on the way. Zero and negative deltas are no-ops, as is any call while
// not playing or without frames.
func (p *Player) Update(dt float64) {
	if p.state != StatePlaying || p.block == nil || len(p.block.Frames) == 0 || dt <= 0 {
		return
	}

	p.timer += dt

	advanced := int64(0)
	for i := 0; i < maxCatchUpFrames; i++ {
		frame := &p.block.Frames[p.frameIndex]
		dur := frame.Duration
		if dur <= 0 {
			dur = 1.0 / descriptor.NominalFrameRate
		}
		if p.timer < dur {
			break
		}
		p.timer -= dur
		p.triggerSound(frame)
		advanced++

		p.frameIndex++
		if p.frameIndex >= len(p.block.Frames) {
			if p.loop {
				p.frameIndex = 0
				continue
			}
			p.frameIndex = len(p.block.Frames) - 1
			p.state = StateFinished
			p.timer = 0
			break
		}
	}

	if advanced > 0 {
		p.metrics.AddFramesAdvanced(context.Background(), advanced)
	}
}

func (p *Player) triggerSound(f *descriptor.Frame) {
	if f.Sound == "" || p.muted || p.sounds == nil {
		return
	}
	path, ok := p.resolveSound(f.Sound)
	if !ok {
		return
	}
	vol := 0
	if f.Volume != nil {
		vol = *f.Volume
	}
	p.sounds.Play(path, vol)
}

// resolveSound locates a frame's sound file with the same lookup chain the
// pack audit uses: the pack root, then sounds/, then audio/, first match
// wins. Results are memoized, including misses, so a frame whose sound
// never shipped costs three stat calls total rather than three per loop.
func (p *Player) resolveSound(ref string) (string, bool) {
	if path, ok := p.soundPaths[ref]; ok {
		return path, path != ""
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(ref, "/"), string(filepath.Separator))
	for _, sub := range []string{"", "sounds", "audio"} {
		path := filepath.Join(p.packRoot, sub, rel)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			p.soundPaths[ref] = path
			return path, true
		}
	}
	p.soundPaths[ref] = ""
	return "", false
}

// CurrentFrame returns the active frame descriptor, or false in the
// degenerate no-block state.
func (p *Player) CurrentFrame() (*descriptor.Frame, bool) {
	if p.block == nil || len(p.block.Frames) == 0 {
		return nil, false
	}
	if p.frameIndex >= len(p.block.Frames) {
		return nil, false
	}
	return &p.block.Frames[p.frameIndex], true
}

// CurrentImage resolves the active frame's sprite through the shared
// cache. False means either no current frame or a failed load; the render
// collaborator supplies its own fallback.
func (p *Player) CurrentImage() (image.Image, bool) {
	frame, ok := p.CurrentFrame()
	if !ok {
		return nil, false
	}
	return p.cache.Load(filepath.Join(p.packRoot, strings.TrimPrefix(frame.Image, "/")))
}

// CurrentVelocity returns the active frame's velocity, or the zero vector
// without a current frame. This is the sole signal handed to the physics
// collaborator.
func (p *Player) CurrentVelocity() descriptor.Vector {
	frame, ok := p.CurrentFrame()
	if !ok {
		return descriptor.Vector{}
	}
	return frame.Velocity
}

// FrameIndex returns the active frame position within the current block.
func (p *Player) FrameIndex() int { return p.frameIndex }

// Timer returns the elapsed time inside the current frame.
func (p *Player) Timer() float64 { return p.timer }

// Finished reports whether a non-looping playback has run out of frames.
func (p *Player) Finished() bool { return p.state == StateFinished }
