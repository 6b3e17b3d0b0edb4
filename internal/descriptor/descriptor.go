// Package descriptor defines the immutable in-memory model of a sprite
// pack: actions, behaviors, animation blocks, and frames. Descriptors are
// produced by the parser, shared read-only by every playback instance, and
// never mutated after load.
package descriptor

import "sort"

// NominalFrameRate is the frame rate the source documents assume when they
// express durations as frame counts. A Duration attribute of 30 means one
// second of wall time.
const NominalFrameRate = 30

// DefaultFrameDuration is the fallback duration in seconds applied when a
// frame's duration attribute is missing or malformed.
const DefaultFrameDuration = 0.1

// ActionType tags how an action is meant to be driven at runtime.
type ActionType string

const (
	ActionStay     ActionType = "Stay"
	ActionMove     ActionType = "Move"
	ActionAnimate  ActionType = "Animate"
	ActionBehavior ActionType = "Behavior"
	ActionEmbedded ActionType = "Embedded"
	ActionSequence ActionType = "Sequence"
)

// IsValid reports whether t is one of the recognised action types.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionStay, ActionMove, ActionAnimate, ActionBehavior, ActionEmbedded, ActionSequence:
		return true
	}
	return false
}

// BehaviorCategory is a diagnostic classification of a behavior derived from
// its name. It has no effect on selection; it only surfaces in listings.
type BehaviorCategory string

const (
	CategorySystem      BehaviorCategory = "system"
	CategoryAI          BehaviorCategory = "ai"
	CategoryInteraction BehaviorCategory = "interaction"
	CategoryTransition  BehaviorCategory = "transition"
	CategoryUnknown     BehaviorCategory = "unknown"
)

// Vector is a per-frame movement in pixels per frame-tick, handed to the
// external physics collaborator verbatim.
type Vector struct {
	X float64
	Y float64
}

// Zero reports whether both components are zero.
func (v Vector) Zero() bool { return v.X == 0 && v.Y == 0 }

// Anchor is the image anchor point of a frame in pixel coordinates.
type Anchor struct {
	X float64
	Y float64
}

// Frame is a single still pose: one image shown for a duration while the
// pet moves by Velocity. Sound, Volume, and Anchor are optional.
type Frame struct {
	// Image is the sprite path relative to the pack root.
	Image string

	// Duration in seconds. Always > 0 after parsing.
	Duration float64

	Velocity Vector
	Anchor   Anchor

	// Sound is an optional audio path, resolved against the pack root or
	// its sounds/ or audio/ subfolder.
	Sound string

	// Volume in decibels, clamped to [-100, 0]. Nil when the source did
	// not specify one.
	Volume *int
}

// ClampVolume forces a decibel value into the supported [-100, 0] range.
func ClampVolume(db int) int {
	if db < -100 {
		return -100
	}
	if db > 0 {
		return 0
	}
	return db
}

// Block is an ordered frame sequence, optionally gated by a condition
// expression and ranked by priority against sibling blocks.
type Block struct {
	// Condition is the raw expression string, empty for the default block.
	Condition string

	Priority int

	// Frames is non-empty; blocks that parse to zero frames are discarded.
	Frames []Frame
}

// ActionRef points at another action from a Sequence action.
type ActionRef struct {
	Name       string
	Type       string
	Parameters map[string]string
}

// Action is a named unit of animation. It owns at most one default
// (unconditioned) block plus any number of condition-gated blocks.
type Action struct {
	Name       string
	Type       ActionType
	BorderType string

	// Draggable and Loop are tri-state: nil means the source left them
	// unspecified and runtime defaults apply.
	Draggable *bool
	Loop      *bool

	// Default is the unconditioned animation block, nil if none exists.
	Default *Block

	// Conditional holds condition-gated blocks in declaration order.
	Conditional []Block

	// References lists sub-actions of a Sequence action.
	References []ActionRef

	// Embedded carries opaque key/value payloads of Embedded actions.
	Embedded map[string]string
}

// Resolve selects the animation block that should currently play. Gated
// blocks are tried in descending priority (declaration order breaking ties)
// and the first whose condition evaluates true wins; otherwise the default
// block is used. A nil return means the action has no renderable frame
// right now, which is a valid degenerate state the caller must handle.
func (a *Action) Resolve(eval func(condition string) bool) *Block {
	if len(a.Conditional) > 0 {
		ordered := make([]*Block, len(a.Conditional))
		for i := range a.Conditional {
			ordered[i] = &a.Conditional[i]
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Priority > ordered[j].Priority
		})
		for _, b := range ordered {
			if eval == nil || eval(b.Condition) {
				return b
			}
		}
	}
	return a.Default
}

// Blocks returns every block of the action, default first when present.
func (a *Action) Blocks() []*Block {
	var out []*Block
	if a.Default != nil {
		out = append(out, a.Default)
	}
	for i := range a.Conditional {
		out = append(out, &a.Conditional[i])
	}
	return out
}

// BehaviorRef is a weighted pointer from one behavior to a possible
// successor.
type BehaviorRef struct {
	Name      string
	Frequency int
}

// Behavior is one state of the random-walk state machine that decides which
// action runs over time.
type Behavior struct {
	Name string

	// Frequency weights free random selection. Zero-frequency behaviors
	// are only reachable through explicit references.
	Frequency int

	// Hidden excludes the behavior from the free-choice pool. It stays
	// reachable via Next references.
	Hidden bool

	// Condition optionally gates eligibility during free selection.
	Condition string

	// Action names the action this behavior plays, when bound.
	Action string

	Category BehaviorCategory

	// Next is the explicit successor list. When non-empty it replaces
	// free selection entirely.
	Next []BehaviorRef
}

// Set bundles everything parsed from one pack's configuration documents.
type Set struct {
	SpriteName string
	Actions    map[string]Action
	Behaviors  map[string]Behavior
}

// ActionNames returns the action names in sorted order.
func (s *Set) ActionNames() []string {
	names := make([]string, 0, len(s.Actions))
	for name := range s.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BehaviorNames returns the behavior names in sorted order.
func (s *Set) BehaviorNames() []string {
	names := make([]string, 0, len(s.Behaviors))
	for name := range s.Behaviors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
