// Package altfmt converts the descriptor model to and from the flat JSON
// document stored at conf/data.json. The JSON is a derived, regenerable
// cache of the XML sources: durations are already in seconds, velocities
// and anchors are 2-element arrays, and animation blocks are an ordered
// list so that nothing from the descriptor tree is lost in either
// direction.
package altfmt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/auziqni/learn-shimeji-sub000/internal/descriptor"
)

type jsonFrame struct {
	Image    string     `json:"image"`
	Duration float64    `json:"duration"`
	Velocity [2]float64 `json:"velocity"`
	Anchor   [2]float64 `json:"imageAnchor"`
	Sound    string     `json:"sound,omitempty"`
	Volume   *int       `json:"volume,omitempty"`
}

type jsonBlock struct {
	Condition string      `json:"condition,omitempty"`
	Priority  int         `json:"priority,omitempty"`
	Frames    []jsonFrame `json:"frames"`
}

type jsonActionRef struct {
	Name       string            `json:"name"`
	Type       string            `json:"type,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type jsonAction struct {
	Name       string            `json:"name"`
	Type       string            `json:"action_type"`
	BorderType string            `json:"border_type,omitempty"`
	Draggable  *bool             `json:"draggable,omitempty"`
	Loop       *bool             `json:"loop,omitempty"`
	Animations []jsonBlock       `json:"animations"`
	References []jsonActionRef   `json:"action_references,omitempty"`
	Embedded   map[string]string `json:"embedded_data,omitempty"`
}

type jsonBehaviorRef struct {
	Name      string `json:"name"`
	Frequency int    `json:"frequency"`
}

type jsonBehavior struct {
	Name      string            `json:"name"`
	Frequency int               `json:"frequency"`
	Hidden    bool              `json:"hidden"`
	Category  string            `json:"type"`
	Condition string            `json:"condition,omitempty"`
	Action    string            `json:"action,omitempty"`
	Next      []jsonBehaviorRef `json:"next_behaviors,omitempty"`
}

type jsonDoc struct {
	SpriteName string                  `json:"sprite_name"`
	Actions    map[string]jsonAction   `json:"actions"`
	Behaviors  map[string]jsonBehavior `json:"behaviors"`
}

// Encode renders a descriptor set as the flat JSON document.
func Encode(set *descriptor.Set) ([]byte, error) {
	doc := jsonDoc{
		SpriteName: set.SpriteName,
		Actions:    make(map[string]jsonAction, len(set.Actions)),
		Behaviors:  make(map[string]jsonBehavior, len(set.Behaviors)),
	}

	for name, a := range set.Actions {
		ja := jsonAction{
			Name:       a.Name,
			Type:       string(a.Type),
			BorderType: a.BorderType,
			Draggable:  a.Draggable,
			Loop:       a.Loop,
			Embedded:   a.Embedded,
		}
		for _, block := range a.Blocks() {
			ja.Animations = append(ja.Animations, encodeBlock(block))
		}
		for _, ref := range a.References {
			ja.References = append(ja.References, jsonActionRef(ref))
		}
		doc.Actions[name] = ja
	}

	for name, b := range set.Behaviors {
		jb := jsonBehavior{
			Name:      b.Name,
			Frequency: b.Frequency,
			Hidden:    b.Hidden,
			Category:  string(b.Category),
			Condition: b.Condition,
			Action:    b.Action,
		}
		for _, ref := range b.Next {
			jb.Next = append(jb.Next, jsonBehaviorRef(ref))
		}
		doc.Behaviors[name] = jb
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("altfmt: encode: %w", err)
	}
	return out, nil
}

func encodeBlock(b *descriptor.Block) jsonBlock {
	jb := jsonBlock{Condition: b.Condition, Priority: b.Priority}
	for _, f := range b.Frames {
		jb.Frames = append(jb.Frames, jsonFrame{
			Image:    f.Image,
			Duration: f.Duration,
			Velocity: [2]float64{f.Velocity.X, f.Velocity.Y},
			Anchor:   [2]float64{f.Anchor.X, f.Anchor.Y},
			Sound:    f.Sound,
			Volume:   f.Volume,
		})
	}
	return jb
}

// Decode parses the flat JSON document back into a descriptor set.
func Decode(data []byte) (*descriptor.Set, error) {
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("altfmt: decode: %w", err)
	}

	set := &descriptor.Set{
		SpriteName: doc.SpriteName,
		Actions:    make(map[string]descriptor.Action, len(doc.Actions)),
		Behaviors:  make(map[string]descriptor.Behavior, len(doc.Behaviors)),
	}

	for name, ja := range doc.Actions {
		a := descriptor.Action{
			Name:       ja.Name,
			Type:       descriptor.ActionType(ja.Type),
			BorderType: ja.BorderType,
			Draggable:  ja.Draggable,
			Loop:       ja.Loop,
			Embedded:   ja.Embedded,
		}
		for _, jb := range ja.Animations {
			block := decodeBlock(jb)
			if block.Condition == "" && a.Default == nil {
				b := block
				a.Default = &b
				continue
			}
			a.Conditional = append(a.Conditional, block)
		}
		for _, ref := range ja.References {
			a.References = append(a.References, descriptor.ActionRef(ref))
		}
		set.Actions[name] = a
	}

	for name, jb := range doc.Behaviors {
		b := descriptor.Behavior{
			Name:      jb.Name,
			Frequency: jb.Frequency,
			Hidden:    jb.Hidden,
			Category:  descriptor.BehaviorCategory(jb.Category),
			Condition: jb.Condition,
			Action:    jb.Action,
		}
		for _, ref := range jb.Next {
			b.Next = append(b.Next, descriptor.BehaviorRef(ref))
		}
		set.Behaviors[name] = b
	}

	return set, nil
}

func decodeBlock(jb jsonBlock) descriptor.Block {
	block := descriptor.Block{Condition: jb.Condition, Priority: jb.Priority}
	for _, jf := range jb.Frames {
		block.Frames = append(block.Frames, descriptor.Frame{
			Image:    jf.Image,
			Duration: jf.Duration,
			Velocity: descriptor.Vector{X: jf.Velocity[0], Y: jf.Velocity[1]},
			Anchor:   descriptor.Anchor{X: jf.Anchor[0], Y: jf.Anchor[1]},
			Sound:    jf.Sound,
			Volume:   jf.Volume,
		})
	}
	return block
}

// WriteFile persists the derived document at path unless a file already
// exists there. The derived cache must never clobber a hand-edited copy, so
// existing files are left untouched and wrote reports false.
func WriteFile(path string, set *descriptor.Set) (wrote bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("altfmt: stat %q: %w", path, err)
	}

	data, err := Encode(set)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("altfmt: create directory for %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("altfmt: write %q: %w", path, err)
	}
	return true, nil
}

// ReadFile loads a derived document from disk.
func ReadFile(path string) (*descriptor.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("altfmt: read %q: %w", path, err)
	}
	return Decode(data)
}
