// Package parser turns a pack's XML configuration documents into descriptor
// maps. Parsing is tolerant: malformed numeric attributes fall back to
// safe defaults with a warning, nameless elements are skipped, and only an
// unreadable document is a hard error.
package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/auziqni/learn-shimeji-sub000/internal/condition"
	"github.com/auziqni/learn-shimeji-sub000/internal/descriptor"
)

// defaultAnchor matches the runtime default the original format assumes for
// a 128x128 sprite when a pose omits its ImageAnchor.
var defaultAnchor = descriptor.Anchor{X: 64, Y: 128}

// The source documents use capitalised attributes but some hand-edited
// packs carry lowercase variants, so every attribute is declared twice and
// coalesced with pick.

type xmlPose struct {
	Image    string `xml:"Image,attr"`
	ImageL   string `xml:"image,attr"`
	Duration string `xml:"Duration,attr"`
	DurL     string `xml:"duration,attr"`
	Velocity string `xml:"Velocity,attr"`
	VelL     string `xml:"velocity,attr"`
	Anchor   string `xml:"ImageAnchor,attr"`
	AnchorL  string `xml:"imageAnchor,attr"`
	Sound    string `xml:"Sound,attr"`
	SoundL   string `xml:"sound,attr"`
	Volume   string `xml:"Volume,attr"`
	VolL     string `xml:"volume,attr"`
}

type xmlAnimation struct {
	Condition string    `xml:"Condition,attr"`
	CondL     string    `xml:"condition,attr"`
	Priority  string    `xml:"Priority,attr"`
	PrioL     string    `xml:"priority,attr"`
	Poses     []xmlPose `xml:"Pose"`
}

type xmlParameter struct {
	Name  string `xml:"Name,attr"`
	NameL string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlActionRef struct {
	Name       string         `xml:"Name,attr"`
	NameL      string         `xml:"name,attr"`
	Type       string         `xml:"Type,attr"`
	TypeL      string         `xml:"type,attr"`
	Parameters []xmlParameter `xml:"Parameter"`
}

type xmlEmbedded struct {
	Name  string `xml:"Name,attr"`
	NameL string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlAction struct {
	Name       string         `xml:"Name,attr"`
	NameL      string         `xml:"name,attr"`
	Type       string         `xml:"Type,attr"`
	TypeL      string         `xml:"type,attr"`
	BorderType string         `xml:"BorderType,attr"`
	BorderL    string         `xml:"border,attr"`
	Draggable  string         `xml:"Draggable,attr"`
	DragL      string         `xml:"draggable,attr"`
	Loop       string         `xml:"Loop,attr"`
	LoopL      string         `xml:"loop,attr"`
	Animations []xmlAnimation `xml:"Animation"`
	References []xmlActionRef `xml:"ActionReference"`
	Embedded   []xmlEmbedded  `xml:"Embedded"`
}

type xmlActionList struct {
	Actions []xmlAction `xml:"Action"`
}

// actionsDoc accepts both a wrapping root element containing ActionList and
// a document whose root element is the list itself.
type actionsDoc struct {
	Lists   []xmlActionList `xml:"ActionList"`
	Actions []xmlAction     `xml:"Action"`
}

type xmlBehaviorRef struct {
	Name      string `xml:"Name,attr"`
	NameL     string `xml:"name,attr"`
	Frequency string `xml:"Frequency,attr"`
	FreqL     string `xml:"frequency,attr"`
}

type xmlNextList struct {
	Refs []xmlBehaviorRef `xml:"BehaviorReference"`
}

type xmlBehavior struct {
	Name      string        `xml:"Name,attr"`
	NameL     string        `xml:"name,attr"`
	Frequency string        `xml:"Frequency,attr"`
	FreqL     string        `xml:"frequency,attr"`
	Hidden    string        `xml:"Hidden,attr"`
	HiddenL   string        `xml:"hidden,attr"`
	Condition string        `xml:"Condition,attr"`
	CondL     string        `xml:"condition,attr"`
	Action    string        `xml:"Action,attr"`
	ActionL   string        `xml:"action,attr"`
	NextLists []xmlNextList `xml:"NextBehaviorList"`
}

// xmlConditionWrap groups behaviors under a shared condition. Wrappers may
// nest; conditions accumulate by logical AND.
type xmlConditionWrap struct {
	Condition string             `xml:"Condition,attr"`
	CondL     string             `xml:"condition,attr"`
	Behaviors []xmlBehavior      `xml:"Behavior"`
	Nested    []xmlConditionWrap `xml:"Condition"`
}

type xmlBehaviorList struct {
	Behaviors []xmlBehavior      `xml:"Behavior"`
	Wrapped   []xmlConditionWrap `xml:"Condition"`
}

type behaviorsDoc struct {
	Lists     []xmlBehaviorList  `xml:"BehaviorList"`
	Behaviors []xmlBehavior      `xml:"Behavior"`
	Wrapped   []xmlConditionWrap `xml:"Condition"`
}

func pick(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// ParseActions reads an actions document and returns the action map plus
// any warnings accumulated along the way.
func ParseActions(r io.Reader) (map[string]descriptor.Action, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parser: read actions document: %w", err)
	}

	var doc actionsDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parser: malformed actions document: %w", err)
	}

	var warnings []string
	actions := make(map[string]descriptor.Action)

	raw := doc.Actions
	for _, list := range doc.Lists {
		raw = append(raw, list.Actions...)
	}

	for _, xa := range raw {
		name := pick(xa.Name, xa.NameL)
		if name == "" {
			warnings = append(warnings, "skipping action without Name")
			continue
		}
		if _, exists := actions[name]; exists {
			warnings = append(warnings, fmt.Sprintf("duplicate action %q, keeping first definition", name))
			continue
		}

		a, ws := parseAction(name, xa)
		warnings = append(warnings, ws...)
		actions[name] = a
	}

	return actions, warnings, nil
}

func parseAction(name string, xa xmlAction) (descriptor.Action, []string) {
	var warnings []string

	typ := descriptor.ActionType(pick(xa.Type, xa.TypeL))
	if !typ.IsValid() {
		warnings = append(warnings, fmt.Sprintf("action %q: unknown type %q, treating as Animate", name, string(typ)))
		typ = descriptor.ActionAnimate
	}

	a := descriptor.Action{
		Name:       name,
		Type:       typ,
		BorderType: pick(xa.BorderType, xa.BorderL),
	}

	if v := pick(xa.Draggable, xa.DragL); v != "" {
		b := strings.EqualFold(v, "true")
		a.Draggable = &b
	}
	if v := pick(xa.Loop, xa.LoopL); v != "" {
		b := strings.EqualFold(v, "true")
		a.Loop = &b
	}

	for _, xan := range xa.Animations {
		block, ws := parseAnimation(name, xan)
		warnings = append(warnings, ws...)
		if len(block.Frames) == 0 {
			// Empty blocks carry no renderable content.
			continue
		}
		if block.Condition == "" {
			if a.Default != nil {
				warnings = append(warnings, fmt.Sprintf("action %q: multiple unconditioned animation blocks, keeping first", name))
				continue
			}
			b := block
			a.Default = &b
			continue
		}
		a.Conditional = append(a.Conditional, block)
	}

	for _, ref := range xa.References {
		r := descriptor.ActionRef{
			Name: pick(ref.Name, ref.NameL),
			Type: pick(ref.Type, ref.TypeL),
		}
		if r.Name == "" {
			warnings = append(warnings, fmt.Sprintf("action %q: skipping action reference without name", name))
			continue
		}
		for _, p := range ref.Parameters {
			pname := pick(p.Name, p.NameL)
			if pname == "" {
				continue
			}
			if r.Parameters == nil {
				r.Parameters = make(map[string]string)
			}
			r.Parameters[pname] = strings.TrimSpace(p.Value)
		}
		a.References = append(a.References, r)
	}

	for _, em := range xa.Embedded {
		key := pick(em.Name, em.NameL)
		if key == "" {
			continue
		}
		if a.Embedded == nil {
			a.Embedded = make(map[string]string)
		}
		a.Embedded[key] = strings.TrimSpace(em.Value)
	}

	return a, warnings
}

func parseAnimation(action string, xan xmlAnimation) (descriptor.Block, []string) {
	var warnings []string

	block := descriptor.Block{Condition: pick(xan.Condition, xan.CondL)}

	if p := pick(xan.Priority, xan.PrioL); p != "" {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("action %q: bad animation priority %q, using 0", action, p))
		} else {
			block.Priority = n
		}
	}

	for _, xp := range xan.Poses {
		frame, ws, ok := parsePose(action, xp)
		warnings = append(warnings, ws...)
		if ok {
			block.Frames = append(block.Frames, frame)
		}
	}

	return block, warnings
}

func parsePose(action string, xp xmlPose) (descriptor.Frame, []string, bool) {
	var warnings []string

	image := pick(xp.Image, xp.ImageL)
	if image == "" {
		warnings = append(warnings, fmt.Sprintf("action %q: skipping pose without image", action))
		return descriptor.Frame{}, warnings, false
	}

	frame := descriptor.Frame{
		Image:    image,
		Duration: descriptor.DefaultFrameDuration,
		Anchor:   defaultAnchor,
	}

	// Duration is a frame count at the nominal rate; store seconds.
	if d := pick(xp.Duration, xp.DurL); d != "" {
		n, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
		if err != nil || n <= 0 {
			warnings = append(warnings, fmt.Sprintf("action %q: bad duration %q for %s, using %.1fs", action, d, image, descriptor.DefaultFrameDuration))
		} else {
			frame.Duration = n / descriptor.NominalFrameRate
		}
	} else {
		warnings = append(warnings, fmt.Sprintf("action %q: missing duration for %s, using %.1fs", action, image, descriptor.DefaultFrameDuration))
	}

	if v := pick(xp.Velocity, xp.VelL); v != "" {
		x, y, err := parsePair(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("action %q: bad velocity %q for %s, using 0,0", action, v, image))
		} else {
			frame.Velocity = descriptor.Vector{X: x, Y: y}
		}
	}

	if an := pick(xp.Anchor, xp.AnchorL); an != "" {
		x, y, err := parsePair(an)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("action %q: bad anchor %q for %s, using default", action, an, image))
		} else {
			frame.Anchor = descriptor.Anchor{X: x, Y: y}
		}
	}

	frame.Sound = pick(xp.Sound, xp.SoundL)
	if vol := pick(xp.Volume, xp.VolL); vol != "" {
		n, err := strconv.Atoi(strings.TrimSpace(vol))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("action %q: bad volume %q for %s, ignoring", action, vol, image))
		} else {
			clamped := descriptor.ClampVolume(n)
			frame.Volume = &clamped
		}
	}

	return frame, warnings, true
}

// parsePair parses the "x,y" attribute form shared by Velocity and
// ImageAnchor.
func parsePair(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two comma-separated numbers, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// ParseBehaviors reads a behaviors document and returns the behavior map
// plus any warnings.
func ParseBehaviors(r io.Reader) (map[string]descriptor.Behavior, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parser: read behaviors document: %w", err)
	}

	var doc behaviorsDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parser: malformed behaviors document: %w", err)
	}

	var warnings []string
	behaviors := make(map[string]descriptor.Behavior)

	add := func(xb xmlBehavior, wrapCond string) {
		name := pick(xb.Name, xb.NameL)
		if name == "" {
			warnings = append(warnings, "skipping behavior without Name")
			return
		}
		if _, exists := behaviors[name]; exists {
			warnings = append(warnings, fmt.Sprintf("duplicate behavior %q, keeping first definition", name))
			return
		}
		b, ws := parseBehavior(name, xb, wrapCond)
		warnings = append(warnings, ws...)
		behaviors[name] = b
	}

	var walk func(wraps []xmlConditionWrap, parentCond string)
	walk = func(wraps []xmlConditionWrap, parentCond string) {
		for _, w := range wraps {
			cond := condition.Join(parentCond, pick(w.Condition, w.CondL))
			for _, xb := range w.Behaviors {
				add(xb, cond)
			}
			walk(w.Nested, cond)
		}
	}

	lists := doc.Lists
	if len(doc.Behaviors) > 0 || len(doc.Wrapped) > 0 {
		lists = append(lists, xmlBehaviorList{Behaviors: doc.Behaviors, Wrapped: doc.Wrapped})
	}
	for _, list := range lists {
		for _, xb := range list.Behaviors {
			add(xb, "")
		}
		walk(list.Wrapped, "")
	}

	return behaviors, warnings, nil
}

func parseBehavior(name string, xb xmlBehavior, wrapCond string) (descriptor.Behavior, []string) {
	var warnings []string

	b := descriptor.Behavior{
		Name:      name,
		Frequency: 1,
		Action:    pick(xb.Action, xb.ActionL),
		Category:  Categorize(name),
	}

	if f := pick(xb.Frequency, xb.FreqL); f != "" {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 {
			warnings = append(warnings, fmt.Sprintf("behavior %q: bad frequency %q, using 1", name, f))
		} else {
			b.Frequency = n
		}
	}

	b.Hidden = strings.EqualFold(pick(xb.Hidden, xb.HiddenL), "true")

	// A wrapper condition and the behavior's own condition must both hold.
	b.Condition = condition.Join(wrapCond, pick(xb.Condition, xb.CondL))

	for _, list := range xb.NextLists {
		for _, ref := range list.Refs {
			rname := pick(ref.Name, ref.NameL)
			if rname == "" {
				warnings = append(warnings, fmt.Sprintf("behavior %q: skipping next-behavior reference without name", name))
				continue
			}
			freq := 1
			if f := pick(ref.Frequency, ref.FreqL); f != "" {
				n, err := strconv.Atoi(strings.TrimSpace(f))
				if err != nil || n < 0 {
					warnings = append(warnings, fmt.Sprintf("behavior %q: bad reference frequency %q for %q, using 1", name, f, rname))
				} else {
					freq = n
				}
			}
			b.Next = append(b.Next, descriptor.BehaviorRef{Name: rname, Frequency: freq})
		}
	}

	return b, warnings
}

// Categorize buckets a behavior by name keywords. Purely diagnostic.
func Categorize(name string) descriptor.BehaviorCategory {
	lower := strings.ToLower(name)
	for _, kw := range []string{"start", "stop", "init", "shutdown", "reset"} {
		if strings.Contains(lower, kw) {
			return descriptor.CategorySystem
		}
	}
	for _, kw := range []string{"think", "decide", "plan", "choose", "random"} {
		if strings.Contains(lower, kw) {
			return descriptor.CategoryAI
		}
	}
	for _, kw := range []string{"click", "drag", "hover", "select", "interact"} {
		if strings.Contains(lower, kw) {
			return descriptor.CategoryInteraction
		}
	}
	for _, kw := range []string{"move", "walk", "jump", "fall", "slide"} {
		if strings.Contains(lower, kw) {
			return descriptor.CategoryTransition
		}
	}
	return descriptor.CategoryUnknown
}
