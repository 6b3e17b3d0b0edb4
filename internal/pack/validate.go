// Package pack discovers, validates, and loads sprite packs. A pack is a
// directory holding conf/actions.xml, conf/behaviors.xml, sprite images at
// the pack root, and optional sounds.
package pack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/auziqni/learn-shimeji-sub000/internal/descriptor"
	"github.com/auziqni/learn-shimeji-sub000/internal/parser"
)

// Status summarises how usable a pack is after validation.
type Status string

const (
	// StatusReady means both descriptors parsed and every referenced
	// asset exists.
	StatusReady Status = "READY"
	// StatusPartial means the pack is loadable but degraded: parse
	// warnings or missing assets.
	StatusPartial Status = "PARTIAL"
	// StatusBroken means the pack cannot be used at all.
	StatusBroken Status = "BROKEN"
)

// maxReportedMissing caps the missing-file list carried in a Validation.
// MissingTotal keeps the real count.
const maxReportedMissing = 5

// Validation is the full audit result for one pack.
type Validation struct {
	Name   string
	Path   string
	Status Status

	Set *descriptor.Set

	Errors       []string
	Warnings     []string
	MissingFiles []string
	MissingTotal int
}

// Ready reports whether the pack validated clean.
func (v *Validation) Ready() bool { return v.Status == StatusReady }

func (v *Validation) fail(format string, args ...any) *Validation {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	v.Status = StatusBroken
	return v
}

// Validate audits the pack at path. The checks run in order and a
// structural failure short-circuits: a pack without conf/ is BROKEN and
// nothing else is reported about it. Parse warnings and missing assets
// accumulate instead, degrading the pack to PARTIAL.
func Validate(path string) *Validation {
	v := &Validation{
		Name:   filepath.Base(filepath.Clean(path)),
		Path:   path,
		Status: StatusReady,
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return v.fail("pack directory not found: %s", path)
	}

	confDir := filepath.Join(path, "conf")
	if info, err := os.Stat(confDir); err != nil || !info.IsDir() {
		return v.fail("missing conf directory")
	}

	actionsPath := filepath.Join(confDir, "actions.xml")
	behaviorsPath := filepath.Join(confDir, "behaviors.xml")
	for _, p := range []string{actionsPath, behaviorsPath} {
		if _, err := os.Stat(p); err != nil {
			v.fail("missing descriptor: %s", filepath.Base(p))
		}
	}
	if v.Status == StatusBroken {
		return v
	}

	actions, warnings, err := parseFile(actionsPath, parser.ParseActions)
	if err != nil {
		return v.fail("actions.xml: %v", err)
	}
	v.Warnings = append(v.Warnings, warnings...)

	behaviors, warnings, err := parseFile(behaviorsPath, parser.ParseBehaviors)
	if err != nil {
		return v.fail("behaviors.xml: %v", err)
	}
	v.Warnings = append(v.Warnings, warnings...)

	v.Set = &descriptor.Set{
		SpriteName: v.Name,
		Actions:    actions,
		Behaviors:  behaviors,
	}

	v.auditAssets()
	v.auditBehaviorRefs()

	if v.Status == StatusReady && (len(v.Warnings) > 0 || v.MissingTotal > 0) {
		v.Status = StatusPartial
	}
	return v
}

func parseFile[T any](path string, parse func(r io.Reader) (map[string]T, []string, error)) (map[string]T, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return parse(f)
}

// auditAssets checks every image and sound referenced by any frame.
// Images resolve against the pack root. Sounds try the pack root, then
// sounds/, then audio/, taking the first hit.
func (v *Validation) auditAssets() {
	seen := make(map[string]struct{})
	missing := func(ref string) {
		if _, dup := seen[ref]; dup {
			return
		}
		seen[ref] = struct{}{}
		v.MissingTotal++
		if len(v.MissingFiles) < maxReportedMissing {
			v.MissingFiles = append(v.MissingFiles, ref)
		}
	}

	for _, name := range v.Set.ActionNames() {
		a := v.Set.Actions[name]
		for _, block := range a.Blocks() {
			for _, frame := range block.Frames {
				if frame.Image != "" && !v.fileExists(rel(frame.Image)) {
					missing(frame.Image)
				}
				if frame.Sound != "" && !v.soundExists(rel(frame.Sound)) {
					missing(frame.Sound)
				}
			}
		}
	}
	sort.Strings(v.MissingFiles)
}

func rel(ref string) string {
	return strings.TrimPrefix(strings.TrimPrefix(ref, "/"), string(filepath.Separator))
}

func (v *Validation) fileExists(relPath string) bool {
	info, err := os.Stat(filepath.Join(v.Path, filepath.FromSlash(relPath)))
	return err == nil && !info.IsDir()
}

func (v *Validation) soundExists(relPath string) bool {
	for _, sub := range []string{"", "sounds", "audio"} {
		info, err := os.Stat(filepath.Join(v.Path, sub, filepath.FromSlash(relPath)))
		if err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// auditBehaviorRefs flags behaviors whose action or next-list references
// point nowhere. Dangling references are warnings, not errors; the
// transition table skips them at runtime.
func (v *Validation) auditBehaviorRefs() {
	for _, name := range v.Set.BehaviorNames() {
		b := v.Set.Behaviors[name]
		action := b.Action
		if action == "" {
			action = b.Name
		}
		if _, ok := v.Set.Actions[action]; !ok {
			v.Warnings = append(v.Warnings,
				fmt.Sprintf("behavior %q references unknown action %q", b.Name, action))
		}
		for _, next := range b.Next {
			if _, ok := v.Set.Behaviors[next.Name]; !ok {
				v.Warnings = append(v.Warnings,
					fmt.Sprintf("behavior %q lists unknown next behavior %q", b.Name, next.Name))
			}
		}
	}
}
