package main

import (
	"context"
	"image"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/auziqni/learn-shimeji-sub000/internal/altfmt"
	"github.com/auziqni/learn-shimeji-sub000/internal/behavior"
	"github.com/auziqni/learn-shimeji-sub000/internal/condition"
	"github.com/auziqni/learn-shimeji-sub000/internal/pack"
	"github.com/auziqni/learn-shimeji-sub000/internal/playback"
	"github.com/auziqni/learn-shimeji-sub000/internal/sprite"
)

const hornetActionsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Mascot>
 <ActionList>
  <Action Name="Stand" Type="Stay" BorderType="Floor">
   <Animation>
    <Pose Image="/stand.png" ImageAnchor="64,128" Velocity="0,0" Duration="75"/>
    <Pose Image="/blink.png" ImageAnchor="64,128" Velocity="0,0" Duration="5"/>
   </Animation>
  </Action>
  <Action Name="Fall" Type="Move" BorderType="Floor">
   <Animation Condition="#{mascot.y &gt; 100}">
    <Pose Image="/fall_fast.png" ImageAnchor="64,128" Velocity="0,12" Duration="3"/>
   </Animation>
   <Animation>
    <Pose Image="/fall.png" ImageAnchor="64,128" Velocity="0,6" Duration="3"/>
   </Animation>
  </Action>
 </ActionList>
</Mascot>`

const hornetBehaviorsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Mascot>
 <BehaviorList>
  <Behavior Name="Stand" Frequency="50">
   <NextBehaviorList Add="true">
    <BehaviorReference Name="Fall" Frequency="100"/>
   </NextBehaviorList>
  </Behavior>
  <Behavior Name="Fall" Frequency="20"/>
 </BehaviorList>
</Mascot>`

var hornetImages = []string{"stand.png", "blink.png", "fall_fast.png", "fall.png"}

func buildHornetPack(t *testing.T, images []string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Hornet")
	if err := os.MkdirAll(filepath.Join(dir, "conf"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(dir, "conf", "actions.xml"), hornetActionsXML)
	mustWrite(t, filepath.Join(dir, "conf", "behaviors.xml"), hornetBehaviorsXML)
	for _, name := range images {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	return dir
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPackValidatesAndConvertsEndToEnd(t *testing.T) {
	dir := buildHornetPack(t, hornetImages)

	v := pack.Validate(dir)
	if v.Status != pack.StatusReady {
		t.Fatalf("status = %s, want READY (errors=%v warnings=%v missing=%v)",
			v.Status, v.Errors, v.Warnings, v.MissingFiles)
	}

	stand := v.Set.Actions["Stand"]
	if got := stand.Default.Frames[0].Duration; math.Abs(got-2.5) > 1e-9 {
		t.Fatalf("first frame duration = %v, want 2.5", got)
	}

	// The JSON snapshot written next to the XML must decode back to the
	// same descriptor set.
	derived := filepath.Join(dir, "conf", "data.json")
	wrote, err := altfmt.WriteFile(derived, v.Set)
	if err != nil || !wrote {
		t.Fatalf("write derived: wrote=%v err=%v", wrote, err)
	}
	decoded, err := altfmt.ReadFile(derived)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded.Actions, v.Set.Actions) {
		t.Fatal("decoded actions differ from parsed actions")
	}
	if !reflect.DeepEqual(decoded.Behaviors, v.Set.Behaviors) {
		t.Fatal("decoded behaviors differ from parsed behaviors")
	}
}

func TestScriptedPlaybackEndToEnd(t *testing.T) {
	dir := buildHornetPack(t, hornetImages)

	v := pack.Validate(dir)
	if v.Status != pack.StatusReady {
		t.Fatalf("status = %s, want READY", v.Status)
	}

	eval := condition.NewEvaluator(nil)
	cache := sprite.NewCache(10, 1<<20, nil)
	table := behavior.NewTable(v.Set.Behaviors, eval, rand.New(rand.NewSource(1)))

	player := playback.NewPlayer(dir, cache, eval, nil)
	defer player.Close()

	st := condition.State{condition.KeyY: 0}

	stand := v.Set.Actions["Stand"]
	player.SetAction(&stand, st)
	player.Play()

	// One 2.5s delta exactly consumes the first frame.
	player.Update(2.5)
	if got := player.FrameIndex(); got != 1 {
		t.Fatalf("frame index = %d, want 1", got)
	}
	frame, _ := player.CurrentFrame()
	if frame.Image != "/blink.png" {
		t.Fatalf("frame image = %q, want /blink.png", frame.Image)
	}
	if _, ok := player.CurrentImage(); !ok {
		t.Fatal("sprite load failed for existing image")
	}

	// High altitude switches Fall to its conditional block.
	fall := v.Set.Actions["Fall"]
	st[condition.KeyY] = 300
	player.SetAction(&fall, st)
	player.Play()
	frame, _ = player.CurrentFrame()
	if frame.Image != "/fall_fast.png" {
		t.Fatalf("frame image = %q, want /fall_fast.png", frame.Image)
	}
	if vel := player.CurrentVelocity(); vel.Y != 12 {
		t.Fatalf("velocity = %+v, want Y=12", vel)
	}

	// Landing re-resolves to the default block.
	st[condition.KeyY] = 0
	player.Refresh(st)
	frame, _ = player.CurrentFrame()
	if frame.Image != "/fall.png" {
		t.Fatalf("frame image = %q, want /fall.png", frame.Image)
	}

	// Stand's explicit next list always leads to Fall.
	standBehavior := v.Set.Behaviors["Stand"]
	next, err := table.Next(&standBehavior, st)
	if err != nil {
		t.Fatal(err)
	}
	if next != "Fall" {
		t.Fatalf("next behavior = %q, want Fall", next)
	}
}

func TestDegradedPackStillPlays(t *testing.T) {
	// blink.png never ships; the pack is degraded but playable.
	dir := buildHornetPack(t, []string{"stand.png", "fall_fast.png", "fall.png"})

	v := pack.Validate(dir)
	if v.Status != pack.StatusPartial {
		t.Fatalf("status = %s, want PARTIAL", v.Status)
	}
	if v.MissingTotal != 1 || v.MissingFiles[0] != "/blink.png" {
		t.Fatalf("missing = %v (total %d), want /blink.png", v.MissingFiles, v.MissingTotal)
	}

	cache := sprite.NewCache(10, 1<<20, nil)
	player := playback.NewPlayer(dir, cache, condition.NewEvaluator(nil), nil)
	defer player.Close()

	stand := v.Set.Actions["Stand"]
	player.SetAction(&stand, condition.State{})
	player.Play()
	player.Update(2.5)

	if _, ok := player.CurrentImage(); ok {
		t.Fatal("expected load failure for the missing frame")
	}
	// Re-render does not retry the failed load.
	player.CurrentImage()
	if stats := cache.Stats(); stats.LoadErrors != 1 {
		t.Fatalf("load errors = %d, want 1", stats.LoadErrors)
	}

	// Playback keeps advancing past the unloadable frame.
	player.Update(0.2)
	if player.State() != playback.StatePlaying {
		t.Fatalf("state = %v, want playing", player.State())
	}
	if got := player.FrameIndex(); got != 0 {
		t.Fatalf("frame index = %d, want 0 after looping", got)
	}
}

func TestBatchLoadIsolation(t *testing.T) {
	assets := t.TempDir()

	good := filepath.Join(assets, "Good")
	if err := os.MkdirAll(filepath.Join(good, "conf"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(good, "conf", "actions.xml"), hornetActionsXML)
	mustWrite(t, filepath.Join(good, "conf", "behaviors.xml"), hornetBehaviorsXML)

	if err := os.MkdirAll(filepath.Join(assets, "Empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	results, err := pack.NewLoader(nil, nil).LoadAll(context.Background(), assets)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	byName := map[string]*pack.Validation{}
	for _, v := range results {
		byName[v.Name] = v
	}
	if byName["Empty"].Status != pack.StatusBroken {
		t.Fatalf("Empty status = %s, want BROKEN", byName["Empty"].Status)
	}
	if byName["Good"].Status == pack.StatusBroken {
		t.Fatalf("Good must not be dragged down by Empty: %v", byName["Good"].Errors)
	}
}
