package altfmt

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/auziqni/learn-shimeji-sub000/internal/descriptor"
)

func sampleSet() *descriptor.Set {
	vol := -12
	loop := true
	return &descriptor.Set{
		SpriteName: "Hornet",
		Actions: map[string]descriptor.Action{
			"Stand": {
				Name:       "Stand",
				Type:       descriptor.ActionStay,
				BorderType: "Floor",
				Loop:       &loop,
				Default: &descriptor.Block{
					Frames: []descriptor.Frame{
						{
							Image:    "/stand1.png",
							Duration: 2.5,
							Velocity: descriptor.Vector{},
							Anchor:   descriptor.Anchor{X: 64, Y: 128},
						},
						{
							Image:    "/stand2.png",
							Duration: 0.1667,
							Anchor:   descriptor.Anchor{X: 64, Y: 128},
						},
					},
				},
				Conditional: []descriptor.Block{
					{
						Condition: "#{mascot.y > 100}",
						Priority:  2,
						Frames: []descriptor.Frame{
							{
								Image:    "/fall.png",
								Duration: 0.5,
								Velocity: descriptor.Vector{Y: 3},
								Anchor:   descriptor.Anchor{X: 64, Y: 128},
								Sound:    "/whoosh.wav",
								Volume:   &vol,
							},
						},
					},
					{
						Condition: "#{mascot.y > 100}",
						Priority:  1,
						Frames: []descriptor.Frame{
							{Image: "/fall2.png", Duration: 0.5, Anchor: descriptor.Anchor{X: 64, Y: 128}},
						},
					},
				},
			},
			"Greet": {
				Name: "Greet",
				Type: descriptor.ActionSequence,
				References: []descriptor.ActionRef{
					{Name: "Stand", Type: "Stay"},
					{Name: "Walk", Type: "Move", Parameters: map[string]string{"speed": "2"}},
				},
				Embedded: map[string]string{"script": "wave"},
			},
		},
		Behaviors: map[string]descriptor.Behavior{
			"SitDown": {
				Name:      "SitDown",
				Frequency: 20,
				Category:  descriptor.CategoryUnknown,
				Condition: "mascot.environment.floor.isOn(mascot.anchor)",
				Action:    "Sit",
				Next: []descriptor.BehaviorRef{
					{Name: "Stand", Frequency: 3},
					{Name: "LieDown", Frequency: 1},
				},
			},
			"Hide": {
				Name:      "Hide",
				Frequency: 0,
				Hidden:    true,
				Category:  descriptor.CategoryUnknown,
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	set := sampleSet()

	data, err := Encode(set)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.SpriteName != set.SpriteName {
		t.Errorf("sprite name = %q, want %q", got.SpriteName, set.SpriteName)
	}
	if len(got.Actions) != len(set.Actions) {
		t.Fatalf("action count = %d, want %d", len(got.Actions), len(set.Actions))
	}
	if len(got.Behaviors) != len(set.Behaviors) {
		t.Fatalf("behavior count = %d, want %d", len(got.Behaviors), len(set.Behaviors))
	}

	// Field-for-field equality over the full descriptor tree.
	if !reflect.DeepEqual(got.Actions, set.Actions) {
		t.Errorf("actions differ after round trip:\n got %+v\nwant %+v", got.Actions, set.Actions)
	}
	if !reflect.DeepEqual(got.Behaviors, set.Behaviors) {
		t.Errorf("behaviors differ after round trip:\n got %+v\nwant %+v", got.Behaviors, set.Behaviors)
	}
}

func TestRoundTripPreservesBlockCountWithDuplicateConditions(t *testing.T) {
	// Two gated blocks sharing one condition string must both survive.
	set := sampleSet()
	stand := set.Actions["Stand"]
	if len(stand.Conditional) != 2 {
		t.Fatal("fixture should have two conditional blocks")
	}

	data, err := Encode(set)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Actions["Stand"].Conditional) != 2 {
		t.Errorf("conditional block count = %d, want 2", len(got.Actions["Stand"].Conditional))
	}
}

func TestWriteFilePolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "data.json")
	set := sampleSet()

	wrote, err := WriteFile(path, set)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !wrote {
		t.Fatal("first write should happen")
	}

	// Hand-edit the file; a second write must not clobber it.
	if err := os.WriteFile(path, []byte(`{"sprite_name":"edited"}`), 0644); err != nil {
		t.Fatal(err)
	}
	wrote, err = WriteFile(path, set)
	if err != nil {
		t.Fatalf("WriteFile second call: %v", err)
	}
	if wrote {
		t.Error("existing derived document must never be overwritten")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"sprite_name":"edited"}` {
		t.Errorf("file was clobbered: %s", data)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
