package parser

import (
	"strings"
	"testing"

	"github.com/auziqni/learn-shimeji-sub000/internal/descriptor"
)

const sampleActionsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Mascot>
  <ActionList>
    <Action Name="Stand" Type="Stay" BorderType="Floor" Loop="true">
      <Animation>
        <Pose Image="/stand1.png" ImageAnchor="64,128" Velocity="0,0" Duration="75"/>
        <Pose Image="/stand2.png" ImageAnchor="64,128" Velocity="0,0" Duration="5"/>
      </Animation>
      <Animation Condition="#{mascot.y &gt; 100}" Priority="2">
        <Pose Image="/fall.png" ImageAnchor="64,128" Velocity="0,3" Duration="15" Sound="/whoosh.wav" Volume="-12"/>
      </Animation>
    </Action>
    <Action Name="Walk" Type="Move" Draggable="false">
      <Animation>
        <Pose Image="/walk1.png" ImageAnchor="64,128" Velocity="-2,0" Duration="6"/>
        <Pose Image="/walk2.png" ImageAnchor="64,128" Velocity="-2,0" Duration="6"/>
      </Animation>
    </Action>
    <Action Type="Stay">
      <Animation>
        <Pose Image="/ghost.png" Duration="10"/>
      </Animation>
    </Action>
    <Action Name="Broken" Type="Animate">
      <Animation>
        <Pose Image="/b.png" ImageAnchor="junk" Velocity="junk" Duration="junk"/>
      </Animation>
    </Action>
    <Action Name="Greet" Type="Sequence">
      <ActionReference Name="Stand" Type="Stay"/>
      <ActionReference Name="Walk" Type="Move"/>
    </Action>
  </ActionList>
</Mascot>`

func TestParseActions(t *testing.T) {
	actions, warnings, err := ParseActions(strings.NewReader(sampleActionsXML))
	if err != nil {
		t.Fatalf("ParseActions: %v", err)
	}

	if len(actions) != 4 {
		t.Fatalf("expected 4 actions (nameless one skipped), got %d: %v", len(actions), actions)
	}

	stand, ok := actions["Stand"]
	if !ok {
		t.Fatal("missing action Stand")
	}
	if stand.Type != descriptor.ActionStay {
		t.Errorf("Stand.Type = %q, want Stay", stand.Type)
	}
	if stand.BorderType != "Floor" {
		t.Errorf("Stand.BorderType = %q, want Floor", stand.BorderType)
	}
	if stand.Loop == nil || !*stand.Loop {
		t.Error("Stand.Loop should be true")
	}
	if stand.Default == nil {
		t.Fatal("Stand should have a default block")
	}
	if len(stand.Default.Frames) != 2 {
		t.Fatalf("Stand default block: got %d frames, want 2", len(stand.Default.Frames))
	}

	// 75 frames at 30fps is 2.5 seconds.
	f0 := stand.Default.Frames[0]
	if f0.Duration != 2.5 {
		t.Errorf("frame duration = %v, want 2.5", f0.Duration)
	}
	if f0.Image != "/stand1.png" {
		t.Errorf("frame image = %q", f0.Image)
	}
	if f0.Anchor != (descriptor.Anchor{X: 64, Y: 128}) {
		t.Errorf("frame anchor = %+v", f0.Anchor)
	}

	if len(stand.Conditional) != 1 {
		t.Fatalf("Stand: got %d conditional blocks, want 1", len(stand.Conditional))
	}
	cond := stand.Conditional[0]
	if cond.Condition != "#{mascot.y > 100}" {
		t.Errorf("conditional block condition = %q", cond.Condition)
	}
	if cond.Priority != 2 {
		t.Errorf("conditional block priority = %d, want 2", cond.Priority)
	}
	snd := cond.Frames[0]
	if snd.Sound != "/whoosh.wav" {
		t.Errorf("sound = %q", snd.Sound)
	}
	if snd.Volume == nil || *snd.Volume != -12 {
		t.Errorf("volume = %v, want -12", snd.Volume)
	}

	walk := actions["Walk"]
	if walk.Draggable == nil || *walk.Draggable {
		t.Error("Walk.Draggable should be false")
	}
	if walk.Default.Frames[0].Velocity != (descriptor.Vector{X: -2, Y: 0}) {
		t.Errorf("Walk velocity = %+v", walk.Default.Frames[0].Velocity)
	}

	// Malformed numeric attributes fall back to defaults instead of
	// aborting the pack.
	broken := actions["Broken"]
	if broken.Default == nil || len(broken.Default.Frames) != 1 {
		t.Fatal("Broken should keep its frame despite bad attributes")
	}
	bf := broken.Default.Frames[0]
	if bf.Duration != descriptor.DefaultFrameDuration {
		t.Errorf("bad duration should fall back to %v, got %v", descriptor.DefaultFrameDuration, bf.Duration)
	}
	if !bf.Velocity.Zero() {
		t.Errorf("bad velocity should fall back to zero, got %+v", bf.Velocity)
	}

	greet := actions["Greet"]
	if len(greet.References) != 2 || greet.References[0].Name != "Stand" {
		t.Errorf("Greet references = %+v", greet.References)
	}

	if len(warnings) == 0 {
		t.Error("expected warnings for nameless action and bad attributes")
	}
	var sawSkip bool
	for _, w := range warnings {
		if strings.Contains(w, "without Name") {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Errorf("expected a skip warning, got %v", warnings)
	}
}

const sampleBehaviorsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Mascot>
  <BehaviorList>
    <Behavior Name="ChaseMouse" Frequency="0" Hidden="true"/>
    <Behavior Name="SitDown" Frequency="20">
      <NextBehaviorList>
        <BehaviorReference Name="Stand" Frequency="3"/>
        <BehaviorReference Name="LieDown" Frequency="1"/>
      </NextBehaviorList>
    </Behavior>
    <Behavior Name="Stand" Frequency="30" Condition="#{mascot.environment.floor.isOn(mascot.anchor)}"/>
    <Condition Condition="#{mascot.y &gt; 100}">
      <Behavior Name="Fall" Frequency="10" Condition="#{mascot.x &gt; 0}"/>
      <Condition Condition="#{mascot.x &lt; 500}">
        <Behavior Name="Tumble" Frequency="5"/>
      </Condition>
    </Condition>
    <Behavior Frequency="9"/>
  </BehaviorList>
</Mascot>`

func TestParseBehaviors(t *testing.T) {
	behaviors, warnings, err := ParseBehaviors(strings.NewReader(sampleBehaviorsXML))
	if err != nil {
		t.Fatalf("ParseBehaviors: %v", err)
	}

	if len(behaviors) != 5 {
		t.Fatalf("expected 5 behaviors, got %d: %v", len(behaviors), behaviors)
	}

	chase := behaviors["ChaseMouse"]
	if !chase.Hidden {
		t.Error("ChaseMouse should be hidden")
	}
	if chase.Frequency != 0 {
		t.Errorf("ChaseMouse frequency = %d, want 0", chase.Frequency)
	}

	sit := behaviors["SitDown"]
	if len(sit.Next) != 2 {
		t.Fatalf("SitDown next list = %+v", sit.Next)
	}
	if sit.Next[0] != (descriptor.BehaviorRef{Name: "Stand", Frequency: 3}) {
		t.Errorf("SitDown.Next[0] = %+v", sit.Next[0])
	}

	// Wrapper conditions AND with the behavior's own condition.
	fall := behaviors["Fall"]
	if fall.Condition != "mascot.y > 100 && mascot.x > 0" {
		t.Errorf("Fall condition = %q", fall.Condition)
	}

	// Nested wrappers accumulate.
	tumble := behaviors["Tumble"]
	if tumble.Condition != "mascot.y > 100 && mascot.x < 500" {
		t.Errorf("Tumble condition = %q", tumble.Condition)
	}

	if len(warnings) == 0 {
		t.Error("expected a warning for the nameless behavior")
	}
}

func TestParseMalformedDocuments(t *testing.T) {
	if _, _, err := ParseActions(strings.NewReader("<ActionList><Action")); err == nil {
		t.Error("truncated actions XML should be a hard error")
	}
	if _, _, err := ParseBehaviors(strings.NewReader("not xml at all")); err == nil {
		t.Error("non-XML behaviors document should be a hard error")
	}
}

func TestParseRootIsList(t *testing.T) {
	// Some packs omit the wrapping root element.
	doc := `<ActionList>
  <Action Name="Idle" Type="Stay">
    <Animation><Pose Image="idle.png" Duration="30"/></Animation>
  </Action>
</ActionList>`
	actions, _, err := ParseActions(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseActions: %v", err)
	}
	idle, ok := actions["Idle"]
	if !ok {
		t.Fatal("missing action Idle")
	}
	if idle.Default.Frames[0].Duration != 1.0 {
		t.Errorf("duration = %v, want 1.0", idle.Default.Frames[0].Duration)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		expected descriptor.BehaviorCategory
	}{
		{name: "StartUp", expected: descriptor.CategorySystem},
		{name: "RandomWander", expected: descriptor.CategoryAI},
		{name: "Dragged", expected: descriptor.CategoryInteraction},
		{name: "WalkAlongFloor", expected: descriptor.CategoryTransition},
		{name: "SitDown", expected: descriptor.CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.name); got != tt.expected {
				t.Errorf("Categorize(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}
