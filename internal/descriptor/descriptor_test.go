package descriptor

import "testing"

func TestResolvePicksHighestPriorityTrueBlock(t *testing.T) {
	a := &Action{
		Name: "Idle",
		Type: ActionAnimate,
		Default: &Block{
			Frames: []Frame{{Image: "calm.png"}},
		},
		Conditional: []Block{
			{Condition: "low", Priority: 1, Frames: []Frame{{Image: "low.png"}}},
			{Condition: "high", Priority: 5, Frames: []Frame{{Image: "high.png"}}},
		},
	}

	truths := map[string]bool{"low": true, "high": true}
	eval := func(cond string) bool { return truths[cond] }

	if got := a.Resolve(eval); got.Frames[0].Image != "high.png" {
		t.Fatalf("resolved %q, want high.png", got.Frames[0].Image)
	}

	truths["high"] = false
	if got := a.Resolve(eval); got.Frames[0].Image != "low.png" {
		t.Fatalf("resolved %q, want low.png", got.Frames[0].Image)
	}

	truths["low"] = false
	if got := a.Resolve(eval); got.Frames[0].Image != "calm.png" {
		t.Fatalf("resolved %q, want the default block", got.Frames[0].Image)
	}

	a.Default = nil
	if got := a.Resolve(eval); got != nil {
		t.Fatalf("resolved %+v, want nil without a default", got)
	}
}

func TestResolveEqualPrioritiesKeepDocumentOrder(t *testing.T) {
	a := &Action{
		Name: "Tied",
		Type: ActionAnimate,
		Conditional: []Block{
			{Condition: "a", Priority: 3, Frames: []Frame{{Image: "first.png"}}},
			{Condition: "b", Priority: 3, Frames: []Frame{{Image: "second.png"}}},
		},
	}
	got := a.Resolve(func(string) bool { return true })
	if got.Frames[0].Image != "first.png" {
		t.Fatalf("resolved %q, want first.png", got.Frames[0].Image)
	}
}

func TestClampVolume(t *testing.T) {
	cases := []struct{ in, want int }{
		{-12, -12},
		{5, 0},
		{-150, -100},
		{0, 0},
	}
	for _, tc := range cases {
		if got := ClampVolume(tc.in); got != tc.want {
			t.Errorf("ClampVolume(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestActionTypeIsValid(t *testing.T) {
	for _, at := range []ActionType{ActionStay, ActionMove, ActionAnimate, ActionBehavior, ActionEmbedded, ActionSequence} {
		if !at.IsValid() {
			t.Errorf("%q should be valid", at)
		}
	}
	if ActionType("Dance").IsValid() {
		t.Error("unknown type should be invalid")
	}
}

func TestBlocksOrdersDefaultFirst(t *testing.T) {
	a := &Action{
		Default:     &Block{Frames: []Frame{{Image: "d.png"}}},
		Conditional: []Block{{Condition: "c", Frames: []Frame{{Image: "c.png"}}}},
	}
	blocks := a.Blocks()
	if len(blocks) != 2 || blocks[0].Condition != "" || blocks[1].Condition != "c" {
		t.Fatalf("unexpected block order: %+v", blocks)
	}
}
