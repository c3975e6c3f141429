package talk

import (
	"testing"
)

func TestOwnerBranch(t *testing.T) {
	f := newFixture(t)
	branch, err := f.part("A").OwnerBranch()
	if err != nil {
		t.Fatalf("OwnerBranch: %v", err)
	}
	expected := []PartID{5, 2, 1, WorldID, SystemPartID}
	if len(branch) != len(expected) {
		t.Fatalf("Expected %d parts, got %d", len(expected), len(branch))
	}
	for i, id := range expected {
		if branch[i].ID() != id {
			t.Errorf("Branch[%d]: expected id %d, got %d", i, id, branch[i].ID())
		}
	}
	if !branch[len(branch)-1].IsSentinel() {
		t.Error("Expected the branch to end with the system sentinel")
	}
}

func TestOwnerBranchCycle(t *testing.T) {
	f := newFixture(t)
	home := f.part("Home")
	home.owner = f.part("A")
	defer func() { home.owner = f.sys.World() }()

	if _, err := f.part("B").OwnerBranch(); !IsKind(err, EngineInvariantViolation) {
		t.Errorf("Expected EngineInvariantViolation, got %v", err)
	}
}

func TestAdoptPart(t *testing.T) {
	f := newFixture(t)
	h := f.sys.Hierarchy()
	other := NewHierarchy()
	foreign, err := other.NewPart(TypeStack, other.World())
	if err != nil {
		t.Fatalf("NewPart: %v", err)
	}

	tests := []struct {
		name     string
		id       PartID
		partType string
		owner    *Part
		kind     ErrorKind
	}{
		{"world cannot be created", 40, TypeWorld, h.World(), RuntimeFailure},
		{"unknown type", 40, "widget", f.part("One"), RuntimeFailure},
		{"missing owner", 40, TypeCard, nil, EngineInvariantViolation},
		{"owner from another hierarchy", 40, TypeCard, foreign, ResolutionNotFound},
		{"containment", 40, TypeButton, f.part("Home"), RuntimeFailure},
		{"id in use", 5, TypeButton, f.part("One"), EngineInvariantViolation},
		{"negative id", -4, TypeButton, f.part("One"), EngineInvariantViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.AdoptPart(tt.id, tt.partType, tt.owner); !IsKind(err, tt.kind) {
				t.Errorf("Expected %s, got %v", tt.kind, err)
			}
		})
	}

	adopted, err := h.AdoptPart(40, TypeButton, f.part("Two"))
	if err != nil {
		t.Fatalf("AdoptPart: %v", err)
	}
	if adopted.ID() != 40 || adopted.Owner() != f.part("Two") {
		t.Errorf("Unexpected adopted part %d owned by %v", adopted.ID(), adopted.Owner())
	}
	next, err := h.NewPart(TypeField, f.part("Two"))
	if err != nil {
		t.Fatalf("NewPart: %v", err)
	}
	if next.ID() != 41 {
		t.Errorf("Expected ids to continue after an adopted part, got %d", next.ID())
	}
}

func TestRemovePart(t *testing.T) {
	f := newFixture(t)
	h := f.sys.Hierarchy()

	if err := h.RemovePart(h.World()); err == nil {
		t.Error("Expected the world to be undeletable")
	}
	if err := h.SetCurrent(f.part("One")); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}
	if err := h.RemovePart(f.part("One")); err != nil {
		t.Fatalf("RemovePart: %v", err)
	}
	for _, name := range []string{"One", "A", "B", "F1", "F2", "F3"} {
		if _, ok := h.Part(f.part(name).ID()); ok {
			t.Errorf("Expected %s to leave the index", name)
		}
	}
	if card := h.CurrentCard(); card != f.part("Two") {
		t.Errorf("Expected the current card to fall back to Two, got %v", card)
	}
	if n := f.part("Two").Number(); n != 1 {
		t.Errorf("Expected Two to be card 1 now, got %d", n)
	}
	if err := h.RemovePart(f.part("One")); !IsKind(err, ResolutionNotFound) {
		t.Errorf("Expected removing twice to be ResolutionNotFound, got %v", err)
	}
	if err := h.RemovePart(f.part("Home")); err != nil {
		t.Fatalf("RemovePart: %v", err)
	}
	if h.CurrentStack() != nil || h.CurrentCard() != nil {
		t.Error("Expected no current stack or card in an empty world")
	}
}

func TestPartProperties(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		part     string
		property string
		expected Value
	}{
		{"id", "F1", "id", 7.0},
		{"type", "F1", "type", TypeField},
		{"number counts only the same type", "F1", "number", 1.0},
		{"number of the second button", "B", "number", 2.0},
		{"card number", "Three", "number", 3.0},
		{"name", "Y", "name", "Y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := f.part(tt.part).Property(tt.property)
			if !ok || v != tt.expected {
				t.Errorf("Expected %v, got %v (%v)", tt.expected, v, ok)
			}
		})
	}

	for _, name := range []string{"id", "type", "number"} {
		if err := f.part("A").SetProperty(name, 3.0); !IsKind(err, RuntimeFailure) {
			t.Errorf("Expected %q to be read-only, got %v", name, err)
		}
	}
	if _, ok := f.part("A").Property("missing"); ok {
		t.Error("Expected an unknown property to be absent")
	}
}

func TestResolveReference(t *testing.T) {
	f := newFixture(t)
	anchors := f.sys.Hierarchy().Anchors(f.part("A"))

	tests := []struct {
		specifier string
		expected  string
		kind      ErrorKind
	}{
		{specifier: "this card", expected: "One"},
		{specifier: "this stack", expected: "Home"},
		{specifier: "this part", expected: "A"},
		{specifier: "current card", expected: "One"},
		{specifier: "current stack", expected: "Home"},
		{specifier: "button 2", expected: "B"},
		{specifier: `button "B"`, expected: "B"},
		{specifier: "last field", expected: "F3"},
		{specifier: "second card", expected: "Two"},
		{specifier: "field 3 of second card", expected: "Z"},
		{specifier: "field 3 of second card of current stack", expected: "Z"},
		{specifier: "part 3 of card 1", expected: "F1"},
		{specifier: "stack 1", expected: "Home"},
		{specifier: "field id 7", expected: "F1"},
		{specifier: "part id 10", expected: "X"},
		{specifier: "button id 7", kind: ResolutionNotFound},
		{specifier: "button id 99", kind: ResolutionNotFound},
		{specifier: "button 0", kind: ResolutionNotFound},
		{specifier: "button 9", kind: ResolutionNotFound},
		{specifier: `card "Nope"`, kind: ResolutionNotFound},
		{specifier: "last button of card 3", kind: ResolutionNotFound},
		{specifier: "this field", kind: ResolutionNotFound},
		{specifier: "field 1 of card 7", kind: ResolutionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			ref, err := CompileSpecifier("test", tt.specifier)
			if err != nil {
				t.Fatalf("CompileSpecifier: %v", err)
			}
			p, err := ResolveReference(ref, anchors)
			if tt.expected == "" {
				if !IsKind(err, tt.kind) {
					t.Errorf("Expected %s, got %v (part %v)", tt.kind, err, p)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveReference: %v", err)
			}
			if p != f.part(tt.expected) {
				t.Errorf("Expected %s, got %s id %d", tt.expected, p.Type(), p.ID())
			}
		})
	}
}

func TestResolveReferenceFollowsCurrentCard(t *testing.T) {
	f := newFixture(t)
	h := f.sys.Hierarchy()
	if err := h.SetCurrent(f.part("Two")); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}
	ref, err := CompileSpecifier("test", "field 2 of current card")
	if err != nil {
		t.Fatalf("CompileSpecifier: %v", err)
	}

	// The current card is read at resolution time, not when the reference is built.
	if p, err := ResolveReference(ref, h.Anchors(f.part("A"))); err != nil || p != f.part("Y") {
		t.Errorf("Expected Y, got %v (%v)", p, err)
	}
	if err := h.SetCurrent(f.part("One")); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}
	if p, err := ResolveReference(ref, h.Anchors(f.part("A"))); err != nil || p != f.part("F2") {
		t.Errorf("Expected F2, got %v (%v)", p, err)
	}

	// Without an executing part unqualified buttons come from the current card.
	bare, _ := CompileSpecifier("test", "button 1")
	if p, err := ResolveReference(bare, h.Anchors(nil)); err != nil || p != f.part("A") {
		t.Errorf("Expected A, got %v (%v)", p, err)
	}
	this, _ := CompileSpecifier("test", "this card")
	if _, err := ResolveReference(this, h.Anchors(nil)); !IsKind(err, ResolutionNotFound) {
		t.Errorf("Expected ResolutionNotFound without an executing part, got %v", err)
	}
}

func TestResolveReferenceInvariants(t *testing.T) {
	if _, err := ResolveReference(nil, Anchors{}); !IsKind(err, EngineInvariantViolation) {
		t.Errorf("Expected EngineInvariantViolation for nil, got %v", err)
	}
	bogus := &PartReference{ObjectType: TypeCard, Context: "sideways"}
	if _, err := ResolveReference(bogus, Anchors{}); !IsKind(err, EngineInvariantViolation) {
		t.Errorf("Expected EngineInvariantViolation for an unknown context, got %v", err)
	}
}

type bogusNode struct{}

func (bogusNode) isInterpreterNode() {}
func (bogusNode) String() string     { return "bogus" }

func TestInterpret(t *testing.T) {
	f := newFixture(t)
	ip := f.sys.Interpreter()
	ec := newExecutionContext("mouseUp", f.part("A"), f.part("A"), nil)
	ec.SetLocal("x", 3.0)
	f.sys.Stack().SetGlobal("g", "global")
	ec.SetLocal("g", "local")
	f.sys.Stack().SetGlobal("onlyGlobal", 7.0)

	tests := []struct {
		name     string
		value    Value
		expected Value
	}{
		{"nil passes through", nil, nil},
		{"concrete values pass through", "text", "text"},
		{"parts pass through", f.part("B"), f.part("B")},
		{"local variable", Variable{Name: "x"}, 3.0},
		{"variable pointer", &Variable{Name: "x"}, 3.0},
		{"locals shadow globals", Variable{Name: "g"}, "local"},
		{"globals", Variable{Name: "onlyGlobal"}, 7.0},
		{"part reference", &PartReference{ObjectType: TypeCard, Context: ContextThis}, f.part("One")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ip.Interpret(tt.value, ec)
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}

	if _, err := ip.Interpret(bogusNode{}, ec); !IsKind(err, EngineInvariantViolation) {
		t.Errorf("Expected EngineInvariantViolation for an unknown node, got %v", err)
	}
	if _, err := ip.Interpret(Variable{Name: "nope"}, ec); !IsKind(err, ResolutionNotFound) {
		t.Errorf("Expected ResolutionNotFound, got %v", err)
	}
}
