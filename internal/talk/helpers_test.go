package talk

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"simpletalk/internal/events"
)

// fixture is a small world used across the package tests:
//
//	world 0
//	└── stack "Home" 1
//	    ├── card "One" 2: button "A" 5, button "B" 6, field "F1" 7, field "F2" 8, field "F3" 9
//	    ├── card "Two" 3: field "X" 10, field "Y" 11, field "Z" 12
//	    └── card "Three" 4
type fixture struct {
	sys      *System
	out      *bytes.Buffer
	recorder *events.Recorder
	parts    map[string]*Part
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{out: &bytes.Buffer{}, recorder: events.NewRecorder(0), parts: make(map[string]*Part)}
	base := []Option{
		WithOutput(f.out),
		WithPublisher(f.recorder),
		WithClock(func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }),
	}
	f.sys = NewSystem(NewHierarchy(), append(base, opts...)...)

	home := f.add(t, "Home", TypeStack, f.sys.World())
	one := f.add(t, "One", TypeCard, home)
	two := f.add(t, "Two", TypeCard, home)
	f.add(t, "Three", TypeCard, home)
	f.add(t, "A", TypeButton, one)
	f.add(t, "B", TypeButton, one)
	for _, name := range []string{"F1", "F2", "F3"} {
		f.add(t, name, TypeField, one)
	}
	for _, name := range []string{"X", "Y", "Z"} {
		f.add(t, name, TypeField, two)
	}
	return f
}

func (f *fixture) add(t *testing.T, name, partType string, owner *Part) *Part {
	t.Helper()
	p, err := f.sys.Hierarchy().NewPart(partType, owner)
	if err != nil {
		t.Fatalf("NewPart(%s %q): %v", partType, name, err)
	}
	if err := p.SetProperty("name", name); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	f.parts[name] = p
	return p
}

func (f *fixture) part(name string) *Part { return f.parts[name] }

func (f *fixture) compile(t *testing.T, name, script string) {
	t.Helper()
	if err := f.sys.Compile(context.Background(), f.parts[name].ID(), script); err != nil {
		t.Fatalf("Compile onto %s: %v", name, err)
	}
}

func (f *fixture) send(name, message string, args ...Value) (Value, error) {
	return f.sys.Send(context.Background(), f.parts[name].ID(), message, args...)
}

// scriptCase is one script run end to end: Script is compiled onto button "A" and
// Message (mouseUp by default) is sent to it.
type scriptCase struct {
	Name       string
	Script     string
	Message    string
	Args       []Value
	Stdout     string
	ShouldFail bool
	ErrKind    ErrorKind
}

func runScriptCase(t *testing.T, tc scriptCase, opts ...Option) *fixture {
	t.Helper()
	f := newFixture(t, opts...)
	f.compile(t, "A", tc.Script)

	message := tc.Message
	if message == "" {
		message = "mouseUp"
	}
	_, err := f.send("A", message, tc.Args...)

	if tc.ShouldFail {
		if err == nil {
			t.Fatalf("Expected %s, got none (stdout %q)", tc.ErrKind, f.out.String())
		}
		if !IsKind(err, tc.ErrKind) {
			t.Errorf("Expected %s, got %v", tc.ErrKind, err)
		}
	} else if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if tc.Stdout != "" {
		actual := strings.TrimSpace(f.out.String())
		expected := strings.TrimSpace(tc.Stdout)
		if actual != expected {
			t.Errorf("Stdout mismatch:\nExpected:\n%s\n\nActual:\n%s", expected, actual)
		}
	}
	if depth := f.sys.Stack().Depth(); depth != 0 {
		t.Errorf("Expected an empty execution stack after dispatch, got depth %d", depth)
	}
	return f
}
