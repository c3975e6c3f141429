package talk

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeAsker struct {
	reply   string
	err     error
	prompts []string
}

func (a *fakeAsker) Ask(prompt string) (string, error) {
	a.prompts = append(a.prompts, prompt)
	return a.reply, a.err
}

func TestAskAndDate(t *testing.T) {
	asker := &fakeAsker{reply: "Ada"}
	runScriptCase(t, scriptCase{
		Name: "ask stores the reply in it",
		Script: `on mouseUp
  ask "Name?"
  answer "Hi " & it
  date "%Y/%m/%d"
  answer it
  date
  answer it
end mouseUp`,
		Stdout: "Hi Ada\n2024/03/09\n2024-03-09",
	}, WithAsker(asker))

	if len(asker.prompts) != 1 || asker.prompts[0] != "Name?" {
		t.Errorf("Unexpected prompts %v", asker.prompts)
	}
}

func TestAskFailures(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "no asker configured"},
		{name: "asker error", opts: []Option{WithAsker(&fakeAsker{err: errors.New("closed")})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runScriptCase(t, scriptCase{
				Script:     "on mouseUp\n  ask \"?\"\nend mouseUp",
				ShouldFail: true,
				ErrKind:    RuntimeFailure,
			}, tt.opts...)
		})
	}
}

func TestPartCommands(t *testing.T) {
	tests := []scriptCase{
		{
			Name: "add to an explicit owner",
			Script: `on mouseUp
  add field "Notes" to card "Three"
  answer the "name" of field 1 of card "Three"
end mouseUp`,
			Stdout: "Notes",
		},
		{
			Name: "add a card to the stack of the executing part",
			Script: `on mouseUp
  add card "Four"
  answer the "number" of last card
  answer the "name" of last card
end mouseUp`,
			Stdout: "4\nFour",
		},
		{
			Name: "delete removes the subtree",
			Script: `on mouseUp
  delete card "Two"
  answer the "name" of second card
end mouseUp`,
			Stdout: "Three",
		},
		{
			Name: "set a property of another part",
			Script: `on mouseUp
  set "color" to "red" in button "B"
  answer the "color" of button 2
end mouseUp`,
			Stdout: "red",
		},
		{
			Name: "cannot add a card to a card",
			Script: `on mouseUp
  add card to this card
end mouseUp`,
			ShouldFail: true,
			ErrKind:    RuntimeFailure,
		},
		{
			Name: "cannot delete the world",
			Script: `on mouseUp
  delete this world
end mouseUp`,
			ShouldFail: true,
			ErrKind:    RuntimeFailure,
		},
		{
			Name: "unknown property",
			Script: `on mouseUp
  answer the "nothing" of this card
end mouseUp`,
			ShouldFail: true,
			ErrKind:    ResolutionNotFound,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.Name, func(t *testing.T) {
			runScriptCase(t, testCase)
		})
	}
}

func TestNavigation(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		script   string
		wantCard string
	}{
		{name: "next", start: "One", script: "go next", wantCard: "Two"},
		{name: "next wraps around", start: "Three", script: "go next card", wantCard: "One"},
		{name: "previous wraps around", start: "One", script: "go previous", wantCard: "Three"},
		{name: "to a named card", start: "One", script: "go to card \"Three\"", wantCard: "Three"},
		{name: "to a card by ordinal", start: "Three", script: "go first card", wantCard: "One"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			h := f.sys.Hierarchy()
			if err := h.SetCurrent(f.part(tt.start)); err != nil {
				t.Fatal(err)
			}
			if _, err := f.sys.Execute(context.Background(), f.part("Home").ID(), tt.script); err != nil {
				t.Fatalf("%s: %v", tt.script, err)
			}
			if got := h.CurrentCard().Name(); got != tt.wantCard {
				t.Errorf("Expected current card %s, got %s", tt.wantCard, got)
			}
		})
	}
}

func TestNavigationRelays(t *testing.T) {
	f := newFixture(t)
	relay := func(name string) string {
		return "on openCard\n  answer \"open " + name + "\"\nend openCard\n\non closeCard\n  answer \"close " + name + "\"\nend closeCard\n"
	}
	f.compile(t, "One", relay("One"))
	f.compile(t, "Two", relay("Two"))
	f.compile(t, "A", "on mouseUp\n  go next\n  go to this card\nend mouseUp\n")

	if _, err := f.send("A", "mouseUp"); err != nil {
		t.Fatalf("mouseUp: %v", err)
	}
	// "this card" is still the button's card, so the second go returns to One.
	want := "close One\nopen Two\nclose Two\nopen One\n"
	if f.out.String() != want {
		t.Errorf("Expected relays:\n%s\ngot:\n%s", want, f.out.String())
	}
}

func TestGoToStack(t *testing.T) {
	f := newFixture(t)
	other := f.add(t, "Other", TypeStack, f.sys.World())
	back := f.add(t, "Back", TypeCard, other)
	f.compile(t, "Other", "on openStack\n  answer \"open Other\"\nend openStack\n")

	if _, err := f.sys.Execute(context.Background(), f.part("A").ID(), "go next stack"); err != nil {
		t.Fatalf("go next stack: %v", err)
	}
	h := f.sys.Hierarchy()
	if h.CurrentStack() != other || h.CurrentCard() != back {
		t.Errorf("Expected Other/Back, got %s/%s", h.CurrentStack().Name(), h.CurrentCard().Name())
	}
	if f.out.String() != "open Other\n" {
		t.Errorf("Unexpected output %q", f.out.String())
	}
	if _, err := f.sys.Execute(context.Background(), f.part("A").ID(), "go to button 1"); !IsKind(err, RuntimeFailure) {
		t.Errorf("Expected RuntimeFailure going to a button, got %v", err)
	}
}

func TestPrivateMoveHandlers(t *testing.T) {
	order := func(f *fixture) string {
		var names []string
		for _, p := range f.part("One").Subparts() {
			names = append(names, p.Name())
		}
		return strings.Join(names, ",")
	}

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"move down", "tell button \"A\" to moveDown", "B,A,F1,F2,F3"},
		{"move up clamps at the front", "tell button \"A\" to moveUp", "A,B,F1,F2,F3"},
		{"move to last", "tell field 1 to moveToLast", "A,B,F2,F3,F1"},
		{"move to first", "tell field \"F3\" to moveToFirst", "F3,A,B,F1,F2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.sys.Execute(context.Background(), f.part("One").ID(), tt.script); err != nil {
				t.Fatalf("%s: %v", tt.script, err)
			}
			if got := order(f); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("move sets the position", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.sys.Execute(context.Background(), f.part("One").ID(), "tell button 2 to move 10, 20"); err != nil {
			t.Fatal(err)
		}
		left, _ := f.part("B").Property("left")
		top, _ := f.part("B").Property("top")
		if left != 10.0 || top != 20.0 {
			t.Errorf("Expected 10,20 got %v,%v", left, top)
		}
	})

	t.Run("an untargeted move goes to the executing part", func(t *testing.T) {
		f := newFixture(t)
		f.compile(t, "One", "on shuffle\n  moveDown\nend shuffle\n")
		if _, err := f.send("One", "shuffle"); err != nil {
			t.Fatal(err)
		}
		// moveDown went to the card itself, not to any button.
		if got := order(f); got != "A,B,F1,F2,F3" {
			t.Errorf("buttons moved unexpectedly: %s", got)
		}
		if f.part("One").Number() != 2 {
			t.Errorf("Expected the card to move down, got number %d", f.part("One").Number())
		}
	})
}

func TestTell(t *testing.T) {
	names := func(p *Part) string {
		var out []string
		for _, c := range p.Subparts() {
			out = append(out, c.Name())
		}
		return strings.Join(out, ",")
	}

	tests := []struct {
		name   string
		script string
		check  func(t *testing.T, f *fixture)
	}{
		{
			name:   "set acts on the told part",
			script: "tell button \"B\" to set \"name\" to \"Z\"",
			check: func(t *testing.T, f *fixture) {
				if f.part("B").Name() != "Z" || f.part("A").Name() != "A" {
					t.Errorf("Expected A.name=A B.name=Z, got A.name=%s B.name=%s", f.part("A").Name(), f.part("B").Name())
				}
			},
		},
		{
			name:   "setProperty command acts on the told part",
			script: "tell button \"B\" to setProperty \"name\", \"Z\"",
			check: func(t *testing.T, f *fixture) {
				if f.part("B").Name() != "Z" || f.part("A").Name() != "A" {
					t.Errorf("Expected A.name=A B.name=Z, got A.name=%s B.name=%s", f.part("A").Name(), f.part("B").Name())
				}
			},
		},
		{
			name:   "add creates the part on the told card",
			script: "tell card \"Two\" to add button \"New\"",
			check: func(t *testing.T, f *fixture) {
				if got := names(f.part("Two")); got != "X,Y,Z,New" {
					t.Errorf("Expected X,Y,Z,New on card Two, got %s", got)
				}
				if got := names(f.part("One")); got != "A,B,F1,F2,F3" {
					t.Errorf("card One changed: %s", got)
				}
			},
		},
		{
			name:   "newModel command uses the told card",
			script: "tell card \"Two\" to newModel \"field\"",
			check: func(t *testing.T, f *fixture) {
				if n := len(f.part("Two").Subparts()); n != 4 {
					t.Errorf("Expected 4 parts on card Two, got %d", n)
				}
				if n := len(f.part("One").Subparts()); n != 5 {
					t.Errorf("Expected 5 parts on card One, got %d", n)
				}
			},
		},
		{
			name:   "delete through tell",
			script: "tell card \"Two\" to delete field \"Y\" of card \"Two\"",
			check: func(t *testing.T, f *fixture) {
				if got := names(f.part("Two")); got != "X,Z" {
					t.Errorf("Expected X,Z on card Two, got %s", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.compile(t, "A", "on mouseUp\n  "+tt.script+"\nend mouseUp\n")
			if _, err := f.send("A", "mouseUp"); err != nil {
				t.Fatalf("%s: %v", tt.script, err)
			}
			tt.check(t, f)
		})
	}

	t.Run("scripted handler on the told part", func(t *testing.T) {
		f := newFixture(t)
		f.compile(t, "B", "on greet who\n  answer the \"name\" of this button & \" greets \" & who\nend greet\n")
		f.compile(t, "A", "on mouseUp\n  tell button \"B\" to greet \"Ada\"\nend mouseUp\n")
		if _, err := f.send("A", "mouseUp"); err != nil {
			t.Fatal(err)
		}
		if f.out.String() != "B greets Ada\n" {
			t.Errorf("Unexpected output %q", f.out.String())
		}
	})
}

type fakeSaver struct {
	names []string
}

func (s *fakeSaver) SaveWorld(_ context.Context, name string, _ *System) error {
	s.names = append(s.names, name)
	return nil
}

func TestSave(t *testing.T) {
	saver := &fakeSaver{}
	runScriptCase(t, scriptCase{
		Name:   "save names the snapshot",
		Script: "on mouseUp\n  save \"demo\"\n  answer it\n  save\nend mouseUp",
		Stdout: "demo",
	}, WithSnapshotSaver(saver))
	if strings.Join(saver.names, ",") != "demo,world" {
		t.Errorf("Unexpected saves %v", saver.names)
	}

	runScriptCase(t, scriptCase{
		Name:       "save without a store",
		Script:     "on mouseUp\n  save \"demo\"\nend mouseUp",
		ShouldFail: true,
		ErrKind:    RuntimeFailure,
	})
}
