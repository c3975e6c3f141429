package worldfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"simpletalk/internal/talk"
)

const demo = `
name: demo
globals:
  greeting: hello
  count: 3
stacks:
  - name: Home
    backgrounds:
      - name: Frame
    cards:
      - name: Intro
        properties:
          color: blue
        parts:
          - type: button
            name: OK
            script: |
              on mouseUp
                answer greeting
              end mouseUp
          - type: field
            name: Notes
      - name: Details
  - name: Other
`

func TestBuild(t *testing.T) {
	ctx := context.Background()
	def, err := Parse([]byte(demo))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var out bytes.Buffer
	sys := talk.NewSystem(nil, talk.WithOutput(&out))
	if err := Build(ctx, sys, def); err != nil {
		t.Fatalf("Build: %v", err)
	}
	h := sys.Hierarchy()

	if got := sys.World().Name(); got != "demo" {
		t.Errorf("world name = %q", got)
	}
	stacks := sys.World().Subparts()
	if len(stacks) != 2 {
		t.Fatalf("expected 2 stacks, got %d", len(stacks))
	}
	home := stacks[0]
	var types []string
	for _, p := range home.Subparts() {
		types = append(types, p.Type()+":"+p.Name())
	}
	if got := strings.Join(types, ","); got != "background:Frame,card:Intro,card:Details" {
		t.Errorf("stack contents = %s", got)
	}

	intro := h.CurrentCard()
	if intro == nil || intro.Name() != "Intro" {
		t.Fatalf("current card = %v, want Intro", intro)
	}
	if v, _ := intro.Property("color"); v != "blue" {
		t.Errorf("color = %v", v)
	}
	if v, _ := sys.Stack().Global("count"); v != float64(3) {
		t.Errorf("count global = %#v, want float64 3", v)
	}

	button := intro.Subparts()[0]
	if _, err := sys.Send(ctx, button.ID(), "mouseUp"); err != nil {
		t.Fatalf("mouseUp: %v", err)
	}
	if out.String() != "hello\n" {
		t.Errorf("answer output = %q", out.String())
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad part type",
			yaml: "stacks:\n  - cards:\n      - parts:\n          - type: stack\n",
		},
		{
			name: "script does not parse",
			yaml: "stacks:\n  - script: \"on open\\n  put\\nend open\\n\"\n",
		},
		{
			name: "nested property value",
			yaml: "properties:\n  size: [1, 2]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if err := Build(context.Background(), talk.NewSystem(nil), def); err == nil {
				t.Error("expected Build to fail")
			}
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("stackz: []\n")); err == nil {
		t.Error("expected unknown key to be rejected")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	if err := os.WriteFile(path, []byte(demo), 0o644); err != nil {
		t.Fatal(err)
	}
	def, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(def.Stacks) != 2 || def.Stacks[0].Cards[0].Parts[0].Name != "OK" {
		t.Errorf("unexpected definition: %+v", def)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected missing file to fail")
	}
}
