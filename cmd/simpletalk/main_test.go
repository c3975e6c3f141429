package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"simpletalk/internal/config"
	"simpletalk/internal/events"
	"simpletalk/internal/plugin"
	"simpletalk/internal/snapshot"
)

// stubEnvironment swaps in a file-backed environment and reports how often it was closed.
func stubEnvironment(t *testing.T) *int {
	t.Helper()
	dir := t.TempDir()
	closed := new(int)
	previous := newEnv
	newEnv = func(_ context.Context, cfg *config.Config) (*environment, error) {
		return &environment{
			cfg:       cfg,
			store:     snapshot.NewFileStore(dir),
			plugins:   plugin.NewRegistry(),
			publisher: events.NoOpPublisher{},
			closers:   []func(){func() { *closed++ }},
		}, nil
	}
	t.Cleanup(func() { newEnv = previous })
	return closed
}

func TestRunClosesEnvironment(t *testing.T) {
	world := filepath.Join(t.TempDir(), "world.yaml")
	source := "stacks:\n  - name: Home\n    cards:\n      - name: One\n"
	if err := os.WriteFile(world, []byte(source), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "save succeeds", args: []string{"save", world, "demo"}, code: 0},
		{name: "restore fails", args: []string{"restore", "missing"}, code: 1},
		{name: "run without a world", args: []string{"run"}, code: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed := stubEnvironment(t)
			if code := run(tt.args); code != tt.code {
				t.Errorf("run(%v) = %d, want %d", tt.args, code, tt.code)
			}
			if *closed != 1 {
				t.Errorf("Expected the environment to be closed once, got %d", *closed)
			}
		})
	}
}

func TestRunWithoutEnvironment(t *testing.T) {
	closed := stubEnvironment(t)
	for _, args := range [][]string{nil, {"bogus"}, {"lex"}, {"ast"}} {
		if code := run(args); code != 1 {
			t.Errorf("run(%v) = %d, want 1", args, code)
		}
	}
	if *closed != 0 {
		t.Errorf("Expected no environment for usage errors, got %d closes", *closed)
	}
}
