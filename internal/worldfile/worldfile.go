// Package worldfile loads declarative world definitions written in YAML.
//
//	name: demo
//	globals:
//	  greeting: hello
//	stacks:
//	  - name: Home
//	    cards:
//	      - name: Intro
//	        parts:
//	          - type: button
//	            name: OK
//	            script: |
//	              on mouseUp
//	                answer greeting
//	              end mouseUp
package worldfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"simpletalk/internal/talk"
)

const logPrefix = "worldfile:worldfile"

type Definition struct {
	Name       string         `yaml:"name"`
	Script     string         `yaml:"script"`
	Properties map[string]any `yaml:"properties"`
	Globals    map[string]any `yaml:"globals"`
	Stacks     []Stack        `yaml:"stacks"`
}

type Stack struct {
	Name        string         `yaml:"name"`
	Script      string         `yaml:"script"`
	Properties  map[string]any `yaml:"properties"`
	Backgrounds []Card         `yaml:"backgrounds"`
	Cards       []Card         `yaml:"cards"`
}

// Card describes a card or a background, both of which hold buttons and fields.
type Card struct {
	Name       string         `yaml:"name"`
	Script     string         `yaml:"script"`
	Properties map[string]any `yaml:"properties"`
	Parts      []Part         `yaml:"parts"`
}

type Part struct {
	Type       string         `yaml:"type"`
	Name       string         `yaml:"name"`
	Script     string         `yaml:"script"`
	Properties map[string]any `yaml:"properties"`
}

// Parse decodes a definition, rejecting unknown keys.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return &def, nil
}

func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return Parse(data)
}

// Build creates the defined parts in sys and compiles their scripts. The first stack and
// its first card become current.
func Build(ctx context.Context, sys *talk.System, def *Definition) error {
	b := &builder{ctx: ctx, sys: sys}
	world := sys.World()
	if def.Name != "" {
		if err := world.SetProperty("name", def.Name); err != nil {
			return err
		}
	}
	if err := b.configure(world, "", def.Script, def.Properties); err != nil {
		return err
	}
	for name, v := range def.Globals {
		val, err := normalize(v)
		if err != nil {
			return fmt.Errorf("%s - global %q: %w", logPrefix, name, err)
		}
		sys.Stack().SetGlobal(name, val)
	}

	for _, sd := range def.Stacks {
		stack, err := b.add(talk.TypeStack, world, sd.Name, sd.Script, sd.Properties)
		if err != nil {
			return err
		}
		for _, bg := range sd.Backgrounds {
			if err := b.card(talk.TypeBackground, stack, bg); err != nil {
				return err
			}
		}
		for _, cd := range sd.Cards {
			if err := b.card(talk.TypeCard, stack, cd); err != nil {
				return err
			}
		}
	}

	h := sys.Hierarchy()
	if card := h.CurrentCard(); card != nil {
		return h.SetCurrent(card)
	}
	if stack := h.CurrentStack(); stack != nil {
		return h.SetCurrent(stack)
	}
	return nil
}

type builder struct {
	ctx context.Context
	sys *talk.System
}

func (b *builder) card(partType string, stack *talk.Part, cd Card) error {
	card, err := b.add(partType, stack, cd.Name, cd.Script, cd.Properties)
	if err != nil {
		return err
	}
	for _, pd := range cd.Parts {
		if pd.Type != talk.TypeButton && pd.Type != talk.TypeField {
			return fmt.Errorf("%s - %s %q: part type must be button or field, got %q", logPrefix, partType, cd.Name, pd.Type)
		}
		if _, err := b.add(pd.Type, card, pd.Name, pd.Script, pd.Properties); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) add(partType string, owner *talk.Part, name, script string, props map[string]any) (*talk.Part, error) {
	p, err := b.sys.Hierarchy().NewPart(partType, owner)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return p, b.configure(p, name, script, props)
}

func (b *builder) configure(p *talk.Part, name, script string, props map[string]any) error {
	if name != "" {
		if err := p.SetProperty("name", name); err != nil {
			return err
		}
	}
	for k, v := range props {
		val, err := normalize(v)
		if err != nil {
			return fmt.Errorf("%s - property %q of %s %q: %w", logPrefix, k, p.Type(), p.Name(), err)
		}
		if err := p.SetProperty(k, val); err != nil {
			return err
		}
	}
	if script == "" {
		return nil
	}
	return b.sys.Compile(b.ctx, p.ID(), script)
}

// normalize converts YAML scalars to engine values. Numbers are always float64.
func normalize(v any) (talk.Value, error) {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}
