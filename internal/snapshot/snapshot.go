// Package snapshot captures a running world as a compressed document and rebuilds it.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"simpletalk/internal/talk"
)

const (
	logPrefix = "snapshot:snapshot"

	// FormatVersion is bumped whenever the document layout changes.
	FormatVersion = 1
)

// World is the serialized form of a hierarchy together with the global variables.
type World struct {
	Version      int                        `json:"version"`
	SavedAt      time.Time                  `json:"savedAt"`
	CurrentStack talk.PartID                `json:"currentStack"`
	Properties   map[string]json.RawMessage `json:"properties,omitempty"`
	Globals      map[string]json.RawMessage `json:"globals,omitempty"`
	Parts        []Part                     `json:"parts"`
}

// Part is one non-world part. Parts are listed owners first, in subpart order.
type Part struct {
	ID          talk.PartID                `json:"id"`
	Type        string                     `json:"type"`
	Owner       talk.PartID                `json:"owner"`
	Script      string                     `json:"script,omitempty"`
	Properties  map[string]json.RawMessage `json:"properties,omitempty"`
	CurrentCard *talk.PartID               `json:"currentCard,omitempty"`
}

// Capture walks the hierarchy of sys and records every part.
func Capture(sys *talk.System) (*World, error) {
	h := sys.Hierarchy()
	w := &World{
		Version:      FormatVersion,
		SavedAt:      time.Now().UTC(),
		CurrentStack: talk.SystemPartID,
		Globals:      make(map[string]json.RawMessage),
	}
	if cur := h.CurrentStack(); cur != nil {
		w.CurrentStack = cur.ID()
	}

	props, err := encodeProperties(h.World())
	if err != nil {
		return nil, err
	}
	w.Properties = props

	for _, name := range sys.Stack().GlobalNames() {
		v, _ := sys.Stack().Global(name)
		raw, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s - global %q: %w", logPrefix, name, err)
		}
		w.Globals[name] = raw
	}

	var walk func(owner *talk.Part) error
	walk = func(owner *talk.Part) error {
		for _, p := range owner.Subparts() {
			props, err := encodeProperties(p)
			if err != nil {
				return err
			}
			rec := Part{
				ID:         p.ID(),
				Type:       p.Type(),
				Owner:      owner.ID(),
				Script:     p.Script(),
				Properties: props,
			}
			if p.Type() == talk.TypeStack {
				if card := h.SelectedCard(p); card != nil {
					id := card.ID()
					rec.CurrentCard = &id
				}
			}
			w.Parts = append(w.Parts, rec)
			if err := walk(p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(h.World()); err != nil {
		return nil, err
	}
	return w, nil
}

func encodeProperties(p *talk.Part) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	for _, name := range p.PropertyNames() {
		v, _ := p.Property(name)
		raw, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s - property %q of %s id %d: %w", logPrefix, name, p.Type(), p.ID(), err)
		}
		out[name] = raw
	}
	return out, nil
}

// encodeValue stores parts as id references so they can be re-resolved after restore.
func encodeValue(v talk.Value) (json.RawMessage, error) {
	if p, ok := v.(*talk.Part); ok {
		id := p.ID()
		v = &talk.PartReference{ObjectType: p.Type(), ObjectID: &id, Context: talk.ContextSpecified}
	}
	return json.Marshal(v)
}

// Restore rebuilds w into sys, which must hold an empty world. Scripts are recompiled
// through the normal compile path.
func Restore(ctx context.Context, sys *talk.System, w *World) error {
	if w.Version != FormatVersion {
		return fmt.Errorf("%s - unsupported snapshot version %d", logPrefix, w.Version)
	}
	h := sys.Hierarchy()
	if len(h.World().Subparts()) > 0 {
		return fmt.Errorf("%s - restore target already has stacks", logPrefix)
	}

	for _, rec := range w.Parts {
		owner, ok := h.Part(rec.Owner)
		if !ok {
			return fmt.Errorf("%s - part %d names unknown owner %d", logPrefix, rec.ID, rec.Owner)
		}
		if _, err := h.AdoptPart(rec.ID, rec.Type, owner); err != nil {
			return fmt.Errorf("%s - part %d: %w", logPrefix, rec.ID, err)
		}
	}

	// Property values may reference any part, so they are decoded once the tree exists.
	if err := restoreProperties(h, h.World(), w.Properties); err != nil {
		return err
	}
	for _, rec := range w.Parts {
		p, _ := h.Part(rec.ID)
		if err := restoreProperties(h, p, rec.Properties); err != nil {
			return err
		}
		if rec.Script != "" {
			if err := sys.Compile(ctx, rec.ID, rec.Script); err != nil {
				return fmt.Errorf("%s - script of %s id %d: %w", logPrefix, rec.Type, rec.ID, err)
			}
		}
	}
	for name, raw := range w.Globals {
		v, err := decodeValue(h, raw)
		if err != nil {
			return fmt.Errorf("%s - global %q: %w", logPrefix, name, err)
		}
		sys.Stack().SetGlobal(name, v)
	}

	for _, rec := range w.Parts {
		if rec.CurrentCard == nil {
			continue
		}
		if card, ok := h.Part(*rec.CurrentCard); ok {
			if err := h.SetCurrent(card); err != nil {
				return fmt.Errorf("%s - %w", logPrefix, err)
			}
		}
	}
	if stack, ok := h.Part(w.CurrentStack); ok {
		if card := h.SelectedCard(stack); card != nil {
			return h.SetCurrent(card)
		}
		return h.SetCurrent(stack)
	}
	return nil
}

func restoreProperties(h *talk.Hierarchy, p *talk.Part, props map[string]json.RawMessage) error {
	for name, raw := range props {
		switch name {
		case "id", "type", "number":
			continue
		}
		v, err := decodeValue(h, raw)
		if err != nil {
			return fmt.Errorf("%s - property %q of %s id %d: %w", logPrefix, name, p.Type(), p.ID(), err)
		}
		if err := p.SetProperty(name, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeValue(h *talk.Hierarchy, raw json.RawMessage) (talk.Value, error) {
	v, err := talk.DecodeValue(raw)
	if err != nil {
		return nil, err
	}
	if ref, ok := v.(*talk.PartReference); ok {
		return talk.ResolveReference(ref, h.Anchors(h.World()))
	}
	return v, nil
}

// Encode serializes w as zstd-compressed JSON.
func Encode(w *World) ([]byte, error) {
	doc, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("%s - marshal: %w", logPrefix, err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("%s - zstd writer: %w", logPrefix, err)
	}
	defer enc.Close()
	return enc.EncodeAll(doc, nil), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*World, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("%s - zstd reader: %w", logPrefix, err)
	}
	defer dec.Close()
	doc, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%s - decompress: %w", logPrefix, err)
	}
	var w World
	d := json.NewDecoder(bytes.NewReader(doc))
	if err := d.Decode(&w); err != nil {
		return nil, fmt.Errorf("%s - unmarshal: %w", logPrefix, err)
	}
	return &w, nil
}
