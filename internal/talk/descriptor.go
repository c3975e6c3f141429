package talk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RefContext says how a part reference is anchored.
type RefContext string

const (
	ContextThis      RefContext = "this"
	ContextCurrent   RefContext = "current"
	ContextSpecified RefContext = "specified"
)

// LastIndex selects the final matching subpart ("last card").
const LastIndex = -1

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"last": LastIndex,
}

// Descriptor is a placeholder produced by compilation and resolved only at execution time.
// Variable and *PartReference are the only implementations.
type Descriptor interface {
	isInterpreterNode()
	String() string
}

type Variable struct {
	Name string
}

func (Variable) isInterpreterNode() {}

func (v Variable) String() string { return v.Name }

func (v Variable) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{IsInterpreterNode: true, Kind: "variable", Name: v.Name})
}

// PartReference addresses a part. In links to the next outer reference of a nested
// specifier; Index is 1-based, LastIndex for "last", 0 when unused.
type PartReference struct {
	ObjectType string
	ObjectID   *PartID
	Name       string
	Index      int
	Context    RefContext
	In         *PartReference
}

func (*PartReference) isInterpreterNode() {}

func (r *PartReference) String() string {
	var b strings.Builder
	switch {
	case r.Context == ContextThis:
		b.WriteString("this " + r.ObjectType)
	case r.Context == ContextCurrent:
		b.WriteString("current " + r.ObjectType)
	case r.ObjectID != nil:
		fmt.Fprintf(&b, "%s id %d", r.ObjectType, *r.ObjectID)
	case r.Index == LastIndex:
		b.WriteString("last " + r.ObjectType)
	case r.Index > 0:
		fmt.Fprintf(&b, "%s %d", r.ObjectType, r.Index)
	case r.Name != "":
		fmt.Fprintf(&b, "%s %q", r.ObjectType, r.Name)
	default:
		b.WriteString(r.ObjectType)
	}
	if r.In != nil {
		b.WriteString(" of ")
		b.WriteString(r.In.String())
	}
	return b.String()
}

func (r *PartReference) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{
		IsInterpreterNode: true,
		Kind:              "partReference",
		ObjectType:        r.ObjectType,
		ObjectID:          r.ObjectID,
		Name:              r.Name,
		Index:             r.Index,
		Context:           r.Context,
		In:                r.In,
	})
}

type descriptorJSON struct {
	IsInterpreterNode bool           `json:"isInterpreterNode"`
	Kind              string         `json:"kind"`
	Name              string         `json:"name,omitempty"`
	ObjectType        string         `json:"objectType,omitempty"`
	ObjectID          *PartID        `json:"objectId,omitempty"`
	Index             int            `json:"index,omitempty"`
	Context           RefContext     `json:"context,omitempty"`
	In                *PartReference `json:"in,omitempty"`
}

func (r *PartReference) UnmarshalJSON(data []byte) error {
	d, err := decodeDescriptor(data)
	if err != nil {
		return err
	}
	ref, ok := d.(*PartReference)
	if !ok {
		return invariant("expected a part reference, got %T", d)
	}
	*r = *ref
	return nil
}

// DecodeValue decodes a JSON argument. Objects tagged isInterpreterNode become descriptors;
// anything else decodes as a plain value.
func DecodeValue(data []byte) (Value, error) {
	var head struct {
		IsInterpreterNode bool `json:"isInterpreterNode"`
	}
	if err := json.Unmarshal(data, &head); err == nil && head.IsInterpreterNode {
		return decodeDescriptor(data)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, newError(RuntimeFailure, "invalid argument: %v", err)
	}
	return v, nil
}

func decodeDescriptor(data []byte) (Descriptor, error) {
	var d descriptorJSON
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, invariant("malformed descriptor: %v", err)
	}
	switch d.Kind {
	case "variable":
		return Variable{Name: d.Name}, nil
	case "partReference":
		ctx := d.Context
		if ctx == "" {
			ctx = ContextSpecified
		}
		return &PartReference{
			ObjectType: d.ObjectType,
			ObjectID:   d.ObjectID,
			Name:       d.Name,
			Index:      d.Index,
			Context:    ctx,
			In:         d.In,
		}, nil
	}
	return nil, invariant("unknown descriptor kind %q", d.Kind)
}
