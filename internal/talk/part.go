package talk

import (
	"sort"
)

type PartID int

const (
	WorldID      PartID = 0
	SystemPartID PartID = -1

	SystemPartType = "System"
)

const (
	TypeWorld      = "world"
	TypeStack      = "stack"
	TypeCard       = "card"
	TypeBackground = "background"
	TypeButton     = "button"
	TypeField      = "field"
	// TypeAny matches every part type in a specifier ("part 3 of this card").
	TypeAny = "part"
)

// containment lists which subpart types each part type accepts.
var containment = map[string][]string{
	TypeWorld:      {TypeStack},
	TypeStack:      {TypeCard, TypeBackground},
	TypeCard:       {TypeButton, TypeField},
	TypeBackground: {TypeButton, TypeField},
}

// Read-only properties computed from the hierarchy.
var computedProperties = map[string]bool{"id": true, "type": true, "number": true}

func isPartType(s string) bool {
	switch s {
	case TypeWorld, TypeStack, TypeCard, TypeBackground, TypeButton, TypeField:
		return true
	}
	return false
}

type Part struct {
	id         PartID
	partType   string
	owner      *Part
	subparts   []*Part
	handlers   map[string]*Handler
	natives    map[string]*Handler
	properties map[string]Value
	script     string
}

// systemSentinel terminates every owner branch and stands for the builtin handler table.
var systemSentinel = &Part{id: SystemPartID, partType: SystemPartType}

func newPart(id PartID, partType string) *Part {
	p := &Part{
		id:         id,
		partType:   partType,
		handlers:   make(map[string]*Handler),
		natives:    make(map[string]*Handler),
		properties: map[string]Value{"name": ""},
	}
	if partType != TypeWorld {
		for name, fn := range privateHandlers {
			p.natives[name] = &Handler{Name: name, Native: fn, Private: true}
		}
	}
	return p
}

func (p *Part) ID() PartID     { return p.id }
func (p *Part) Type() string   { return p.partType }
func (p *Part) Owner() *Part   { return p.owner }
func (p *Part) Script() string { return p.script }

// IsSentinel reports whether p is the system sentinel at the end of an owner branch.
func (p *Part) IsSentinel() bool { return p == systemSentinel }

func (p *Part) Name() string {
	return FormatValue(p.properties["name"])
}

// Subparts returns a snapshot of the ordered children.
func (p *Part) Subparts() []*Part {
	out := make([]*Part, len(p.subparts))
	copy(out, p.subparts)
	return out
}

func (p *Part) Accepts(partType string) bool {
	for _, t := range containment[p.partType] {
		if t == partType {
			return true
		}
	}
	return false
}

// Number is the 1-based position of p among its owner's subparts of the same type.
func (p *Part) Number() int {
	if p.owner == nil {
		return 1
	}
	n := 0
	for _, sib := range p.owner.subparts {
		if sib.partType == p.partType {
			n++
		}
		if sib == p {
			return n
		}
	}
	return 0
}

func (p *Part) Property(name string) (Value, bool) {
	switch name {
	case "id":
		return float64(p.id), true
	case "type":
		return p.partType, true
	case "number":
		return float64(p.Number()), true
	}
	v, ok := p.properties[name]
	return v, ok
}

func (p *Part) SetProperty(name string, value Value) error {
	if computedProperties[name] {
		return newError(RuntimeFailure, "property %q of %s is read-only", name, p.partType)
	}
	p.properties[name] = value
	return nil
}

// PropertyNames returns the stored property names in sorted order.
func (p *Part) PropertyNames() []string {
	names := make([]string, 0, len(p.properties))
	for k := range p.properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OwnHandler returns the handler p itself defines for name. Script handlers shadow the
// part's native handlers of the same name.
func (p *Part) OwnHandler(name string) (*Handler, bool) {
	if h, ok := p.handlers[name]; ok {
		return h, true
	}
	h, ok := p.natives[name]
	return h, ok
}

// HandlerNames lists the script and native handler names defined on p.
func (p *Part) HandlerNames() []string {
	seen := make(map[string]bool)
	var names []string
	for n := range p.handlers {
		seen[n] = true
		names = append(names, n)
	}
	for n := range p.natives {
		if !seen[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// OwnerBranch returns p followed by its owners up to the world, terminated by the system
// sentinel. A cycle in the owner chain is an engine invariant violation.
func (p *Part) OwnerBranch() ([]*Part, error) {
	branch := []*Part{}
	seen := make(map[*Part]bool)
	for cur := p; cur != nil; cur = cur.owner {
		if seen[cur] {
			return nil, invariant("cyclic owner chain at %s id %d", cur.partType, cur.id)
		}
		seen[cur] = true
		branch = append(branch, cur)
	}
	return append(branch, systemSentinel), nil
}

// nearest returns the closest part of partType on p's owner branch, p included.
func (p *Part) nearest(partType string) *Part {
	for cur := p; cur != nil; cur = cur.owner {
		if cur.partType == partType {
			return cur
		}
	}
	return nil
}

func (p *Part) indexOf(child *Part) int {
	for i, c := range p.subparts {
		if c == child {
			return i
		}
	}
	return -1
}

// moveTo repositions p among its owner's subparts, clamping to the valid range.
func (p *Part) moveTo(index int) {
	owner := p.owner
	if owner == nil {
		return
	}
	cur := owner.indexOf(p)
	if index < 0 {
		index = 0
	}
	if index > len(owner.subparts)-1 {
		index = len(owner.subparts) - 1
	}
	if cur == index || cur < 0 {
		return
	}
	rest := append(owner.subparts[:cur:cur], owner.subparts[cur+1:]...)
	reordered := make([]*Part, 0, len(owner.subparts))
	reordered = append(reordered, rest[:index]...)
	reordered = append(reordered, p)
	reordered = append(reordered, rest[index:]...)
	owner.subparts = reordered
}
