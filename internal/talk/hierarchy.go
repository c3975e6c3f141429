package talk

// Hierarchy owns the part tree rooted at the world, the id index, and the current
// stack/card selection. Each Hierarchy is independent so tests can build isolated worlds.
type Hierarchy struct {
	world        *Part
	parts        map[PartID]*Part
	nextID       PartID
	currentStack PartID
	currentCards map[PartID]PartID
}

func NewHierarchy() *Hierarchy {
	world := newPart(WorldID, TypeWorld)
	world.properties["name"] = "world"
	return &Hierarchy{
		world:        world,
		parts:        map[PartID]*Part{WorldID: world},
		nextID:       WorldID + 1,
		currentStack: SystemPartID,
		currentCards: make(map[PartID]PartID),
	}
}

func (h *Hierarchy) World() *Part { return h.world }

func (h *Hierarchy) Part(id PartID) (*Part, bool) {
	p, ok := h.parts[id]
	return p, ok
}

// NewPart creates a part of partType as the last subpart of owner.
func (h *Hierarchy) NewPart(partType string, owner *Part) (*Part, error) {
	return h.AdoptPart(h.nextID, partType, owner)
}

// AdoptPart creates a part with a caller-chosen id. Used when restoring snapshots.
func (h *Hierarchy) AdoptPart(id PartID, partType string, owner *Part) (*Part, error) {
	if !isPartType(partType) || partType == TypeWorld {
		return nil, newError(RuntimeFailure, "cannot create a part of type %q", partType)
	}
	if owner == nil {
		return nil, invariant("new %s has no owner", partType)
	}
	if known, ok := h.parts[owner.id]; !ok || known != owner {
		return nil, notFound("owner %s id %d is not in this hierarchy", owner.partType, owner.id)
	}
	if !owner.Accepts(partType) {
		return nil, newError(RuntimeFailure, "a %s cannot contain a %s", owner.partType, partType)
	}
	if _, taken := h.parts[id]; taken || id < 0 {
		return nil, invariant("part id %d is already in use", id)
	}
	p := newPart(id, partType)
	p.owner = owner
	owner.subparts = append(owner.subparts, p)
	h.parts[id] = p
	if id >= h.nextID {
		h.nextID = id + 1
	}
	return p, nil
}

// RemovePart detaches p and its whole subtree. The world cannot be removed.
func (h *Hierarchy) RemovePart(p *Part) error {
	if p == h.world {
		return newError(RuntimeFailure, "the world cannot be deleted")
	}
	if known, ok := h.parts[p.id]; !ok || known != p {
		return notFound("%s id %d is not in this hierarchy", p.partType, p.id)
	}
	owner := p.owner
	if i := owner.indexOf(p); i >= 0 {
		owner.subparts = append(owner.subparts[:i:i], owner.subparts[i+1:]...)
	}
	h.unindex(p)
	p.owner = nil

	switch p.partType {
	case TypeStack:
		delete(h.currentCards, p.id)
		if h.currentStack == p.id {
			h.currentStack = SystemPartID
		}
	case TypeCard:
		if h.currentCards[owner.id] == p.id {
			delete(h.currentCards, owner.id)
		}
	}
	return nil
}

func (h *Hierarchy) unindex(p *Part) {
	for _, c := range p.subparts {
		h.unindex(c)
	}
	delete(h.parts, p.id)
}

// CurrentStack returns the selected stack, falling back to the first stack.
func (h *Hierarchy) CurrentStack() *Part {
	if p, ok := h.parts[h.currentStack]; ok {
		return p
	}
	return firstOfType(h.world, TypeStack)
}

// CurrentCard returns the selected card of the current stack, falling back to its first card.
func (h *Hierarchy) CurrentCard() *Part {
	stack := h.CurrentStack()
	if stack == nil {
		return nil
	}
	return h.currentCardOf(stack)
}

// SelectedCard returns the card that is current within stack.
func (h *Hierarchy) SelectedCard(stack *Part) *Part { return h.currentCardOf(stack) }

func (h *Hierarchy) currentCardOf(stack *Part) *Part {
	if id, ok := h.currentCards[stack.id]; ok {
		if p, ok := h.parts[id]; ok && p.owner == stack {
			return p
		}
	}
	return firstOfType(stack, TypeCard)
}

// SetCurrent selects a stack, or a card together with its stack.
func (h *Hierarchy) SetCurrent(p *Part) error {
	switch p.partType {
	case TypeStack:
		h.currentStack = p.id
	case TypeCard:
		h.currentCards[p.owner.id] = p.id
		h.currentStack = p.owner.id
	default:
		return newError(RuntimeFailure, "cannot go to a %s", p.partType)
	}
	return nil
}

// Anchors captures the context a specifier is resolved against.
func (h *Hierarchy) Anchors(this *Part) Anchors {
	return Anchors{
		This:         this,
		CurrentStack: h.CurrentStack(),
		CurrentCard:  h.CurrentCard(),
		Lookup:       h.Part,
	}
}

func firstOfType(p *Part, partType string) *Part {
	for _, c := range p.subparts {
		if c.partType == partType {
			return c
		}
	}
	return nil
}

func ofType(parts []*Part, partType string) []*Part {
	var out []*Part
	for _, c := range parts {
		if partType == TypeAny || c.partType == partType {
			out = append(out, c)
		}
	}
	return out
}
