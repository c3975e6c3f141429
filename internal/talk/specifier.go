package talk

// Anchors is the explicit context a specifier resolves against: the executing part and the
// current stack and card at the moment of resolution.
type Anchors struct {
	This         *Part
	CurrentStack *Part
	CurrentCard  *Part
	Lookup       func(PartID) (*Part, bool)
}

// ResolveReference resolves ref outer-to-inner: the outermost anchor first, then each
// qualifier narrows among the subparts of the part resolved before it.
func ResolveReference(ref *PartReference, a Anchors) (*Part, error) {
	if ref == nil {
		return nil, invariant("nil part reference")
	}
	switch ref.Context {
	case ContextThis:
		return resolveThis(ref, a)
	case ContextCurrent:
		return resolveCurrent(ref, a)
	case ContextSpecified:
		return resolveSpecified(ref, a)
	}
	return nil, invariant("unknown reference context %q", ref.Context)
}

func resolveThis(ref *PartReference, a Anchors) (*Part, error) {
	if a.This == nil {
		return nil, notFound("there is no %q here", ref.String())
	}
	if ref.ObjectType == "" || ref.ObjectType == TypeAny {
		return a.This, nil
	}
	if p := a.This.nearest(ref.ObjectType); p != nil {
		return p, nil
	}
	return nil, notFound("no %s contains %s id %d", ref.ObjectType, a.This.partType, a.This.id)
}

func resolveCurrent(ref *PartReference, a Anchors) (*Part, error) {
	var p *Part
	switch ref.ObjectType {
	case TypeCard:
		p = a.CurrentCard
	case TypeStack:
		p = a.CurrentStack
	default:
		return nil, notFound("there is no current %s", ref.ObjectType)
	}
	if p == nil {
		return nil, notFound("there is no current %s", ref.ObjectType)
	}
	return p, nil
}

func resolveSpecified(ref *PartReference, a Anchors) (*Part, error) {
	if ref.ObjectID != nil {
		if a.Lookup == nil {
			return nil, invariant("no part index available for %s", ref.String())
		}
		p, ok := a.Lookup(*ref.ObjectID)
		if !ok || (ref.ObjectType != TypeAny && p.partType != ref.ObjectType) {
			return nil, notFound("no such %s", ref.String())
		}
		return p, nil
	}

	var container *Part
	var err error
	if ref.In != nil {
		container, err = ResolveReference(ref.In, a)
		if err != nil {
			return nil, err
		}
	} else {
		container, err = defaultContainer(ref.ObjectType, a)
		if err != nil {
			return nil, err
		}
	}

	candidates := ofType(container.Subparts(), ref.ObjectType)
	switch {
	case ref.Index == LastIndex:
		if len(candidates) == 0 {
			return nil, notFound("no such %s: %s id %d has no %ss", ref.String(), container.partType, container.id, ref.ObjectType)
		}
		return candidates[len(candidates)-1], nil
	case ref.Index != 0:
		if ref.Index < 1 || ref.Index > len(candidates) {
			return nil, notFound("no such %s: index %d out of range (%d available)", ref.String(), ref.Index, len(candidates))
		}
		return candidates[ref.Index-1], nil
	case ref.Name != "":
		for _, c := range candidates {
			if c.Name() == ref.Name {
				return c, nil
			}
		}
		return nil, notFound("no such %s", ref.String())
	}
	// "button 0" compiles to an empty qualifier, which selects nothing.
	return nil, notFound("no such %s: index out of range", ref.String())
}

// defaultContainer anchors an unqualified chain: buttons and fields live on the card owning
// the executing part, cards on its stack, stacks on the world.
func defaultContainer(partType string, a Anchors) (*Part, error) {
	var p *Part
	switch partType {
	case TypeStack:
		if a.Lookup != nil {
			p, _ = a.Lookup(WorldID)
		}
	case TypeCard, TypeBackground:
		if a.This != nil {
			p = a.This.nearest(TypeStack)
		}
		if p == nil {
			p = a.CurrentStack
		}
	default:
		if a.This != nil {
			p = a.This.nearest(TypeCard)
		}
		if p == nil {
			p = a.CurrentCard
		}
	}
	if p == nil {
		return nil, notFound("nothing to look for a %s in", partType)
	}
	return p, nil
}
