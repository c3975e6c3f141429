package talk

import "sort"

// HandlerDescriptor is the registry view of how a part would handle a message.
type HandlerDescriptor struct {
	PartID   PartID `json:"partId"`
	PartType string `json:"partType"`
	Override bool   `json:"override"`
	Private  bool   `json:"private"`
}

type candidate struct {
	handler *Handler
	definer *Part
}

// candidates lists every handler for name visible from p, most specific first: p's own
// handlers, each ancestor's non-private handlers, then the system builtin.
func (s *System) candidates(p *Part, name string) ([]candidate, error) {
	branch, err := p.OwnerBranch()
	if err != nil {
		return nil, err
	}
	var found []candidate
	for i, level := range branch {
		if level.IsSentinel() {
			if h, ok := s.builtins[name]; ok {
				found = append(found, candidate{h, level})
			}
			continue
		}
		if h, ok := level.handlers[name]; ok && (i == 0 || !h.Private) {
			found = append(found, candidate{h, level})
		}
		if h, ok := level.natives[name]; ok && (i == 0 || !h.Private) {
			found = append(found, candidate{h, level})
		}
	}
	return found, nil
}

func (s *System) lookup(p *Part, name string) (*Handler, *Part, error) {
	found, err := s.candidates(p, name)
	if err != nil {
		return nil, nil, err
	}
	if len(found) == 0 {
		return nil, nil, &Error{
			Kind:    ResolutionNotFound,
			Message: "no handler for " + name + " on " + FormatValue(p),
			Help:    "define it with on " + name + " ... end " + name + " in a script on this part or one of its owners",
		}
	}
	return found[0].handler, found[0].definer, nil
}

// Resolve returns the registry view for name on the part with the given id. The first
// match determines the part; Override is set when any less specific match exists.
func (s *System) Resolve(id PartID, name string) (HandlerDescriptor, error) {
	p, ok := s.hierarchy.Part(id)
	if !ok {
		return HandlerDescriptor{}, notFound("no part with id %d", id)
	}
	return s.describe(p, name)
}

func (s *System) describe(p *Part, name string) (HandlerDescriptor, error) {
	found, err := s.candidates(p, name)
	if err != nil {
		return HandlerDescriptor{}, err
	}
	if len(found) == 0 {
		return HandlerDescriptor{}, notFound("no handler for %s on %s", name, FormatValue(p))
	}
	first := found[0]
	return HandlerDescriptor{
		PartID:   first.definer.id,
		PartType: first.definer.partType,
		Override: len(found) > 1,
		Private:  first.handler.Private,
	}, nil
}

// Registry returns the full registry view for a part: every message name it can handle.
func (s *System) Registry(id PartID) (map[string]HandlerDescriptor, error) {
	p, ok := s.hierarchy.Part(id)
	if !ok {
		return nil, notFound("no part with id %d", id)
	}
	branch, err := p.OwnerBranch()
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool)
	for _, level := range branch {
		if level.IsSentinel() {
			for n := range s.builtins {
				names[n] = true
			}
			continue
		}
		for _, n := range level.HandlerNames() {
			names[n] = true
		}
	}

	view := make(map[string]HandlerDescriptor, len(names))
	for n := range names {
		d, err := s.describe(p, n)
		if err != nil {
			// Only ancestor-private names drop out here.
			continue
		}
		view[n] = d
	}
	return view, nil
}

// BuiltinNames lists the system handler names in sorted order.
func (s *System) BuiltinNames() []string {
	names := make([]string, 0, len(s.builtins))
	for n := range s.builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
