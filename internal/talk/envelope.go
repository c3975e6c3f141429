package talk

import (
	"encoding/json"
)

// Envelope is the JSON form of a message exchanged with views, compilers and plugins.
type Envelope struct {
	Type         string            `json:"type"`
	CommandName  string            `json:"commandName,omitempty"`
	CodeString   string            `json:"codeString,omitempty"`
	TargetID     PartID            `json:"targetId"`
	Args         []json.RawMessage `json:"args,omitempty"`
	ShouldIgnore bool              `json:"shouldIgnore,omitempty"`
}

// DecodeEnvelope turns a JSON envelope into a Message. Arguments tagged as descriptor
// nodes stay unresolved until dispatch.
func DecodeEnvelope(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, newError(RuntimeFailure, "invalid message envelope: %v", err)
	}
	msg := Message{
		Kind:         MessageKind(env.Type),
		Name:         env.CommandName,
		Target:       env.TargetID,
		CodeString:   env.CodeString,
		ShouldIgnore: env.ShouldIgnore,
	}
	switch msg.Kind {
	case KindCommand:
		if msg.Name == "" {
			return Message{}, newError(RuntimeFailure, "command envelope has no commandName")
		}
	case KindCompile:
	default:
		return Message{}, newError(RuntimeFailure, "unknown envelope type %q", env.Type)
	}
	for _, raw := range env.Args {
		v, err := DecodeValue(raw)
		if err != nil {
			return Message{}, err
		}
		msg.Args = append(msg.Args, v)
	}
	return msg, nil
}

// EncodeEnvelope is the inverse of DecodeEnvelope. Parts in the arguments are sent as
// their id reference.
func EncodeEnvelope(msg Message) ([]byte, error) {
	env := Envelope{
		Type:         string(msg.Kind),
		CommandName:  msg.Name,
		CodeString:   msg.CodeString,
		TargetID:     msg.Target,
		ShouldIgnore: msg.ShouldIgnore,
	}
	for _, a := range msg.Args {
		if p, ok := a.(*Part); ok {
			id := p.id
			a = &PartReference{ObjectType: p.partType, ObjectID: &id, Context: ContextSpecified}
		}
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		env.Args = append(env.Args, raw)
	}
	return json.Marshal(env)
}
