package models

// VariablesKey is the reserved payload key holding resolved node variables.
const VariablesKey = "variables"

// Message is the envelope carried between nodes during a flow run.
// It is never persisted.
type Message struct {
	Payload  map[string]any `json:"payload"`
	Metadata map[string]any `json:"metadata"`
}

func NewMessage(payload, metadata map[string]any) *Message {
	if payload == nil {
		payload = map[string]any{}
	}

	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Message{Payload: payload, Metadata: metadata}
}

// Clone returns a shallow copy of the message; nested values are shared.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	payload := make(map[string]any, len(m.Payload))
	for k, v := range m.Payload {
		payload[k] = v
	}

	metadata := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		metadata[k] = v
	}

	return &Message{Payload: payload, Metadata: metadata}
}

// WithError returns a new message keeping the prior payload and metadata
// with key set to errMessage in the payload.
func (m *Message) WithError(key, errMessage string) *Message {
	out := m.Clone()
	if out == nil {
		out = NewMessage(nil, nil)
	}

	out.Payload[key] = errMessage

	return out
}

// Variables returns the variables map stored under the reserved payload key,
// or nil when none has been set.
func (m *Message) Variables() map[string]any {
	if m == nil || m.Payload == nil {
		return nil
	}

	vars, _ := m.Payload[VariablesKey].(map[string]any)

	return vars
}

// SetVariable stores value under payload.variables[key], creating the
// containers on demand.
func (m *Message) SetVariable(key string, value any) {
	if m.Payload == nil {
		m.Payload = map[string]any{}
	}

	vars, ok := m.Payload[VariablesKey].(map[string]any)
	if !ok {
		vars = map[string]any{}
		m.Payload[VariablesKey] = vars
	}

	vars[key] = value
}
