package types

// Event is a typed notification emitted after a committed state transition.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// NewEvent returns an event of the given type with an empty attribute set.
func NewEvent(eventType string) *Event {
	return &Event{Type: eventType, Attributes: make(map[string]string)}
}

// With sets an attribute and returns the event for chaining. Empty values are
// skipped.
func (e *Event) With(key, value string) *Event {
	if e == nil || value == "" {
		return e
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}
