package models

// Agent represents a resolved requester identity. Authentication and
// token handling happen upstream; by the time an Agent reaches the
// coordinator its identity and capability set are already established.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the human-readable label for the agent.
	Name string `json:"name,omitempty"`
	// Capabilities lists the capability tags this agent holds.
	// Tags are opaque strings; no vocabulary is enforced.
	Capabilities []string `json:"capabilities,omitempty"`
}
