// Package components defines ECS components for arena agents.
package components

// Role distinguishes the tracked prey from the predators confining it.
type Role uint8

const (
	RolePredator Role = iota
	RolePrey
)

// String returns the display name for a Role.
func (r Role) String() string {
	switch r {
	case RolePredator:
		return "predator"
	case RolePrey:
		return "prey"
	default:
		return "unknown"
	}
}

// Agent is the identity an engine reports for each entity.
// Role is an explicit field; identifiers are never parsed for it.
type Agent struct {
	ID   string
	Role Role
}

// IsPrey reports whether the agent is the tracked prey.
func (a Agent) IsPrey() bool {
	return a.Role == RolePrey
}
