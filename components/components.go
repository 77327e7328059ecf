// Package components defines ECS components for the foraging simulation.
package components

// Role distinguishes the two kinds of resource node.
type Role uint8

const (
	RoleSource Role = iota
	RoleStorage
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleStorage:
		return "storage"
	default:
		return "unknown"
	}
}
