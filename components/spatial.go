package components

// Position represents an entity's position on the arena floor.
type Position struct {
	X, Y float64
}

// Velocity represents an entity's velocity.
type Velocity struct {
	X, Y float64
}

// Rotation represents an entity's heading (yaw).
type Rotation struct {
	Heading float64 // radians
}
