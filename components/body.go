package components

// Body holds physical properties of an entity.
type Body struct {
	Radius float64
	Placed bool // false until the entity has an accepted pose
}
