package commands

// Globals are bound into every command's Run.
type Globals struct {
	Version string
}
