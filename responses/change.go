package responses

// Change - outcome of a state transition
type Change struct {
	// a write was scheduled for this transition
	Scheduled bool `json:"scheduled"`
	// a write is waiting for its debounce window
	Pending bool `json:"pending"`
}

// Flush - outcome of committing a pending write
type Flush struct {
	Success bool `json:"success"`
}
