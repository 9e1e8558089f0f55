package types

// Event represents a typed event emitted during state transitions. Attributes
// are flat string pairs so off-chain indexers can consume them without
// additional decoding.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
