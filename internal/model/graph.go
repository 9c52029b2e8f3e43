package model

// Node is a property-graph node keyed by a stable identifier. Merging the
// same key twice must not create duplicates.
type Node struct {
	Key   string                 `json:"key"`
	Label string                 `json:"label"`
	Props map[string]interface{} `json:"props,omitempty"`
}

// Rel is a directed, typed relationship between two node keys.
type Rel struct {
	FromKey string                 `json:"from_key"`
	ToKey   string                 `json:"to_key"`
	Type    string                 `json:"type"`
	Props   map[string]interface{} `json:"props,omitempty"`
}
