package model

// TraversalConfig represents configuration for a related-bookmarks query
type TraversalConfig struct {
	// Depth of the traversal, clamped into [1,3]
	Depth int `json:"depth"`
	// Limit caps the final result set
	Limit int `json:"limit"`
	// TopSharedNodes caps how many of the source bookmark's
	// about/mentions edges seed the second hop
	TopSharedNodes int `json:"top_shared_nodes"`
	// PerNodeLimit caps contributions per shared concept/entity
	PerNodeLimit int `json:"per_node_limit"`
}

// DefaultTraversalConfig returns a sensible default configuration
func DefaultTraversalConfig() TraversalConfig {
	return TraversalConfig{
		Depth:          1,
		Limit:          20,
		TopSharedNodes: 10,
		PerNodeLimit:   5,
	}
}

// MinTraversalDepth and MaxTraversalDepth bound the accepted depth range
const (
	MinTraversalDepth = 1
	MaxTraversalDepth = 3
)

// Clamped returns a copy of the config with Depth forced into
// [MinTraversalDepth, MaxTraversalDepth] and zero/negative limits
// replaced by defaults
func (c TraversalConfig) Clamped() TraversalConfig {
	def := DefaultTraversalConfig()
	if c.Depth < MinTraversalDepth {
		c.Depth = MinTraversalDepth
	}
	if c.Depth > MaxTraversalDepth {
		c.Depth = MaxTraversalDepth
	}
	if c.Limit <= 0 {
		c.Limit = def.Limit
	}
	if c.TopSharedNodes <= 0 {
		c.TopSharedNodes = def.TopSharedNodes
	}
	if c.PerNodeLimit <= 0 {
		c.PerNodeLimit = def.PerNodeLimit
	}
	return c
}
