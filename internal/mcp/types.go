// Package mcp exposes retrieval as Model Context Protocol tools so agent
// clients can search the corpus and summarize answers over stdio.
package mcp

// SearchInput defines the input parameters for the search tool.
type SearchInput struct {
	// Query is the question to search the corpus with.
	Query string `json:"query" jsonschema:"required,description=The question to search the indexed corpus with"`
	// TopK is how many passages to retrieve.
	TopK int `json:"top_k,omitempty" jsonschema:"minimum=1,maximum=20,description=Number of passages to retrieve"`
}

// SearchOutput contains the generated answer with its supporting passages.
type SearchOutput struct {
	Query    string    `json:"query"`
	Summary  string    `json:"summary"`
	Passages []Passage `json:"passages"`
}

// Passage is one retrieved chunk with provenance.
type Passage struct {
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
	Page    int     `json:"page,omitempty"`
	Section string  `json:"section,omitempty"`
}

// StatusInput defines the input for the index_status tool. It takes no
// parameters.
type StatusInput struct{}

// StatusOutput reports index readiness and size.
type StatusOutput struct {
	Ready  bool `json:"ready"`
	Chunks int  `json:"chunks"`
	TopK   int  `json:"default_top_k"`
}
