package index

import "errors"

var (
	// ErrNotBuilt means no persisted artifacts exist and nothing was built
	// in memory. Distinct from a built-but-empty index, which serves empty
	// query results.
	ErrNotBuilt = errors.New("index not built")

	// ErrIntegrity means the persisted structure and metadata disagree
	// (count mismatch or corrupt artifact). Never repaired silently; the
	// index stays uninitialized.
	ErrIntegrity = errors.New("index integrity violation")

	// ErrConfigMismatch means the embedder configuration (model, dimension)
	// or metric differs between build time and now. Requires a rebuild.
	ErrConfigMismatch = errors.New("index configuration mismatch")
)
