package loader

import (
	"os"

	"github.com/google/uuid"

	"github.com/bull/rag-search/internal/domain"
)

// Plaintext loads .txt files as a single document each.
type Plaintext struct{}

func (Plaintext) Extensions() []string { return []string{".txt", ".text"} }

func (Plaintext) Load(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Document{{
		ID:     uuid.New().String(),
		Source: path,
		Text:   string(data),
	}}, nil
}
