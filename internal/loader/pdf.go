package loader

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/bull/rag-search/internal/domain"
)

// PDF loads .pdf files, one document per page so page numbers survive as
// provenance. Pages with no extractable text are skipped.
type PDF struct{}

func (PDF) Extensions() []string { return []string{".pdf"} }

func (PDF) Load(path string) ([]domain.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var docs []domain.Document
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		docs = append(docs, domain.Document{
			ID:     uuid.New().String(),
			Source: path,
			Page:   pageNum,
			Text:   content,
		})
	}
	return docs, nil
}
