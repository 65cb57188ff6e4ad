package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/bull/rag-search/internal/domain"
)

// CSV loads .csv files, one document per data row rendered as
// "column: value" lines. The first row is treated as the header.
type CSV struct{}

func (CSV) Extensions() []string { return []string{".csv"} }

func (CSV) Load(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var docs []domain.Document
	for row := 1; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		var b strings.Builder
		for i, value := range record {
			name := fmt.Sprintf("column%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			fmt.Fprintf(&b, "%s: %s\n", name, value)
		}
		docs = append(docs, domain.Document{
			ID:     uuid.New().String(),
			Source: path,
			Page:   row,
			Text:   strings.TrimSpace(b.String()),
		})
	}
	return docs, nil
}
