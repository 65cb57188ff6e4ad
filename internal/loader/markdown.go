package loader

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/bull/rag-search/internal/domain"
)

// Markdown loads .md files, splitting at H1/H2 headings so each section
// becomes its own document with the heading path recorded as provenance.
// Files without headings load as a single document.
type Markdown struct {
	parser goldmark.Markdown
}

// NewMarkdown creates the loader with its goldmark parser.
func NewMarkdown() *Markdown {
	return &Markdown{
		parser: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

func (*Markdown) Extensions() []string { return []string{".md", ".markdown"} }

func (m *Markdown) Load(path string) ([]domain.Document, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return m.LoadBytes(source, path)
}

// LoadBytes splits in-memory markdown, recording origin as the source of
// every emitted document. Used for corpora that do not live on disk.
func (m *Markdown) LoadBytes(source []byte, origin string) ([]domain.Document, error) {
	root := m.parser.Parser().Parse(text.NewReader(source))
	tree, err := toc.Inspect(root, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, err
	}

	if len(tree.Items) == 0 {
		return []domain.Document{{
			ID:     uuid.New().String(),
			Source: origin,
			Text:   string(source),
		}}, nil
	}

	sections := flatten(tree.Items, nil)

	var docs []domain.Document
	for i, sec := range sections {
		heading := headingByID(root, sec.id)
		if heading == nil {
			continue
		}

		start := heading.Lines().At(0)
		var end text.Segment
		if i+1 < len(sections) {
			if next := headingByID(root, sections[i+1].id); next != nil {
				end = next.Lines().At(0)
			}
		}

		body := sectionText(source, start, end)
		if body == "" {
			continue
		}
		docs = append(docs, domain.Document{
			ID:      uuid.New().String(),
			Source:  origin,
			Section: strings.Join(sec.titles, " > "),
			Text:    body,
		})
	}
	return docs, nil
}

type section struct {
	id     string
	titles []string
}

// flatten linearizes the table of contents into document order, carrying
// the heading path down into each nested section.
func flatten(items toc.Items, ancestors []string) []section {
	var out []section
	for _, item := range items {
		titles := make([]string, 0, len(ancestors)+1)
		titles = append(titles, ancestors...)
		titles = append(titles, string(item.Title))
		out = append(out, section{id: string(item.ID), titles: titles})
		out = append(out, flatten(item.Items, titles)...)
	}
	return out
}

// headingByID finds a heading node by its auto-generated ID.
func headingByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			if attr, ok := n.AttributeString("id"); ok && string(attr.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

func sectionText(source []byte, start, end text.Segment) string {
	if end.Start == 0 && end.Stop == 0 {
		return strings.TrimSpace(string(source[start.Start:]))
	}
	return strings.TrimSpace(string(source[start.Start:end.Start]))
}
