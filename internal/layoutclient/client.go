// Package layoutclient implements the document-layout analysis capability
// (spec.md §4.2, component C3) the PDF processor uses to split a manual
// into pages, tables, and figures before chunking. Like internal/embedclient
// it is a resilience-wrapped facade over internal/azureclients.FoundryClient.
package layoutclient

import (
	"context"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/azureclients"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/resilience"
)

// Page is one page of extracted text.
type Page struct {
	PageNumber int
	Text       string
}

// Table is one extracted table, rows-of-cells, page-tagged for citation.
type Table struct {
	PageNumber int
	Rows       [][]string
}

// Figure is one extracted figure, with its raster data for captioning by a
// vision-capable chat model.
type Figure struct {
	PageNumber int
	Caption    string
	ImageData  []byte
}

// Layout is the structural decomposition of one PDF.
type Layout struct {
	Pages   []Page
	Tables  []Table
	Figures []Figure
}

// Client is the layout-analysis capability the PDF processor depends on.
type Client interface {
	Analyze(ctx context.Context, pdf []byte) (*Layout, error)
}

type provider interface {
	AnalyzeLayout(ctx context.Context, pdf []byte) (*azureclients.LayoutResponse, error)
}

type client struct {
	foundry  provider
	policies *resilience.Registry
}

// New constructs a Client protected by the "docintel.analyze" policy.
func New(foundry provider, policies *resilience.Registry) Client {
	return &client{foundry: foundry, policies: policies}
}

func (c *client) Analyze(ctx context.Context, pdf []byte) (*Layout, error) {
	result, err := c.policies.Execute(ctx, "docintel.analyze", func(ctx context.Context) (any, error) {
		return c.foundry.AnalyzeLayout(ctx, pdf)
	})
	if err != nil {
		return nil, err
	}

	raw := result.(*azureclients.LayoutResponse)
	out := &Layout{
		Pages:   make([]Page, 0, len(raw.Pages)),
		Tables:  make([]Table, 0, len(raw.Tables)),
		Figures: make([]Figure, 0, len(raw.Figures)),
	}
	for _, p := range raw.Pages {
		out.Pages = append(out.Pages, Page{PageNumber: p.PageNumber, Text: p.Text})
	}
	for _, tbl := range raw.Tables {
		out.Tables = append(out.Tables, Table{PageNumber: tbl.PageNumber, Rows: tbl.Rows})
	}
	for _, f := range raw.Figures {
		out.Figures = append(out.Figures, Figure{PageNumber: f.PageNumber, Caption: f.Caption, ImageData: f.ImageData})
	}
	return out, nil
}
