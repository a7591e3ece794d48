// Package ui builds the dashboard page from reusable widgets and renders it
// through echo.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"salesdash/internal/dashboard"
	"salesdash/internal/engine"
)

//go:embed templates/*.html
var templates embed.FS

// PageTemplate is the name of the dashboard page template.
const PageTemplate = "index.html"

// Dropdown is a multi-select filter control bound to one dimension.
type Dropdown struct {
	ID          string
	Param       string
	Placeholder string
	Options     []string
}

// Card is one chart panel with its filter controls.
type Card struct {
	Title     string
	ChartID   string
	Dropdowns []Dropdown
}

type Row struct {
	Cards []Card
}

type Page struct {
	Title string
	Rows  []Row
}

// NewDropdown fills a dropdown with the sorted distinct non-null values of dim
// over the whole table.
func NewDropdown(store *engine.ColumnStore, chartID string, dim engine.Dimension) (Dropdown, error) {
	values, err := store.DistinctValues(dim)
	if err != nil {
		return Dropdown{}, err
	}
	return Dropdown{
		ID:          fmt.Sprintf("filter-%s-%s", chartID, dim),
		Param:       string(dim),
		Placeholder: dim.Label(),
		Options:     values,
	}, nil
}

// NewCard builds the panel of one chart spec.
func NewCard(store *engine.ColumnStore, spec dashboard.Spec) (Card, error) {
	card := Card{Title: spec.Title, ChartID: spec.ID}
	for _, dim := range spec.Filters {
		dd, err := NewDropdown(store, spec.ID, dim)
		if err != nil {
			return Card{}, err
		}
		card.Dropdowns = append(card.Dropdowns, dd)
	}
	return card, nil
}

// BuildPage lays the dashboard charts out two per row.
func BuildPage(title string, d *dashboard.Dashboard) (*Page, error) {
	page := &Page{Title: title}
	var row Row
	for _, spec := range d.Specs() {
		card, err := NewCard(d.Store(), spec)
		if err != nil {
			return nil, err
		}
		row.Cards = append(row.Cards, card)
		if len(row.Cards) == 2 {
			page.Rows = append(page.Rows, row)
			row = Row{}
		}
	}
	if len(row.Cards) > 0 {
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}
