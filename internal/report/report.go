// Package report builds the coverage and audit projections the
// maintenance surface exposes: how much of the catalog each spec field
// covers, and which source won each board's fields.
package report

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/powderline/quiver/pkg/catalog"
)

// Store is the slice of catalog storage reporting reads from.
type Store interface {
	Boards(ctx context.Context) ([]*catalog.Board, error)
	Claims(ctx context.Context, key catalog.BoardKey) ([]catalog.SpecClaim, error)
}

// FieldCoverage is one spec field's resolution rate across the catalog.
type FieldCoverage struct {
	Field    catalog.SpecField `json:"field" yaml:"field"`
	Resolved int               `json:"resolved" yaml:"resolved"`
	Total    int               `json:"total" yaml:"total"`
	Percent  float64           `json:"percent" yaml:"percent"`
}

// SourceRef names the claim a board field was resolved from.
type SourceRef struct {
	SourceID string       `json:"source_id" yaml:"source_id"`
	Tier     catalog.Tier `json:"tier" yaml:"tier"`
	Value    string       `json:"value" yaml:"value"`
}

// BoardCoverage is one board's per-field source matrix. Unresolved fields
// are absent from Specs; Claims counts every retained claim, winners and
// losers.
type BoardCoverage struct {
	BoardKey catalog.BoardKey                `json:"board_key" yaml:"board_key"`
	Brand    string                          `json:"brand" yaml:"brand"`
	Model    string                          `json:"model" yaml:"model"`
	Specs    map[catalog.SpecField]SourceRef `json:"specs,omitempty" yaml:"specs,omitempty"`
	Claims   int                             `json:"claims" yaml:"claims"`
}

// Report is one coverage snapshot of the whole catalog.
type Report struct {
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	Boards      int             `json:"boards" yaml:"boards"`
	Fields      []FieldCoverage `json:"fields" yaml:"fields"`
	Matrix      []BoardCoverage `json:"matrix" yaml:"matrix"`
}

// Builder builds reports over a store.
type Builder struct {
	store Store
	now   func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock replaces the builder clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder creates a report builder.
func NewBuilder(store Store, opts ...Option) *Builder {
	b := &Builder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles a coverage report for the current catalog. Boards come
// back from the store ordered by key, so the matrix is deterministic.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	boards, err := b.store.Boards(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: b.now(),
		Boards:      len(boards),
	}

	resolved := make(map[catalog.SpecField]int)
	for _, board := range boards {
		row := BoardCoverage{
			BoardKey: board.Key,
			Brand:    board.Brand,
			Model:    board.Model,
		}
		for _, field := range catalog.SpecFields() {
			spec := board.Spec(field)
			if spec == nil {
				continue
			}
			resolved[field]++
			if row.Specs == nil {
				row.Specs = make(map[catalog.SpecField]SourceRef)
			}
			row.Specs[field] = SourceRef{
				SourceID: spec.SourceID,
				Tier:     spec.Tier,
				Value:    spec.Value,
			}
		}

		claims, err := b.store.Claims(ctx, board.Key)
		if err != nil {
			return nil, err
		}
		row.Claims = len(claims)

		report.Matrix = append(report.Matrix, row)
	}

	for _, field := range catalog.SpecFields() {
		coverage := FieldCoverage{
			Field:    field,
			Resolved: resolved[field],
			Total:    len(boards),
		}
		if coverage.Total > 0 {
			coverage.Percent = float64(coverage.Resolved) / float64(coverage.Total) * 100
		}
		report.Fields = append(report.Fields, coverage)
	}

	return report, nil
}

// WriteYAML renders a report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
