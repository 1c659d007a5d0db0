//go:build duckdb_arrow

package duckhost

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/duckbridge/filter"
	"github.com/hugr-lab/duckbridge/flatir"
	"github.com/hugr-lab/duckbridge/scan"
)

// SQLHolder is a lazily evaluated holder over a relation of a Host. The
// projection and every renderable filter become one SELECT that DuckDB
// runs, so the holder claims full delegation and gets the permissive gate.
type SQLHolder struct {
	host     *Host
	relation string
	encoder  *filter.SQLEncoder

	active atomic.Int64
	next   atomic.Uint64
}

var (
	_ scan.Holder        = (*SQLHolder)(nil)
	_ scan.PushdownTypes = (*SQLHolder)(nil)
)

// NewSQLHolder reads relation, which is placed verbatim after FROM: a
// quoted table name or a parenthesized subquery.
func NewSQLHolder(h *Host, relation string) *SQLHolder {
	return &SQLHolder{host: h, relation: relation, encoder: filter.NewSQLEncoder(nil)}
}

// SQL renders the query for p. Filters without a SQL form are left out;
// the host re-checks every filter.
func (s *SQLHolder) SQL(p *flatir.ProduceParams) (string, error) {
	cols := "*"
	if len(p.ProjectedColumns) > 0 {
		quoted := make([]string, len(p.ProjectedColumns))
		for i, name := range p.ProjectedColumns {
			quoted[i] = filter.QuoteIdentifier(name)
		}
		cols = strings.Join(quoted, ", ")
	}

	set, err := p.Set()
	if err != nil {
		return "", err
	}
	names := make(map[int]string, len(p.Filters))
	for _, f := range p.Filters {
		names[f.Column] = f.Name
	}
	// EncodeSet indexes by position; JSON filters on unnamed columns stay
	// with the host.
	var columns []string
	var named filter.Set
	for _, cf := range set {
		name, ok := names[cf.Column]
		if !ok {
			continue
		}
		named = append(named, filter.ColumnFilter{Column: len(columns), Filter: cf.Filter})
		columns = append(columns, name)
	}
	where, _ := s.encoder.EncodeSet(named, columns)

	query := "SELECT " + cols + " FROM " + s.relation
	if where != "" {
		query += " WHERE " + where
	}
	return query, nil
}

// Produce runs the rendered query. p is only read during the call.
func (s *SQLHolder) Produce(ctx context.Context, p *flatir.ProduceParams) (*scan.HolderResult, error) {
	query, err := s.SQL(p)
	if err != nil {
		return nil, err
	}
	r, err := s.host.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	s.active.Add(1)
	return &scan.HolderResult{Reader: r, Token: s.next.Add(1)}, nil
}

func (s *SQLHolder) Release(token any) error {
	if _, ok := token.(uint64); !ok {
		return fmt.Errorf("duckhost: unexpected release token %T", token)
	}
	s.active.Add(-1)
	return nil
}

// Active reports produces whose tokens have not been released.
func (s *SQLHolder) Active() int64 { return s.active.Load() }

// SupportsPushdown claims every type; the gate still rejects the types
// the flat form cannot carry.
func (s *SQLHolder) SupportsPushdown(arrow.DataType) bool { return true }

func (s *SQLHolder) SupportsViews() bool { return true }
