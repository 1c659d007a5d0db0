package pushdown

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/duckbridge/expr"
	"github.com/hugr-lab/duckbridge/filter"
	"github.com/hugr-lab/duckbridge/internal/metrics"
)

// Result is the outcome of translating a filter set.
type Result struct {
	// Expr is the conjunction of every translated filter. It is nil when
	// no filter was pushed and must not be applied then.
	Expr expr.Expr
	// Pushed counts filters included in Expr.
	Pushed int
	// Skipped counts filters on columns rejected by the gate.
	Skipped int
	// Failed counts filters that could not be translated.
	Failed int
}

// Fields returns the columns Expr reads.
func (r Result) Fields() []string {
	if r.Expr == nil {
		return nil
	}
	return expr.Fields(r.Expr)
}

// Translator translates filter sets for one target. It holds no per-scan
// state and is safe for concurrent use.
type Translator struct {
	Gate Gate
	// Target labels metrics and logs, e.g. "table".
	Target  string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// TranslateSet translates every filter in set against schema.
//
// Filter columns are projected indices; filterToColumn maps them to schema
// indices and unmapped indices are used as-is. Each filter is handled on
// its own: gate rejections and translation failures are counted and the
// remaining filters still translate.
func (t *Translator) TranslateSet(set filter.Set, schema *arrow.Schema, filterToColumn map[int]int) Result {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	combined := expr.Bool(true)
	for _, cf := range set {
		idx := cf.Column
		if mapped, ok := filterToColumn[idx]; ok {
			idx = mapped
		}
		if idx < 0 || idx >= schema.NumFields() {
			res.Failed++
			t.Metrics.Filter(t.Target, metrics.OutcomeFailed)
			logger.Warn("filter column out of range", "target", t.Target, "column", cf.Column, "mapped", idx)
			continue
		}
		field := schema.Field(idx)

		if reason := t.Gate.Reason(field.Type); reason != "" {
			res.Skipped++
			t.Metrics.Filter(t.Target, metrics.OutcomeSkipped)
			logger.Debug("filter not pushed", "target", t.Target, "column", field.Name, "reason", reason)
			continue
		}

		e, err := Translate(cf.Filter, field.Name, field.Type)
		if err != nil {
			res.Failed++
			t.Metrics.Filter(t.Target, metrics.OutcomeFailed)
			logger.Warn("filter translation failed", "target", t.Target, "column", field.Name, "filter", cf.Filter.String(), "error", err)
			continue
		}

		combined = expr.And(combined, e)
		res.Pushed++
		t.Metrics.Filter(t.Target, metrics.OutcomePushed)
	}

	if res.Pushed > 0 {
		res.Expr = combined
	}
	logger.Debug("filters translated", "target", t.Target,
		"pushed", res.Pushed, "skipped", res.Skipped, "failed", res.Failed)
	return res
}
