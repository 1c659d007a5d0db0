package filter

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrNotEncodable is returned when a filter has no SQL rendering. The caller
// must evaluate that filter some other way.
var ErrNotEncodable = errors.New("filter: not encodable as SQL")

// EncoderOptions configures encoding behavior.
type EncoderOptions struct {
	// ColumnMapping maps original column names to target names.
	// Columns not in the map use their original names.
	ColumnMapping map[string]string

	// ColumnExpressions maps column names to SQL expressions.
	// Takes precedence over ColumnMapping.
	ColumnExpressions map[string]string
}

// SQLEncoder renders filter trees as DuckDB SQL conditions.
type SQLEncoder struct {
	opts *EncoderOptions
}

// NewSQLEncoder creates a new DuckDB SQL encoder.
// If opts is nil, default options are used.
func NewSQLEncoder(opts *EncoderOptions) *SQLEncoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &SQLEncoder{opts: opts}
}

// EncodeSet renders every filter of set against the given column names and
// joins the results with AND. Filters that cannot be rendered are returned
// in rest, untouched, so the caller can apply them itself. columns is indexed
// by ColumnFilter.Column.
func (e *SQLEncoder) EncodeSet(set Set, columns []string) (where string, rest Set) {
	var parts []string
	for _, cf := range set {
		if cf.Column < 0 || cf.Column >= len(columns) {
			rest = append(rest, cf)
			continue
		}
		sql, err := e.Encode(cf.Filter, columns[cf.Column])
		if err != nil {
			rest = append(rest, cf)
			continue
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}

	switch len(parts) {
	case 0:
		return "", rest
	case 1:
		return parts[0], rest
	}
	return "(" + strings.Join(parts, ") AND (") + ")", rest
}

// Encode renders n applied to column. An empty result with a nil error means
// the filter is always true (dynamic or dropped optional filters).
func (e *SQLEncoder) Encode(n *Node, column string) (string, error) {
	if n == nil {
		return "", &UnsupportedError{Kind: "filter", Reason: "nil node"}
	}
	return e.encode(n, e.columnRef(column))
}

func (e *SQLEncoder) encode(n *Node, col string) (string, error) {
	switch n.Type {
	case TypeConstantComparison:
		return e.encodeComparison(n, col)

	case TypeIsNull:
		return col + " IS NULL", nil

	case TypeIsNotNull:
		return col + " IS NOT NULL", nil

	case TypeConjunctionAnd, TypeConjunctionOr:
		return e.encodeConjunction(n, col)

	case TypeStructExtract:
		if n.Child == nil {
			return "", &UnsupportedError{Kind: "struct_extract", Reason: "missing child filter"}
		}
		if n.ChildName == "" {
			return "", fmt.Errorf("%w: struct field %d has no name", ErrNotEncodable, n.ChildIndex)
		}
		return e.encode(n.Child, "struct_extract("+col+", "+quoteLiteral(n.ChildName)+")")

	case TypeOptional:
		if n.Child == nil {
			return "", nil
		}
		sql, err := e.encode(n.Child, col)
		if err != nil {
			return "", nil
		}
		return sql, nil

	case TypeIn:
		if len(n.Values) == 0 {
			return "FALSE", nil
		}
		values := make([]string, 0, len(n.Values))
		for _, v := range n.Values {
			lit, err := e.formatValue(v)
			if err != nil {
				return "", err
			}
			values = append(values, lit)
		}
		return col + " IN (" + strings.Join(values, ", ") + ")", nil

	case TypeDynamic:
		return "", nil
	}
	return "", &UnsupportedError{Kind: n.Type.String()}
}

// encodeComparison encodes a comparison against a constant.
func (e *SQLEncoder) encodeComparison(n *Node, col string) (string, error) {
	op := n.Comparison.Symbol()
	if op == "" {
		return "", &UnsupportedError{Kind: "comparison", Reason: n.Comparison.String()}
	}
	lit, err := e.formatValue(n.Constant)
	if err != nil {
		return "", err
	}
	return col + " " + op + " " + lit, nil
}

// encodeConjunction encodes AND/OR conjunctions. An unencodable child fails
// the whole conjunction; always-true children are dropped from AND and make
// OR always true.
func (e *SQLEncoder) encodeConjunction(n *Node, col string) (string, error) {
	parts := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		sql, err := e.encode(child, col)
		if err != nil {
			return "", err
		}
		if sql == "" {
			if n.Type == TypeConjunctionOr {
				return "", nil
			}
			continue
		}
		parts = append(parts, sql)
	}

	if len(parts) == 0 {
		if n.Type == TypeConjunctionOr {
			return "FALSE", nil
		}
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	op := " AND "
	if n.Type == TypeConjunctionOr {
		op = " OR "
	}
	return "(" + strings.Join(parts, op) + ")", nil
}

// columnRef resolves and quotes a column name.
func (e *SQLEncoder) columnRef(name string) string {
	if e.opts.ColumnExpressions != nil {
		if expr, ok := e.opts.ColumnExpressions[name]; ok {
			return expr
		}
	}
	if e.opts.ColumnMapping != nil {
		if mapped, ok := e.opts.ColumnMapping[name]; ok {
			name = mapped
		}
	}
	return quoteIdentifier(name)
}

// formatValue formats a Value as a SQL literal.
func (e *SQLEncoder) formatValue(v Value) (string, error) {
	if v.IsNull {
		return "NULL", nil
	}

	id := v.Type.ID
	switch {
	case id == TypeIDBoolean:
		if b, ok := v.Data.(bool); ok {
			if b {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
	case id.IsInteger():
		if s, ok := v.Text(); ok {
			return s, nil
		}
	case id.IsFloat():
		f, ok := v.Float64()
		if !ok {
			break
		}
		switch {
		case math.IsNaN(f):
			return "'nan'::DOUBLE", nil
		case math.IsInf(f, 1):
			return "'infinity'::DOUBLE", nil
		case math.IsInf(f, -1):
			return "'-infinity'::DOUBLE", nil
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case id == TypeIDDecimal:
		if s, ok := v.Text(); ok {
			return "CAST(" + quoteLiteral(s) + " AS " + v.Type.String() + ")", nil
		}
	case id == TypeIDVarchar, id == TypeIDChar:
		if s, ok := v.Data.(string); ok {
			return quoteLiteral(s), nil
		}
	case id == TypeIDUUID:
		if s, ok := v.Data.(string); ok {
			return quoteLiteral(s) + "::UUID", nil
		}
	case id == TypeIDBlob:
		if b, ok := v.Bytes(); ok {
			return formatBlob(b), nil
		}
	case id == TypeIDDate:
		if d, ok := v.Int64(); ok {
			return "DATE '" + time.Unix(d*86400, 0).UTC().Format("2006-01-02") + "'", nil
		}
	case id == TypeIDTime:
		if us, ok := v.Int64(); ok {
			return formatTime(us), nil
		}
	case id.IsTimestamp():
		if ts, ok := v.Int64(); ok {
			return formatTimestamp(ts, id), nil
		}
	}
	return "", fmt.Errorf("%w: value %s of type %s", ErrNotEncodable, v.String(), v.Type.String())
}

// formatBlob formats a blob value as an escaped byte literal.
func formatBlob(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	enc := hex.EncodeToString(b)
	for i := 0; i < len(enc); i += 2 {
		sb.WriteString(`\x`)
		sb.WriteString(enc[i : i+2])
	}
	sb.WriteString("'::BLOB")
	return sb.String()
}

// formatTime formats microseconds since midnight.
func formatTime(micros int64) string {
	hours := micros / 3600000000
	micros %= 3600000000
	mins := micros / 60000000
	micros %= 60000000
	secs := micros / 1000000
	micros %= 1000000
	if micros > 0 {
		return fmt.Sprintf("TIME '%02d:%02d:%02d.%06d'", hours, mins, secs, micros)
	}
	return fmt.Sprintf("TIME '%02d:%02d:%02d'", hours, mins, secs)
}

// formatTimestamp formats an epoch offset in the unit implied by id.
func formatTimestamp(v int64, id LogicalTypeID) string {
	var t time.Time
	switch id {
	case TypeIDTimestampSec:
		t = time.Unix(v, 0).UTC()
	case TypeIDTimestampMs:
		t = time.UnixMilli(v).UTC()
	case TypeIDTimestampNs:
		t = time.Unix(0, v).UTC()
	default:
		t = time.UnixMicro(v).UTC()
	}

	layout := "2006-01-02 15:04:05"
	if t.Nanosecond() != 0 {
		if id == TypeIDTimestampNs {
			layout += ".000000000"
		} else {
			layout += ".000000"
		}
	}
	lit := quoteLiteral(t.Format(layout))
	switch id {
	case TypeIDTimestampTZ:
		return "TIMESTAMPTZ " + quoteLiteral(t.Format(layout)+"+00")
	case TypeIDTimestampNs:
		return "TIMESTAMP_NS " + lit
	case TypeIDTimestampMs:
		return "TIMESTAMP_MS " + lit
	case TypeIDTimestampSec:
		return "TIMESTAMP_S " + lit
	}
	return "TIMESTAMP " + lit
}

// escapeString escapes single quotes in a string value for SQL.
func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// quoteLiteral returns a SQL string literal with proper escaping.
func quoteLiteral(s string) string {
	return "'" + escapeString(s) + "'"
}

// QuoteIdentifier returns name quoted for DuckDB when needed.
func QuoteIdentifier(name string) string { return quoteIdentifier(name) }

// quoteIdentifier returns a quoted identifier if needed.
// DuckDB uses double quotes for identifiers.
func quoteIdentifier(name string) string {
	if needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

// needsQuoting returns true if the identifier needs quoting.
func needsQuoting(name string) bool {
	if len(name) == 0 {
		return true
	}

	c := name[0]
	if !isLetter(c) && c != '_' {
		return true
	}
	for i := 1; i < len(name); i++ {
		c = name[i]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return true
		}
	}

	switch strings.ToUpper(name) {
	case "SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "NULL", "TRUE", "FALSE",
		"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TABLE", "INDEX",
		"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "ON", "AS", "IN", "IS", "LIKE",
		"BETWEEN", "EXISTS", "CASE", "WHEN", "THEN", "ELSE", "END", "ORDER", "BY",
		"GROUP", "HAVING", "LIMIT", "OFFSET", "UNION", "EXCEPT", "INTERSECT",
		"ALL", "DISTINCT", "VALUES", "SET", "INTO", "PRIMARY", "KEY", "FOREIGN",
		"REFERENCES", "CONSTRAINT", "DEFAULT", "CHECK", "UNIQUE", "ASC", "DESC",
		"NULLS", "FIRST", "LAST", "CAST", "INTERVAL", "DATE", "TIME", "TIMESTAMP":
		return true
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
