package export

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/duckbridge/internal/metrics"
)

var (
	ErrChunkIndex  = errors.New("export: chunk index out of range")
	ErrColumnIndex = errors.New("export: column index out of range")
)

// ChunkMatrix is a table re-sliced so every column has the same chunk
// boundaries. Chunk i of every column covers the same rows, so a chunk can
// be exported as one batch.
//
// The matrix is reference counted. It starts with one reference owned by the
// caller of NewChunkMatrix.
type ChunkMatrix struct {
	refs   atomic.Int64
	schema *arrow.Schema
	chunks []arrow.RecordBatch
	rows   int64
}

// NewChunkMatrix aligns tbl into chunks of at most chunkSize rows. A
// chunkSize of zero or less keeps the largest chunks the source allows.
// The matrix holds its own references; tbl may be released afterwards.
func NewChunkMatrix(tbl arrow.Table, chunkSize int64) *ChunkMatrix {
	if chunkSize <= 0 {
		chunkSize = max(tbl.NumRows(), 1)
	}
	m := &ChunkMatrix{schema: tbl.Schema(), rows: tbl.NumRows()}
	m.refs.Store(1)

	tr := array.NewTableReader(tbl, chunkSize)
	defer tr.Release()
	for tr.Next() {
		rec := tr.RecordBatch()
		rec.Retain()
		m.chunks = append(m.chunks, rec)
	}
	return m
}

// Retain adds a reference.
func (m *ChunkMatrix) Retain() { m.refs.Add(1) }

// Release drops a reference; the last one releases every chunk.
func (m *ChunkMatrix) Release() {
	if m.refs.Add(-1) != 0 {
		return
	}
	for _, c := range m.chunks {
		c.Release()
	}
	m.chunks = nil
}

func (m *ChunkMatrix) Schema() *arrow.Schema { return m.schema }
func (m *ChunkMatrix) NumChunks() int        { return len(m.chunks) }
func (m *ChunkMatrix) NumRows() int64        { return m.rows }

// Chunk returns chunk i without adding a reference.
func (m *ChunkMatrix) Chunk(i int) (arrow.RecordBatch, error) {
	if i < 0 || i >= len(m.chunks) {
		return nil, fmt.Errorf("%w: %d of %d", ErrChunkIndex, i, len(m.chunks))
	}
	return m.chunks[i], nil
}

// Column returns the given column as a chunked array sharing the matrix
// buffers. The caller releases it.
func (m *ChunkMatrix) Column(col int) (*arrow.Chunked, error) {
	if col < 0 || col >= m.schema.NumFields() {
		return nil, fmt.Errorf("%w: %d of %d", ErrColumnIndex, col, m.schema.NumFields())
	}
	arrs := make([]arrow.Array, len(m.chunks))
	for i, c := range m.chunks {
		arrs[i] = c.Column(col)
	}
	return arrow.NewChunked(m.schema.Field(col).Type, arrs), nil
}

// Exporter builds exported batches. The zero value is ready to use.
type Exporter struct {
	Metrics *metrics.Metrics
}

// ExportChunk exports the given columns of chunk idx as a struct-typed root.
// A nil cols exports every column. The root's token holds a reference to m.
func (e *Exporter) ExportChunk(m *ChunkMatrix, idx int, cols []int) (*Array, error) {
	rec, err := m.Chunk(idx)
	if err != nil {
		return nil, err
	}
	data, err := columnData(rec, cols)
	if err != nil {
		return nil, err
	}
	return e.root(rec.NumRows(), data, NewOwnershipToken(m)), nil
}

// ExportRecord exports every column of rec. The root's token holds a
// reference to rec.
func (e *Exporter) ExportRecord(rec arrow.RecordBatch) *Array {
	return e.root(rec.NumRows(), allColumns(rec), NewOwnershipToken(rec))
}

func allColumns(rec arrow.RecordBatch) []arrow.ArrayData {
	out := make([]arrow.ArrayData, rec.NumCols())
	for i := range out {
		out[i] = rec.Column(i).Data()
	}
	return out
}

func (e *Exporter) root(rows int64, columns []arrow.ArrayData, token *OwnershipToken) *Array {
	token.onRelease = e.Metrics.ExportRelease
	root := &Array{
		Length:   rows,
		Buffers:  make([][]byte, 1),
		Children: make([]*Array, len(columns)),
	}
	for i, d := range columns {
		root.Children[i] = exportData(d)
	}
	root.setRelease(func() {
		root.releaseTables()
		token.Release()
	})
	e.Metrics.Export()
	return root
}

func columnData(rec arrow.RecordBatch, cols []int) ([]arrow.ArrayData, error) {
	if cols == nil {
		return allColumns(rec), nil
	}
	out := make([]arrow.ArrayData, len(cols))
	for i, c := range cols {
		if c < 0 || int64(c) >= rec.NumCols() {
			return nil, fmt.Errorf("%w: %d of %d", ErrColumnIndex, c, rec.NumCols())
		}
		out[i] = rec.Column(c).Data()
	}
	return out, nil
}

// ExportChunk exports with a zero Exporter.
func ExportChunk(m *ChunkMatrix, idx int, cols []int) (*Array, error) {
	return (&Exporter{}).ExportChunk(m, idx, cols)
}

// ExportRecord exports with a zero Exporter.
func ExportRecord(rec arrow.RecordBatch) *Array {
	return (&Exporter{}).ExportRecord(rec)
}
