package export

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

var ErrReleased = errors.New("export: array already released")

// Import rebuilds a record batch over an exported root without copying.
// The batch references the root's buffers, so the root must not be released
// before the batch.
func Import(schema *arrow.Schema, root *Array) (arrow.RecordBatch, error) {
	if root.Released() {
		return nil, ErrReleased
	}
	if len(root.Children) != schema.NumFields() {
		return nil, fmt.Errorf("export: root has %d children, schema has %d fields", len(root.Children), schema.NumFields())
	}

	cols := make([]arrow.Array, len(root.Children))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i, child := range root.Children {
		d, err := importData(schema.Field(i).Type, child)
		if err != nil {
			return nil, fmt.Errorf("export: column %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = array.MakeFromData(d)
		d.Release()
	}
	return array.NewRecordBatch(schema, cols, root.Length), nil
}

func importData(dt arrow.DataType, a *Array) (arrow.ArrayData, error) {
	bufs := make([]*memory.Buffer, len(a.Buffers))
	for i, b := range a.Buffers {
		if b != nil {
			bufs[i] = memory.NewBufferBytes(b)
		}
	}

	var childTypes []arrow.DataType
	if nested, ok := dt.(arrow.NestedType); ok {
		for _, f := range nested.Fields() {
			childTypes = append(childTypes, f.Type)
		}
	}
	if len(childTypes) != len(a.Children) {
		return nil, fmt.Errorf("%s expects %d children, got %d", dt, len(childTypes), len(a.Children))
	}
	children := make([]arrow.ArrayData, len(a.Children))
	defer func() {
		for _, c := range children {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i, c := range a.Children {
		d, err := importData(childTypes[i], c)
		if err != nil {
			return nil, err
		}
		children[i] = d
	}

	data := array.NewData(dt, int(a.Length), bufs, children, int(a.NullCount), int(a.Offset))
	if dict, ok := dt.(*arrow.DictionaryType); ok {
		if a.Dictionary == nil {
			data.Release()
			return nil, fmt.Errorf("%s without dictionary", dt)
		}
		dd, err := importData(dict.ValueType, a.Dictionary)
		if err != nil {
			data.Release()
			return nil, err
		}
		data.SetDictionary(dd)
		dd.Release()
	}
	return data, nil
}

// Reader pulls exported roots from a source and presents them as record
// batches. Each root is released when the reader moves past its batch.
type Reader struct {
	refs   atomic.Int64
	schema *arrow.Schema
	next   func() (*Array, error)

	onRelease func()

	cur  arrow.RecordBatch
	root *Array
	err  error
	done bool
}

// ImportReader wraps next, which returns io.EOF when exhausted. onRelease,
// if set, runs once the last reference to the reader is dropped.
func ImportReader(schema *arrow.Schema, next func() (*Array, error), onRelease func()) *Reader {
	r := &Reader{schema: schema, next: next, onRelease: onRelease}
	r.refs.Store(1)
	return r
}

var _ array.RecordReader = (*Reader)(nil)

func (r *Reader) Retain() { r.refs.Add(1) }

func (r *Reader) Release() {
	if r.refs.Add(-1) == 0 {
		r.clear()
		r.done = true
		if r.onRelease != nil {
			r.onRelease()
		}
	}
}

func (r *Reader) Schema() *arrow.Schema { return r.schema }

func (r *Reader) Next() bool {
	r.clear()
	if r.done {
		return false
	}
	root, err := r.next()
	if err != nil {
		r.done = true
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		return false
	}
	rec, err := Import(r.schema, root)
	if err != nil {
		root.Release()
		r.done, r.err = true, err
		return false
	}
	r.cur, r.root = rec, root
	return true
}

func (r *Reader) Record() arrow.RecordBatch      { return r.cur }
func (r *Reader) RecordBatch() arrow.RecordBatch { return r.cur }
func (r *Reader) Err() error                     { return r.err }

func (r *Reader) clear() {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.root != nil {
		r.root.Release()
		r.root = nil
	}
}
