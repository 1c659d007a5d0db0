package scan

import (
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/duckbridge/export"
)

// Stream is a single-pass sequence of exported batches. It is not
// rewindable; a consumer cancels it by closing it. A Stream is used by one
// goroutine at a time.
type Stream struct {
	schema *arrow.Schema
	next   func() (*export.Array, error)

	closeOnce sync.Once
	onClose   func()
	done      bool
	closed    bool
}

func newStream(schema *arrow.Schema, next func() (*export.Array, error), onClose func()) *Stream {
	return &Stream{schema: schema, next: next, onClose: onClose}
}

// Schema is the schema of every batch.
func (s *Stream) Schema() *arrow.Schema { return s.schema }

// Next returns the next batch. It returns io.EOF when exhausted and
// ErrClosed after Close. The caller releases each batch.
func (s *Stream) Next() (*export.Array, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.done {
		return nil, io.EOF
	}
	a, err := s.next()
	if err != nil {
		s.done = true
		return nil, err
	}
	return a, nil
}

// Close stops the stream and releases its source. Batches already returned
// stay valid until released.
func (s *Stream) Close() {
	s.closed = true
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// RecordReader imports the stream's batches back as record batches.
// Releasing the reader closes the stream.
func (s *Stream) RecordReader() array.RecordReader {
	return export.ImportReader(s.schema, s.Next, s.Close)
}

// recordStream exports every batch of r under schema, which must match r's
// layout. A nil schema uses r's. The stream owns r.
func recordStream(schema *arrow.Schema, r array.RecordReader, exporter *export.Exporter, onClose func()) *Stream {
	if schema == nil {
		schema = r.Schema()
	}
	return newStream(schema, func() (*export.Array, error) {
		for r.Next() {
			rec := r.RecordBatch()
			if rec.NumRows() == 0 {
				continue
			}
			return exporter.ExportRecord(rec), nil
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}, func() {
		r.Release()
		if onClose != nil {
			onClose()
		}
	})
}
