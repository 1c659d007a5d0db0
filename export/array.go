// Package export hands Arrow batches to a consumer without copying.
//
// An exported batch is a tree of Array nodes shaped like the Arrow C data
// interface: a struct-typed root whose children reference the buffers of the
// source arrays directly. An OwnershipToken keeps those sources alive until
// the root is released. Release runs in a fixed order: children first, then
// the exporter's own pointer tables, then the token.
package export

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Array is one node of an exported batch.
//
// Buffers is never nil while the node is live, although individual entries
// are nil when the source has no such buffer (for example a column without
// nulls has no validity bitmap).
type Array struct {
	Length     int64
	NullCount  int64
	Offset     int64
	Buffers    [][]byte
	Children   []*Array
	Dictionary *Array

	release atomic.Pointer[func()]
}

func (a *Array) setRelease(fn func()) { a.release.Store(&fn) }

// Release runs the node's release callback. The callback is swapped out
// atomically before it runs, so only the first caller does any work and
// every later call is a no-op returning false.
func (a *Array) Release() bool {
	fn := a.release.Swap(nil)
	if fn == nil {
		return false
	}
	(*fn)()
	return true
}

// Released reports whether the release callback has already run.
func (a *Array) Released() bool { return a.release.Load() == nil }

// exportData builds a node over d without copying. The node and its
// descendants own nothing; their release only marks them and drops the
// pointer tables.
func exportData(d arrow.ArrayData) *Array {
	bufs := d.Buffers()
	out := &Array{
		Length:    int64(d.Len()),
		NullCount: int64(d.NullN()),
		Offset:    int64(d.Offset()),
		Buffers:   make([][]byte, len(bufs)),
	}
	for i, b := range bufs {
		if b != nil {
			out.Buffers[i] = b.Bytes()
		}
	}
	if children := d.Children(); len(children) > 0 {
		out.Children = make([]*Array, len(children))
		for i, c := range children {
			out.Children[i] = exportData(c)
		}
	}
	// Dictionary() wraps a nil *array.Data for plain arrays.
	if dict, ok := d.Dictionary().(*array.Data); ok && dict != nil {
		out.Dictionary = exportData(dict)
	}
	out.setRelease(func() { out.releaseTables() })
	return out
}

// releaseTables releases the descendants and drops the node's tables. The
// buffer table keeps its length so it stays non-nil.
func (a *Array) releaseTables() {
	for _, c := range a.Children {
		c.Release()
	}
	if a.Dictionary != nil {
		a.Dictionary.Release()
	}
	a.Children = nil
	a.Dictionary = nil
	clear(a.Buffers)
}
