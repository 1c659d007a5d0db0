package export

import "sync/atomic"

// Owner is anything reference counted the way Arrow objects are.
// arrow.Array, arrow.RecordBatch, *arrow.Chunked and *ChunkMatrix qualify.
type Owner interface {
	Retain()
	Release()
}

// OwnershipToken holds one reference to each of its owners until Release.
// Release is at-most-once: the first call drops the references and later
// calls do nothing.
type OwnershipToken struct {
	owners    []Owner
	released  atomic.Bool
	onRelease func()
}

// NewOwnershipToken retains every owner. The caller keeps its own
// references.
func NewOwnershipToken(owners ...Owner) *OwnershipToken {
	for _, o := range owners {
		o.Retain()
	}
	return &OwnershipToken{owners: owners}
}

// Release drops the token's references in reverse order. It reports whether
// this call performed the release.
func (t *OwnershipToken) Release() bool {
	if !t.released.CompareAndSwap(false, true) {
		return false
	}
	for i := len(t.owners) - 1; i >= 0; i-- {
		t.owners[i].Release()
	}
	t.owners = nil
	if t.onRelease != nil {
		t.onRelease()
	}
	return true
}

// Released reports whether Release has run.
func (t *OwnershipToken) Released() bool { return t.released.Load() }
