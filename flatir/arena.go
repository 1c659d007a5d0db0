package flatir

// blockSize is the number of nodes or values allocated per arena block.
const blockSize = 64

// byteBlockSize is the size of each interned-bytes block.
const byteBlockSize = 4096

// Arena owns every node, value and byte payload produced while serializing
// the filters of one produce call. Slices handed out by the arena are never
// moved: a full block is replaced, not grown, so earlier slices stay valid
// until Reset.
//
// An Arena is not safe for concurrent use.
type Arena struct {
	nodes  []Node
	values []Value
	bytes  []byte

	blocks int
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Node allocates a single zeroed node.
func (a *Arena) Node() *Node {
	return &a.Nodes(1)[0]
}

// Nodes allocates n contiguous zeroed nodes.
func (a *Arena) Nodes(n int) []Node {
	if n <= 0 {
		return nil
	}
	if cap(a.nodes)-len(a.nodes) < n {
		a.nodes = make([]Node, 0, max(blockSize, n))
		a.blocks++
	}
	start := len(a.nodes)
	a.nodes = a.nodes[:start+n]
	return a.nodes[start : start+n : start+n]
}

// Values allocates n contiguous zeroed values.
func (a *Arena) Values(n int) []Value {
	if n <= 0 {
		return nil
	}
	if cap(a.values)-len(a.values) < n {
		a.values = make([]Value, 0, max(blockSize, n))
		a.blocks++
	}
	start := len(a.values)
	a.values = a.values[:start+n]
	return a.values[start : start+n : start+n]
}

// Intern copies b into arena-owned storage.
func (a *Arena) Intern(b []byte) []byte {
	if len(b) == 0 {
		return []byte{}
	}
	if cap(a.bytes)-len(a.bytes) < len(b) {
		a.bytes = make([]byte, 0, max(byteBlockSize, len(b)))
		a.blocks++
	}
	start := len(a.bytes)
	a.bytes = append(a.bytes, b...)
	return a.bytes[start : start+len(b) : start+len(b)]
}

// InternString copies s into arena-owned storage.
func (a *Arena) InternString(s string) []byte {
	if len(s) == 0 {
		return []byte{}
	}
	if cap(a.bytes)-len(a.bytes) < len(s) {
		a.bytes = make([]byte, 0, max(byteBlockSize, len(s)))
		a.blocks++
	}
	start := len(a.bytes)
	a.bytes = append(a.bytes, s...)
	return a.bytes[start : start+len(s) : start+len(s)]
}

// Blocks returns the number of blocks allocated since the last Reset.
func (a *Arena) Blocks() int { return a.blocks }

// Reset drops the arena's references to its blocks. Slices handed out
// before Reset must not be used afterwards.
func (a *Arena) Reset() {
	a.nodes = nil
	a.values = nil
	a.bytes = nil
	a.blocks = 0
}
