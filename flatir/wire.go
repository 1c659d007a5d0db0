package flatir

import (
	"fmt"

	"github.com/hugr-lab/duckbridge/internal/msgpack"
)

// Marshal encodes produce params for an out-of-process holder.
func Marshal(p *ProduceParams) ([]byte, error) {
	if p == nil {
		p = &ProduceParams{}
	}
	data, err := msgpack.Encode(p)
	if err != nil {
		return nil, fmt.Errorf("flatir: %w", err)
	}
	return data, nil
}

// Unmarshal decodes produce params written by Marshal.
func Unmarshal(data []byte) (*ProduceParams, error) {
	var p ProduceParams
	if err := msgpack.Decode(data, &p); err != nil {
		return nil, fmt.Errorf("flatir: %w", err)
	}
	return &p, nil
}
