package flight

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/duckbridge/flatir"
	"github.com/hugr-lab/duckbridge/internal/serialize"
)

// ErrEmptyTicket is returned when decoding an empty ticket.
var ErrEmptyTicket = errors.New("ticket cannot be empty")

// TicketCodec turns produce params into opaque DoGet tickets and back.
// A ticket is the zstd-compressed msgpack form of the params. It is safe
// for concurrent use.
type TicketCodec struct {
	compressor   *serialize.Compressor
	decompressor *serialize.Decompressor
}

// NewTicketCodec creates a codec. Close it when done.
func NewTicketCodec() (*TicketCodec, error) {
	c, err := serialize.NewCompressor()
	if err != nil {
		return nil, err
	}
	d, err := serialize.NewDecompressor()
	if err != nil {
		c.Close()
		return nil, err
	}
	return &TicketCodec{compressor: c, decompressor: d}, nil
}

// Encode copies p into a ticket. p may be reused once Encode returns.
func (tc *TicketCodec) Encode(p *flatir.ProduceParams) ([]byte, error) {
	data, err := flatir.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return tc.compressor.Compress(data)
}

// Decode parses a ticket written by Encode.
func (tc *TicketCodec) Decode(ticket []byte) (*flatir.ProduceParams, error) {
	if len(ticket) == 0 {
		return nil, ErrEmptyTicket
	}
	data, err := tc.decompressor.Decompress(ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}
	p, err := flatir.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}
	return p, nil
}

// Close releases the codec's encoder and decoder.
func (tc *TicketCodec) Close() error {
	tc.decompressor.Close()
	return tc.compressor.Close()
}
