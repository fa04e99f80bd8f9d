package network

import "context"

// Endpoint is the narrow messaging surface a Tile depends on: send a
// payload to another rank, and block for a payload from a specific rank.
// It is defined as an interface here, separate from the concrete Transport
// below, so that the tile and core-model packages can depend on messaging
// without importing the transport implementation — mirroring the
// core/network header split in the original simulator, where Core only
// ever sees the narrow send/recv surface of the network.
type Endpoint interface {
	// SendW blocks until the payload has been handed to the channel toward
	// to, or ctx is done, or the transport is torn down.
	SendW(ctx context.Context, to int, payload []byte) error
	// RecvW blocks until a payload from exactly from is available, or ctx
	// is done, or the transport is torn down.
	RecvW(ctx context.Context, from int) ([]byte, error)
	// Rank is this endpoint's own rank in the transport.
	Rank() int
	// NumRanks is the total number of ranks in the transport, tiles plus
	// the spawner, letting a workload discover its peers without the
	// transport being threaded through separately.
	NumRanks() int
}

// TileEndpoint binds a Transport to a single rank, giving that rank's
// owner an Endpoint without exposing the rest of the transport.
type TileEndpoint struct {
	transport *Transport
	rank      int
}

func NewTileEndpoint(t *Transport, rank int) *TileEndpoint {
	return &TileEndpoint{transport: t, rank: rank}
}

func (e *TileEndpoint) Rank() int { return e.rank }

func (e *TileEndpoint) NumRanks() int { return e.transport.NumRanks() }

func (e *TileEndpoint) SendW(ctx context.Context, to int, payload []byte) error {
	return e.transport.sendW(ctx, e.rank, to, payload)
}

func (e *TileEndpoint) RecvW(ctx context.Context, from int) ([]byte, error) {
	return e.transport.recvW(ctx, from, e.rank)
}
