// Package sim wires together the transport, the shared coherence
// directory, and one Tile per rank into a single run, and drives that
// run's two-phase startup and teardown. Unlike the original simulator,
// which kept this state behind a process-wide singleton, every run here
// owns an explicit *Simulator handle, and each tile is built with the run's
// network endpoint and directory injected — nothing is reached through
// ambient global state.
package sim

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jeycin/Graphite/cache"
	"github.com/jeycin/Graphite/config"
	"github.com/jeycin/Graphite/network"
	"github.com/jeycin/Graphite/perfmodel"
	"github.com/jeycin/Graphite/tile"
)

// Simulator owns every resource shared across a run's tiles: the message
// transport, the coherence directory, and the tiles themselves.
type Simulator struct {
	cfg       config.Config
	transport *network.Transport
	directory *DirectoryTable
	tiles     []*tile.Tile
	trace     *TraceDB
}

// New builds a Simulator with numTiles simulated cores plus one spawner
// rank, using cfg for every tile's cache and performance model geometry.
func New(cfg config.Config, numTiles int, trace *TraceDB) (*Simulator, error) {
	s := &Simulator{
		cfg:       cfg,
		transport: network.NewTransport(numTiles, 0),
		directory: NewDirectoryTable(numTiles, trace),
		trace:     trace,
	}

	for id := 0; id < numTiles; id++ {
		t, err := tile.New(tile.Config{
			ID:              id,
			PerfModelActive: cfg.PerfModelEnabled,
			PerfModel: perfmodel.Config{
				NumOutstandingLoads:   cfg.NumOutstandingLoads,
				NumStoreBufferEntries: cfg.NumStoreBufferEntries,
			},
			Cache: tile.OCacheConfig{
				ICacheModeling:      cfg.ICacheModeling,
				DCacheModeling:      cfg.DCacheModeling,
				ICacheThresholdHit:  uint64(cfg.ICacheThresholdHit),
				ICacheThresholdMiss: uint64(cfg.ICacheThresholdMiss),
				DCacheThresholdHit:  uint64(cfg.DCacheThresholdHit),
				DCacheThresholdMiss: uint64(cfg.DCacheThresholdMiss),
				ICache: cache.Config{
					Name:           fmt.Sprintf("tile%d-icache", id),
					Size:           cfg.ICacheSize,
					LineSize:       cfg.LineSize,
					Associativity:  cfg.ICacheAssociativity,
					MaxSearchDepth: cfg.ICacheMaxSearchDepth,
				},
				DCache: cache.Config{
					Name:           fmt.Sprintf("tile%d-dcache", id),
					Size:           cfg.DCacheSize,
					LineSize:       cfg.LineSize,
					Associativity:  cfg.DCacheAssociativity,
					MaxSearchDepth: cfg.DCacheMaxSearchDepth,
					StorePolicy:    cache.StoreAllocate,
				},
			},
			Net:  network.NewTileEndpoint(s.transport, id),
			Home: s.directory,
		})
		if err != nil {
			return nil, fmt.Errorf("sim: building tile %d: %w", id, err)
		}

		s.tiles = append(s.tiles, t)
	}

	return s, nil
}

// NumTiles reports how many simulated tiles this run has, not counting the
// spawner rank.
func (s *Simulator) NumTiles() int { return len(s.tiles) }

// SpawnerRank is the rank a control/spawner goroutine should bind its
// network endpoint to.
func (s *Simulator) SpawnerRank() int { return network.SpawnerRank(len(s.tiles)) }

// SpawnerEndpoint returns a network endpoint bound to the spawner rank.
func (s *Simulator) SpawnerEndpoint() network.Endpoint {
	return network.NewTileEndpoint(s.transport, s.SpawnerRank())
}

// Tile returns the tile at the given rank.
func (s *Simulator) Tile(id int) *tile.Tile { return s.tiles[id] }

// Run starts one goroutine per tile executing work, blocks until either
// every workload goroutine returns or ctx is canceled, then tears the
// transport down so any goroutine still blocked in send/recv is released
// with a terminal error rather than left hanging.
//
// work is called once per tile with that tile's handle; a workload that
// wants to exchange messages uses the tile's SendW/RecvW, which forward
// to the shared transport built above.
func (s *Simulator) Run(ctx context.Context, work func(ctx context.Context, t *tile.Tile) error) []error {
	errs := make([]error, len(s.tiles))

	var wg sync.WaitGroup
	wg.Add(len(s.tiles))

	for i, t := range s.tiles {
		go func(i int, t *tile.Tile) {
			defer wg.Done()
			errs[i] = work(ctx, t)
		}(i, t)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	// Phase one: release anyone still blocked on the transport.
	s.transport.Close()
	// Phase two: every workload goroutine either already returned or was
	// blocked only in SendW/RecvW, so it now unblocks with ErrClosed and
	// returns; wait for that before reporting results.
	<-done

	return errs
}

// Fini writes every tile's end-of-run summary to out.
func (s *Simulator) Fini(exitCode int, out io.Writer) {
	for _, t := range s.tiles {
		tile.Fini(t.ID(), exitCode, t.Summary(), out)
	}

	if s.trace != nil {
		s.trace.Flush()
	}
}

// Directory exposes the shared coherence directory for diagnostics.
func (s *Simulator) Directory() *DirectoryTable { return s.directory }
