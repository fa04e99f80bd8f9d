package tile

import (
	"fmt"
	"io"

	"github.com/jeycin/Graphite/cache"
)

// Summary accumulates the per-tile counters reported at the end of a run:
// instruction count and a breakdown of cache accesses by kind and by hit
// or miss.
type Summary struct {
	Instructions uint64

	ICacheAccesses uint64
	ICacheHits     uint64

	DCacheLoads     uint64
	DCacheLoadHits  uint64
	DCacheStores    uint64
	DCacheStoreHits uint64
}

func (s *Summary) recordICache(hit bool) {
	s.ICacheAccesses++
	if hit {
		s.ICacheHits++
	}
}

func (s *Summary) recordDCache(accessType cache.AccessType, hit bool) {
	switch accessType {
	case cache.Store:
		s.DCacheStores++
		if hit {
			s.DCacheStoreHits++
		}
	default:
		s.DCacheLoads++
		if hit {
			s.DCacheLoadHits++
		}
	}
}

// Fini writes a human-readable end-of-run report for this tile's summary
// to out, tagging it with the tile's rank and the process's exit code.
func Fini(id int, exitCode int, s Summary, out io.Writer) {
	fmt.Fprintf(out, "tile %d: exit_code=%d instructions=%d\n", id, exitCode, s.Instructions)
	fmt.Fprintf(out, "  icache: accesses=%d hits=%d misses=%d\n",
		s.ICacheAccesses, s.ICacheHits, s.ICacheAccesses-s.ICacheHits)
	fmt.Fprintf(out, "  dcache loads:  accesses=%d hits=%d misses=%d\n",
		s.DCacheLoads, s.DCacheLoadHits, s.DCacheLoads-s.DCacheLoadHits)
	fmt.Fprintf(out, "  dcache stores: accesses=%d hits=%d misses=%d\n",
		s.DCacheStores, s.DCacheStoreHits, s.DCacheStores-s.DCacheStoreHits)
}
