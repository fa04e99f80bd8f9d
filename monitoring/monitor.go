// Package monitoring exposes a running simulation's tile summaries and the
// host process's resource usage over HTTP, for attaching a dashboard or
// simply curling a running simulation to see how far it has gotten.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/jeycin/Graphite/sim"
)

// Monitor serves a running Simulator's state over HTTP.
type Monitor struct {
	portNumber int
	sim        *sim.Simulator
	exitCode   func() int

	server *http.Server
}

// NewMonitor builds a Monitor for s. exitCode is polled for the process's
// eventual exit status, since a run in progress doesn't have one yet.
func NewMonitor(s *sim.Simulator, exitCode func() int) *Monitor {
	return &Monitor{portNumber: 8080, sim: s, exitCode: exitCode}
}

// WithPortNumber overrides the default HTTP port.
func (m *Monitor) WithPortNumber(port int) *Monitor {
	m.portNumber = port
	return m
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

type tileSummaryRsp struct {
	ID             int    `json:"id"`
	Instructions   uint64 `json:"instructions"`
	ICacheAccesses uint64 `json:"icache_accesses"`
	ICacheHits     uint64 `json:"icache_hits"`
	DCacheLoads    uint64 `json:"dcache_loads"`
	DCacheLoadHits uint64 `json:"dcache_load_hits"`
}

func (m *Monitor) listTiles(w http.ResponseWriter, _ *http.Request) {
	rsps := make([]tileSummaryRsp, 0, m.sim.NumTiles())

	for id := 0; id < m.sim.NumTiles(); id++ {
		s := m.sim.Tile(id).Summary()
		rsps = append(rsps, tileSummaryRsp{
			ID:             id,
			Instructions:   s.Instructions,
			ICacheAccesses: s.ICacheAccesses,
			ICacheHits:     s.ICacheHits,
			DCacheLoads:    s.DCacheLoads,
			DCacheLoadHits: s.DCacheLoadHits,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	dieOnErr(json.NewEncoder(w).Encode(rsps))
}

// rawTile serves a reflective dump of one tile's summary, depth-limited to
// its immediate fields, for a dashboard field inspector that doesn't need a
// bespoke response struct per field.
func (m *Monitor) rawTile(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]

	var id int
	if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil || id < 0 || id >= m.sim.NumTiles() {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	summary := m.sim.Tile(id).Summary()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&summary)
	serializer.SetMaxDepth(1)

	dieOnErr(serializer.Serialize(w))
}

type directoryLineRsp struct {
	LineAddr uint64 `json:"line_addr"`
	State    string `json:"state"`
}

func (m *Monitor) listDirectory(w http.ResponseWriter, _ *http.Request) {
	snap := m.sim.Directory().Snapshot()
	rsps := make([]directoryLineRsp, 0, len(snap))

	for addr, state := range snap {
		rsps = append(rsps, directoryLineRsp{LineAddr: addr, State: state.String()})
	}

	w.Header().Set("Content-Type", "application/json")
	dieOnErr(json.NewEncoder(w).Encode(rsps))
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	dieOnErr(json.NewEncoder(w).Encode(resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	}))
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer

	dieOnErr(pprof.StartCPUProfile(&buf))
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	dieOnErr(json.NewEncoder(w).Encode(prof))
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "tiles=%d exit_code=%d\n", m.sim.NumTiles(), m.exitCode())
}

// StartServer registers every route and begins serving in a background
// goroutine, returning immediately with the address it bound.
func (m *Monitor) StartServer() (string, error) {
	router := mux.NewRouter()
	router.HandleFunc("/api/status", m.status).Methods("GET")
	router.HandleFunc("/api/tiles", m.listTiles).Methods("GET")
	router.HandleFunc("/api/tiles/{id}/raw", m.rawTile).Methods("GET")
	router.HandleFunc("/api/directory", m.listDirectory).Methods("GET")
	router.HandleFunc("/api/resource", m.listResources).Methods("GET")
	router.HandleFunc("/api/profile", m.collectProfile).Methods("GET")

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", m.portNumber))
	if err != nil {
		return "", err
	}

	m.server = &http.Server{Handler: router}

	go func() {
		if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Println("monitoring: server stopped:", err)
		}
	}()

	return ln.Addr().String(), nil
}

// OpenInBrowser launches the local system's browser pointed at this
// monitor's status page. Failures are logged, not fatal — a headless run
// should keep going without a browser to open.
func (m *Monitor) OpenInBrowser() {
	url := fmt.Sprintf("http://localhost:%d/api/status", m.portNumber)
	if err := browser.OpenURL(url); err != nil {
		log.Println("monitoring: could not open browser:", err)
	}
}

// Close stops the HTTP server.
func (m *Monitor) Close() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}
