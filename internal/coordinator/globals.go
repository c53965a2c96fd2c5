package coordinator

import (
	"sync"
	"sync/atomic"

	"go2spectra/internal/ticker"
)

// Globals is the process-wide handle shared by the coordinator and every
// report host: the clock service plus the counters operators care about.
// Its lifecycle is owned by the process entry point, not by the coordinator.
type Globals struct {
	Ticker ticker.Ticker

	totalBatches uint64

	mu      sync.Mutex
	dropped map[string]*uint64 // report name -> dropped batch count
	packets map[string]*uint64 // report name -> packets received count
}

// NewGlobals creates a Globals bound to the given Ticker.
func NewGlobals(tk ticker.Ticker) *Globals {
	return &Globals{
		Ticker:  tk,
		dropped: make(map[string]*uint64),
		packets: make(map[string]*uint64),
	}
}

func (g *Globals) registerReport(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.dropped[name]; !ok {
		var d, p uint64
		g.dropped[name] = &d
		g.packets[name] = &p
	}
}

func (g *Globals) unregisterReport(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.dropped, name)
	delete(g.packets, name)
}

func (g *Globals) incDropped(name string) {
	g.mu.Lock()
	counter := g.dropped[name]
	g.mu.Unlock()
	if counter != nil {
		atomic.AddUint64(counter, 1)
	}
}

func (g *Globals) addPackets(name string, n uint64) {
	g.mu.Lock()
	counter := g.packets[name]
	g.mu.Unlock()
	if counter != nil {
		atomic.AddUint64(counter, n)
	}
}

func (g *Globals) incTotalBatches() {
	atomic.AddUint64(&g.totalBatches, 1)
}

// Stats is an immutable snapshot of the counters surfaced to operators (the
// admin HTTP surface's /stats endpoint).
type Stats struct {
	TotalBatches     uint64
	DroppedByReport  map[string]uint64
	PacketsByReport  map[string]uint64
}

// Snapshot returns a point-in-time copy of the counters.
func (g *Globals) Snapshot() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	dropped := make(map[string]uint64, len(g.dropped))
	for name, counter := range g.dropped {
		dropped[name] = atomic.LoadUint64(counter)
	}
	packets := make(map[string]uint64, len(g.packets))
	for name, counter := range g.packets {
		packets[name] = atomic.LoadUint64(counter)
	}

	return Stats{
		TotalBatches:    atomic.LoadUint64(&g.totalBatches),
		DroppedByReport: dropped,
		PacketsByReport: packets,
	}
}
