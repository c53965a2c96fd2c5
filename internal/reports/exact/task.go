// Package exact implements coordinator.Report as exact, per-five-tuple flow
// counting over a time window, rotated by tick. It exists so the coordinator
// can be exercised end-to-end without a real analytical aggregation engine.
package exact

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go2spectra/internal/coordinator"
	"go2spectra/internal/model"
)

// Flow is one aggregated five-tuple-keyed flow within a window.
type Flow struct {
	Key         string
	StartTime   time.Time
	EndTime     time.Time
	ByteCount   uint64
	PacketCount uint64
}

// Snapshot is the value returned by Task.GetSnapshot: a copy of the current
// (still open) window's flows, keyed by the task's key fields.
type Snapshot struct {
	Name  string
	Flows map[string]*Flow
}

// Task performs exact aggregation for a specific set of key fields,
// windowed by tick count. It implements coordinator.Report.
type Task struct {
	name      string
	keyFields []string
	window    time.Duration
	tickCount uint32

	mu      sync.Mutex
	ticks   uint32
	current map[string]*Flow
}

// New creates a new exact-aggregation Task. keyFields selects which parts of
// the five-tuple form the flow key; window/tickCount set the report's
// rotation schedule (the host ticks every window/tickCount, and flow state
// is discarded every tickCount ticks, i.e. once per window).
func New(name string, keyFields []string, window time.Duration, tickCount uint32) *Task {
	if tickCount == 0 {
		tickCount = 1
	}
	return &Task{
		name:      name,
		keyFields: keyFields,
		window:    window,
		tickCount: tickCount,
		current:   make(map[string]*Flow),
	}
}

// Name implements coordinator.Report.
func (t *Task) Name() string { return t.name }

// Info implements coordinator.Report.
func (t *Task) Info() coordinator.ReportInfo {
	return coordinator.ReportInfo{TimeWindow: t.window, TickCount: t.tickCount}
}

// TicksInit implements coordinator.Report.
func (t *Task) TicksInit(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks = 0
}

// TickNow implements coordinator.Report. Every tickCount ticks, the window
// expires and flow state resets for the next window.
func (t *Task) TickNow(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ticks++
	if t.ticks < t.tickCount {
		return
	}
	t.ticks = 0
	t.current = make(map[string]*Flow)
}

// AddMulti implements coordinator.Report.
func (t *Task) AddMulti(packets []model.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range packets {
		key, err := t.generateKey(p.FiveTuple)
		if err != nil {
			continue
		}

		flow, ok := t.current[key]
		if !ok {
			flow = &Flow{Key: key, StartTime: p.Timestamp}
			t.current[key] = flow
		}
		flow.EndTime = p.Timestamp
		flow.PacketCount++
		flow.ByteCount += uint64(p.Length)
	}
}

// GetSnapshot implements coordinator.Report, returning a copy of the
// current window's flows. It does not reset state; TickNow owns window
// rotation.
func (t *Task) GetSnapshot() coordinator.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	flows := make(map[string]*Flow, len(t.current))
	for k, v := range t.current {
		copied := *v
		flows[k] = &copied
	}

	return Snapshot{Name: t.name, Flows: flows}
}

func (t *Task) generateKey(ft model.FiveTuple) (string, error) {
	var parts []string
	for _, field := range t.keyFields {
		switch field {
		case "SrcIP":
			parts = append(parts, ipString(ft.SrcIP))
		case "DstIP":
			parts = append(parts, ipString(ft.DstIP))
		case "SrcPort":
			parts = append(parts, strconv.Itoa(int(ft.SrcPort)))
		case "DstPort":
			parts = append(parts, strconv.Itoa(int(ft.DstPort)))
		case "Protocol":
			parts = append(parts, strconv.Itoa(int(ft.Protocol)))
		default:
			return "", fmt.Errorf("unknown key field: %s", field)
		}
	}
	return strings.Join(parts, "-"), nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
