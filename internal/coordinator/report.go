package coordinator

import (
	"time"

	"go2spectra/internal/model"
)

// ReportInfo describes a report's time-windowing configuration.
type ReportInfo struct {
	// TimeWindow is the total duration a snapshot covers.
	TimeWindow time.Duration
	// TickCount is the number of ticks per TimeWindow; the report host
	// subscribes to the ticker at TimeWindow/TickCount.
	TickCount uint32
}

// Snapshot is an opaque, immutable view of a report's aggregated state.
// Neither the coordinator nor the control plane interpret its contents.
type Snapshot interface{}

// Report is the capability set every aggregation unit must implement. All
// methods except construction are called exclusively from the owning report
// host's goroutine; no external caller may invoke them concurrently.
type Report interface {
	// Info returns the report's windowing configuration. Called once, from
	// ReportHost.Startup, before the report is handed to its own goroutine.
	Info() ReportInfo

	// TicksInit seeds the report's notion of "now" before the first TickNow.
	TicksInit(now time.Time)

	// TickNow advances the report's time window.
	TickNow(now time.Time)

	// AddMulti folds a batch of packets into the report's current window.
	AddMulti(packets []model.Packet)

	// GetSnapshot returns an immutable view of the report's current state.
	GetSnapshot() Snapshot

	// Name returns the report's name, used as its key in the report host map.
	Name() string
}
