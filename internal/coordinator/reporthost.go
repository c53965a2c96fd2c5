package coordinator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ReportHostConfig configures a single ReportHost. Endpoint names in the
// original nanomsg-based design have no counterpart in this
// goroutine-and-channel design — there is nothing to bind or connect.
type ReportHostConfig struct {
	// Name is the report's name; also the ticker subscription name.
	Name string
	// ThreadName is a descriptive label for the worker goroutine. The host
	// stores it but does not read it.
	ThreadName string
	// PacketsBufferCapacity bounds the ingest channel.
	PacketsBufferCapacity int
}

// ReportHost owns one report instance and single-threads all access to it
// behind a worker goroutine's event loop.
type ReportHost struct {
	globals *Globals
	conf    ReportHostConfig

	packetsReceived uint64
	dropped         uint64

	packetsCh  chan *PacketBatch
	controlCh  chan reportHostRequest
	shutdownCh chan chan struct{}

	started    bool
	shutdown   int32 // atomic: 1 once Shutdown has been called
	wg         sync.WaitGroup
	tickCh     <-chan time.Time
}

// NewReportHost creates a ReportHost. It does not start the worker
// goroutine; call Startup with the report to host.
func NewReportHost(globals *Globals, conf ReportHostConfig) *ReportHost {
	if conf.PacketsBufferCapacity <= 0 {
		conf.PacketsBufferCapacity = 1
	}
	return &ReportHost{
		globals:    globals,
		conf:       conf,
		packetsCh:  make(chan *PacketBatch, conf.PacketsBufferCapacity),
		controlCh:  make(chan reportHostRequest),
		shutdownCh: make(chan chan struct{}),
	}
}

// Startup binds report as the hosted report, subscribes to the ticker at
// report.Info().TimeWindow/TickCount, and spawns the worker goroutine.
// Returns ErrAlreadyStarted if called twice.
func (h *ReportHost) Startup(report Report) error {
	if h.started {
		return ErrAlreadyStarted
	}
	h.started = true

	info := report.Info()
	if info.TickCount == 0 {
		info.TickCount = 1
	}
	interval := info.TimeWindow / time.Duration(info.TickCount)

	tickCh, err := h.globals.Ticker.Subscribe(interval, h.conf.Name)
	if err != nil {
		h.started = false
		return fmt.Errorf("report host %q: subscribe ticker: %w", h.conf.Name, err)
	}
	h.tickCh = tickCh

	h.globals.registerReport(h.conf.Name)

	h.wg.Add(1)
	go h.run(report)

	return nil
}

// ProcessBatch enqueues batch on the ingest channel without blocking. If the
// channel is full, the batch's reference is released and the drop counter
// is incremented; the caller is never blocked.
func (h *ReportHost) ProcessBatch(batch *PacketBatch) {
	select {
	case h.packetsCh <- batch:
	default:
		batch.Release()
		atomic.AddUint64(&h.dropped, 1)
		h.globals.incDropped(h.conf.Name)
	}
}

// CallWithReport synchronously runs fn on the host's goroutine and blocks
// until it completes.
func (h *ReportHost) CallWithReport(fn func(Report)) error {
	if atomic.LoadInt32(&h.shutdown) == 1 {
		return ErrHostShutDown
	}

	req := reportHostRequest{fn: fn, reply: make(chan struct{})}
	h.controlCh <- req
	<-req.reply
	return nil
}

// Shutdown stops the worker goroutine and waits for it to exit. After
// Shutdown returns the host is drained and destroyed.
func (h *ReportHost) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&h.shutdown, 0, 1) {
		return ErrHostShutDown
	}

	reply := make(chan struct{})
	h.shutdownCh <- reply
	<-reply
	h.wg.Wait()
	return nil
}

// PacketsReceived returns the number of packets this host has folded into
// its report so far.
func (h *ReportHost) PacketsReceived() uint64 {
	return atomic.LoadUint64(&h.packetsReceived)
}

// Dropped returns the number of batches dropped due to a full ingest
// channel.
func (h *ReportHost) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

func (h *ReportHost) run(report Report) {
	defer h.wg.Done()

	report.TicksInit(time.Now())

	for {
		select {
		case now := <-h.tickCh:
			report.TickNow(now)

		case batch := <-h.packetsCh:
			n := batch.PacketCount()
			atomic.AddUint64(&h.packetsReceived, uint64(n))
			h.globals.addPackets(h.conf.Name, uint64(n))
			report.AddMulti(batch.Packets())
			batch.Release()

		case req := <-h.controlCh:
			req.fn(report)
			close(req.reply)

		case reply := <-h.shutdownCh:
			h.globals.Ticker.Unsubscribe(h.conf.Name)
			h.globals.unregisterReport(h.conf.Name)
			close(reply)
			return
		}
	}
}
