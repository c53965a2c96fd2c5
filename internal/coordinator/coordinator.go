// Package coordinator implements the fan-out, lifecycle-management, and
// control-plane core of the stats-aggregation service: it routes inbound
// packet batches to a dynamic set of report hosts and services typed
// control requests to add/delete reports and extract their snapshots.
package coordinator

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Config configures a Coordinator.
type Config struct {
	// InputBufferCapacity bounds the repacker-facing ingest channel.
	InputBufferCapacity int
	// ReportHostBufferCapacity is the default PacketsBufferCapacity handed
	// to every ReportHost this coordinator creates via AddReport.
	ReportHostBufferCapacity int
}

const coordinatorTickerName = "coordinator"

// Coordinator owns the report-host map and routes batches and control
// requests to it from its own worker goroutine.
type Coordinator struct {
	globals *Globals
	conf    Config

	hosts map[string]*ReportHost

	inputCh   chan *PacketBatch
	controlCh chan controlRequest

	shutdown int32 // atomic: 1 once Shutdown has been called
	wg       sync.WaitGroup
}

// New creates a Coordinator bound to globals. Startup must be called before
// it accepts batches or control requests.
func New(globals *Globals, conf Config) *Coordinator {
	if conf.InputBufferCapacity <= 0 {
		conf.InputBufferCapacity = 1
	}
	return &Coordinator{
		globals:   globals,
		conf:      conf,
		hosts:     make(map[string]*ReportHost),
		inputCh:   make(chan *PacketBatch, conf.InputBufferCapacity),
		controlCh: make(chan controlRequest),
	}
}

// Startup spawns the coordinator's worker goroutine. Returns immediately.
func (c *Coordinator) Startup() {
	c.wg.Add(1)
	go c.run()
}

// InputChannel is the repacker-facing ingest channel.
func (c *Coordinator) InputChannel() chan<- *PacketBatch {
	return c.inputCh
}

// Globals returns the shared statistics/ticker dependency this coordinator
// was built with, for read-only reporting (e.g. the admin server's /stats
// endpoint).
func (c *Coordinator) Globals() *Globals {
	return c.globals
}

// Shutdown stops every report host, stops the worker goroutine, and waits
// for it to exit.
func (c *Coordinator) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&c.shutdown, 0, 1) {
		return ErrShutDown
	}

	reply := make(chan genericResponse, 1)
	c.controlCh <- controlRequest{kind: controlShutdown, genericReply: reply}
	resp := <-reply
	c.wg.Wait()

	if resp.Status != StatusOK {
		return fmt.Errorf("coordinator: shutdown: %s", resp.Message)
	}
	return nil
}

// Call synchronously runs fn on the coordinator's goroutine and blocks
// until it completes.
func (c *Coordinator) Call(fn func(*Coordinator)) error {
	reply := make(chan genericResponse, 1)
	c.controlCh <- controlRequest{kind: controlCall, call: fn, genericReply: reply}
	resp := <-reply
	if resp.Status != StatusOK {
		return fmt.Errorf("coordinator: call: %s", resp.Message)
	}
	return nil
}

// AddReport starts a new report host for report and adds it to the map. If
// a host with the same name already exists, report is left unstarted and an
// error is returned.
func (c *Coordinator) AddReport(report Report) error {
	reply := make(chan genericResponse, 1)
	c.controlCh <- controlRequest{kind: controlAddReport, report: report, genericReply: reply}
	resp := <-reply
	if resp.Status != StatusOK {
		return fmt.Errorf("coordinator: add report: %s", resp.Message)
	}
	return nil
}

// DeleteReport shuts down and removes the named report host.
func (c *Coordinator) DeleteReport(name string) error {
	reply := make(chan genericResponse, 1)
	c.controlCh <- controlRequest{kind: controlDeleteReport, name: name, genericReply: reply}
	resp := <-reply
	if resp.Status != StatusOK {
		return fmt.Errorf("coordinator: delete report %q: %s", name, resp.Message)
	}
	return nil
}

// GetReportSnapshot returns the named report's current snapshot.
func (c *Coordinator) GetReportSnapshot(name string) (Snapshot, error) {
	reply := make(chan snapshotResponse, 1)
	c.controlCh <- controlRequest{kind: controlGetSnapshot, name: name, snapshotReply: reply}
	resp := <-reply
	if resp.generic.Status != StatusOK {
		return nil, fmt.Errorf("coordinator: get snapshot %q: %s", name, resp.generic.Message)
	}
	return resp.snapshot, nil
}

// ListReports returns the names of every currently live report, sorted.
func (c *Coordinator) ListReports() ([]string, error) {
	reply := make(chan listResponse, 1)
	c.controlCh <- controlRequest{kind: controlListReports, listReply: reply}
	resp := <-reply
	if resp.generic.Status != StatusOK {
		return nil, fmt.Errorf("coordinator: list reports: %s", resp.generic.Message)
	}
	return resp.names, nil
}

func (c *Coordinator) run() {
	defer c.wg.Done()

	tickCh, err := c.globals.Ticker.Subscribe(time.Second, coordinatorTickerName)
	if err != nil {
		log.Printf("coordinator: failed to subscribe liveness ticker: %v", err)
	}

	for {
		select {
		case <-tickCh:
			// liveness nudge only; no observable effect (see design notes)

		case batch := <-c.inputCh:
			c.globals.incTotalBatches()
			for _, host := range c.hosts {
				host.ProcessBatch(batch.Clone())
			}
			batch.Release()

		case req := <-c.controlCh:
			if c.dispatch(req) {
				if tickCh != nil {
					c.globals.Ticker.Unsubscribe(coordinatorTickerName)
				}
				return
			}
		}
	}
}

// dispatch services one control request. It returns true if the worker loop
// should exit after this call (i.e. a shutdown request was processed).
func (c *Coordinator) dispatch(req controlRequest) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			c.replyError(req, fmt.Sprintf("panic: %v", r))
		}
	}()

	switch req.kind {
	case controlCall:
		req.call(c)
		c.replyOK(req)

	case controlShutdown:
		for _, host := range c.hosts {
			host.Shutdown()
		}
		c.replyOK(req)
		stop = true

	case controlAddReport:
		c.handleAddReport(req)

	case controlDeleteReport:
		c.handleDeleteReport(req)

	case controlGetSnapshot:
		c.handleGetSnapshot(req)

	case controlListReports:
		c.handleListReports(req)

	default:
		c.replyError(req, fmt.Sprintf("unknown control request type: %d", req.kind))
	}

	return stop
}

func (c *Coordinator) handleAddReport(req controlRequest) {
	name := req.report.Name()

	if _, exists := c.hosts[name]; exists {
		c.replyError(req, fmt.Sprintf("report already exists: %s", name))
		return
	}

	threadID := len(c.hosts)
	hostConf := ReportHostConfig{
		Name:                  name,
		ThreadName:            fmt.Sprintf("rh/%d", threadID),
		PacketsBufferCapacity: c.conf.ReportHostBufferCapacity,
	}

	host := NewReportHost(c.globals, hostConf)
	if err := host.Startup(req.report); err != nil {
		c.replyError(req, err.Error())
		return
	}

	c.hosts[name] = host
	c.replyOK(req)
}

func (c *Coordinator) handleDeleteReport(req controlRequest) {
	host, exists := c.hosts[req.name]
	if !exists {
		c.replyError(req, fmt.Sprintf("unknown report: %s", req.name))
		return
	}

	host.Shutdown()
	delete(c.hosts, req.name)
	c.replyOK(req)
}

func (c *Coordinator) handleGetSnapshot(req controlRequest) {
	host, exists := c.hosts[req.name]
	if !exists {
		req.snapshotReply <- snapshotResponse{generic: genericResponse{
			Status:  StatusError,
			Message: fmt.Sprintf("unknown report: %s", req.name),
		}}
		return
	}

	var snapshot Snapshot
	host.CallWithReport(func(r Report) {
		snapshot = r.GetSnapshot()
	})

	req.snapshotReply <- snapshotResponse{
		generic:  genericResponse{Status: StatusOK},
		snapshot: snapshot,
	}
}

func (c *Coordinator) handleListReports(req controlRequest) {
	names := make([]string, 0, len(c.hosts))
	for name := range c.hosts {
		names = append(names, name)
	}
	sort.Strings(names)

	req.listReply <- listResponse{
		generic: genericResponse{Status: StatusOK},
		names:   names,
	}
}

func (c *Coordinator) replyOK(req controlRequest) {
	if req.genericReply != nil {
		req.genericReply <- genericResponse{Status: StatusOK}
	}
}

func (c *Coordinator) replyError(req controlRequest, message string) {
	switch {
	case req.genericReply != nil:
		req.genericReply <- genericResponse{Status: StatusError, Message: message}
	case req.snapshotReply != nil:
		req.snapshotReply <- snapshotResponse{generic: genericResponse{Status: StatusError, Message: message}}
	case req.listReply != nil:
		req.listReply <- listResponse{generic: genericResponse{Status: StatusError, Message: message}}
	}
}
