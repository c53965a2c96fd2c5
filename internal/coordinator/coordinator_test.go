package coordinator

import (
	"sync"
	"testing"
	"time"

	"go2spectra/internal/model"
	"go2spectra/internal/ticker"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *Globals) {
	t.Helper()
	globals := NewGlobals(ticker.New())
	c := New(globals, Config{InputBufferCapacity: 8, ReportHostBufferCapacity: 8})
	c.Startup()
	t.Cleanup(func() {
		_ = c.Shutdown()
	})
	return c, globals
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("condition not met within %s", timeout)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

// S1: lifecycle
func TestCoordinator_S1_Lifecycle(t *testing.T) {
	c, _ := newTestCoordinator(t)

	r1 := newFakeReport("R1")
	if err := c.AddReport(r1); err != nil {
		t.Fatalf("AddReport failed: %v", err)
	}

	batch := NewPacketBatch([]model.Packet{{}, {}, {}})
	c.InputChannel() <- batch

	waitFor(t, time.Second, func() bool {
		p, _ := r1.stats()
		return p == 3
	})

	snap, err := c.GetReportSnapshot("R1")
	if err != nil {
		t.Fatalf("GetReportSnapshot failed: %v", err)
	}
	if snap.(int) != 3 {
		t.Fatalf("expected snapshot to see 3 packets, got %v", snap)
	}

	if err := c.DeleteReport("R1"); err != nil {
		t.Fatalf("DeleteReport failed: %v", err)
	}

	names, err := c.ListReports()
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no reports after delete, got %v", names)
	}
}

// S2: fan-out
func TestCoordinator_S2_FanOut(t *testing.T) {
	c, _ := newTestCoordinator(t)

	reports := []*fakeReport{newFakeReport("R1"), newFakeReport("R2"), newFakeReport("R3")}
	for _, r := range reports {
		if err := c.AddReport(r); err != nil {
			t.Fatalf("AddReport(%s) failed: %v", r.Name(), err)
		}
	}

	batch := NewPacketBatch([]model.Packet{{}, {}, {}, {}, {}})
	c.InputChannel() <- batch

	for _, r := range reports {
		r := r
		waitFor(t, time.Second, func() bool {
			p, calls := r.stats()
			return p == 5 && calls == 1
		})
	}
}

// S3: slow consumer
func TestCoordinator_S3_SlowConsumerDrops(t *testing.T) {
	c, globals := newTestCoordinator(t)

	r1 := newFakeReport("R1")
	r2 := newFakeReport("R2")
	r2.blockAdd = 50 * time.Millisecond
	r3 := newFakeReport("R3")

	for _, r := range []*fakeReport{r1, r2, r3} {
		if err := c.AddReport(r); err != nil {
			t.Fatalf("AddReport(%s) failed: %v", r.Name(), err)
		}
	}

	const bufCap = 8
	const total = bufCap * 2 // comfortably more than the host can hold plus one in flight
	for i := 0; i < total; i++ {
		c.InputChannel() <- NewPacketBatch([]model.Packet{{}})
	}

	waitFor(t, 2*time.Second, func() bool {
		_, calls := r1.stats()
		return calls == total
	})
	waitFor(t, 2*time.Second, func() bool {
		_, calls := r3.stats()
		return calls == total
	})

	// Let R2 drain whatever it can within its backlog; some drops are
	// expected since it can never fully catch up to R1/R3's pace.
	time.Sleep(time.Second)

	stats := globals.Snapshot()
	if stats.DroppedByReport["R2"] == 0 {
		t.Errorf("expected R2 to have dropped at least one batch")
	}
	_, r2Calls := r2.stats()
	if uint64(r2Calls)+stats.DroppedByReport["R2"] != uint64(total) {
		t.Errorf("R2 delivered+dropped should equal total sent: calls=%d dropped=%d total=%d",
			r2Calls, stats.DroppedByReport["R2"], total)
	}
}

// S4: name reuse
func TestCoordinator_S4_NameReuseAfterDelete(t *testing.T) {
	c, _ := newTestCoordinator(t)

	r1 := newFakeReport("R1")
	if err := c.AddReport(r1); err != nil {
		t.Fatalf("first AddReport failed: %v", err)
	}
	if err := c.DeleteReport("R1"); err != nil {
		t.Fatalf("DeleteReport failed: %v", err)
	}

	r1b := newFakeReport("R1")
	if err := c.AddReport(r1b); err != nil {
		t.Fatalf("AddReport after delete should succeed, got: %v", err)
	}
}

// S5: shutdown while ingesting
func TestCoordinator_S5_ShutdownWhileIngesting(t *testing.T) {
	globals := NewGlobals(ticker.New())
	c := New(globals, Config{InputBufferCapacity: 8, ReportHostBufferCapacity: 8})
	c.Startup()

	r1 := newFakeReport("R1")
	if err := c.AddReport(r1); err != nil {
		t.Fatalf("AddReport failed: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.InputChannel() <- NewPacketBatch([]model.Packet{{}})
				time.Sleep(time.Millisecond)
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	close(stop)
	wg.Wait()

	_, callsAtShutdown := r1.stats()
	time.Sleep(50 * time.Millisecond)
	_, callsAfter := r1.stats()
	if callsAfter != callsAtShutdown {
		t.Errorf("expected no further AddMulti calls after shutdown, before=%d after=%d", callsAtShutdown, callsAfter)
	}
}

// S6: control error
func TestCoordinator_S6_UnknownReportError(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.GetReportSnapshot("nope")
	if err == nil {
		t.Fatalf("expected error for unknown report")
	}

	if err := c.DeleteReport("nope"); err == nil {
		t.Fatalf("expected error deleting unknown report")
	}
}

// S7: duplicate add
func TestCoordinator_S7_DuplicateAddLeavesFirstRunning(t *testing.T) {
	c, _ := newTestCoordinator(t)

	r1 := newFakeReport("R1")
	if err := c.AddReport(r1); err != nil {
		t.Fatalf("first AddReport failed: %v", err)
	}

	r1dup := newFakeReport("R1")
	if err := c.AddReport(r1dup); err == nil {
		t.Fatalf("expected duplicate AddReport to fail")
	}

	batch := NewPacketBatch([]model.Packet{{}, {}})
	c.InputChannel() <- batch

	waitFor(t, time.Second, func() bool {
		p, _ := r1.stats()
		return p == 2
	})

	// The duplicate report was never started: it should have seen nothing.
	p, calls := r1dup.stats()
	if p != 0 || calls != 0 {
		t.Errorf("expected duplicate report to be untouched, got packets=%d calls=%d", p, calls)
	}
}
