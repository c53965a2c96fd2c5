package exact

import (
	"net"
	"testing"
	"time"

	"go2spectra/internal/model"
)

func samplePacket(srcPort uint16, length int) model.Packet {
	return model.Packet{
		Timestamp: time.Now(),
		FiveTuple: model.FiveTuple{
			SrcIP:    net.ParseIP("10.0.0.1"),
			DstIP:    net.ParseIP("10.0.0.2"),
			SrcPort:  srcPort,
			DstPort:  53,
			Protocol: 17,
		},
		Length: length,
	}
}

func TestTask_AddMultiAccumulatesByKey(t *testing.T) {
	task := New("t1", []string{"SrcIP", "DstIP"}, time.Minute, 6)

	task.AddMulti([]model.Packet{
		samplePacket(1, 100),
		samplePacket(2, 50), // same SrcIP/DstIP key, different port: folds together
	})

	snap := task.GetSnapshot().(Snapshot)
	if len(snap.Flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(snap.Flows))
	}
	for _, f := range snap.Flows {
		if f.PacketCount != 2 {
			t.Errorf("expected PacketCount 2, got %d", f.PacketCount)
		}
		if f.ByteCount != 150 {
			t.Errorf("expected ByteCount 150, got %d", f.ByteCount)
		}
	}
}

func TestTask_TickRotatesWindow(t *testing.T) {
	task := New("t2", []string{"SrcIP"}, time.Minute, 2)
	task.TicksInit(time.Now())

	task.AddMulti([]model.Packet{samplePacket(1, 10)})
	if len(task.GetSnapshot().(Snapshot).Flows) != 1 {
		t.Fatalf("expected 1 flow before rotation")
	}

	task.TickNow(time.Now()) // 1 of 2
	if len(task.GetSnapshot().(Snapshot).Flows) != 1 {
		t.Fatalf("expected flow to survive first tick")
	}

	task.TickNow(time.Now()) // 2 of 2: rotates
	if len(task.GetSnapshot().(Snapshot).Flows) != 0 {
		t.Fatalf("expected window to reset after tickCount ticks")
	}
}

func TestTask_UnknownKeyFieldSkipsPacket(t *testing.T) {
	task := New("t3", []string{"Bogus"}, time.Minute, 1)
	task.AddMulti([]model.Packet{samplePacket(1, 10)})

	if len(task.GetSnapshot().(Snapshot).Flows) != 0 {
		t.Fatalf("expected packet with unknown key field to be skipped")
	}
}
