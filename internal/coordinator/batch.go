package coordinator

import (
	"sync/atomic"

	"go2spectra/internal/model"
)

// PacketBatch is an immutable, shared-ownership bundle of parsed packets.
// The coordinator holds one reference on ingest and clones a reference once
// per report host it forwards the batch to; the batch's backing slice is
// released once the last holder calls Release.
type PacketBatch struct {
	packets []model.Packet
	refs    int32
}

// NewPacketBatch wraps packets in a PacketBatch with a single reference held
// by the caller.
func NewPacketBatch(packets []model.Packet) *PacketBatch {
	return &PacketBatch{packets: packets, refs: 1}
}

// PacketCount returns the number of packets in the batch.
func (b *PacketBatch) PacketCount() int {
	return len(b.packets)
}

// Packets returns the batch's packets. The returned slice must not be
// mutated; batches are immutable once constructed.
func (b *PacketBatch) Packets() []model.Packet {
	return b.packets
}

// Clone returns the same batch with its reference count incremented. Every
// Clone must be balanced by exactly one Release.
func (b *PacketBatch) Clone() *PacketBatch {
	atomic.AddInt32(&b.refs, 1)
	return b
}

// Release drops one reference. Once the last reference is released the
// batch's backing slice is dropped so it can be garbage collected.
func (b *PacketBatch) Release() {
	if atomic.AddInt32(&b.refs, -1) == 0 {
		b.packets = nil
	}
}
