// Package model holds the packet-level data types shared across the
// coordinator, ingest, and report packages.
package model

import (
	"net"
	"time"
)

// FiveTuple represents the 5-tuple of a network packet.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// PacketInfo holds the metadata extracted from a single packet.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple
	Length    int
}

// Packet is the coordinator subsystem's name for the same packet record.
// Both names describe identical metadata; Packet is kept distinct so
// coordinator code doesn't read like it depends on the older aggregation
// engine.
type Packet = PacketInfo