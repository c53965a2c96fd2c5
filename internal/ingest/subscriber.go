// Package ingest adapts the upstream repacker's NATS-delivered packet
// batches into the coordinator's PacketBatch input queue. The wire format
// and the repacker itself are external collaborators out of scope for this
// module; this package only implements the boundary described in SPEC_FULL
// section 6.
package ingest

import (
	"bytes"
	"encoding/gob"
	"log"
	"net"
	"time"

	"github.com/nats-io/nats.go"

	"go2spectra/internal/coordinator"
	"go2spectra/internal/model"
)

// wirePacket is the gob-encoded representation of a single packet as
// published by the repacker.
type wirePacket struct {
	Timestamp time.Time
	SrcIP     net.IP
	DstIP     net.IP
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8
	Length    int
}

// wireBatch is the gob-encoded envelope published on the ingest subject.
type wireBatch struct {
	Packets []wirePacket
}

// Config configures a Subscriber.
type Config struct {
	NATSURL string
	Subject string
}

// Subscriber consumes batches from NATS and feeds them into a coordinator's
// input channel.
type Subscriber struct {
	conf Config
	nc   *nats.Conn
	sub  *nats.Subscription
	in   chan<- *coordinator.PacketBatch
}

// NewSubscriber creates a Subscriber that will push decoded batches onto in.
func NewSubscriber(conf Config, in chan<- *coordinator.PacketBatch) *Subscriber {
	return &Subscriber{conf: conf, in: in}
}

// Start connects to NATS and begins forwarding batches.
func (s *Subscriber) Start() error {
	nc, err := nats.Connect(s.conf.NATSURL)
	if err != nil {
		return err
	}
	s.nc = nc

	sub, err := nc.Subscribe(s.conf.Subject, s.handleMessage)
	if err != nil {
		nc.Close()
		return err
	}
	s.sub = sub

	log.Printf("ingest: subscribed to %q on %s", s.conf.Subject, s.conf.NATSURL)
	return nil
}

// Stop unsubscribes and closes the NATS connection.
func (s *Subscriber) Stop() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Drain()
	}
}

func (s *Subscriber) handleMessage(msg *nats.Msg) {
	var wb wireBatch
	if err := gob.NewDecoder(bytes.NewReader(msg.Data)).Decode(&wb); err != nil {
		log.Printf("ingest: dropping malformed batch: %v", err)
		return
	}

	packets := make([]model.Packet, 0, len(wb.Packets))
	for _, wp := range wb.Packets {
		packets = append(packets, model.Packet{
			Timestamp: wp.Timestamp,
			FiveTuple: model.FiveTuple{
				SrcIP:    wp.SrcIP,
				DstIP:    wp.DstIP,
				SrcPort:  wp.SrcPort,
				DstPort:  wp.DstPort,
				Protocol: wp.Protocol,
			},
			Length: wp.Length,
		})
	}

	s.in <- coordinator.NewPacketBatch(packets)
}
