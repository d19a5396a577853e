// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package core

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/squic/squic-go/stream"
	"github.com/squic/squic-go/wire"
)

func testGetRandomData(size int) []byte {
	payload := make([]byte, size)

	rand.Seed(0)
	rand.Read(payload)

	return payload
}

// testConnection binds a Connection to an ephemeral loopback port.
func testConnection(t *testing.T, config Config, role stream.Initiator) *Connection {
	config.LocalAddress = "127.0.0.1:0"
	if config.RemoteAddress == "" {
		config.RemoteAddress = "127.0.0.1:0"
	}
	if config.MaxStreams == 0 {
		config.MaxStreams = DefaultMaxStreams
	}
	if config.Timeout == 0 {
		config.Timeout = time.Second
	}

	c, err := NewConnection(config, role)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c
}

// testDrainPackets calls buildPacket until the scheduler runs dry.
func testDrainPackets(t *testing.T, c *Connection) (packets []*wire.Packet) {
	for i := 0; ; i++ {
		if i > 10000 {
			t.Fatal("Scheduler did not drain")
		}

		packet := c.buildPacket()
		if packet == nil {
			return
		}
		packets = append(packets, packet)
	}
}

func TestSchedulerSingleFramePacket(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 32, MaxPacketSize: 64}, stream.ClientInitiated)

	st, err := c.OpenStream(stream.Bidirectional)
	if err != nil {
		t.Fatal(err)
	}
	if st.ID() != 0 {
		t.Fatalf("Expected stream id 0, got %d", st.ID())
	}

	if err := st.Write([]byte("HELLO WORLD")); err != nil {
		t.Fatal(err)
	}
	if err := st.Finish(); err != nil {
		t.Fatal(err)
	}

	packets := testDrainPackets(t, c)
	if len(packets) != 1 {
		t.Fatalf("Expected one packet, got %d", len(packets))
	}
	if len(packets[0].Frames) != 1 {
		t.Fatalf("Expected one frame, got %d", len(packets[0].Frames))
	}

	frame := packets[0].Frames[0]
	if frame.Offset != 0 || !frame.Fin || !bytes.Equal(frame.Data, []byte("HELLO WORLD")) {
		t.Fatalf("Unexpected frame: %v", frame)
	}
}

func TestSchedulerPacketSizeLaw(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 1000, MaxPacketSize: 1500}, stream.ClientInitiated)

	st, err := c.OpenStream(stream.Bidirectional)
	if err != nil {
		t.Fatal(err)
	}

	if err := st.Write(bytes.Repeat([]byte{0x41}, 5000)); err != nil {
		t.Fatal(err)
	}
	if err := st.Finish(); err != nil {
		t.Fatal(err)
	}

	packets := testDrainPackets(t, c)
	if len(packets) < 4 {
		t.Fatalf("Expected at least 4 packets, got %d", len(packets))
	}

	var total uint64
	var fins int
	var lastPacketNumber uint64
	for _, packet := range packets {
		if size := packet.EncodedLen(); size > 1500 {
			t.Fatalf("Packet of %d bytes breaks the size law", size)
		}
		if packet.Header.PacketNumber <= lastPacketNumber {
			t.Fatalf("Packet number %d is not increasing", packet.Header.PacketNumber)
		}
		lastPacketNumber = packet.Header.PacketNumber

		for _, frame := range packet.Frames {
			total += uint64(len(frame.Data))
			if frame.Fin {
				fins++
			}
		}
	}

	if total != 5000 {
		t.Fatalf("Expected 5000 payload bytes, got %d", total)
	}
	if fins != 1 {
		t.Fatalf("Expected exactly one FIN, got %d", fins)
	}
}

func TestSchedulerRoundRobinFairness(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 1000, MaxPacketSize: 1500}, stream.ClientInitiated)

	var streams []*stream.Stream
	for i := 0; i < 2; i++ {
		st, err := c.OpenStream(stream.Bidirectional)
		if err != nil {
			t.Fatal(err)
		}

		if err := st.Write(testGetRandomData(2000)); err != nil {
			t.Fatal(err)
		}
		if err := st.Finish(); err != nil {
			t.Fatal(err)
		}

		streams = append(streams, st)
	}

	if streams[0].ID() != 0 || streams[1].ID() != 4 {
		t.Fatalf("Unexpected stream ids %d, %d", streams[0].ID(), streams[1].ID())
	}

	packets := testDrainPackets(t, c)

	// The starting stream rotates across invocations, so consecutive
	// packets serve different streams while both have data.
	if first := packets[0].Frames[0].StreamID; first == packets[1].Frames[0].StreamID {
		t.Fatalf("Stream %d hogged the first two packets", first)
	}

	seen := make(map[uint64]uint64)
	for _, packet := range packets {
		for _, frame := range packet.Frames {
			seen[frame.StreamID] += uint64(len(frame.Data))
		}
	}
	for _, st := range streams {
		if seen[st.ID()] != 2000 {
			t.Fatalf("Stream %d: expected 2000 bytes, got %d", st.ID(), seen[st.ID()])
		}
	}
}

func TestSchedulerIdleYields(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 32, MaxPacketSize: 64}, stream.ClientInitiated)

	if _, err := c.OpenStream(stream.Bidirectional); err != nil {
		t.Fatal(err)
	}

	if packet := c.buildPacket(); packet != nil {
		t.Fatalf("Expected no packet from an idle connection, got %v", packet)
	}
}

func TestOpenStreamLimit(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 32, MaxPacketSize: 64, MaxStreams: 2}, stream.ClientInitiated)

	for i := 0; i < 2; i++ {
		if _, err := c.OpenStream(stream.Unidirectional); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := c.OpenStream(stream.Unidirectional); !errors.Is(err, ErrTooManyStreams) {
		t.Fatalf("Expected ErrTooManyStreams, got %v", err)
	}
}
