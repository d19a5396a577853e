// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package core

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/squic/squic-go/stream"
	"github.com/squic/squic-go/wire"
)

func TestDispatcherCorruptDatagram(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 32, MaxPacketSize: 128}, stream.ServerInitiated)

	good := wire.NewPacket(1, 1)
	good.Frames = append(good.Frames, wire.NewStreamFrame(0, 0, false, []byte("fine")))
	goodData, err := good.MarshalBinary(128)
	if err != nil {
		t.Fatal(err)
	}

	c.dispatchDatagram(goodData)

	// Flip a byte in the length field so it overflows the datagram.
	bad := append([]byte(nil), goodData...)
	bad[wire.PacketHeaderLength+17] = 0xFF

	c.dispatchDatagram(bad)

	stats := c.Stats()
	if stats.ParseErrors != 1 {
		t.Fatalf("Expected one parse error, got %d", stats.ParseErrors)
	}
	if stats.ReceivedPackets != 1 {
		t.Fatalf("Expected one received packet, got %d", stats.ReceivedPackets)
	}

	// The corrupt datagram must not poison the stream from the good one.
	st, err := c.Stream(0)
	if err != nil {
		t.Fatal(err)
	}
	if st.Failed() {
		t.Fatal("Stream was poisoned by a corrupt datagram")
	}
	if read, err := st.ReadAvailable(); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(read, []byte("fine")) {
		t.Fatal("Delivered bytes differ")
	}
}

func TestDispatcherStreamLimit(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 32, MaxPacketSize: 1000, MaxStreams: 2}, stream.ServerInitiated)

	packet := wire.NewPacket(1, 1)
	for i := uint64(0); i < 4; i++ {
		packet.Frames = append(packet.Frames, wire.NewStreamFrame(i*4, 0, true, []byte("x")))
	}
	data, err := packet.MarshalBinary(1000)
	if err != nil {
		t.Fatal(err)
	}

	c.dispatchDatagram(data)

	if streams := c.Streams(); len(streams) != 2 {
		t.Fatalf("Expected 2 auto-created streams, got %d", len(streams))
	}
	if stats := c.Stats(); stats.StreamErrors != 2 {
		t.Fatalf("Expected 2 stream errors, got %d", stats.StreamErrors)
	}
}

func TestDispatcherFailedStreamIsolated(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 32, MaxPacketSize: 1000}, stream.ServerInitiated)

	packet := wire.NewPacket(1, 1)
	packet.Frames = append(packet.Frames,
		wire.NewStreamFrame(0, 0, true, []byte("1234")),
		// Contradicts stream 0's FIN, but stream 4 stays healthy.
		wire.NewStreamFrame(0, 4, false, []byte("5678")),
		wire.NewStreamFrame(4, 0, true, []byte("ok")))
	data, err := packet.MarshalBinary(1000)
	if err != nil {
		t.Fatal(err)
	}

	c.dispatchDatagram(data)

	if st, err := c.Stream(0); err != nil {
		t.Fatal(err)
	} else if !st.Failed() {
		t.Fatal("Stream 0 is not marked failed")
	}

	if st, err := c.Stream(4); err != nil {
		t.Fatal(err)
	} else if st.Failed() {
		t.Fatal("Stream 4 was poisoned")
	} else if !st.IsComplete() {
		t.Fatal("Stream 4 is not complete")
	}
}

func TestConnectionUnknownStream(t *testing.T) {
	c := testConnection(t, Config{MinPacketSize: 32, MaxPacketSize: 64}, stream.ClientInitiated)

	if _, err := c.Stream(23); !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("Expected ErrUnknownStream, got %v", err)
	}
}

func TestConnectionLoopback(t *testing.T) {
	config := Config{
		ConnectionID:  0x5153,
		MaxStreams:    5,
		MinPacketSize: 1000,
		MaxPacketSize: 1500,
		Timeout:       250 * time.Millisecond,
	}

	receiver := testConnection(t, config, stream.ServerInitiated)

	senderConfig := config
	senderConfig.RemoteAddress = receiver.LocalAddr().String()
	sender := testConnection(t, senderConfig, stream.ClientInitiated)

	receiveDone := make(chan error)
	go func() {
		receiveDone <- receiver.ReceiveLoop()
	}()

	data := testGetRandomData(4096)
	var ids []uint64
	for i := 0; i < 2; i++ {
		st, err := sender.OpenStream(stream.Unidirectional)
		if err != nil {
			t.Fatal(err)
		}
		if err := st.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := st.Finish(); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, st.ID())
	}

	if err := sender.SendLoop(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-receiveDone:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReceiveLoop did not terminate on its timeout")
	}

	for _, id := range ids {
		st, err := receiver.Stream(id)
		if err != nil {
			t.Fatal(err)
		}
		if !st.IsComplete() {
			t.Fatalf("Stream %d is not complete", id)
		}
		if read, err := st.ReadAvailable(); err != nil {
			t.Fatal(err)
		} else if !bytes.Equal(read, data) {
			t.Fatalf("Stream %d: reassembled bytes differ", id)
		}
	}

	stats := receiver.Stats()
	if stats.ReceivedPackets == 0 || stats.ParseErrors != 0 {
		t.Fatalf("Unexpected receiver statistics: %+v", stats)
	}
	if senderStats := sender.Stats(); senderStats.SentPackets != stats.ReceivedPackets {
		t.Fatalf("Sent %d packets, received %d", senderStats.SentPackets, stats.ReceivedPackets)
	}
}

func TestConfigCheckValid(t *testing.T) {
	valid := Config{
		MaxStreams:    DefaultMaxStreams,
		MinPacketSize: DefaultMinPacketSize,
		MaxPacketSize: DefaultMaxPacketSize,
		Timeout:       DefaultTimeout,
	}
	if err := valid.CheckValid(); err != nil {
		t.Fatal(err)
	}

	tests := []Config{
		{MaxStreams: 0, MinPacketSize: 100, MaxPacketSize: 200, Timeout: time.Second},
		{MaxStreams: 1, MinPacketSize: 100, MaxPacketSize: 20, Timeout: time.Second},
		{MaxStreams: 1, MinPacketSize: 100, MaxPacketSize: 200, Timeout: 0},
	}

	for i, test := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			if err := test.CheckValid(); err == nil {
				t.Fatal("Expected an error")
			}
		})
	}
}
