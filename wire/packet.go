// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package wire implements the binary framing layer: STREAM frames carrying
// offsetted byte ranges, packed after a fixed-width packet header into single
// UDP datagrams. All integers are encoded in network byte order.
package wire

import (
	"bytes"
	"fmt"
)

// Packet is a PacketHeader followed by zero or more StreamFrames, sent as one
// UDP datagram. The amount of frames is discovered by parsing until the
// datagram is exhausted; there is no frame count field and no padding.
type Packet struct {
	Header PacketHeader
	Frames []StreamFrame
}

// NewPacket creates an empty Packet for the given packet number and
// connection id.
func NewPacket(packetNumber, connectionID uint64) Packet {
	return Packet{
		Header: PacketHeader{
			PacketNumber: packetNumber,
			ConnectionID: connectionID,
		},
	}
}

func (p Packet) String() string {
	return fmt.Sprintf("PACKET(%v, Frames=%d)", p.Header, len(p.Frames))
}

// EncodedLen returns the on-wire size of this packet in bytes.
func (p Packet) EncodedLen() int {
	size := PacketHeaderLength
	for _, frame := range p.Frames {
		size += frame.EncodedLen()
	}
	return size
}

// MarshalBinary encodes the header followed by each frame, end-to-end. An
// encoding exceeding maxSize bytes fails with ErrPacketTooLarge.
func (p Packet) MarshalBinary(maxSize int) ([]byte, error) {
	if size := p.EncodedLen(); size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes encoded, %d allowed", ErrPacketTooLarge, size, maxSize)
	}

	var buf bytes.Buffer
	if err := p.Header.Marshal(&buf); err != nil {
		return nil, err
	}
	for _, frame := range p.Frames {
		if err := frame.Marshal(&buf); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalPacket parses a datagram back into a Packet: the header, then
// frames until the buffer is exhausted. Trailing bytes not forming a complete
// frame fail with ErrTruncatedFrame.
func UnmarshalPacket(data []byte) (p Packet, err error) {
	var n int
	if p.Header, n, err = DecodePacketHeader(data); err != nil {
		return
	}

	for rest := data[n:]; len(rest) > 0; {
		var frame StreamFrame
		var consumed int

		if frame, consumed, err = DecodeStreamFrame(rest); err != nil {
			return
		}

		p.Frames = append(p.Frames, frame)
		rest = rest[consumed:]
	}

	return
}
