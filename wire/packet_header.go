// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// PacketHeaderLength is the encoded size of a PacketHeader: packet number
	// (u64) followed by the connection id (u64).
	PacketHeaderLength = 16

	// ConnectionIDLength is the fixed width of the connection id tag.
	ConnectionIDLength = 8
)

// PacketHeader precedes the frames of each datagram. The packet number
// increases monotonically per connection per direction; the connection id is
// an opaque fixed-width tag.
type PacketHeader struct {
	PacketNumber uint64
	ConnectionID uint64
}

func (ph PacketHeader) String() string {
	return fmt.Sprintf("HEADER(Packet Number=%d, Connection ID=%#016x)",
		ph.PacketNumber, ph.ConnectionID)
}

// Marshal writes this PacketHeader's binary representation.
func (ph PacketHeader) Marshal(w io.Writer) error {
	var fields = []interface{}{
		ph.PacketNumber,
		ph.ConnectionID,
	}

	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	return nil
}

// DecodePacketHeader parses the PacketHeader at the beginning of data and
// returns the amount of consumed bytes.
func DecodePacketHeader(data []byte) (ph PacketHeader, n int, err error) {
	if len(data) < PacketHeaderLength {
		err = fmt.Errorf("%w: %d bytes remain, header needs %d",
			ErrTruncatedHeader, len(data), PacketHeaderLength)
		return
	}

	ph.PacketNumber = binary.BigEndian.Uint64(data[0:8])
	ph.ConnectionID = binary.BigEndian.Uint64(data[8:16])
	n = PacketHeaderLength
	return
}
