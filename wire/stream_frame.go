// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// FrameFlags are an one-octet field of single-bit flags for a STREAM frame.
type FrameFlags uint8

const (
	// FlagFin indicates that this frame carries the stream's final byte range.
	FlagFin FrameFlags = 0x01
)

func (ff FrameFlags) String() string {
	var flags []string

	if ff&FlagFin != 0 {
		flags = append(flags, "FIN")
	}

	return strings.Join(flags, ",")
}

// FrameHeaderLength is the encoded size of a StreamFrame without its payload:
// stream id (u64), offset (u64), length (u32) and flags (u8).
const FrameHeaderLength = 21

// StreamFrame is a STREAM frame, carrying an offsetted byte range of a single
// stream. The payload length is always encoded explicitly; frames within a
// packet are concatenated without separators and must be parseable
// left-to-right.
type StreamFrame struct {
	StreamID uint64
	Offset   uint64
	Fin      bool
	Data     []byte
}

// NewStreamFrame creates a new StreamFrame with given fields.
func NewStreamFrame(streamID, offset uint64, fin bool, data []byte) StreamFrame {
	return StreamFrame{
		StreamID: streamID,
		Offset:   offset,
		Fin:      fin,
		Data:     data,
	}
}

func (sf StreamFrame) String() string {
	return fmt.Sprintf("STREAM(Stream ID=%d, Offset=%d, Length=%d, Flags=%v)",
		sf.StreamID, sf.Offset, len(sf.Data), sf.Flags())
}

// Flags returns the frame's flag octet.
func (sf StreamFrame) Flags() (ff FrameFlags) {
	if sf.Fin {
		ff |= FlagFin
	}
	return
}

// EncodedLen returns the on-wire size of this frame in bytes.
func (sf StreamFrame) EncodedLen() int {
	return FrameHeaderLength + len(sf.Data)
}

// Marshal writes this StreamFrame's binary representation.
func (sf StreamFrame) Marshal(w io.Writer) error {
	var fields = []interface{}{
		sf.StreamID,
		sf.Offset,
		uint32(len(sf.Data)),
		uint8(sf.Flags()),
	}

	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	if n, err := w.Write(sf.Data); err != nil {
		return err
	} else if n != len(sf.Data) {
		return fmt.Errorf("STREAM frame payload length is %d, but only wrote %d bytes", len(sf.Data), n)
	}

	return nil
}

// DecodeStreamFrame parses the StreamFrame at the beginning of data and
// returns the amount of consumed bytes. The payload is copied out of data.
func DecodeStreamFrame(data []byte) (sf StreamFrame, n int, err error) {
	if len(data) < FrameHeaderLength {
		err = fmt.Errorf("%w: %d bytes remain, frame header needs %d",
			ErrTruncatedFrame, len(data), FrameHeaderLength)
		return
	}

	sf.StreamID = binary.BigEndian.Uint64(data[0:8])
	sf.Offset = binary.BigEndian.Uint64(data[8:16])
	length := int(binary.BigEndian.Uint32(data[16:20]))

	flags := FrameFlags(data[20])
	if flags&^FlagFin != 0 {
		err = fmt.Errorf("%w: 0x%02x", ErrReservedBits, uint8(flags))
		return
	}
	sf.Fin = flags&FlagFin != 0

	if len(data)-FrameHeaderLength < length {
		err = fmt.Errorf("%w: payload length is %d, but %d bytes remain",
			ErrTruncatedFrame, length, len(data)-FrameHeaderLength)
		return
	}

	sf.Data = append([]byte(nil), data[FrameHeaderLength:FrameHeaderLength+length]...)
	n = FrameHeaderLength + length
	return
}
