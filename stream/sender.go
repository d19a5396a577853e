// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stream

import (
	"fmt"

	"github.com/squic/squic-go/wire"
)

// Sender is the sending half of a stream. It buffers application bytes and
// splits them into STREAM frames with strictly increasing, contiguous
// offsets. The FIN flag is advertised exactly once.
type Sender struct {
	streamID   uint64
	minPayload int

	buf        []byte
	nextOffset uint64
	finished   bool
	finSent    bool
}

// NewSender creates a Sender for the given stream id. Frames with less than
// minPayload bytes are withheld unless they end the stream.
func NewSender(streamID uint64, minPayload int) *Sender {
	return &Sender{
		streamID:   streamID,
		minPayload: minPayload,
	}
}

func (s *Sender) String() string {
	return fmt.Sprintf("SENDER(Stream ID=%d, Offset=%d, Buffered=%d)",
		s.streamID, s.nextOffset, len(s.buf))
}

// AddData appends data to the send buffer.
func (s *Sender) AddData(data []byte) error {
	if s.finished {
		return fmt.Errorf("%w: stream %d is finished", ErrWriteAfterFin, s.streamID)
	}

	s.buf = append(s.buf, data...)
	return nil
}

// Finish marks the current end of the buffer as the stream's final size. The
// FIN flag will ride on the last emitted frame, possibly an empty terminator.
func (s *Sender) Finish() {
	s.finished = true
}

// HasDataToSend reports whether GenerateFrame may produce a frame.
func (s *Sender) HasDataToSend() bool {
	return len(s.buf) > 0 || (s.finished && !s.finSent)
}

// IsTerminal reports whether the FIN was sent and nothing is outstanding.
func (s *Sender) IsTerminal() bool {
	return s.finSent && len(s.buf) == 0
}

// GenerateFrame produces the next frame with up to maxPayload bytes of
// payload. It returns nil when no data is currently available, which includes
// a short non-final remainder being withheld for a packet with more room. A
// full frame never carries the FIN; the flag then rides on a following
// frame, down to an empty terminator once the buffer is drained.
func (s *Sender) GenerateFrame(maxPayload int) (*wire.StreamFrame, error) {
	if len(s.buf) == 0 {
		if s.finished && !s.finSent {
			s.finSent = true
			frame := wire.NewStreamFrame(s.streamID, s.nextOffset, true, nil)
			return &frame, nil
		}
		return nil, nil
	}

	if maxPayload < 1 {
		return nil, fmt.Errorf("%w: maximum payload is %d", ErrFrameTooSmall, maxPayload)
	}

	chunk := len(s.buf)
	if chunk > maxPayload {
		chunk = maxPayload
	}

	final := s.finished && chunk == len(s.buf)
	if chunk < s.minPayload && !final {
		return nil, nil
	}

	frame := wire.NewStreamFrame(s.streamID, s.nextOffset, false,
		append([]byte(nil), s.buf[:chunk]...))
	if final && chunk < maxPayload {
		frame.Fin = true
		s.finSent = true
	}

	s.buf = s.buf[chunk:]
	s.nextOffset += uint64(chunk)

	return &frame, nil
}
