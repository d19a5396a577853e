// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stream

import (
	"fmt"

	"github.com/squic/squic-go/wire"
)

// segment is a buffered byte range waiting for the delivery cursor to reach
// its offset.
type segment struct {
	offset uint64
	data   []byte
}

// Receiver is the receiving half of a stream. Frames may arrive at arbitrary
// offsets, duplicated or overlapping; the Receiver buffers them and advances
// a contiguous in-order prefix. Overlaps resolve first-writer-wins, so
// duplicate deliveries are idempotent.
type Receiver struct {
	streamID uint64

	// segments are sorted by offset, non-overlapping, all past deliveredUpto.
	segments      []segment
	deliveredUpto uint64
	pending       []byte

	finOffset uint64
	finKnown  bool
}

// NewReceiver creates a Receiver for the given stream id.
func NewReceiver(streamID uint64) *Receiver {
	return &Receiver{streamID: streamID}
}

func (r *Receiver) String() string {
	return fmt.Sprintf("RECEIVER(Stream ID=%d, Delivered=%d, Buffered Segments=%d)",
		r.streamID, r.deliveredUpto, len(r.segments))
}

// ReceiveFrame inserts the frame's payload at its offset and advances the
// in-order prefix as far as possible.
func (r *Receiver) ReceiveFrame(frame wire.StreamFrame) error {
	end := frame.Offset + uint64(len(frame.Data))

	if frame.Fin {
		if r.finKnown && r.finOffset != end {
			return fmt.Errorf("%w: %d and %d", ErrFinConflict, r.finOffset, end)
		}
		r.finOffset, r.finKnown = end, true
	} else if r.finKnown && end > r.finOffset {
		return fmt.Errorf("%w: frame ends at %d, stream ends at %d",
			ErrFinContradicted, end, r.finOffset)
	}

	r.insert(frame.Offset, frame.Data)
	r.advance()

	return nil
}

// insert merges a byte range into the buffered segments. Positions already
// delivered or already buffered keep their first writer's bytes.
func (r *Receiver) insert(offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}

	// Clip against the delivered prefix.
	if offset < r.deliveredUpto {
		if offset+uint64(len(data)) <= r.deliveredUpto {
			return
		}
		data = data[r.deliveredUpto-offset:]
		offset = r.deliveredUpto
	}

	for i := 0; len(data) > 0; i++ {
		if i == len(r.segments) {
			r.segments = append(r.segments, segment{offset, data})
			return
		}

		seg := r.segments[i]
		segEnd := seg.offset + uint64(len(seg.data))

		if segEnd <= offset {
			continue
		}

		// The piece in front of this segment is new data.
		if offset < seg.offset {
			n := seg.offset - offset
			if uint64(len(data)) < n {
				n = uint64(len(data))
			}

			r.segments = append(r.segments, segment{})
			copy(r.segments[i+1:], r.segments[i:])
			r.segments[i] = segment{offset, data[:n]}

			data = data[n:]
			offset += n
			continue
		}

		// Skip the part this segment already covers.
		if skip := segEnd - offset; uint64(len(data)) <= skip {
			return
		} else {
			data = data[skip:]
			offset = segEnd
		}
	}
}

// advance consumes buffered segments starting exactly at the delivery cursor.
func (r *Receiver) advance() {
	for len(r.segments) > 0 && r.segments[0].offset == r.deliveredUpto {
		seg := r.segments[0]
		r.segments = r.segments[1:]

		r.pending = append(r.pending, seg.data...)
		r.deliveredUpto += uint64(len(seg.data))
	}
}

// ReadAvailable returns the in-order prefix bytes past the last read
// position and advances it.
func (r *Receiver) ReadAvailable() []byte {
	data := r.pending
	r.pending = nil
	return data
}

// DeliveredBytes returns the length of the contiguous delivered prefix.
func (r *Receiver) DeliveredBytes() uint64 {
	return r.deliveredUpto
}

// IsComplete reports whether the final stream size is known and fully
// delivered.
func (r *Receiver) IsComplete() bool {
	return r.finKnown && r.deliveredUpto == r.finOffset
}
