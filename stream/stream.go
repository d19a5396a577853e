// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stream

import (
	"fmt"

	"github.com/squic/squic-go/wire"
)

// Stream pairs a Sender and a Receiver under one stream id. A unidirectional
// stream owned by the remote endpoint has no send half and rejects outbound
// writes; one owned locally has no receive half. The Stream itself is purely
// a router between its halves.
type Stream struct {
	id       uint64
	sender   *Sender
	receiver *Receiver
	failed   bool
}

// New creates a Stream for the given id as seen from the local endpoint's
// role. Bidirectional streams carry both halves; unidirectional streams
// carry the send half on their initiator and the receive half on its peer.
// The minPayload bound is handed through to the Sender.
func New(id uint64, local Initiator, minPayload int) *Stream {
	s := &Stream{id: id}

	uni := DirectionOf(id) == Unidirectional
	if !uni || InitiatorOf(id) == local {
		s.sender = NewSender(id, minPayload)
	}
	if !uni || InitiatorOf(id) != local {
		s.receiver = NewReceiver(id)
	}

	return s
}

func (s *Stream) String() string {
	return fmt.Sprintf("STREAM(ID=%d, Direction=%v)", s.id, s.Direction())
}

// ID returns the stream id.
func (s *Stream) ID() uint64 {
	return s.id
}

// Direction of this Stream, derived from its id.
func (s *Stream) Direction() Direction {
	return DirectionOf(s.id)
}

// Write appends data to the send half's buffer.
func (s *Stream) Write(data []byte) error {
	if s.sender == nil {
		return fmt.Errorf("%w: stream %d", ErrNotWritable, s.id)
	}

	if err := s.sender.AddData(data); err != nil {
		s.failed = true
		return err
	}
	return nil
}

// Finish declares the stream's send side as finished.
func (s *Stream) Finish() error {
	if s.sender == nil {
		return fmt.Errorf("%w: stream %d", ErrNotWritable, s.id)
	}

	s.sender.Finish()
	return nil
}

// HasDataToSend reports whether the scheduler should offer packet space to
// this stream. Failed streams are excluded.
func (s *Stream) HasDataToSend() bool {
	return !s.failed && s.sender != nil && s.sender.HasDataToSend()
}

// NextFrame asks the send half for its next frame.
func (s *Stream) NextFrame(maxPayload int) (*wire.StreamFrame, error) {
	if s.failed || s.sender == nil {
		return nil, nil
	}

	// ErrFrameTooSmall is the scheduler offering too little room, not a
	// stream invariant violation.
	return s.sender.GenerateFrame(maxPayload)
}

// Deliver hands a received frame to the receive half.
func (s *Stream) Deliver(frame wire.StreamFrame) error {
	if s.receiver == nil {
		return fmt.Errorf("%w: stream %d", ErrNotReadable, s.id)
	}

	if err := s.receiver.ReceiveFrame(frame); err != nil {
		s.failed = true
		return err
	}
	return nil
}

// ReadAvailable returns newly delivered in-order bytes.
func (s *Stream) ReadAvailable() ([]byte, error) {
	if s.receiver == nil {
		return nil, fmt.Errorf("%w: stream %d", ErrNotReadable, s.id)
	}

	return s.receiver.ReadAvailable(), nil
}

// IsComplete reports whether the receive half has delivered the whole stream.
func (s *Stream) IsComplete() bool {
	return s.receiver != nil && s.receiver.IsComplete()
}

// SendFinished reports whether the send half has nothing left to do. Streams
// without a send half trivially qualify.
func (s *Stream) SendFinished() bool {
	return s.failed || s.sender == nil || s.sender.IsTerminal()
}

// IsTerminal reports whether both halves reached their terminal state, or
// the stream failed an invariant.
func (s *Stream) IsTerminal() bool {
	if s.failed {
		return true
	}

	sendDone := s.sender == nil || s.sender.IsTerminal()
	recvDone := s.receiver == nil || s.receiver.IsComplete()
	return sendDone && recvDone
}

// Failed reports whether an invariant violation excluded this stream.
func (s *Stream) Failed() bool {
	return s.failed
}
