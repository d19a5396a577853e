// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stream

import "errors"

var (
	// ErrWriteAfterFin is returned when data is added to a finished Sender.
	ErrWriteAfterFin = errors.New("stream write after FIN")

	// ErrFrameTooSmall is returned when the offered maximum payload admits
	// not even a single byte of stream data.
	ErrFrameTooSmall = errors.New("maximum payload admits no stream data")

	// ErrFinContradicted is returned when a frame extends beyond an already
	// known final stream size.
	ErrFinContradicted = errors.New("frame extends beyond final stream size")

	// ErrFinConflict is returned when a second FIN names a different final
	// stream size.
	ErrFinConflict = errors.New("conflicting FIN offsets")

	// ErrNotWritable is returned for writes on a stream without a send half.
	ErrNotWritable = errors.New("stream has no send half")

	// ErrNotReadable is returned for deliveries to a stream without a
	// receive half.
	ErrNotReadable = errors.New("stream has no receive half")
)
