// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import "errors"

var (
	// ErrTruncatedHeader is returned for a datagram shorter than a packet header.
	ErrTruncatedHeader = errors.New("packet header is truncated")

	// ErrTruncatedFrame is returned when the remaining bytes of a datagram do
	// not form a complete STREAM frame.
	ErrTruncatedFrame = errors.New("stream frame is truncated")

	// ErrReservedBits is returned when a frame's reserved flag bits are set.
	ErrReservedBits = errors.New("reserved frame flag bits are set")

	// ErrPacketTooLarge is returned when a packet's encoding exceeds the
	// maximum packet size.
	ErrPacketTooLarge = errors.New("packet exceeds maximum packet size")
)
