// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package core

import "errors"

var (
	// ErrTooManyStreams is returned when opening a stream would exceed the
	// configured stream limit.
	ErrTooManyStreams = errors.New("stream limit reached")

	// ErrUnknownStream is returned for lookups of stream ids this
	// connection never saw.
	ErrUnknownStream = errors.New("unknown stream")

	// ErrClosed is returned for operations on a closed connection.
	ErrClosed = errors.New("connection is closed")
)
