// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package core

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/squic/squic-go/wire"
)

// Default connection parameters, to be overridden by the driver's
// configuration file.
const (
	DefaultReceiverPort = 3492
	DefaultSenderPort   = 33336

	DefaultMaxStreams = 5

	DefaultMinPacketSize = 1000
	DefaultMaxPacketSize = 2000

	DefaultTimeout = 5 * time.Second
)

// Config collects the parameters of a Connection, chosen by the driver.
type Config struct {
	// ConnectionID tags each outgoing packet header.
	ConnectionID uint64

	// LocalAddress is the UDP address to bind, RemoteAddress the peer.
	LocalAddress  string
	RemoteAddress string

	// MaxStreams bounds the amount of concurrent streams.
	MaxStreams int

	// MinPacketSize and MaxPacketSize bound a full datagram, including the
	// packet header and all frames. MinPacketSize is advisory: the scheduler
	// stops packing below a useful threshold, but a packet carrying a single
	// small FIN frame is still transmitted without padding.
	MinPacketSize int
	MaxPacketSize int

	// Timeout is the receive socket timeout, doubling as the end-of-
	// connection heuristic.
	Timeout time.Duration
}

// CheckValid returns an aggregated error for all violated constraints.
func (c Config) CheckValid() (errs error) {
	if c.MaxStreams < 1 {
		errs = multierror.Append(errs,
			fmt.Errorf("MaxStreams is %d, must be positive", c.MaxStreams))
	}

	if minUseful := wire.PacketHeaderLength + wire.FrameHeaderLength + 1; c.MaxPacketSize < minUseful {
		errs = multierror.Append(errs,
			fmt.Errorf("MaxPacketSize is %d, must fit a header and a one byte frame (%d)",
				c.MaxPacketSize, minUseful))
	}

	if c.MinPacketSize > c.MaxPacketSize {
		errs = multierror.Append(errs,
			fmt.Errorf("MinPacketSize %d exceeds MaxPacketSize %d",
				c.MinPacketSize, c.MaxPacketSize))
	}

	if c.Timeout <= 0 {
		errs = multierror.Append(errs,
			fmt.Errorf("Timeout is %v, must be positive", c.Timeout))
	}

	return
}

// minFramePayload is the payload size a minimum-size packet's single frame
// would carry. The scheduler stops offering packet space below this bound;
// Senders withhold smaller non-final frames.
func (c Config) minFramePayload() int {
	min := c.MinPacketSize - wire.PacketHeaderLength - wire.FrameHeaderLength
	if min < 0 {
		min = 0
	}
	return min
}
