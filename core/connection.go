// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package core implements the connection multiplexer: a Connection owning
// the UDP endpoint and the stream table, a send scheduler draining ready
// streams into size-bounded packets, and a receive dispatcher parsing
// datagrams and routing frames to their streams.
package core

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hashicorp/go-multierror"

	"github.com/squic/squic-go/stream"
)

// Connection multiplexes many streams over a single UDP flow between two
// endpoints. The send scheduler and the receive dispatcher may run on two
// goroutines; the stream table is guarded by one mutex, all per-stream
// operations are short and non-blocking.
type Connection struct {
	config Config
	role   stream.Initiator

	socket     *net.UDPConn
	remoteAddr *net.UDPAddr

	streamLock    sync.Mutex
	streams       map[uint64]*stream.Stream
	order         []uint64
	rrOffset      int
	streamCounter uint64

	sendPacketNumber uint64
	recvPacketNumber uint64

	started         time.Time
	counters        map[uint64]*streamCounters
	sentPackets     uint64
	receivedPackets uint64
	parseErrors     uint64
	streamErrors    uint64

	stopChannel chan struct{}
	closeOnce   sync.Once
}

// NewConnection binds the local UDP address and prepares a Connection
// towards the remote one. The role names this endpoint's position for the
// stream id initiator bit.
func NewConnection(config Config, role stream.Initiator) (*Connection, error) {
	if errs := config.CheckValid(); errs != nil {
		return nil, errs
	}

	localAddr, err := net.ResolveUDPAddr("udp", config.LocalAddress)
	if err != nil {
		return nil, err
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", config.RemoteAddress)
	if err != nil {
		return nil, err
	}

	socket, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		config:      config,
		role:        role,
		socket:      socket,
		remoteAddr:  remoteAddr,
		streams:     make(map[uint64]*stream.Stream),
		started:     time.Now(),
		counters:    make(map[uint64]*streamCounters),
		stopChannel: make(chan struct{}),
	}

	c.logger().WithFields(log.Fields{
		"local":  socket.LocalAddr(),
		"remote": remoteAddr,
	}).Info("Opened connection")

	return c, nil
}

// LocalAddr returns the bound UDP address, e.g., to inspect the chosen port
// after binding port zero.
func (c *Connection) LocalAddr() net.Addr {
	return c.socket.LocalAddr()
}

// logger returns a new logrus.Entry tagged with this connection.
func (c *Connection) logger() *log.Entry {
	return log.WithField("connection", fmt.Sprintf("%#016x", c.config.ConnectionID))
}

// OpenStream opens a new locally initiated stream of the given direction.
func (c *Connection) OpenStream(dir stream.Direction) (*stream.Stream, error) {
	select {
	case <-c.stopChannel:
		return nil, ErrClosed
	default:
	}

	c.streamLock.Lock()
	defer c.streamLock.Unlock()

	if len(c.streams) >= c.config.MaxStreams {
		return nil, fmt.Errorf("%w: %d streams are open", ErrTooManyStreams, len(c.streams))
	}

	id := stream.BuildStreamID(c.streamCounter, dir, c.role)
	c.streamCounter++

	st := stream.New(id, c.role, c.config.minFramePayload())
	c.registerStream(st)

	c.logger().WithFields(log.Fields{
		"stream":    id,
		"direction": dir,
	}).Info("Opened stream")

	return st, nil
}

// registerStream adds a stream to the table; the stream lock must be held.
func (c *Connection) registerStream(st *stream.Stream) {
	c.streams[st.ID()] = st
	c.order = append(c.order, st.ID())
	c.counters[st.ID()] = newStreamCounters()
}

// ensureStream returns the stream for an incoming frame's id, creating its
// receiving end on first sight; the stream lock must be held.
func (c *Connection) ensureStream(streamID uint64) (*stream.Stream, error) {
	if st, ok := c.streams[streamID]; ok {
		return st, nil
	}

	if len(c.streams) >= c.config.MaxStreams {
		return nil, fmt.Errorf("%w: %d streams are open", ErrTooManyStreams, len(c.streams))
	}

	st := stream.New(streamID, c.role, c.config.minFramePayload())
	c.registerStream(st)

	c.logger().WithFields(log.Fields{
		"stream":    streamID,
		"direction": st.Direction(),
	}).Debug("Created stream for incoming frame")

	return st, nil
}

// Stream returns an open stream by its id.
func (c *Connection) Stream(streamID uint64) (*stream.Stream, error) {
	c.streamLock.Lock()
	defer c.streamLock.Unlock()

	if st, ok := c.streams[streamID]; ok {
		return st, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownStream, streamID)
}

// Streams returns all open streams, ordered by creation.
func (c *Connection) Streams() (streams []*stream.Stream) {
	c.streamLock.Lock()
	defer c.streamLock.Unlock()

	for _, id := range c.order {
		streams = append(streams, c.streams[id])
	}
	return
}

// markStreamDone freezes a finished stream's statistics clock.
func (c *Connection) markStreamDone(streamID uint64) {
	if counters, ok := c.counters[streamID]; ok && counters.finished.IsZero() {
		counters.finished = time.Now()
	}
}

// sendFinished reports whether every send half advertised its FIN and
// drained; the stream lock must be held by the caller.
func (c *Connection) sendFinished() bool {
	for _, st := range c.streams {
		if !st.SendFinished() {
			return false
		}
	}
	return true
}

// Close shuts the connection down and releases the socket. Streams failed by
// invariant violations are reported in the aggregated error.
func (c *Connection) Close() (errs error) {
	c.closeOnce.Do(func() {
		c.logger().Info("Closing down")

		close(c.stopChannel)

		c.streamLock.Lock()
		for _, id := range c.order {
			if c.streams[id].Failed() {
				errs = multierror.Append(errs, fmt.Errorf("stream %d failed", id))
			}
		}
		c.streamLock.Unlock()

		if err := c.socket.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	})

	return
}
