// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package core

import (
	"errors"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/squic/squic-go/wire"
)

// dispatchDatagram parses one datagram and routes its frames. A parse
// failure drops the whole datagram; it must not poison other streams. A
// frame failing its stream's invariants is fatal to that stream only.
func (c *Connection) dispatchDatagram(data []byte) {
	packet, err := wire.UnmarshalPacket(data)
	if err != nil {
		c.streamLock.Lock()
		c.parseErrors++
		c.streamLock.Unlock()

		c.logger().WithError(err).WithField("size", len(data)).Warn(
			"Parsing a datagram errored, dropping it")
		return
	}

	c.streamLock.Lock()
	defer c.streamLock.Unlock()

	c.receivedPackets++
	// Observed only; gaps are not inspected.
	c.recvPacketNumber = packet.Header.PacketNumber

	for _, frame := range packet.Frames {
		st, err := c.ensureStream(frame.StreamID)
		if err != nil {
			c.streamErrors++
			c.logger().WithError(err).WithField("stream", frame.StreamID).Warn(
				"Dropping frame for unusable stream")
			continue
		}

		if st.Failed() {
			continue
		}

		if err := st.Deliver(frame); err != nil {
			c.streamErrors++
			c.logger().WithError(err).WithFields(log.Fields{
				"stream": frame.StreamID,
				"frame":  frame,
			}).Warn("Delivering a frame errored, stream failed")
			continue
		}

		if counters, ok := c.counters[frame.StreamID]; ok {
			counters.totalBytes += uint64(frame.EncodedLen())
			counters.packets[packet.Header.PacketNumber] = struct{}{}
		}

		if st.IsComplete() {
			c.markStreamDone(frame.StreamID)
		}
	}

	c.logger().WithFields(log.Fields{
		"packet": packet,
		"size":   len(data),
	}).Debug("Dispatched datagram")
}

// ReceiveLoop reads datagrams from the socket and dispatches them until the
// connection closes or a read runs into the configured timeout, which is
// treated as the end of the connection.
func (c *Connection) ReceiveLoop() error {
	buf := make([]byte, c.config.MaxPacketSize)

	for {
		select {
		case <-c.stopChannel:
			return nil
		default:
		}

		if err := c.socket.SetReadDeadline(time.Now().Add(c.config.Timeout)); err != nil {
			return err
		}

		n, _, err := c.socket.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				c.logger().Info("Socket read timed out, treating as end of connection")
				return nil
			}

			select {
			case <-c.stopChannel:
				return nil
			default:
			}

			c.logger().WithError(err).Error("Reading from the socket errored")
			_ = c.Close()
			return err
		}

		c.dispatchDatagram(buf[:n])
	}
}
