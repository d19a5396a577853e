// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package core

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/squic/squic-go/wire"
)

// idleSleep is the scheduler's pause when no stream had data to send.
const idleSleep = 10 * time.Millisecond

// buildPacket packs frames from ready streams into one packet under the
// packet size bound. Streams are iterated round-robin: within one invocation
// each stream is offered space once, across invocations the starting stream
// rotates. A nil packet means no stream had data.
func (c *Connection) buildPacket() *wire.Packet {
	c.streamLock.Lock()
	defer c.streamLock.Unlock()

	var frames []wire.StreamFrame
	remaining := c.config.MaxPacketSize - wire.PacketHeaderLength

	minRoom := wire.FrameHeaderLength + c.config.minFramePayload()
	if floor := wire.FrameHeaderLength + 1; minRoom < floor {
		minRoom = floor
	}

	amount := len(c.order)
	for i := 0; i < amount; i++ {
		if len(frames) > 0 && remaining < minRoom {
			break
		}

		st := c.streams[c.order[(c.rrOffset+i)%amount]]
		if !st.HasDataToSend() {
			continue
		}

		frame, err := st.NextFrame(remaining - wire.FrameHeaderLength)
		if err != nil {
			c.streamErrors++
			c.logger().WithError(err).WithField("stream", st.ID()).Warn(
				"Generating a frame errored")
			continue
		}
		if frame == nil {
			continue
		}

		frames = append(frames, *frame)
		remaining -= frame.EncodedLen()

		if st.SendFinished() {
			c.markStreamDone(st.ID())
		}
	}

	if amount > 0 {
		c.rrOffset = (c.rrOffset + 1) % amount
	}

	if len(frames) == 0 {
		return nil
	}

	c.sendPacketNumber++
	packet := wire.NewPacket(c.sendPacketNumber, c.config.ConnectionID)
	packet.Frames = frames

	return &packet
}

// sendPacket transmits one packet and accounts it to its streams.
func (c *Connection) sendPacket(packet *wire.Packet) error {
	data, err := packet.MarshalBinary(c.config.MaxPacketSize)
	if err != nil {
		// buildPacket keeps the bound, so this is structurally impossible;
		// the packed frames are dropped rather than poisoning the loop.
		c.logger().WithError(err).WithField("packet", packet).Error(
			"Encoding a scheduled packet errored, dropping it")
		return nil
	}

	if _, err := c.socket.WriteToUDP(data, c.remoteAddr); err != nil {
		return err
	}

	c.streamLock.Lock()
	c.sentPackets++
	for _, frame := range packet.Frames {
		if counters, ok := c.counters[frame.StreamID]; ok {
			counters.totalBytes += uint64(frame.EncodedLen())
			counters.packets[packet.Header.PacketNumber] = struct{}{}
		}
	}
	c.streamLock.Unlock()

	c.logger().WithFields(log.Fields{
		"packet": packet,
		"size":   len(data),
	}).Debug("Sent packet")

	return nil
}

// SendLoop drives the scheduler: fill a packet, write it to the socket,
// pause briefly when idle, until every send half is finished or the
// connection closes. A socket error closes the connection.
func (c *Connection) SendLoop() error {
	for {
		select {
		case <-c.stopChannel:
			return nil
		default:
		}

		packet := c.buildPacket()
		if packet == nil {
			c.streamLock.Lock()
			finished := c.sendFinished()
			c.streamLock.Unlock()

			if finished {
				c.logger().Info("All send halves finished")
				return nil
			}

			time.Sleep(idleSleep)
			continue
		}

		if err := c.sendPacket(packet); err != nil {
			select {
			case <-c.stopChannel:
				return nil
			default:
			}

			c.logger().WithError(err).Error("Sending a packet errored")
			_ = c.Close()
			return err
		}
	}
}
