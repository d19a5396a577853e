// SPDX-FileCopyrightText: 2025 The squic-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package core

import (
	"sort"
	"time"
)

// streamCounters accumulates per-stream transfer counters. Packets are
// tracked as a set of packet numbers since one packet may carry frames of
// several streams.
type streamCounters struct {
	totalBytes uint64
	packets    map[uint64]struct{}
	started    time.Time
	finished   time.Time
}

func newStreamCounters() *streamCounters {
	return &streamCounters{
		packets: make(map[uint64]struct{}),
		started: time.Now(),
	}
}

// elapsed is the stream's active interval, up to now while unfinished.
func (sc *streamCounters) elapsed() time.Duration {
	if sc.finished.IsZero() {
		return time.Since(sc.started)
	}
	return sc.finished.Sub(sc.started)
}

// StreamStatistics is a snapshot of one stream's transfer counters.
type StreamStatistics struct {
	StreamID       uint64  `json:"stream_id"`
	TotalBytes     uint64  `json:"total_bytes"`
	TotalPackets   int     `json:"total_packets"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	ByteRate       float64 `json:"byte_rate"`
	PacketRate     float64 `json:"packet_rate"`
}

// Statistics is a snapshot of a Connection's aggregate and per-stream
// transfer counters.
type Statistics struct {
	ConnectionID    uint64             `json:"connection_id"`
	TotalBytes      uint64             `json:"total_bytes"`
	SentPackets     uint64             `json:"sent_packets"`
	ReceivedPackets uint64             `json:"received_packets"`
	ParseErrors     uint64             `json:"parse_errors"`
	StreamErrors    uint64             `json:"stream_errors"`
	ElapsedSeconds  float64            `json:"elapsed_seconds"`
	ByteRate        float64            `json:"byte_rate"`
	PacketRate      float64            `json:"packet_rate"`
	Streams         []StreamStatistics `json:"streams"`
}

// Stats returns a snapshot of the connection's statistics.
func (c *Connection) Stats() Statistics {
	c.streamLock.Lock()
	defer c.streamLock.Unlock()

	stats := Statistics{
		ConnectionID:    c.config.ConnectionID,
		SentPackets:     c.sentPackets,
		ReceivedPackets: c.receivedPackets,
		ParseErrors:     c.parseErrors,
		StreamErrors:    c.streamErrors,
	}

	elapsed := time.Since(c.started)
	stats.ElapsedSeconds = elapsed.Seconds()

	for streamID, counters := range c.counters {
		streamStats := StreamStatistics{
			StreamID:     streamID,
			TotalBytes:   counters.totalBytes,
			TotalPackets: len(counters.packets),
		}

		if streamElapsed := counters.elapsed(); streamElapsed > 0 {
			streamStats.ElapsedSeconds = streamElapsed.Seconds()
			streamStats.ByteRate = float64(counters.totalBytes) / streamElapsed.Seconds()
			streamStats.PacketRate = float64(len(counters.packets)) / streamElapsed.Seconds()
		}

		stats.TotalBytes += counters.totalBytes
		stats.Streams = append(stats.Streams, streamStats)
	}

	sort.Slice(stats.Streams, func(i, j int) bool {
		return stats.Streams[i].StreamID < stats.Streams[j].StreamID
	})

	if elapsed > 0 {
		stats.ByteRate = float64(stats.TotalBytes) / elapsed.Seconds()
		stats.PacketRate = float64(stats.SentPackets+stats.ReceivedPackets) / elapsed.Seconds()
	}

	return stats
}
