package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pkg/profile"

	"github.com/squic/squic-go/agent"
	"github.com/squic/squic-go/core"
	"github.com/squic/squic-go/stream"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	conf, err := parseConfig(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to parse config")
	}

	if conf.Receive.Profiling {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	connection, err := core.NewConnection(coreConfig(conf.Connection), stream.ServerInitiated)
	if err != nil {
		log.WithError(err).Fatal("Failed to open connection")
	}
	defer func() { _ = connection.Close() }()

	if conf.Stats.Listen != "" {
		sa, err := agent.NewStatsAgent(conf.Stats.Listen, connection,
			time.Duration(conf.Stats.PushInterval)*time.Second)
		if err != nil {
			log.WithError(err).Fatal("Failed to start stats agent")
		}
		defer sa.Close()
	}

	log.Info("Waiting for incoming packets")

	if err := connection.ReceiveLoop(); err != nil {
		log.WithError(err).Fatal("Receiving errored")
	}

	writeStreams(connection, conf.Receive.OutputDirectory)
	logStats(connection.Stats())
}

// writeStreams dumps each completed stream's bytes into the output
// directory, named after its stream id.
func writeStreams(connection *core.Connection, directory string) {
	for _, st := range connection.Streams() {
		logger := log.WithField("stream", st.ID())

		if !st.IsComplete() {
			logger.Warn("Stream is incomplete, skipping")
			continue
		}

		data, err := st.ReadAvailable()
		if err != nil {
			logger.WithError(err).Warn("Reading stream errored")
			continue
		}

		path := filepath.Join(directory, fmt.Sprintf("%d.out", st.ID()))
		if err := os.WriteFile(path, data, 0644); err != nil {
			logger.WithError(err).Error("Writing stream output errored")
			continue
		}

		logger.WithFields(log.Fields{
			"bytes": len(data),
			"file":  path,
		}).Info("Wrote stream output")
	}
}

// logStats reports the final per-stream and aggregate counters.
func logStats(stats core.Statistics) {
	for _, streamStats := range stats.Streams {
		log.WithFields(log.Fields{
			"stream":      streamStats.StreamID,
			"bytes":       streamStats.TotalBytes,
			"packets":     streamStats.TotalPackets,
			"byte-rate":   streamStats.ByteRate,
			"packet-rate": streamStats.PacketRate,
			"seconds":     streamStats.ElapsedSeconds,
		}).Info("Stream statistics")
	}

	log.WithFields(log.Fields{
		"bytes":       stats.TotalBytes,
		"sent":        stats.SentPackets,
		"received":    stats.ReceivedPackets,
		"byte-rate":   stats.ByteRate,
		"packet-rate": stats.PacketRate,
		"seconds":     stats.ElapsedSeconds,
		"errors":      stats.ParseErrors + stats.StreamErrors,
	}).Info("Connection statistics")
}
