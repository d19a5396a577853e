package main

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pkg/profile"

	"github.com/squic/squic-go/agent"
	"github.com/squic/squic-go/core"
	"github.com/squic/squic-go/stream"
)

// ensureFile creates a filler payload file unless one already exists.
func ensureFile(path string, size int) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	return os.WriteFile(path, make([]byte, size), 0644)
}

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

	if conf.Send.Profiling {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	if conf.Send.FillerSize > 0 {
		if err := ensureFile(conf.Send.File, conf.Send.FillerSize); err != nil {
			log.WithError(err).WithField("file", conf.Send.File).Fatal("Failed to create filler file")
		}
	}

	data, err := os.ReadFile(conf.Send.File)
	if err != nil {
		log.WithError(err).WithField("file", conf.Send.File).Fatal("Failed to read file")
	}

	connection, err := core.NewConnection(coreConfig(conf.Connection), stream.ClientInitiated)
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

	for i := 0; i < conf.Send.Streams; i++ {
		st, err := connection.OpenStream(stream.Unidirectional)
		if err != nil {
			log.WithError(err).Fatal("Failed to open stream")
		}

		if err := st.Write(data); err != nil {
			log.WithError(err).WithField("stream", st.ID()).Fatal("Failed to write to stream")
		}
		if err := st.Finish(); err != nil {
			log.WithError(err).WithField("stream", st.ID()).Fatal("Failed to finish stream")
		}
	}

	log.WithFields(log.Fields{
		"streams": conf.Send.Streams,
		"bytes":   len(data),
	}).Info("Starting transfer")

	if err := connection.SendLoop(); err != nil {
		log.WithError(err).Fatal("Sending errored")
	}

	logStats(connection.Stats())
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
