package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/squic/squic-go/core"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Connection connectionConf
	Logging    logConf
	Stats      statsConf
	Receive    receiveConf
}

// connectionConf describes the Connection-configuration block.
type connectionConf struct {
	ConnectionID  uint64 `toml:"connection-id"`
	LocalAddress  string `toml:"local-address"`
	RemoteAddress string `toml:"remote-address"`
	MaxStreams    int    `toml:"max-streams"`
	MinPacketSize int    `toml:"min-packet-size"`
	MaxPacketSize int    `toml:"max-packet-size"`
	Timeout       int    `toml:"timeout"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// statsConf describes the statistics agent block.
type statsConf struct {
	Listen       string
	PushInterval int `toml:"push-interval"`
}

// receiveConf describes the Receive-configuration block.
type receiveConf struct {
	OutputDirectory string `toml:"output-directory"`
	Profiling       bool
}

// setupLogging configures logrus from the Logging block.
func setupLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// coreConfig maps the Connection block onto a core.Config, falling back to
// the receiver defaults.
func coreConfig(conf connectionConf) core.Config {
	config := core.Config{
		ConnectionID:  conf.ConnectionID,
		LocalAddress:  conf.LocalAddress,
		RemoteAddress: conf.RemoteAddress,
		MaxStreams:    conf.MaxStreams,
		MinPacketSize: conf.MinPacketSize,
		MaxPacketSize: conf.MaxPacketSize,
		Timeout:       time.Duration(conf.Timeout) * time.Second,
	}

	if config.LocalAddress == "" {
		config.LocalAddress = fmt.Sprintf("127.0.0.1:%d", core.DefaultReceiverPort)
	}
	if config.RemoteAddress == "" {
		config.RemoteAddress = fmt.Sprintf("127.0.0.1:%d", core.DefaultSenderPort)
	}
	if config.MaxStreams == 0 {
		config.MaxStreams = core.DefaultMaxStreams
	}
	if config.MinPacketSize == 0 {
		config.MinPacketSize = core.DefaultMinPacketSize
	}
	if config.MaxPacketSize == 0 {
		config.MaxPacketSize = core.DefaultMaxPacketSize
	}
	if config.Timeout == 0 {
		config.Timeout = core.DefaultTimeout
	}

	return config
}

// parseConfig reads the TOML-configuration from the given file.
func parseConfig(filename string) (conf tomlConfig, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	setupLogging(conf.Logging)

	if conf.Receive.OutputDirectory == "" {
		conf.Receive.OutputDirectory = "."
	}
	if conf.Stats.PushInterval == 0 {
		conf.Stats.PushInterval = 1
	}

	return
}
