// Package agent exposes a Connection's statistics to external collaborators
// over HTTP: plain JSON snapshots for polling and a websocket for a live
// feed.
package agent

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/squic/squic-go/core"
)

// StatsSource is anything handing out statistics snapshots, usually a
// core.Connection.
type StatsSource interface {
	Stats() core.Statistics
}

// StatsAgent serves a StatsSource's snapshots on /stats, per-stream counters
// on /stats/{id} and a periodic push on the /ws websocket.
type StatsAgent struct {
	source StatsSource

	router       *mux.Router
	httpServer   *http.Server
	upgrader     websocket.Upgrader
	pushInterval time.Duration

	stopChannel chan struct{}
	closeOnce   sync.Once
}

// NewStatsAgent creates a StatsAgent listening on the given address, pushing
// websocket updates each pushInterval.
func NewStatsAgent(address string, source StatsSource, pushInterval time.Duration) (sa *StatsAgent, err error) {
	router := mux.NewRouter()

	sa = &StatsAgent{
		source:       source,
		router:       router,
		httpServer:   &http.Server{Addr: address, Handler: router},
		upgrader:     websocket.Upgrader{},
		pushInterval: pushInterval,
		stopChannel:  make(chan struct{}),
	}

	router.HandleFunc("/stats", sa.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/stats/{id}", sa.handleStreamStats).Methods(http.MethodGet)
	router.HandleFunc("/ws", sa.handleWebsocket)

	startupErr := make(chan error)
	go func() {
		if err := sa.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			startupErr <- err
		}

		close(startupErr)
	}()

	select {
	case err = <-startupErr:
		sa = nil
	case <-time.After(100 * time.Millisecond):
	}

	return
}

func (sa *StatsAgent) log() *log.Entry {
	return log.WithField("StatsAgent", sa.httpServer.Addr)
}

// handleStats processes /stats GET requests.
func (sa *StatsAgent) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(sa.source.Stats()); err != nil {
		sa.log().WithError(err).Warn("Failed to write statistics response")
	}
}

// handleStreamStats processes /stats/{id} GET requests.
func (sa *StatsAgent) handleStreamStats(w http.ResponseWriter, r *http.Request) {
	streamID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "stream id is not a number", http.StatusBadRequest)
		return
	}

	for _, streamStats := range sa.source.Stats().Streams {
		if streamStats.StreamID == streamID {
			w.Header().Set("Content-Type", "application/json")

			if err := json.NewEncoder(w).Encode(streamStats); err != nil {
				sa.log().WithError(err).Warn("Failed to write stream statistics response")
			}
			return
		}
	}

	http.Error(w, "no such stream", http.StatusNotFound)
}

// handleWebsocket upgrades /ws requests and feeds snapshots until the client
// disconnects or the agent closes down.
func (sa *StatsAgent) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := sa.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sa.log().WithError(err).Warn("Upgrading websocket errored")
		return
	}
	defer conn.Close()

	sa.log().WithField("client", conn.RemoteAddr()).Info("Websocket client connected")

	ticker := time.NewTicker(sa.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sa.stopChannel:
			return

		case <-ticker.C:
			if err := conn.WriteJSON(sa.source.Stats()); err != nil {
				sa.log().WithError(err).Debug("Websocket client vanished")
				return
			}
		}
	}
}

// Close shuts the HTTP server down.
func (sa *StatsAgent) Close() {
	sa.closeOnce.Do(func() {
		close(sa.stopChannel)

		if err := sa.httpServer.Close(); err != nil {
			sa.log().WithError(err).Warn("Closing down errored")
		}
	})
}
