// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"github.com/telekom/sandpiper/internal/logger"
	"github.com/telekom/sandpiper/pkg/report"
)

// liveWriteTimeout is how long a live stream write may take before the
// client is considered gone.
const liveWriteTimeout = 5 * time.Second

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

func (a *api) handlePaths(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, r, a.paths.Snapshots())
}

func (a *api) handlePath(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.paths.Snapshot(chi.URLParam(r, "target"))
	if !ok {
		http.Error(w, "target is not monitored", http.StatusNotFound)
		return
	}
	a.writeJSON(w, r, snap)
}

func (a *api) handleReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.paths.Snapshot(chi.URLParam(r, "target"))
	if !ok {
		http.Error(w, "target is not monitored", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.Render(w, snap); err != nil {
		logger.FromContext(r.Context()).Error("Failed to render report", "error", err)
	}
}

// handleLive upgrades the request to a WebSocket and streams every new
// snapshot of the target until the client disconnects or the monitor
// shuts down. Clients too slow to keep up skip frames instead of
// stalling the monitor.
func (a *api) handleLive(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	target := chi.URLParam(r, "target")

	snap, ok := a.paths.Snapshot(target)
	if !ok {
		http.Error(w, "target is not monitored", http.StatusNotFound)
		return
	}

	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade live stream", "target", target, "error", err)
		return
	}
	defer conn.Close()

	frames, cancel := a.paths.Subscribe(target)
	defer cancel()

	// Reads only serve to notice the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, rErr := conn.NextReader(); rErr != nil {
				return
			}
		}
	}()

	// The current state is the first frame, so clients see data before
	// the next cycle completes.
	if err = a.writeFrame(conn, snap); err != nil {
		return
	}

	for {
		select {
		case <-gone:
			return
		case snap, open := <-frames:
			if !open {
				deadline := time.Now().Add(liveWriteTimeout)
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "monitor shut down")
				_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
				return
			}
			if err = a.writeFrame(conn, snap); err != nil {
				log.Debug("Live stream ended", "target", target, "error", err)
				return
			}
		}
	}
}

func (a *api) writeFrame(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// handleOpenAPI serves the api description, as yaml by default and as
// json when the Accept header asks for it.
func (a *api) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	doc, err := openAPIDocument()
	if err != nil {
		log.Error("Failed to build the openapi schema", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	marshal := yamlMarshal
	contentType := "text/yaml"
	if r.Header.Get("Accept") == "application/json" {
		marshal = json.Marshal
		contentType = "application/json"
	}

	data, err := marshal(doc)
	if err != nil {
		log.Error("Failed to marshal the openapi schema", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err = w.Write(data); err != nil {
		log.Error("Failed to write the openapi schema", "error", err)
	}
}

func (a *api) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *api) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("Failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// yamlMarshal renders v through its JSON form first, so custom JSON
// marshalers control the key names in the yaml output too.
func yamlMarshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err = json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return yaml.Marshal(obj)
}
