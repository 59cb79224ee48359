package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	server "vigor/server"
	"vigor/server/internal/net/proto"
	"vigor/server/internal/net/ws"
	"vigor/server/internal/observability"
	"vigor/server/internal/telemetry"
	"vigor/server/logging"
)

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Observability observability.Config
	// Metrics and Router are optional; when set their counters are
	// included in /diagnostics.
	Metrics *logging.Metrics
	Router  *logging.Router
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                    `json:"status"`
			ServerTime int64                     `json:"serverTime"`
			Tick       uint64                    `json:"tick"`
			Actors     []server.DiagnosticsActor `json:"actors"`
			Pending    int                       `json:"pendingCommands"`
			TickRate   int                       `json:"tickRate"`
			Heartbeat  int64                     `json:"heartbeatMillis"`
			Telemetry  any                       `json:"telemetry"`
			Metrics    map[string]uint64         `json:"metrics,omitempty"`
			Logging    *logging.RouterStats      `json:"logging,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Tick:       hub.Tick(),
			Actors:     hub.DiagnosticsSnapshot(),
			Pending:    hub.PendingCommands(),
			TickRate:   hub.TickRate(),
			Heartbeat:  server.HeartbeatInterval().Milliseconds(),
			Telemetry:  hub.TelemetrySnapshot(),
			Metrics:    cfg.Metrics.Snapshot(),
		}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			payload.Logging = &stats
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		data, err := proto.EncodeJoinResponse(hub.Join())
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	handler := ws.NewHandler(hub, ws.HandlerConfig{Logger: cfg.Logger})
	mux.HandleFunc("/ws", handler.Handle)

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
