// Package server exposes the translation pipeline over HTTP: a WebSocket
// endpoint for live audio streaming plus small JSON endpoints for health,
// effective configuration and Prometheus metrics.
//
// The server is a thin boundary. It decodes frames, dispatches control
// messages and serializes events; every pipeline decision lives in
// internal/pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ULTRASIRI/TalkFlow/internal/config"
	"github.com/ULTRASIRI/TalkFlow/internal/observe"
	"github.com/ULTRASIRI/TalkFlow/internal/pipeline"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server wires the pipeline orchestrator to its HTTP surface.
type Server struct {
	cfg  *config.Config
	orch *pipeline.Orchestrator
	obs  *observe.Metrics
}

// New creates a Server. The orchestrator and configuration are injected;
// the server never constructs collaborators itself.
func New(cfg *config.Config, orch *pipeline.Orchestrator) *Server {
	return &Server{cfg: cfg, orch: orch, obs: observe.DefaultMetrics()}
}

// Routes builds the HTTP handler. The JSON endpoints are wrapped in the
// observability middleware; the WebSocket endpoint is not, since a connection
// lives for minutes and would skew the request-duration histogram.
func (s *Server) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/health", s.handleHealth)
	api.HandleFunc("GET /api/config", s.handleConfig)
	api.Handle("GET /metrics", promhttp.Handler())

	root := http.NewServeMux()
	root.Handle("/api/", observe.Middleware(s.obs)(api))
	root.Handle("GET /metrics", observe.Middleware(s.obs)(api))
	root.HandleFunc("/ws", s.handleWS)
	return root
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return srv.Close()
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// healthResponse is the /api/health body.
type healthResponse struct {
	Status   string `json:"status"`
	Degraded bool   `json:"degraded"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Degraded: s.orch.Degraded()}
	if resp.Degraded {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// configResponse is the client-visible subset of the server configuration.
// Credentials and endpoints stay server-side.
type configResponse struct {
	SampleRate     int    `json:"sample_rate"`
	Channels       int    `json:"channels"`
	OpusInput      bool   `json:"opus_input"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	VADProvider    string `json:"vad_provider"`
	STTProvider    string `json:"stt_provider"`
	TTSProvider    string `json:"tts_provider"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{
		SampleRate:     s.cfg.Audio.SampleRate,
		Channels:       s.cfg.Audio.Channels,
		OpusInput:      s.cfg.Audio.OpusInput,
		SourceLanguage: s.cfg.Languages.Source,
		TargetLanguage: s.cfg.Languages.Target,
		VADProvider:    s.cfg.VAD.Provider,
		STTProvider:    s.cfg.Providers.STT.Name,
		TTSProvider:    s.cfg.Providers.TTS.Name,
	})
}

// writeJSON encodes v as JSON with the given status code. On encoding
// failure it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
