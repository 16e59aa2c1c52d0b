package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ULTRASIRI/TalkFlow/internal/pipeline"
	"github.com/ULTRASIRI/TalkFlow/internal/protocol"
	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
)

// outboundBuf is the depth of the per-connection event channel. When a client
// reads too slowly the channel fills and workers block on it, which in turn
// fills the session queue and triggers the drop policy upstream.
const outboundBuf = 64

// outMsg is one frame queued for the write loop.
type outMsg struct {
	kind websocket.MessageType
	data []byte
}

// handleWS upgrades the connection and runs one pipeline session for its
// lifetime. Binary frames carry audio, text frames carry control messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	sess, err := s.orch.NewSession(uuid.NewString())
	if err != nil {
		slog.Error("failed to create session", "err", err)
		conn.Close(websocket.StatusInternalError, "session init failed")
		return
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan outMsg, outboundBuf)
	go s.writeLoop(ctx, conn, out)

	var opus *audio.OpusDecoder
	if s.cfg.Audio.OpusInput {
		opus, err = audio.NewOpusDecoder(s.cfg.Audio.SampleRate, s.cfg.Audio.Channels)
		if err != nil {
			slog.Error("opus decoder init failed", "err", err)
			conn.Close(websocket.StatusInternalError, "codec init failed")
			return
		}
	}

	send := func(kind websocket.MessageType, data []byte) {
		select {
		case out <- outMsg{kind: kind, data: data}:
		case <-ctx.Done():
		}
	}
	sendJSON := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			slog.Error("event marshal failed", "err", err)
			return
		}
		send(websocket.MessageText, data)
	}

	sendJSON(protocol.Ready())
	slog.Info("client connected", "session", sess.ID(), "remote", r.RemoteAddr)

	// One notification per drop burst, reset on the next accepted chunk.
	dropNotified := false
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			slog.Info("client disconnected", "session", sess.ID(), "err", err)
			return
		}

		switch typ {
		case websocket.MessageBinary:
			pcm := data
			if opus != nil {
				frame, err := opus.Decode(data)
				if err != nil {
					slog.Warn("opus packet dropped", "session", sess.ID(), "err", err)
					continue
				}
				pcm = audio.EncodePCM16(frame.Samples)
			}
			accepted := sess.Submit(pcm, func(res *pipeline.Result, err error) {
				s.emitResult(sendJSON, send, res, err)
			})
			if accepted {
				dropNotified = false
			} else if !dropNotified {
				dropNotified = true
				sendJSON(protocol.BacklogError())
			}

		case websocket.MessageText:
			s.handleControl(ctx, sess, sendJSON, send, data)
		}
	}
}

// writeLoop serializes all outbound frames onto the connection. It is the
// only goroutine that writes, so worker emits and control replies never
// interleave mid-frame.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan outMsg) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			if err := conn.Write(ctx, msg.kind, msg.data); err != nil {
				return
			}
		}
	}
}

// emitResult converts one pipeline result into protocol events, in the fixed
// order transcription → translation → audio → metrics.
func (s *Server) emitResult(sendJSON func(any), send func(websocket.MessageType, []byte), res *pipeline.Result, err error) {
	if err != nil {
		// Malformed chunk: already logged and dropped by the pipeline.
		sendJSON(protocol.ProcessingError())
		return
	}
	if res == nil {
		return
	}
	if res.Err != nil {
		sendJSON(protocol.Error{Type: protocol.EventError, Message: res.Err.Message})
		return
	}
	if res.VAD != nil {
		sendJSON(protocol.VADStatus{
			Type:     protocol.EventVADStatus,
			IsSpeech: res.VAD.Speech,
			Metrics:  map[string]float64{"vad_latency_ms": res.VAD.LatencyMillis},
		})
		return
	}

	if res.Transcription != "" {
		sendJSON(protocol.Transcription{
			Type:     protocol.EventTranscription,
			Text:     res.Transcription,
			Language: res.SourceLanguage,
			IsFinal:  res.IsFinal,
		})
	}
	if res.Translation != "" {
		sendJSON(protocol.Translation{
			Type:     protocol.EventTranslation,
			Text:     res.Translation,
			Language: res.TargetLanguage,
		})
	}
	if len(res.Audio) > 0 {
		send(websocket.MessageBinary, res.Audio)
	}
	if res.Latency != nil {
		sendJSON(protocol.Metrics{Type: protocol.EventMetrics, Data: res.Latency})
	}
}

// handleControl dispatches one client control message.
func (s *Server) handleControl(ctx context.Context, sess *pipeline.Session, sendJSON func(any), send func(websocket.MessageType, []byte), data []byte) {
	ctl, err := protocol.ParseControl(data)
	if err != nil {
		slog.Warn("bad control message", "session", sess.ID(), "err", err)
		return
	}

	switch ctl.Type {
	case protocol.ControlPing:
		sendJSON(protocol.Ack{Type: protocol.EventPong})

	case protocol.ControlReset:
		sess.Reset()
		sendJSON(protocol.Ack{Type: protocol.EventResetComplete, Message: "Pipeline reset"})

	case protocol.ControlGetMetrics:
		windows, counters, uptime := s.orch.Collector().Summary()
		sendJSON(protocol.Metrics{
			Type: protocol.EventMetricsSummary,
			Data: map[string]any{
				"metrics":        windows,
				"counters":       counters,
				"uptime_seconds": uptime.Seconds(),
			},
		})

	case protocol.ControlSetLanguages:
		if ctl.Source == "" || ctl.Target == "" {
			sendJSON(protocol.Error{Type: protocol.EventError, Message: "set_languages requires source and target"})
			return
		}
		// Trailing text from the old pair is flushed before the switch.
		res, err := sess.Flush(ctx)
		if err != nil {
			slog.Warn("flush before language switch failed", "session", sess.ID(), "err", err)
		} else if res != nil {
			s.emitResult(sendJSON, send, res, nil)
		}
		sess.SetLanguagePair(ctl.Source, ctl.Target)
		sendJSON(protocol.Ack{Type: protocol.EventLanguagesSet, Message: ctl.Source + " -> " + ctl.Target})

	default:
		slog.Warn("unknown control message type", "session", sess.ID(), "type", ctl.Type)
	}
}
