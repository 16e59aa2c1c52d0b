// Package protocol defines the JSON messages exchanged over a TalkFlow
// WebSocket connection.
//
// The client sends binary frames (raw audio) and small JSON control messages;
// the server answers with typed JSON events plus binary frames carrying
// synthesized audio. Every JSON message has a "type" discriminator so clients
// can dispatch without trial decoding.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Event type discriminators sent by the server.
const (
	EventConnection     = "connection"
	EventVADStatus      = "vad_status"
	EventTranscription  = "transcription"
	EventTranslation    = "translation"
	EventMetrics        = "metrics"
	EventMetricsSummary = "metrics_summary"
	EventPong           = "pong"
	EventResetComplete  = "reset_complete"
	EventLanguagesSet   = "languages_set"
	EventError          = "error"
)

// Control type discriminators accepted from the client.
const (
	ControlPing         = "ping"
	ControlReset        = "reset"
	ControlGetMetrics   = "get_metrics"
	ControlSetLanguages = "set_languages"
)

// Control is a client → server control message. Source and Target are only
// meaningful for ControlSetLanguages.
type Control struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// ParseControl decodes a control message from raw JSON.
func ParseControl(raw []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(raw, &c); err != nil {
		return Control{}, fmt.Errorf("protocol: malformed control message: %w", err)
	}
	if c.Type == "" {
		return Control{}, fmt.Errorf("protocol: control message missing type")
	}
	return c, nil
}

// Connection greets the client once the session is established.
type Connection struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Ready is the greeting sent immediately after a successful upgrade.
func Ready() Connection {
	return Connection{Type: EventConnection, Status: "connected", Message: "TalkFlow ready"}
}

// VADStatus reports interim speech activity for a chunk that did not complete
// an utterance.
type VADStatus struct {
	Type     string             `json:"type"`
	IsSpeech bool               `json:"is_speech"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// Transcription carries recognized text in the source language.
type Transcription struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Language string `json:"language"`
	IsFinal  bool   `json:"is_final"`
}

// Translation carries the recognized text rendered in the target language.
// The synthesized audio for it follows as a separate binary frame.
type Translation struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Metrics wraps per-chunk latency telemetry (EventMetrics) or an aggregate
// snapshot (EventMetricsSummary).
type Metrics struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Ack confirms a control message that has no payload of its own.
type Ack struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Error reports a processing failure to the client. Message is a fixed,
// client-safe description; internal diagnostic detail stays in the server log.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ProcessingError is the generic error event for a chunk that failed in the
// pipeline.
func ProcessingError() Error {
	return Error{Type: EventError, Message: "Failed to process audio"}
}

// BacklogError is the error event sent once per burst when audio chunks are
// dropped under backpressure.
func BacklogError() Error {
	return Error{Type: EventError, Message: "Audio backlog full, dropping chunks"}
}
