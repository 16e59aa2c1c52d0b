// Package silero provides a neural speech detector backed by a Silero VAD
// scoring sidecar.
//
// The sidecar exposes a minimal REST API: POST /score accepts one raw PCM16LE
// window and returns a JSON speech probability. Running the model out of
// process keeps the Go binary free of ONNX/Torch runtime dependencies, at the
// cost of one local HTTP round trip per window (sub-millisecond on loopback).
//
// Silero operates on fixed windows: 512 samples at 16 kHz, 256 at 8 kHz.
// New probes GET /health so that a missing sidecar is detected at load time;
// the segmenter then disables the neural path for the whole session rather
// than failing on every window.
//
// Usage:
//
//	d, err := silero.New("http://localhost:9090", 16000,
//	    silero.WithThreshold(0.5),
//	)
//	res, err := d.Detect(window)
package silero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/vad"
)

const (
	scoreEndpoint  = "/score"
	healthEndpoint = "/health"

	// defaultThreshold is the probability above which a window counts as
	// speech. Matches the Silero authors' recommended starting point.
	defaultThreshold = 0.5

	// defaultTimeout bounds a single scoring round trip. The sidecar runs on
	// loopback; anything slower than this indicates it is wedged.
	defaultTimeout = 250 * time.Millisecond
)

// Compile-time interface assertion.
var _ vad.Detector = (*Detector)(nil)

// Detector scores windows via the Silero sidecar.
type Detector struct {
	baseURL    string
	sampleRate int
	windowSize int
	threshold  float64
	httpClient *http.Client
}

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithThreshold sets the speech probability threshold. Range (0, 1].
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		if t > 0 && t <= 1 {
			d.threshold = t
		}
	}
}

// WithTimeout sets the per-request timeout for scoring calls.
func WithTimeout(t time.Duration) Option {
	return func(d *Detector) {
		if t > 0 {
			d.httpClient.Timeout = t
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Detector) {
		if c != nil {
			d.httpClient = c
		}
	}
}

// New creates a Detector talking to the sidecar at baseURL and verifies it is
// reachable. sampleRate must be 8000 or 16000 — Silero supports nothing else.
// A health-check failure is returned to the caller so the neural path can be
// disabled for the session.
func New(baseURL string, sampleRate int, opts ...Option) (*Detector, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("silero: baseURL must not be empty")
	}
	var windowSize int
	switch sampleRate {
	case 16000:
		windowSize = 512
	case 8000:
		windowSize = 256
	default:
		return nil, fmt.Errorf("silero: unsupported sample rate %d (want 8000 or 16000)", sampleRate)
	}

	d := &Detector{
		baseURL:    baseURL,
		sampleRate: sampleRate,
		windowSize: windowSize,
		threshold:  defaultThreshold,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(d)
	}

	if err := d.healthCheck(); err != nil {
		return nil, fmt.Errorf("silero: sidecar unavailable: %w", err)
	}
	return d, nil
}

// WindowSize returns the model's native window width for the configured rate.
func (d *Detector) WindowSize() int { return d.windowSize }

// scoreResponse is the sidecar's JSON reply.
type scoreResponse struct {
	Probability float64 `json:"probability"`
}

// Detect posts one window to the sidecar and thresholds the returned
// probability. Any transport or decode error is reported to the caller, which
// falls back to the energy detector for this window.
func (d *Detector) Detect(window []float32) (vad.Result, error) {
	if len(window) != d.windowSize {
		return vad.Result{}, fmt.Errorf("silero: window size mismatch: got %d, want %d", len(window), d.windowSize)
	}

	req, err := http.NewRequest(http.MethodPost, d.baseURL+scoreEndpoint, bytes.NewReader(audio.EncodePCM16(window)))
	if err != nil {
		return vad.Result{}, fmt.Errorf("silero: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Sample-Rate", strconv.Itoa(d.sampleRate))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return vad.Result{}, fmt.Errorf("silero: score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vad.Result{}, fmt.Errorf("silero: score request: unexpected status %d", resp.StatusCode)
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return vad.Result{}, fmt.Errorf("silero: decode response: %w", err)
	}

	return vad.Result{Speech: sr.Probability > d.threshold, Probability: sr.Probability}, nil
}

// healthCheck verifies the sidecar responds on its health endpoint.
func (d *Detector) healthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+healthEndpoint, nil)
	if err != nil {
		return err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
