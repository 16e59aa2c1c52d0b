// Package piper provides a local Piper-backed TTS provider that connects to
// a running piper HTTP server. Synthesis is performed via GET / with URL
// query parameters; the server responds with a complete WAV file.
//
// Typical usage:
//
//	p, err := piper.New("http://localhost:5000",
//	    piper.WithVoice("en_US-amy-medium"),
//	    piper.WithTimeout(15*time.Second),
//	)
//	wav, err := p.Synthesize(ctx, "Hello world.")
package piper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ULTRASIRI/TalkFlow/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

const defaultTimeout = 30 * time.Second

// Option is a functional option for configuring a Piper Provider.
type Option func(*Provider)

// WithVoice sets the voice model identifier sent to the server (e.g.,
// "en_US-amy-medium"). When empty the server uses whichever voice it was
// started with — this is the default.
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Synthesizer backed by a locally-running Piper HTTP
// server. It is stateless between calls and safe for concurrent use.
type Provider struct {
	serverURL  string
	voice      string
	httpClient *http.Client
}

// New creates a Provider that targets the Piper server at serverURL (e.g.,
// "http://localhost:5000"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("piper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize performs a single GET request against the Piper server and
// returns the WAV response body unmodified.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("text", text)
	if p.voice != "" {
		params.Set("voice", p.voice)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("piper: create request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piper: GET /: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("piper: server returned status %d", resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("piper: read WAV response: %w", err)
	}
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" {
		return nil, errors.New("piper: response is not a RIFF/WAVE file")
	}
	return wav, nil
}
