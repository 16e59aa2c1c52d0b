// Package config provides the configuration schema and loader for the
// TalkFlow translation server.
package config

import "time"

// LogLevel controls log verbosity for the TalkFlow server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// validSampleRates lists the sample rates the ingest and VAD paths support.
var validSampleRates = []int{8000, 16000, 22050, 44100, 48000}

// Config is the root configuration structure for TalkFlow.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Stabilizer StabilizerConfig `yaml:"stabilizer"`
	Phrase     PhraseConfig     `yaml:"phrase"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Languages  LanguagesConfig  `yaml:"languages"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes the inbound PCM stream format.
type AudioConfig struct {
	// SampleRate is the sample rate in Hz of inbound PCM. Must be one of
	// 8000, 16000, 22050, 44100, 48000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the number of interleaved channels in inbound PCM.
	// 1 = mono, 2 = stereo (downmixed on ingest).
	Channels int `yaml:"channels"`

	// OpusInput enables Opus-encoded input frames instead of raw PCM.
	OpusInput bool `yaml:"opus_input"`
}

// VADConfig tunes speech segmentation.
type VADConfig struct {
	// Provider selects the classifier: "silero" (neural sidecar) or
	// "energy" (RMS threshold). Defaults to "energy".
	Provider string `yaml:"provider"`

	// SileroURL is the base URL of the silero scoring sidecar. Required
	// when Provider is "silero".
	SileroURL string `yaml:"silero_url"`

	// Threshold is the speech probability (or RMS energy) cutoff in [0, 1].
	Threshold float64 `yaml:"threshold"`

	// MinSpeechFrames is the number of consecutive speech frames required
	// to confirm onset.
	MinSpeechFrames int `yaml:"min_speech_frames"`

	// MinSilenceFrames is the number of consecutive silence frames required
	// to confirm closure.
	MinSilenceFrames int `yaml:"min_silence_frames"`

	// Passthrough disables VAD segmentation entirely: audio is chopped into
	// fixed-duration segments and every frame counts as speech.
	Passthrough bool `yaml:"passthrough"`

	// PassthroughWindow is the segment duration in passthrough mode.
	PassthroughWindow time.Duration `yaml:"passthrough_window"`
}

// StabilizerConfig tunes the stable-prefix protocol.
type StabilizerConfig struct {
	// SimilarityThreshold is the minimum Levenshtein similarity in [0, 1]
	// between consecutive hypotheses for the prefix to count as stable.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MinStableLength is the minimum stable prefix length in runes.
	MinStableLength int `yaml:"min_stable_length"`
}

// PhraseConfig tunes phrase assembly for translation and synthesis.
type PhraseConfig struct {
	// MinLength is the minimum phrase length in bytes before a delimiter
	// may split the buffer.
	MinLength int `yaml:"min_length"`

	// Delimiters overrides the sentence-boundary character set.
	Delimiters string `yaml:"delimiters"`
}

// PipelineConfig bounds concurrency and telemetry.
type PipelineConfig struct {
	// Workers caps the number of chunks processed concurrently across all
	// sessions.
	Workers int `yaml:"workers"`

	// QueueSize bounds the per-session backlog of pending chunks. Chunks
	// arriving on a full queue are dropped and counted.
	QueueSize int `yaml:"queue_size"`

	// StageTimeout bounds each remote stage call (STT, translate, TTS).
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// MetricsWindow is the rolling-window capacity for latency metrics.
	MetricsWindow int `yaml:"metrics_window"`

	// MinBufferDuration is the least audio buffered before a passthrough
	// segment may be emitted. Must not exceed MaxBufferDuration.
	MinBufferDuration time.Duration `yaml:"min_buffer_duration"`

	// MaxBufferDuration caps the audio buffered for a single utterance. A
	// speech run reaching the cap is closed immediately, so a noisy channel
	// that never goes quiet cannot grow a segment without bound.
	MaxBufferDuration time.Duration `yaml:"max_buffer_duration"`
}

// ProvidersConfig declares which implementation serves each pipeline stage.
type ProvidersConfig struct {
	STT       ProviderEntry `yaml:"stt"`
	Translate ProviderEntry `yaml:"translate"`
	TTS       ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the implementation (e.g., "whisper", "anyllm", "piper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL is the provider's endpoint (local servers) or an override of
	// its default API endpoint (hosted services).
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "base.en").
	Model string `yaml:"model"`

	// Backend names the LLM backend for the "anyllm" translator
	// (e.g., "openai", "anthropic", "ollama").
	Backend string `yaml:"backend"`

	// Voice selects a synthesis voice for TTS providers.
	Voice string `yaml:"voice"`
}

// LanguagesConfig sets the default language pair for new sessions.
type LanguagesConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// ArchiveConfig controls persistence of completed utterances.
type ArchiveConfig struct {
	// PostgresDSN is the connection string for the utterance archive. When
	// empty, completed utterances are kept in memory only.
	PostgresDSN string `yaml:"postgres_dsn"`
}
