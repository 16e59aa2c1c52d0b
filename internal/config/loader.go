package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per pipeline stage.
var ValidProviderNames = map[string][]string{
	"stt":       {"whisper", "whisper-native", "mock"},
	"translate": {"anyllm", "mock"},
	"tts":       {"piper", "openai", "mock"},
}

// Default returns a Config with the values a bare `talkflow serve` runs with.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		VAD: VADConfig{
			Provider:          "energy",
			Threshold:         0.01,
			MinSpeechFrames:   3,
			MinSilenceFrames:  10,
			PassthroughWindow: 3 * time.Second,
		},
		Stabilizer: StabilizerConfig{
			SimilarityThreshold: 0.85,
			MinStableLength:     10,
		},
		Phrase: PhraseConfig{
			MinLength: 20,
		},
		Pipeline: PipelineConfig{
			Workers:           4,
			QueueSize:         32,
			StageTimeout:      30 * time.Second,
			MetricsWindow:     100,
			MinBufferDuration: 800 * time.Millisecond,
			MaxBufferDuration: 30 * time.Second,
		},
		Providers: ProvidersConfig{
			STT:       ProviderEntry{Name: "mock"},
			Translate: ProviderEntry{Name: "mock"},
			TTS:       ProviderEntry{Name: "mock"},
		},
		Languages: LanguagesConfig{
			Source: "en",
			Target: "es",
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !slices.Contains(validSampleRates, cfg.Audio.SampleRate) {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is invalid; valid values: %v", cfg.Audio.SampleRate, validSampleRates))
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}

	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %.3f is out of range [0, 1]", cfg.VAD.Threshold))
	}
	if cfg.VAD.MinSpeechFrames <= 0 {
		errs = append(errs, fmt.Errorf("vad.min_speech_frames must be positive, got %d", cfg.VAD.MinSpeechFrames))
	}
	if cfg.VAD.MinSilenceFrames <= 0 {
		errs = append(errs, fmt.Errorf("vad.min_silence_frames must be positive, got %d", cfg.VAD.MinSilenceFrames))
	}
	switch cfg.VAD.Provider {
	case "", "energy":
	case "silero":
		if cfg.VAD.SileroURL == "" {
			errs = append(errs, errors.New("vad.silero_url is required when vad.provider is \"silero\""))
		}
	default:
		errs = append(errs, fmt.Errorf("vad.provider %q is invalid; valid values: energy, silero", cfg.VAD.Provider))
	}
	if cfg.VAD.Passthrough && cfg.VAD.PassthroughWindow <= 0 {
		errs = append(errs, fmt.Errorf("vad.passthrough_window must be positive in passthrough mode, got %v", cfg.VAD.PassthroughWindow))
	}

	if cfg.Stabilizer.SimilarityThreshold < 0 || cfg.Stabilizer.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("stabilizer.similarity_threshold %.3f is out of range [0, 1]", cfg.Stabilizer.SimilarityThreshold))
	}
	if cfg.Stabilizer.MinStableLength <= 0 {
		errs = append(errs, fmt.Errorf("stabilizer.min_stable_length must be positive, got %d", cfg.Stabilizer.MinStableLength))
	}

	if cfg.Phrase.MinLength <= 0 {
		errs = append(errs, fmt.Errorf("phrase.min_length must be positive, got %d", cfg.Phrase.MinLength))
	}

	if cfg.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be positive, got %d", cfg.Pipeline.Workers))
	}
	if cfg.Pipeline.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.queue_size must be positive, got %d", cfg.Pipeline.QueueSize))
	}
	if cfg.Pipeline.StageTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.stage_timeout must be positive, got %v", cfg.Pipeline.StageTimeout))
	}
	if cfg.Pipeline.MetricsWindow <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.metrics_window must be positive, got %d", cfg.Pipeline.MetricsWindow))
	}
	if cfg.Pipeline.MinBufferDuration < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_buffer_duration must not be negative, got %v", cfg.Pipeline.MinBufferDuration))
	}
	if cfg.Pipeline.MaxBufferDuration <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_buffer_duration must be positive, got %v", cfg.Pipeline.MaxBufferDuration))
	}
	if cfg.Pipeline.MaxBufferDuration > 0 && cfg.Pipeline.MinBufferDuration > cfg.Pipeline.MaxBufferDuration {
		errs = append(errs, fmt.Errorf("pipeline.min_buffer_duration %v exceeds pipeline.max_buffer_duration %v", cfg.Pipeline.MinBufferDuration, cfg.Pipeline.MaxBufferDuration))
	}

	validateProviderName(&errs, "stt", cfg.Providers.STT.Name)
	validateProviderName(&errs, "translate", cfg.Providers.Translate.Name)
	validateProviderName(&errs, "tts", cfg.Providers.TTS.Name)

	if cfg.Languages.Source == "" {
		errs = append(errs, errors.New("languages.source is required"))
	}
	if cfg.Languages.Target == "" {
		errs = append(errs, errors.New("languages.target is required"))
	}

	return errors.Join(errs...)
}

func validateProviderName(errs *[]error, kind, name string) {
	if name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		*errs = append(*errs, fmt.Errorf("providers.%s.name %q is unknown; valid values: %v", kind, name, ValidProviderNames[kind]))
	}
}
