// Command talkflow runs the real-time speech translation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/ULTRASIRI/TalkFlow/internal/archive"
	"github.com/ULTRASIRI/TalkFlow/internal/config"
	"github.com/ULTRASIRI/TalkFlow/internal/metrics"
	"github.com/ULTRASIRI/TalkFlow/internal/observe"
	"github.com/ULTRASIRI/TalkFlow/internal/pipeline"
	"github.com/ULTRASIRI/TalkFlow/internal/resilience"
	"github.com/ULTRASIRI/TalkFlow/internal/segment"
	"github.com/ULTRASIRI/TalkFlow/internal/server"
	"github.com/ULTRASIRI/TalkFlow/internal/stabilize"
	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/stt"
	sttmock "github.com/ULTRASIRI/TalkFlow/pkg/provider/stt/mock"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/stt/whisper"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/translate"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/translate/anyllm"
	translatemock "github.com/ULTRASIRI/TalkFlow/pkg/provider/translate/mock"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/tts"
	ttsmock "github.com/ULTRASIRI/TalkFlow/pkg/provider/tts/mock"
	oaitts "github.com/ULTRASIRI/TalkFlow/pkg/provider/tts/openai"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/tts/piper"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/vad"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/vad/energy"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/vad/silero"
)

// energyWindow is the classifier window for the RMS detector, 32 ms at 16 kHz.
const energyWindow = 512

// version is stamped by the build; "dev" for local builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		// No file is fine: run on the built-in defaults (mock providers).
		cfg = config.Default()
	default:
		fmt.Fprintf(os.Stderr, "talkflow: %v\n", err)
		return 1
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("talkflow starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "talkflow",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Collaborators ─────────────────────────────────────────────────────────
	//
	// Each stage falls back to a deterministic stub when its provider fails to
	// initialise; the server then runs in degraded mode rather than refusing
	// to start, and reports it via /api/health and session status.

	transcriber, sttDegraded := buildTranscriber(cfg)
	translator, trDegraded := buildTranslator(cfg)
	synthesizer, ttsDegraded := buildSynthesizer(cfg)
	degraded := sttDegraded || trDegraded || ttsDegraded
	if degraded {
		slog.Warn("running in degraded mode, placeholder output will be produced")
	}

	store := buildStore(ctx, cfg)

	// ── Orchestrator & server ─────────────────────────────────────────────────

	orch := pipeline.New(transcriber, translator, synthesizer,
		pipeline.WithCollector(metrics.NewCollector(metrics.WithWindowSize(cfg.Pipeline.MetricsWindow))),
		pipeline.WithSegmenterFactory(segmenterFactory(cfg)),
		pipeline.WithAudioFormat(audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels}),
		pipeline.WithStabilizer(stabilize.Config{
			SimilarityThreshold: cfg.Stabilizer.SimilarityThreshold,
			MinStableLength:     cfg.Stabilizer.MinStableLength,
		}),
		pipeline.WithPhraseBuffer(cfg.Phrase.MinLength, phraseDelimiters(cfg)),
		pipeline.WithStageTimeout(cfg.Pipeline.StageTimeout),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithQueueDepth(cfg.Pipeline.QueueSize),
		pipeline.WithLanguages(cfg.Languages.Source, cfg.Languages.Target),
		// Passthrough segments are arbitrary windows, not delimited
		// utterances, so hypotheses stay revisable and commits are
		// phrase-gated.
		pipeline.WithStreaming(cfg.VAD.Passthrough),
		pipeline.WithStore(store),
		pipeline.WithDegraded(degraded),
	)

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := server.New(cfg, orch).Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Collaborator wiring ───────────────────────────────────────────────────────

func buildTranscriber(cfg *config.Config) (stt.Transcriber, bool) {
	entry := cfg.Providers.STT
	switch entry.Name {
	case "whisper":
		t, degraded := resilience.Init[stt.Transcriber]("stt/whisper", func() (stt.Transcriber, error) {
			var opts []whisper.Option
			if entry.Model != "" {
				opts = append(opts, whisper.WithModel(entry.Model))
			}
			opts = append(opts, whisper.WithLanguage(cfg.Languages.Source))
			return whisper.New(entry.BaseURL, opts...)
		}, &sttmock.Transcriber{})
		if degraded {
			return t, true
		}
		return guardTranscriber(t, "stt/whisper", &sttmock.Transcriber{}), false
	case "whisper-native":
		t, degraded := resilience.Init[stt.Transcriber]("stt/whisper-native", func() (stt.Transcriber, error) {
			return whisper.NewNative(entry.Model, whisper.WithNativeLanguage(cfg.Languages.Source))
		}, &sttmock.Transcriber{})
		if degraded {
			return t, true
		}
		return guardTranscriber(t, "stt/whisper-native", &sttmock.Transcriber{}), false
	default:
		return &sttmock.Transcriber{}, entry.Name != "mock"
	}
}

func buildTranslator(cfg *config.Config) (translate.Translator, bool) {
	entry := cfg.Providers.Translate
	if entry.Name != "anyllm" {
		return &translatemock.Translator{}, entry.Name != "mock"
	}
	tr, degraded := resilience.Init[translate.Translator]("translate/anyllm", func() (translate.Translator, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Backend, entry.Model, cfg.Languages.Source, cfg.Languages.Target, opts...)
	}, &translatemock.Translator{})
	if degraded {
		return tr, true
	}
	return guardTranslator(tr, "translate/anyllm", &translatemock.Translator{}), false
}

func buildSynthesizer(cfg *config.Config) (tts.Synthesizer, bool) {
	entry := cfg.Providers.TTS
	switch entry.Name {
	case "piper":
		s, degraded := resilience.Init[tts.Synthesizer]("tts/piper", func() (tts.Synthesizer, error) {
			var opts []piper.Option
			if entry.Voice != "" {
				opts = append(opts, piper.WithVoice(entry.Voice))
			}
			return piper.New(entry.BaseURL, opts...)
		}, &ttsmock.Synthesizer{})
		if degraded {
			return s, true
		}
		return guardSynthesizer(s, "tts/piper", &ttsmock.Synthesizer{}), false
	case "openai":
		s, degraded := resilience.Init[tts.Synthesizer]("tts/openai", func() (tts.Synthesizer, error) {
			var opts []oaitts.Option
			if entry.BaseURL != "" {
				opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
			}
			if entry.Voice != "" {
				opts = append(opts, oaitts.WithVoice(entry.Voice))
			}
			return oaitts.New(entry.APIKey, entry.Model, opts...)
		}, &ttsmock.Synthesizer{})
		if degraded {
			return s, true
		}
		return guardSynthesizer(s, "tts/openai", &ttsmock.Synthesizer{}), false
	default:
		return &ttsmock.Synthesizer{}, entry.Name != "mock"
	}
}

// segmenterFactory builds the per-session segmenter: VAD hysteresis by
// default, passthrough chunking when VAD is disabled. The neural silero
// classifier is primary when configured; an init failure disables the neural
// path for the process and falls back to energy-only classification.
func segmenterFactory(cfg *config.Config) func() segment.Segmenter {
	if cfg.VAD.Passthrough {
		window := cfg.VAD.PassthroughWindow
		if window < cfg.Pipeline.MinBufferDuration {
			window = cfg.Pipeline.MinBufferDuration
		}
		return func() segment.Segmenter {
			return segment.NewPassthrough(cfg.Audio.SampleRate, window)
		}
	}

	fallback, err := energy.New(energyWindow, energy.WithThreshold(cfg.VAD.Threshold))
	if err != nil {
		// Only reachable with a non-positive window constant.
		panic("talkflow: energy detector init: " + err.Error())
	}

	var primary vad.Detector
	if cfg.VAD.Provider == "silero" {
		p, degraded := resilience.Init[vad.Detector]("vad/silero", func() (vad.Detector, error) {
			return silero.New(cfg.VAD.SileroURL, cfg.Audio.SampleRate, silero.WithThreshold(cfg.VAD.Threshold))
		}, nil)
		if !degraded {
			primary = p
		}
	}

	segCfg := segment.Config{
		MinSpeechFrames:  cfg.VAD.MinSpeechFrames,
		MinSilenceFrames: cfg.VAD.MinSilenceFrames,
		MaxBuffer:        cfg.Pipeline.MaxBufferDuration,
	}
	return func() segment.Segmenter {
		return segment.New(segCfg, primary, fallback)
	}
}

// buildStore opens the utterance archive: PostgreSQL when a DSN is
// configured, otherwise a bounded in-memory history.
func buildStore(ctx context.Context, cfg *config.Config) archive.Store {
	if cfg.Archive.PostgresDSN == "" {
		return archive.NewMemoryStore(archive.DefaultMemoryCapacity)
	}
	pool, err := pgxpool.New(ctx, cfg.Archive.PostgresDSN)
	if err != nil {
		slog.Warn("archive database unavailable, keeping utterances in memory", "err", err)
		return archive.NewMemoryStore(archive.DefaultMemoryCapacity)
	}
	store := archive.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		slog.Warn("archive migration failed, keeping utterances in memory", "err", err)
		pool.Close()
		return archive.NewMemoryStore(archive.DefaultMemoryCapacity)
	}
	slog.Info("utterance archive connected")
	return store
}

func phraseDelimiters(cfg *config.Config) string {
	if cfg.Phrase.Delimiters != "" {
		return cfg.Phrase.Delimiters
	}
	return stabilize.DefaultDelimiters
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
