// Package pipeline sequences the speech-translation stages for live audio.
//
// An [Orchestrator] holds the process-wide collaborators — transcriber,
// translator, synthesizer, metrics, persistence — injected once at
// construction. Each connection gets its own [Session], which owns the
// per-connection state machines (segmenter, stabilizer, phrase buffer) and
// runs chunks strictly in arrival order on a bounded queue.
//
// Stage faults never escape a session: they are caught at the orchestrator
// boundary, counted, and turned into structured error results, so one bad
// chunk cannot take a connection down.
package pipeline

import (
	"context"
	"time"

	"github.com/ULTRASIRI/TalkFlow/internal/archive"
	"github.com/ULTRASIRI/TalkFlow/internal/metrics"
	"github.com/ULTRASIRI/TalkFlow/internal/observe"
	"github.com/ULTRASIRI/TalkFlow/internal/segment"
	"github.com/ULTRASIRI/TalkFlow/internal/stabilize"
	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/stt"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/translate"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/tts"
)

const (
	// defaultStageTimeout bounds each collaborator call. A stage exceeding it
	// is treated as a stage failure, not an indefinite block.
	defaultStageTimeout = 30 * time.Second

	// defaultQueueDepth is the per-session backlog beyond which chunks are
	// dropped.
	defaultQueueDepth = 32

	// defaultWorkers caps simultaneous in-flight inference across sessions.
	defaultWorkers = 4
)

// Rolling-window metric names recorded into the shared collector.
const (
	MetricVADLatency       = "vad_latency"
	MetricSTTLatency       = "stt_latency"
	MetricTranslateLatency = "translation_latency"
	MetricTTSLatency       = "tts_latency"
	MetricPipelineLatency  = "pipeline_latency"
)

// Counter names recorded into the shared collector.
const (
	CounterChunksReceived  = "chunks_received"
	CounterChunksDropped   = "chunks_dropped"
	CounterSegmentsEmitted = "segments_emitted"
	CounterStageErrors     = "stage_errors"
)

// Orchestrator owns the shared collaborators and constructs sessions.
// All collaborators are injected at construction time; the orchestrator never
// creates or replaces them afterwards.
type Orchestrator struct {
	transcriber stt.Transcriber
	translator  translate.Translator
	synthesizer tts.Synthesizer

	newSegmenter func() segment.Segmenter
	collector    *metrics.Collector
	obs          *observe.Metrics
	store        archive.Store
	pool         *Pool

	format        audio.Format
	stabilizerCfg stabilize.Config
	phraseMin     int
	phraseDelims  string
	stageTimeout  time.Duration
	queueDepth    int
	source        string
	target        string
	streaming     bool
	degraded      bool
}

// Option is a functional option for configuring an Orchestrator during
// construction.
type Option func(*Orchestrator)

// WithSegmenterFactory sets the factory used to build each session's
// segmenter. The default is a passthrough segmenter chunking at one second.
func WithSegmenterFactory(f func() segment.Segmenter) Option {
	return func(o *Orchestrator) { o.newSegmenter = f }
}

// WithCollector sets the shared rolling-window metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.collector = c }
}

// WithObserveMetrics sets the OpenTelemetry instrument set.
func WithObserveMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.obs = m }
}

// WithStore sets the utterance archive. Nil disables persistence.
func WithStore(s archive.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithAudioFormat sets the inbound PCM format. Default 16 kHz mono.
func WithAudioFormat(f audio.Format) Option {
	return func(o *Orchestrator) { o.format = f }
}

// WithStabilizer sets the stable-prefix thresholds.
func WithStabilizer(cfg stabilize.Config) Option {
	return func(o *Orchestrator) { o.stabilizerCfg = cfg }
}

// WithPhraseBuffer sets the phrase-assembly parameters.
func WithPhraseBuffer(minLength int, delimiters string) Option {
	return func(o *Orchestrator) {
		o.phraseMin = minLength
		o.phraseDelims = delimiters
	}
}

// WithStageTimeout bounds each collaborator call.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stageTimeout = d
		}
	}
}

// WithQueueDepth bounds each session's chunk backlog.
func WithQueueDepth(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.queueDepth = n
		}
	}
}

// WithWorkers caps simultaneous in-flight inference across all sessions.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pool = NewPool(n)
		}
	}
}

// WithLanguages sets the default language pair for new sessions.
func WithLanguages(source, target string) Option {
	return func(o *Orchestrator) {
		o.source = source
		o.target = target
	}
}

// WithStreaming switches sessions to streaming mode: transcriptions are
// treated as revisable hypotheses, the stabilizer gates committed text, and
// the phrase buffer assembles complete phrases before translation. Used with
// passthrough segmentation, where segments are not utterance-bounded.
func WithStreaming(enabled bool) Option {
	return func(o *Orchestrator) { o.streaming = enabled }
}

// WithDegraded marks the orchestrator as running on placeholder stubs after a
// collaborator failed to initialize. Sessions expose the flag in their status
// so degraded output is never mistaken for full operation.
func WithDegraded(degraded bool) Option {
	return func(o *Orchestrator) { o.degraded = degraded }
}

// New constructs an Orchestrator around the three stage collaborators.
// Options are applied after defaults are set.
func New(transcriber stt.Transcriber, translator translate.Translator, synthesizer tts.Synthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transcriber:   transcriber,
		translator:    translator,
		synthesizer:   synthesizer,
		format:        audio.Format{SampleRate: 16000, Channels: 1},
		stabilizerCfg: stabilize.Config{SimilarityThreshold: 0.85, MinStableLength: 10},
		phraseMin:     20,
		phraseDelims:  stabilize.DefaultDelimiters,
		stageTimeout:  defaultStageTimeout,
		queueDepth:    defaultQueueDepth,
		source:        "en",
		target:        "es",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.newSegmenter == nil {
		rate := o.format.SampleRate
		o.newSegmenter = func() segment.Segmenter {
			return segment.NewPassthrough(rate, time.Second)
		}
	}
	if o.collector == nil {
		o.collector = metrics.NewCollector()
	}
	if o.obs == nil {
		o.obs = observe.DefaultMetrics()
	}
	if o.pool == nil {
		o.pool = NewPool(defaultWorkers)
	}
	return o
}

// Degraded reports whether any collaborator was replaced by a stub at
// startup.
func (o *Orchestrator) Degraded() bool { return o.degraded }

// Collector returns the shared rolling-window collector, for status
// endpoints and control messages.
func (o *Orchestrator) Collector() *metrics.Collector { return o.collector }

// ---- result bundle ----

// VADUpdate is the interim speech-activity report for a chunk that did not
// close an utterance. No downstream stage ran.
type VADUpdate struct {
	Speech        bool    `json:"is_speech"`
	LatencyMillis float64 `json:"vad_latency_ms"`
}

// StageLatency carries per-stage wall-clock latency for one completed trip
// through the pipeline.
type StageLatency struct {
	VADMillis       float64 `json:"vad_latency_ms"`
	STTMillis       float64 `json:"stt_latency_ms"`
	TranslateMillis float64 `json:"translation_latency_ms"`
	TTSMillis       float64 `json:"tts_latency_ms"`
	TotalMillis     float64 `json:"total_latency_ms"`
	AudioMillis     float64 `json:"audio_duration_ms"`
	Confidence      float64 `json:"transcription_confidence"`
}

// StageError describes a contained stage failure. Message is client-safe;
// the underlying cause is logged server-side only.
type StageError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Result is the outcome of processing one audio chunk. Exactly one of three
// shapes is populated: a VAD-only update, a full bundle (transcription,
// translation, audio, latency), or a stage error.
type Result struct {
	VAD *VADUpdate

	Transcription  string
	Translation    string
	Audio          []byte
	SourceLanguage string
	TargetLanguage string
	IsFinal        bool
	Latency        *StageLatency

	Err *StageError
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (o *Orchestrator) withStageTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.stageTimeout)
}
