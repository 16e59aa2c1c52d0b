package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ULTRASIRI/TalkFlow/internal/archive"
	"github.com/ULTRASIRI/TalkFlow/internal/observe"
	"github.com/ULTRASIRI/TalkFlow/internal/segment"
	"github.com/ULTRASIRI/TalkFlow/internal/stabilize"
	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
)

// ErrSessionCorrupted is returned when two chunks of the same session reach
// the processing path concurrently. The per-session queue makes this
// impossible in normal operation, so a violation means the session's state
// machines can no longer be trusted; the caller must tear the session down.
// Other sessions and the process are unaffected.
var ErrSessionCorrupted = errors.New("pipeline: concurrent mutation of session state detected")

// ErrSessionClosed is returned for work submitted after Close.
var ErrSessionClosed = errors.New("pipeline: session closed")

// Session is the per-connection pipeline state. It owns the segmenter,
// stabilizer and phrase buffer exclusively; chunks run strictly in arrival
// order on the session's queue, so the state machines are only ever mutated
// from one goroutine at a time.
type Session struct {
	id string
	o  *Orchestrator

	ingest     *audio.Ingest
	segmenter  segment.Segmenter
	stabilizer *stabilize.Stabilizer
	phrases    *stabilize.PhraseBuffer
	queue      *Queue

	// mu serializes the processing path against control mutations
	// (Reset, SetLanguagePair). inFlight detects queue-discipline
	// violations: it is only ever contended if two chunks run at once.
	mu       sync.Mutex
	inFlight atomic.Bool

	source string
	target string

	closeOnce sync.Once
	closed    atomic.Bool
}

// SessionStatus is a point-in-time snapshot for status reporting.
type SessionStatus struct {
	ID        string        `json:"id"`
	Ready     bool          `json:"ready"`
	Degraded  bool          `json:"degraded"`
	Source    string        `json:"source_language"`
	Target    string        `json:"target_language"`
	Segmenter segment.State `json:"segmenter"`
	StableRun int           `json:"stable_run"`
}

// NewSession creates the pipeline state for one connection. The session
// shares the orchestrator's collaborators and metrics but owns its state
// machines and queue.
func (o *Orchestrator) NewSession(id string) (*Session, error) {
	ingest, err := audio.NewIngest(o.format)
	if err != nil {
		return nil, fmt.Errorf("pipeline: session %s: %w", id, err)
	}
	s := &Session{
		id:         id,
		o:          o,
		ingest:     ingest,
		segmenter:  o.newSegmenter(),
		stabilizer: stabilize.NewStabilizer(o.stabilizerCfg),
		phrases:    stabilize.NewPhraseBuffer(o.phraseMin, o.phraseDelims),
		queue:      o.pool.NewQueue(o.queueDepth),
		source:     o.source,
		target:     o.target,
	}
	o.obs.ActiveSessions.Add(context.Background(), 1)
	slog.Info("session started", "session", id, "source", s.source, "target", s.target, "degraded", o.degraded)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Submit enqueues one audio chunk for processing. emit is invoked on a worker
// goroutine with the chunk's result; it is never invoked for chunks dropped
// because the backlog was full (Submit returns false) or for chunks whose
// session closed before they ran.
func (s *Session) Submit(raw []byte, emit func(*Result, error)) bool {
	if s.closed.Load() {
		return false
	}
	s.o.collector.Increment(CounterChunksReceived, 1)
	s.o.obs.ChunksReceived.Add(context.Background(), 1)

	ok := s.queue.Submit(func(ctx context.Context) {
		res, err := s.ProcessAudio(ctx, raw)
		if ctx.Err() != nil || s.closed.Load() {
			// Disconnected mid-flight: discard rather than deliver.
			return
		}
		if res == nil && err == nil {
			return
		}
		emit(res, err)
	})
	if !ok {
		s.o.collector.Increment(CounterChunksDropped, 1)
		s.o.obs.ChunksDropped.Add(context.Background(), 1)
		slog.Debug("chunk dropped, session backlog full", "session", s.id)
	}
	return ok
}

// ProcessAudio runs one chunk through the pipeline synchronously.
//
// Outcomes: (nil, err) for a malformed chunk — dropped, session unaffected;
// a VAD-only Result while no utterance has closed; (nil, nil) when a closed
// utterance transcribed to nothing; a full Result otherwise. Stage failures
// are contained: they produce a Result carrying a StageError, never an error
// return, and the session remains usable.
func (s *Session) ProcessAudio(ctx context.Context, raw []byte) (*Result, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSessionCorrupted
	}
	defer s.inFlight.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	frame, err := s.ingest.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("pipeline: chunk dropped: %w", err)
	}

	vadStart := time.Now()
	speech, seg, err := s.segmenter.Process(frame)
	vadLat := time.Since(vadStart)
	s.o.collector.Record(MetricVADLatency, millis(vadLat))
	if err != nil {
		return s.stageFailure(ctx, "vad", err), nil
	}
	if seg == nil {
		return &Result{VAD: &VADUpdate{Speech: speech, LatencyMillis: millis(vadLat)}}, nil
	}

	s.o.collector.Increment(CounterSegmentsEmitted, 1)
	s.o.obs.SegmentsEmitted.Add(ctx, 1)
	slog.Debug("speech segment complete", "session", s.id, "duration", seg.Duration())

	sttStart := time.Now()
	sctx, cancel := s.o.withStageTimeout(ctx)
	sctx, span := observe.StageSpan(sctx, s.id, "stt")
	transcript, err := s.o.transcriber.Transcribe(sctx, seg, s.source)
	span.End()
	cancel()
	sttLat := time.Since(sttStart)
	if err != nil {
		return s.stageFailure(ctx, "stt", err), nil
	}
	if transcript.Text == "" {
		slog.Debug("segment transcribed to nothing", "session", s.id)
		return nil, nil
	}
	s.o.collector.Record(MetricSTTLatency, millis(sttLat))
	s.o.obs.RecordStage(ctx, "stt", sttLat.Seconds())

	// Segment-bounded transcriptions are final: the segmenter already
	// delimited the utterance. In streaming mode segments are arbitrary
	// windows, so hypotheses stay revisable and the stabilizer gates
	// committed text.
	res := s.stabilizer.Process(transcript.Text, !s.o.streaming)

	text := res.StableText
	final := !s.o.streaming
	if s.o.streaming {
		if res.IncrementalText == "" {
			return &Result{
				Transcription:  res.StableText,
				SourceLanguage: s.source,
				IsFinal:        false,
			}, nil
		}
		phrase, ok := s.phrases.Add(res.IncrementalText)
		if !ok {
			return &Result{
				Transcription:  res.StableText,
				SourceLanguage: s.source,
				IsFinal:        false,
			}, nil
		}
		text = phrase
	}

	out, fail := s.deliver(ctx, text, final, StageLatency{
		VADMillis:   millis(vadLat),
		STTMillis:   millis(sttLat),
		AudioMillis: millis(seg.Duration()),
		Confidence:  transcript.Confidence,
	}, start, seg.Duration())
	if fail != nil {
		return fail, nil
	}
	return out, nil
}

// deliver runs the translate and synthesize stages for committed text and
// assembles the full result bundle.
func (s *Session) deliver(ctx context.Context, text string, final bool, lat StageLatency, start time.Time, audioDur time.Duration) (*Result, *Result) {
	trStart := time.Now()
	tctx, cancel := s.o.withStageTimeout(ctx)
	tctx, span := observe.StageSpan(tctx, s.id, "translate")
	translated, err := s.o.translator.Translate(tctx, text)
	span.End()
	cancel()
	trLat := time.Since(trStart)
	if err != nil {
		return nil, s.stageFailure(ctx, "translate", err)
	}
	s.o.collector.Record(MetricTranslateLatency, millis(trLat))
	s.o.obs.RecordStage(ctx, "translate", trLat.Seconds())

	ttsStart := time.Now()
	yctx, cancel := s.o.withStageTimeout(ctx)
	yctx, span = observe.StageSpan(yctx, s.id, "tts")
	speech, err := s.o.synthesizer.Synthesize(yctx, translated)
	span.End()
	cancel()
	ttsLat := time.Since(ttsStart)
	if err != nil {
		return nil, s.stageFailure(ctx, "tts", err)
	}
	s.o.collector.Record(MetricTTSLatency, millis(ttsLat))
	s.o.obs.RecordStage(ctx, "tts", ttsLat.Seconds())

	total := time.Since(start)
	s.o.collector.Record(MetricPipelineLatency, millis(total))
	s.o.obs.RecordStage(ctx, "pipeline", total.Seconds())

	lat.TranslateMillis = millis(trLat)
	lat.TTSMillis = millis(ttsLat)
	lat.TotalMillis = millis(total)

	s.persist(ctx, text, translated, lat.Confidence, audioDur)

	observe.Logger(ctx).Info("pipeline complete",
		"session", s.id,
		"transcription", text,
		"translation", translated,
		"total_ms", lat.TotalMillis)

	return &Result{
		Transcription:  text,
		Translation:    translated,
		Audio:          speech,
		SourceLanguage: s.source,
		TargetLanguage: s.target,
		IsFinal:        final,
		Latency:        &lat,
	}, nil
}

// Flush drains the phrase buffer through translation and synthesis, blocking
// until any in-flight chunk completes. Called on a language-pair switch so
// trailing text short of a phrase boundary is translated into the outgoing
// pair instead of being discarded by the reset. Returns (nil, nil) when the
// buffer was empty.
//
// Flush runs on the control path, concurrent with the chunk queue; s.mu
// alone serializes it against ProcessAudio. The inFlight check is deliberately
// not taken here: it detects two chunks racing, not a control/data overlap.
func (s *Session) Flush(ctx context.Context) (*Result, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rest := s.phrases.Flush()
	if rest == "" {
		return nil, nil
	}
	out, fail := s.deliver(ctx, rest, true, StageLatency{}, time.Now(), 0)
	if fail != nil {
		return fail, nil
	}
	return out, nil
}

// Reset clears the segmenter, stabilizer and phrase buffer. Collaborators
// are never recreated.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmenter.Reset()
	s.stabilizer.Reset()
	s.phrases.Reset()
	slog.Info("session state reset", "session", s.id)
}

// SetLanguagePair replaces the active language pair. Segmentation and
// stabilization history is meaningless across languages, so the pair change
// forces a full state reset. The translator is informed immediately; the
// transcriber receives the new source language with each subsequent call.
func (s *Session) SetLanguagePair(source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.target = target
	s.segmenter.Reset()
	s.stabilizer.Reset()
	s.phrases.Reset()
	s.o.translator.SetLanguagePair(source, target)
	slog.Info("language pair changed", "session", s.id, "source", source, "target", target)
}

// Languages returns the active language pair.
func (s *Session) Languages() (source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source, s.target
}

// Status returns a snapshot of the session for status reporting. Degraded is
// true when any collaborator is a placeholder stub, so clients can tell
// degraded output from full operation.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStatus{
		ID:        s.id,
		Ready:     !s.closed.Load(),
		Degraded:  s.o.degraded,
		Source:    s.source,
		Target:    s.target,
		Segmenter: s.segmenter.State(),
		StableRun: s.stabilizer.StableRun(),
	}
}

// Close tears the session down: the queue stops, queued chunks are
// discarded, and any in-flight result is dropped instead of delivered.
// Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.queue.Close()
		s.o.obs.ActiveSessions.Add(context.Background(), -1)
		slog.Info("session closed", "session", s.id)
	})
}

// stageFailure converts a collaborator fault into a structured error result.
// The cause is logged and counted here; the client sees only the stage name.
func (s *Session) stageFailure(ctx context.Context, stage string, err error) *Result {
	s.o.collector.Increment(CounterStageErrors, 1)
	s.o.obs.RecordProviderError(ctx, stage, "invoke")
	slog.Error("pipeline stage failed", "session", s.id, "stage", stage, "err", err)
	return &Result{Err: &StageError{
		Stage:   stage,
		Message: "Failed to process audio",
	}}
}

// persist archives the completed utterance. Best effort: persistence errors
// are logged and never affect the result.
func (s *Session) persist(ctx context.Context, source, translated string, confidence float64, audioDur time.Duration) {
	if s.o.store == nil {
		return
	}
	u := &archive.Utterance{
		SessionID:      s.id,
		SourceText:     source,
		TranslatedText: translated,
		SourceLang:     s.source,
		TargetLang:     s.target,
		Confidence:     confidence,
		AudioDuration:  audioDur,
	}
	sctx, cancel := s.o.withStageTimeout(ctx)
	defer cancel()
	if err := s.o.store.Save(sctx, u); err != nil {
		slog.Warn("failed to archive utterance", "session", s.id, "err", err)
	}
}
