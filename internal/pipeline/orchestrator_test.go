package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ULTRASIRI/TalkFlow/internal/archive"
	"github.com/ULTRASIRI/TalkFlow/internal/metrics"
	"github.com/ULTRASIRI/TalkFlow/internal/segment"
	"github.com/ULTRASIRI/TalkFlow/internal/stabilize"
	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/stt"
	sttmock "github.com/ULTRASIRI/TalkFlow/pkg/provider/stt/mock"
	translatemock "github.com/ULTRASIRI/TalkFlow/pkg/provider/translate/mock"
	ttsmock "github.com/ULTRASIRI/TalkFlow/pkg/provider/tts/mock"
	vadmock "github.com/ULTRASIRI/TalkFlow/pkg/provider/vad/mock"
)

const (
	testRate    = 16000
	chunkFrames = 160 // 10 ms at 16 kHz
)

// pcmChunk returns one inbound chunk: chunkFrames silent PCM16 samples.
func pcmChunk() []byte {
	return audio.EncodePCM16(make([]float32, chunkFrames))
}

// passthroughOpts configures an orchestrator so every chunk completes one
// segment: passthrough segmentation sized to exactly one chunk.
func passthroughOpts(extra ...Option) []Option {
	opts := []Option{
		WithAudioFormat(audio.Format{SampleRate: testRate, Channels: 1}),
		WithSegmenterFactory(func() segment.Segmenter {
			return segment.NewPassthrough(testRate, 10*time.Millisecond)
		}),
		WithCollector(metrics.NewCollector()),
		WithLanguages("en", "es"),
	}
	return append(opts, extra...)
}

func newTestSession(t *testing.T, o *Orchestrator) *Session {
	t.Helper()
	s, err := o.NewSession("test-session")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestProcessAudioFullBundle(t *testing.T) {
	transcriber := &sttmock.Transcriber{
		Transcripts: []stt.Transcript{{Text: "Hello world", Confidence: 0.93, Language: "en"}},
	}
	translator := &translatemock.Translator{
		Translations: map[string]string{"Hello world": "Hola mundo"},
	}
	synthesizer := &ttsmock.Synthesizer{}
	store := archive.NewMemoryStore(10)

	o := New(transcriber, translator, synthesizer, passthroughOpts(WithStore(store))...)
	s := newTestSession(t, o)

	res, err := s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil {
		t.Fatalf("ProcessAudio() error = %v", err)
	}
	if res == nil || res.Err != nil {
		t.Fatalf("ProcessAudio() = %+v, want full bundle", res)
	}
	if res.Transcription != "Hello world" {
		t.Errorf("Transcription = %q, want %q", res.Transcription, "Hello world")
	}
	if res.Translation != "Hola mundo" {
		t.Errorf("Translation = %q, want %q", res.Translation, "Hola mundo")
	}
	if len(res.Audio) == 0 {
		t.Error("Audio is empty, want synthesized WAV")
	}
	if !res.IsFinal {
		t.Error("IsFinal = false, want true for segment-bounded transcription")
	}
	if res.SourceLanguage != "en" || res.TargetLanguage != "es" {
		t.Errorf("languages = %s→%s, want en→es", res.SourceLanguage, res.TargetLanguage)
	}
	if res.Latency == nil {
		t.Fatal("Latency = nil, want per-stage latency")
	}
	if res.Latency.Confidence != 0.93 {
		t.Errorf("Latency.Confidence = %v, want 0.93", res.Latency.Confidence)
	}

	if got := o.Collector().Stats(MetricPipelineLatency).Count; got != 1 {
		t.Errorf("pipeline_latency samples = %d, want 1", got)
	}
	if got := o.Collector().Counter(CounterSegmentsEmitted); got != 1 {
		t.Errorf("segments_emitted = %d, want 1", got)
	}

	saved, err := store.Recent(context.Background(), "test-session", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(saved) != 1 || saved[0].SourceText != "Hello world" || saved[0].TranslatedText != "Hola mundo" {
		t.Errorf("archived utterances = %+v, want one Hello world → Hola mundo", saved)
	}
}

func TestProcessAudioVADOnly(t *testing.T) {
	detector := &vadmock.Detector{Width: 40}
	transcriber := &sttmock.Transcriber{}
	o := New(transcriber, &translatemock.Translator{}, &ttsmock.Synthesizer{},
		passthroughOpts(WithSegmenterFactory(func() segment.Segmenter {
			return segment.New(segment.Config{MinSpeechFrames: 2, MinSilenceFrames: 2}, nil, detector)
		}))...)
	s := newTestSession(t, o)

	res, err := s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil {
		t.Fatalf("ProcessAudio() error = %v", err)
	}
	if res == nil || res.VAD == nil {
		t.Fatalf("ProcessAudio() = %+v, want VAD-only result", res)
	}
	if res.VAD.Speech {
		t.Error("VAD.Speech = true for silent chunk")
	}
	if transcriber.CallCount() != 0 {
		t.Errorf("Transcribe called %d times before utterance closed", transcriber.CallCount())
	}
}

func TestEmptyTranscriptionProducesNothing(t *testing.T) {
	transcriber := &sttmock.Transcriber{Transcripts: []stt.Transcript{{Text: ""}}}
	translator := &translatemock.Translator{}
	o := New(transcriber, translator, &ttsmock.Synthesizer{}, passthroughOpts()...)
	s := newTestSession(t, o)

	res, err := s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil {
		t.Fatalf("ProcessAudio() error = %v", err)
	}
	if res != nil {
		t.Errorf("ProcessAudio() = %+v, want nil for empty transcription", res)
	}
	if translator.CallCount() != 0 {
		t.Error("Translate called despite empty transcription")
	}
}

func TestStageFailureContained(t *testing.T) {
	transcriber := &sttmock.Transcriber{TranscribeErr: errors.New("model exploded")}
	o := New(transcriber, &translatemock.Translator{}, &ttsmock.Synthesizer{}, passthroughOpts()...)
	s := newTestSession(t, o)

	res, err := s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil {
		t.Fatalf("ProcessAudio() error = %v, stage faults must not escape", err)
	}
	if res == nil || res.Err == nil {
		t.Fatalf("ProcessAudio() = %+v, want structured stage error", res)
	}
	if res.Err.Stage != "stt" {
		t.Errorf("Err.Stage = %q, want stt", res.Err.Stage)
	}
	if strings.Contains(res.Err.Message, "exploded") {
		t.Errorf("Err.Message = %q leaks internal diagnostics", res.Err.Message)
	}
	if got := o.Collector().Counter(CounterStageErrors); got != 1 {
		t.Errorf("stage_errors = %d, want 1", got)
	}

	// The session stays usable once the collaborator recovers.
	transcriber.TranscribeErr = nil
	res, err = s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil || res == nil || res.Err != nil {
		t.Fatalf("ProcessAudio() after recovery = (%+v, %v), want full bundle", res, err)
	}
}

func TestTranslateFailureContained(t *testing.T) {
	translator := &translatemock.Translator{TranslateErr: errors.New("upstream 500")}
	o := New(&sttmock.Transcriber{Transcripts: []stt.Transcript{{Text: "hi there"}}},
		translator, &ttsmock.Synthesizer{}, passthroughOpts()...)
	s := newTestSession(t, o)

	res, err := s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil {
		t.Fatalf("ProcessAudio() error = %v", err)
	}
	if res == nil || res.Err == nil || res.Err.Stage != "translate" {
		t.Fatalf("ProcessAudio() = %+v, want translate stage error", res)
	}
}

func TestDecodeErrorDropsChunkOnly(t *testing.T) {
	o := New(&sttmock.Transcriber{Transcripts: []stt.Transcript{{Text: "still alive"}}},
		&translatemock.Translator{}, &ttsmock.Synthesizer{}, passthroughOpts()...)
	s := newTestSession(t, o)

	if _, err := s.ProcessAudio(context.Background(), []byte{0x01}); err == nil {
		t.Fatal("ProcessAudio() accepted sample-misaligned chunk")
	}

	res, err := s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil || res == nil || res.Err != nil {
		t.Fatalf("session unusable after decode error: (%+v, %v)", res, err)
	}
}

func TestDegradedModeStillDelivers(t *testing.T) {
	// All three collaborators are placeholder stubs, as after init failure.
	o := New(&sttmock.Transcriber{}, &translatemock.Translator{}, &ttsmock.Synthesizer{},
		passthroughOpts(WithDegraded(true))...)
	s := newTestSession(t, o)

	if !s.Status().Degraded {
		t.Fatal("Status().Degraded = false, want true after stub substitution")
	}

	res, err := s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil {
		t.Fatalf("ProcessAudio() error = %v, degraded mode must not raise", err)
	}
	if res == nil || res.Err != nil {
		t.Fatalf("ProcessAudio() = %+v, want well-formed stub bundle", res)
	}
	if res.Transcription == "" || res.Translation == "" || len(res.Audio) == 0 {
		t.Errorf("degraded bundle incomplete: %+v", res)
	}
}

func TestSetLanguagePairResetsState(t *testing.T) {
	translator := &translatemock.Translator{}
	o := New(&sttmock.Transcriber{}, translator, &ttsmock.Synthesizer{}, passthroughOpts()...)
	s := newTestSession(t, o)

	s.SetLanguagePair("de", "fr")

	src, dst := s.Languages()
	if src != "de" || dst != "fr" {
		t.Errorf("Languages() = %s→%s, want de→fr", src, dst)
	}
	if len(translator.PairCalls) != 1 || translator.PairCalls[0].Source != "de" || translator.PairCalls[0].Target != "fr" {
		t.Errorf("PairCalls = %+v, want one de→fr", translator.PairCalls)
	}
	if st := s.Status(); st.StableRun != 0 || st.Segmenter.BufferedFrames != 0 {
		t.Errorf("state not reset after language change: %+v", st)
	}
}

func TestSubmitPreservesArrivalOrder(t *testing.T) {
	const n = 12

	transcripts := make([]stt.Transcript, n)
	for i := range transcripts {
		transcripts[i] = stt.Transcript{Text: fmt.Sprintf("utterance %02d", i)}
	}
	o := New(&sttmock.Transcriber{Transcripts: transcripts},
		&translatemock.Translator{}, &ttsmock.Synthesizer{},
		passthroughOpts(WithQueueDepth(n), WithWorkers(4))...)
	s := newTestSession(t, o)

	var (
		mu   sync.Mutex
		got  []string
		done = make(chan struct{})
	)
	emit := func(res *Result, err error) {
		if err != nil || res == nil {
			t.Errorf("emit got (%+v, %v)", res, err)
			return
		}
		mu.Lock()
		got = append(got, res.Transcription)
		if len(got) == n {
			close(done)
		}
		mu.Unlock()
	}

	for i := 0; i < n; i++ {
		if !s.Submit(pcmChunk(), emit) {
			t.Fatalf("Submit() dropped chunk %d with empty backlog", i)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for results")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, text := range got {
		want := fmt.Sprintf("utterance %02d", i)
		if text != want {
			t.Fatalf("result %d = %q, want %q: arrival order not preserved", i, text, want)
		}
	}
}

func TestSubmitDropsBeyondQueueDepth(t *testing.T) {
	blocker := &blockingTranscriber{started: make(chan struct{}), release: make(chan struct{})}
	o := New(blocker, &translatemock.Translator{}, &ttsmock.Synthesizer{},
		passthroughOpts(WithQueueDepth(2), WithWorkers(1))...)
	s := newTestSession(t, o)

	// First chunk occupies the worker; the next two fill the backlog.
	if !s.Submit(pcmChunk(), func(*Result, error) {}) {
		t.Fatal("first Submit() rejected")
	}
	<-blocker.started

	dropped := 0
	for i := 0; i < 8; i++ {
		if !s.Submit(pcmChunk(), func(*Result, error) {}) {
			dropped++
		}
	}
	close(blocker.release)

	if dropped == 0 {
		t.Fatal("no chunks dropped beyond queue depth")
	}
	if got := o.Collector().Counter(CounterChunksDropped); got != int64(dropped) {
		t.Errorf("chunks_dropped = %d, want %d", got, dropped)
	}
}

func TestConcurrentProcessAudioDetected(t *testing.T) {
	blocker := &blockingTranscriber{started: make(chan struct{}), release: make(chan struct{})}
	o := New(blocker, &translatemock.Translator{}, &ttsmock.Synthesizer{}, passthroughOpts()...)
	s := newTestSession(t, o)

	go s.ProcessAudio(context.Background(), pcmChunk())
	<-blocker.started

	_, err := s.ProcessAudio(context.Background(), pcmChunk())
	close(blocker.release)
	if !errors.Is(err, ErrSessionCorrupted) {
		t.Fatalf("concurrent ProcessAudio() error = %v, want ErrSessionCorrupted", err)
	}
}

func TestStreamingModePhraseGating(t *testing.T) {
	// The same hypothesis twice: the first observation cannot commit, the
	// second commits the full prefix and completes a phrase.
	text := "Good morning everyone."
	o := New(&sttmock.Transcriber{Transcripts: []stt.Transcript{{Text: text}}},
		&translatemock.Translator{}, &ttsmock.Synthesizer{},
		passthroughOpts(
			WithStreaming(true),
			WithStabilizer(stabilize.Config{SimilarityThreshold: 0.8, MinStableLength: 4}),
			WithPhraseBuffer(10, stabilize.DefaultDelimiters),
		)...)
	s := newTestSession(t, o)

	res, err := s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil {
		t.Fatalf("first chunk error = %v", err)
	}
	if res == nil || res.Translation != "" {
		t.Fatalf("first hypothesis = %+v, want uncommitted (no translation)", res)
	}
	if res.IsFinal {
		t.Error("streaming hypothesis marked final")
	}

	res, err = s.ProcessAudio(context.Background(), pcmChunk())
	if err != nil {
		t.Fatalf("second chunk error = %v", err)
	}
	if res == nil || res.Translation == "" {
		t.Fatalf("second hypothesis = %+v, want committed phrase translated", res)
	}
	if res.Transcription != text {
		t.Errorf("Transcription = %q, want committed phrase %q", res.Transcription, text)
	}
}

func TestFlushDeliversTrailingText(t *testing.T) {
	// No delimiter, so the text stays buffered until Flush.
	text := "Good morning"
	translator := &translatemock.Translator{}
	o := New(&sttmock.Transcriber{Transcripts: []stt.Transcript{{Text: text}}},
		translator, &ttsmock.Synthesizer{},
		passthroughOpts(
			WithStreaming(true),
			WithStabilizer(stabilize.Config{SimilarityThreshold: 0.8, MinStableLength: 4}),
			WithPhraseBuffer(10, stabilize.DefaultDelimiters),
		)...)
	s := newTestSession(t, o)

	for i := 0; i < 2; i++ {
		if _, err := s.ProcessAudio(context.Background(), pcmChunk()); err != nil {
			t.Fatalf("chunk %d error = %v", i, err)
		}
	}
	if translator.CallCount() != 0 {
		t.Fatal("translated before any phrase boundary")
	}

	res, err := s.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if res == nil || res.Transcription != text {
		t.Fatalf("Flush() = %+v, want trailing text %q", res, text)
	}

	// A second flush has nothing left.
	res, err = s.Flush(context.Background())
	if err != nil || res != nil {
		t.Errorf("second Flush() = (%+v, %v), want (nil, nil)", res, err)
	}
}

func TestFlushWaitsForInFlightChunk(t *testing.T) {
	// A language switch flushes from the control goroutine while chunks run
	// on the queue goroutine. Flush must wait out the in-flight chunk and
	// deliver the buffered text, not report corruption.
	gate := &gatedTranscriber{parkAt: 3, started: make(chan struct{}), release: make(chan struct{})}
	o := New(gate, &translatemock.Translator{}, &ttsmock.Synthesizer{},
		passthroughOpts(
			WithStreaming(true),
			WithStabilizer(stabilize.Config{SimilarityThreshold: 0.8, MinStableLength: 4}),
			WithPhraseBuffer(10, stabilize.DefaultDelimiters),
		)...)
	s := newTestSession(t, o)

	// Two matching hypotheses leave "Good morning" buffered short of a
	// phrase boundary.
	for i := 0; i < 2; i++ {
		if _, err := s.ProcessAudio(context.Background(), pcmChunk()); err != nil {
			t.Fatalf("chunk %d error = %v", i, err)
		}
	}

	// Third chunk parks inside the transcriber with the session lock held.
	go s.ProcessAudio(context.Background(), pcmChunk())
	<-gate.started

	type flushOut struct {
		res *Result
		err error
	}
	done := make(chan flushOut, 1)
	go func() {
		res, err := s.Flush(context.Background())
		done <- flushOut{res, err}
	}()

	select {
	case out := <-done:
		t.Fatalf("Flush() = (%+v, %v) while a chunk was in flight, want it to wait", out.res, out.err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)

	var out flushOut
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Flush() did not return after the chunk completed")
	}
	if out.err != nil {
		t.Fatalf("Flush() error = %v", out.err)
	}
	if out.res == nil || out.res.Transcription != "Good morning" {
		t.Fatalf("Flush() = %+v, want buffered trailing text delivered", out.res)
	}
}

// blockingTranscriber parks in Transcribe until released, to hold a worker
// busy in backpressure and corruption tests.
type blockingTranscriber struct {
	startOnce sync.Once
	started   chan struct{}
	release   chan struct{}
}

func (b *blockingTranscriber) Transcribe(ctx context.Context, _ *audio.Segment, _ string) (stt.Transcript, error) {
	b.startOnce.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return stt.Transcript{Text: "blocked"}, nil
}

// gatedTranscriber returns a fixed hypothesis, parking on the parkAt-th call
// until released.
type gatedTranscriber struct {
	mu      sync.Mutex
	calls   int
	parkAt  int
	started chan struct{}
	release chan struct{}
}

func (g *gatedTranscriber) Transcribe(ctx context.Context, _ *audio.Segment, _ string) (stt.Transcript, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if n == g.parkAt {
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
		}
	}
	return stt.Transcript{Text: "Good morning"}, nil
}
