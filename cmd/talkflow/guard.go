package main

import (
	"context"

	"github.com/ULTRASIRI/TalkFlow/internal/resilience"
	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/stt"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/translate"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/tts"
)

// The guarded adapters below wrap each remote provider in a
// [resilience.FallbackGroup] whose last entry is the stage's deterministic
// stub. A provider that keeps failing trips its breaker and the stage keeps
// producing placeholder output instead of per-chunk errors; once the breaker
// half-opens, traffic probes the real provider again.

type guardedTranscriber struct {
	group *resilience.FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*guardedTranscriber)(nil)

func guardTranscriber(primary stt.Transcriber, name string, stub stt.Transcriber) stt.Transcriber {
	g := resilience.NewFallbackGroup(primary, name, resilience.BreakerConfig{})
	g.AddFallback(name+"/stub", stub)
	return &guardedTranscriber{group: g}
}

func (g *guardedTranscriber) Transcribe(ctx context.Context, seg *audio.Segment, language string) (stt.Transcript, error) {
	return resilience.ExecuteWithResult(g.group, func(t stt.Transcriber) (stt.Transcript, error) {
		return t.Transcribe(ctx, seg, language)
	})
}

type guardedTranslator struct {
	group *resilience.FallbackGroup[translate.Translator]
	all   []translate.Translator
}

var _ translate.Translator = (*guardedTranslator)(nil)

func guardTranslator(primary translate.Translator, name string, stub translate.Translator) translate.Translator {
	g := resilience.NewFallbackGroup(primary, name, resilience.BreakerConfig{})
	g.AddFallback(name+"/stub", stub)
	return &guardedTranslator{group: g, all: []translate.Translator{primary, stub}}
}

func (g *guardedTranslator) Translate(ctx context.Context, text string) (string, error) {
	return resilience.ExecuteWithResult(g.group, func(t translate.Translator) (string, error) {
		return t.Translate(ctx, text)
	})
}

// SetLanguagePair fans out to every entry so a fallback picked mid-stream
// translates into the same target language as the primary.
func (g *guardedTranslator) SetLanguagePair(source, target string) {
	for _, t := range g.all {
		t.SetLanguagePair(source, target)
	}
}

type guardedSynthesizer struct {
	group *resilience.FallbackGroup[tts.Synthesizer]
}

var _ tts.Synthesizer = (*guardedSynthesizer)(nil)

func guardSynthesizer(primary tts.Synthesizer, name string, stub tts.Synthesizer) tts.Synthesizer {
	g := resilience.NewFallbackGroup(primary, name, resilience.BreakerConfig{})
	g.AddFallback(name+"/stub", stub)
	return &guardedSynthesizer{group: g}
}

func (g *guardedSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return resilience.ExecuteWithResult(g.group, func(s tts.Synthesizer) ([]byte, error) {
		return s.Synthesize(ctx, text)
	})
}
