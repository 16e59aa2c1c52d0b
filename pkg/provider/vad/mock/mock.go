// Package mock provides test doubles for the vad package interfaces.
//
// Use Detector to script per-window classification results and inspect the
// windows that were submitted.
//
// Example:
//
//	d := &mock.Detector{
//	    Width:   4,
//	    Results: []vad.Result{{Speech: true, Probability: 0.9}},
//	}
package mock

import (
	"sync"

	"github.com/ULTRASIRI/TalkFlow/pkg/provider/vad"
)

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Width is the value returned by WindowSize.
	Width int

	// Results is consumed one entry per Detect call. When exhausted, the last
	// entry is repeated; when empty, a zero Result is returned.
	Results []vad.Result

	// DetectErr, if non-nil, is returned by every Detect call.
	DetectErr error

	// DetectCalls records a copy of every window passed to Detect, in order.
	DetectCalls [][]float32

	next int
}

// Compile-time interface assertion.
var _ vad.Detector = (*Detector)(nil)

// WindowSize returns Width.
func (d *Detector) WindowSize() int { return d.Width }

// Detect records the call and returns the next scripted result.
func (d *Detector) Detect(window []float32) (vad.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cp := make([]float32, len(window))
	copy(cp, window)
	d.DetectCalls = append(d.DetectCalls, cp)

	if d.DetectErr != nil {
		return vad.Result{}, d.DetectErr
	}
	if len(d.Results) == 0 {
		return vad.Result{}, nil
	}
	res := d.Results[d.next]
	if d.next < len(d.Results)-1 {
		d.next++
	}
	return res, nil
}

// Reset clears recorded calls and rewinds the scripted results.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DetectCalls = nil
	d.next = 0
}
