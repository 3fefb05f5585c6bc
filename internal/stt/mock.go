package stt

import (
	"context"
	"sync"
)

// MockTranscriber returns scripted transcripts in order; used in tests and
// when no speech-to-text service is configured.
type MockTranscriber struct {
	mu      sync.Mutex
	results []MockResult
	calls   int

	// Err, when set, fails every call.
	Err error
}

type MockResult struct {
	Text       string
	Confidence float64
}

func NewMockTranscriber(results ...MockResult) *MockTranscriber {
	return &MockTranscriber{results: results}
}

func (m *MockTranscriber) Transcribe(_ context.Context, _ string) (string, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", 0, m.Err
	}
	if m.calls >= len(m.results) {
		return "", 0, nil
	}
	r := m.results[m.calls]
	m.calls++
	return r.Text, r.Confidence, nil
}

func (m *MockTranscriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
