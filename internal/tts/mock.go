package tts

import (
	"context"
	"sync"
	"time"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/audio"
)

// MockEngine renders silent WAV audio sized to the text; used when no
// synthesis service is configured and in tests.
type MockEngine struct {
	mu      sync.Mutex
	renders int

	// RenderErr, when set, fails every render.
	RenderErr error
}

func NewMockEngine() *MockEngine { return &MockEngine{} }

func (e *MockEngine) Render(_ context.Context, text string, _ VoiceOptions) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.RenderErr != nil {
		return nil, e.RenderErr
	}
	e.renders++

	// Roughly 60ms of "speech" per word keeps mock playback short but nonzero.
	words := 1
	for _, r := range text {
		if r == ' ' {
			words++
		}
	}
	pcm := audio.SilencePCM16(time.Duration(words)*60*time.Millisecond, audio.DefaultSampleRate)
	return audio.EncodeWAVPCM16LE(pcm, audio.DefaultSampleRate)
}

// Renders reports how many times the engine was actually invoked.
func (e *MockEngine) Renders() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renders
}
