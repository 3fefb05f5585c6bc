package tts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/telephony"
)

func newTestPipeline(t *testing.T) (*Pipeline, *MockEngine) {
	t.Helper()
	engine := NewMockEngine()
	cache, err := NewCache(t.TempDir(), engine)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	opts := VoiceOptions{Voice: "amy", Speed: 150, Pitch: 50, Volume: 100}
	return NewPipeline(cache, opts, 200*time.Millisecond, zap.NewNop()), engine
}

func TestSpeakPlaysArtifactOnce(t *testing.T) {
	p, _ := newTestPipeline(t)
	ch := telephony.NewMockChannel()

	err := p.Speak(context.Background(), ch, "hello", func(_ context.Context, _ string) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if got := len(ch.Played()); got != 1 {
		t.Fatalf("played %d refs, want 1", got)
	}
}

func TestSpeakRetriesTimeoutThenApologizes(t *testing.T) {
	p, _ := newTestPipeline(t)
	ch := telephony.NewMockChannel()

	attempts := 0
	err := p.Speak(context.Background(), ch, "hello", func(ctx context.Context, _ string) error {
		attempts++
		if attempts <= 2 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	// Two timed-out attempts plus the apology playback.
	if attempts != 3 {
		t.Fatalf("await attempts = %d, want 3", attempts)
	}
	if got := len(ch.Played()); got != 3 {
		t.Fatalf("played %d refs, want 3", got)
	}
}

func TestSpeakStopsOnChannelClosed(t *testing.T) {
	p, _ := newTestPipeline(t)
	ch := telephony.NewMockChannel()
	if err := ch.Hangup(context.Background()); err != nil {
		t.Fatalf("Hangup() error = %v", err)
	}

	err := p.Speak(context.Background(), ch, "hello", func(_ context.Context, _ string) error {
		t.Fatalf("await should not run on closed channel")
		return nil
	})
	if err != telephony.ErrChannelClosed {
		t.Fatalf("Speak() error = %v, want ErrChannelClosed", err)
	}
}
