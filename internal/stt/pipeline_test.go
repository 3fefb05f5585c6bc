package stt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/telephony"
)

func writeRecording(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.wav")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

func TestListenTranscribesRecording(t *testing.T) {
	trans := NewMockTranscriber(MockResult{Text: "not interested", Confidence: 0.82})
	p := NewPipeline(trans, 10*time.Second, 60*time.Millisecond, zap.NewNop())
	ch := telephony.NewMockChannel()
	rec := writeRecording(t, 4096)

	got, err := p.Listen(context.Background(), ch, "turn_1", func(_ context.Context) (string, error) {
		return rec, nil
	})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if got.Empty || got.Text != "not interested" || got.Confidence != 0.82 {
		t.Fatalf("unexpected utterance: %+v", got)
	}
	if _, err := os.Stat(rec); !os.IsNotExist(err) {
		t.Fatalf("recording should be removed after transcription")
	}
}

func TestListenSkipsTranscriptionForShortRecording(t *testing.T) {
	trans := NewMockTranscriber(MockResult{Text: "should not be used", Confidence: 0.9})
	p := NewPipeline(trans, 10*time.Second, 60*time.Millisecond, zap.NewNop())
	ch := telephony.NewMockChannel()
	rec := writeRecording(t, 200)

	got, err := p.Listen(context.Background(), ch, "turn_1", func(_ context.Context) (string, error) {
		return rec, nil
	})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if !got.Empty {
		t.Fatalf("short recording should be empty, got %+v", got)
	}
	if trans.Calls() != 0 {
		t.Fatalf("transcriber calls = %d, want 0", trans.Calls())
	}
}

func TestListenDegradesTranscriptionFailureToEmpty(t *testing.T) {
	trans := NewMockTranscriber()
	trans.Err = errors.New("stt service down")
	p := NewPipeline(trans, 10*time.Second, 60*time.Millisecond, zap.NewNop())
	ch := telephony.NewMockChannel()
	rec := writeRecording(t, 4096)

	got, err := p.Listen(context.Background(), ch, "turn_1", func(_ context.Context) (string, error) {
		return rec, nil
	})
	if err != nil {
		t.Fatalf("Listen() error = %v, want nil", err)
	}
	if !got.Empty {
		t.Fatalf("failed transcription should degrade to empty, got %+v", got)
	}
}

func TestListenPropagatesChannelClosed(t *testing.T) {
	p := NewPipeline(NewMockTranscriber(), 10*time.Second, 60*time.Millisecond, zap.NewNop())
	ch := telephony.NewMockChannel()
	if err := ch.Hangup(context.Background()); err != nil {
		t.Fatalf("Hangup() error = %v", err)
	}

	_, err := p.Listen(context.Background(), ch, "turn_1", func(_ context.Context) (string, error) {
		t.Fatalf("await should not run on closed channel")
		return "", nil
	})
	if !errors.Is(err, telephony.ErrChannelClosed) {
		t.Fatalf("Listen() error = %v, want ErrChannelClosed", err)
	}
}
