package tts

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
)

var ttsTestMetrics = observability.NewMetrics("ttsclient_test")

func TestHTTPEngineRendersAudio(t *testing.T) {
	want := []byte("RIFF-fake-audio")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		_, _ = w.Write(want)
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL, nil)
	got, err := e.Render(context.Background(), "hello there", VoiceOptions{Voice: "amy"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestHTTPEngineCountsProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL, ttsTestMetrics)
	if _, err := e.Render(context.Background(), "hello", VoiceOptions{}); err == nil {
		t.Fatalf("Render() should fail on status 400")
	}
	if got := testutil.ToFloat64(ttsTestMetrics.ProviderErrors.WithLabelValues("tts", "400")); got != 1 {
		t.Fatalf("provider errors = %v, want 1", got)
	}
}

func TestHTTPEngineRetriesTransientStatusOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL, ttsTestMetrics)
	_, err := e.Render(context.Background(), "hello", VoiceOptions{})
	if err == nil {
		t.Fatalf("Render() should fail when the service stays unavailable")
	}
	if !reliability.IsTransient(err) {
		t.Fatalf("error should be marked transient: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
	if got := testutil.ToFloat64(ttsTestMetrics.ProviderErrors.WithLabelValues("tts", "503")); got != 2 {
		t.Fatalf("provider errors = %v, want one per attempt", got)
	}
}
