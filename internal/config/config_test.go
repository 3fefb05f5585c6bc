package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxTurns != 20 {
		t.Fatalf("MaxTurns = %d, want 20", cfg.MaxTurns)
	}
	if cfg.NoResponseLimit != 3 {
		t.Fatalf("NoResponseLimit = %d, want 3", cfg.NoResponseLimit)
	}
	if cfg.KnowledgeThreshold != 0.7 {
		t.Fatalf("KnowledgeThreshold = %v, want 0.7", cfg.KnowledgeThreshold)
	}
	if cfg.PlaybackTimeout != 30*time.Second {
		t.Fatalf("PlaybackTimeout = %v, want 30s", cfg.PlaybackTimeout)
	}
	if cfg.MinSpeech != 60*time.Millisecond {
		t.Fatalf("MinSpeech = %v, want 60ms", cfg.MinSpeech)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CALL_MAX_TURNS", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() with CALL_MAX_TURNS=0 should fail")
	}
	t.Setenv("CALL_MAX_TURNS", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() with non-numeric CALL_MAX_TURNS should fail")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CALL_TURN_TIMEOUT", "20s")
	t.Setenv("KNOWLEDGE_CONFIDENCE_THRESHOLD", "0.55")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TurnTimeout != 20*time.Second {
		t.Fatalf("TurnTimeout = %v, want 20s", cfg.TurnTimeout)
	}
	if cfg.KnowledgeThreshold != 0.55 {
		t.Fatalf("KnowledgeThreshold = %v, want 0.55", cfg.KnowledgeThreshold)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
}
