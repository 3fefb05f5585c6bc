package tts

import (
	"context"
	"testing"
)

func TestCacheReturnsSameArtifactWithoutResynthesis(t *testing.T) {
	engine := NewMockEngine()
	cache, err := NewCache(t.TempDir(), engine)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	opts := VoiceOptions{Voice: "amy", Speed: 150, Pitch: 50, Volume: 100}
	first, err := cache.Synthesize(context.Background(), "hello there", opts)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if first.Cached {
		t.Fatalf("first call should not be a cache hit")
	}

	second, err := cache.Synthesize(context.Background(), "hello there", opts)
	if err != nil {
		t.Fatalf("Synthesize() second error = %v", err)
	}
	if !second.Cached {
		t.Fatalf("second call should be a cache hit")
	}
	if second.Path != first.Path {
		t.Fatalf("cache hit path = %q, want %q", second.Path, first.Path)
	}
	if engine.Renders() != 1 {
		t.Fatalf("engine renders = %d, want 1", engine.Renders())
	}
}

func TestCacheKeyCoversAllVoiceOptions(t *testing.T) {
	base := VoiceOptions{Voice: "amy", Speed: 150, Pitch: 50, Volume: 100}
	baseKey := Key("hi", base)

	variants := []VoiceOptions{
		{Voice: "brian", Speed: 150, Pitch: 50, Volume: 100},
		{Voice: "amy", Speed: 140, Pitch: 50, Volume: 100},
		{Voice: "amy", Speed: 150, Pitch: 60, Volume: 100},
		{Voice: "amy", Speed: 150, Pitch: 50, Volume: 90},
	}
	for _, v := range variants {
		if Key("hi", v) == baseKey {
			t.Fatalf("key collision for options %+v", v)
		}
	}
	if Key("bye", base) == baseKey {
		t.Fatalf("key collision for different text")
	}
}
