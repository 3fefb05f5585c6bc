package tts

import (
	"context"
	"path/filepath"
	"strings"
)

// VoiceOptions select the synthesis voice and prosody.
type VoiceOptions struct {
	Voice  string
	Speed  int
	Pitch  int
	Volume int
}

// Artifact is a synthesized audio file ready to play on a channel.
type Artifact struct {
	// Path is the local file path of the WAV artifact.
	Path string
	// Temporary artifacts live outside the cache and must be removed after
	// playback or on pipeline error.
	Temporary bool
	// Cached reports that the artifact was served from the cache without
	// invoking the engine.
	Cached bool
}

// MediaRef is the channel-playable reference for the artifact. The control
// plane addresses sounds by base name without extension.
func (a Artifact) MediaRef() string {
	base := filepath.Base(a.Path)
	return "sound:" + strings.TrimSuffix(base, filepath.Ext(base))
}

// Synthesizer turns text into a playable audio artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts VoiceOptions) (Artifact, error)
}

// Engine renders raw WAV bytes for the given text. Engines are wrapped by the
// cache, which owns artifact placement.
type Engine interface {
	Render(ctx context.Context, text string, opts VoiceOptions) ([]byte, error)
}
