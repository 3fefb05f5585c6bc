package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Cache is a content-addressed artifact store wrapping a synthesis engine.
// The key covers text and every voice option, so identical requests resolve
// to the same artifact and the engine is invoked at most once per key.
type Cache struct {
	dir    string
	engine Engine
}

func NewCache(dir string, engine Engine) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tts cache dir: %w", err)
	}
	return &Cache{dir: dir, engine: engine}, nil
}

// Key derives the cache key for one synthesis request.
func Key(text string, opts VoiceOptions) string {
	h := xxhash.New()
	_, _ = h.WriteString(text)
	_, _ = h.WriteString("|" + opts.Voice)
	_, _ = h.WriteString("|" + strconv.Itoa(opts.Speed))
	_, _ = h.WriteString("|" + strconv.Itoa(opts.Pitch))
	_, _ = h.WriteString("|" + strconv.Itoa(opts.Volume))
	return fmt.Sprintf("tts_%016x", h.Sum64())
}

func (c *Cache) Synthesize(ctx context.Context, text string, opts VoiceOptions) (Artifact, error) {
	path := filepath.Join(c.dir, Key(text, opts)+".wav")
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return Artifact{Path: path, Cached: true}, nil
	}

	data, err := c.engine.Render(ctx, text, opts)
	if err != nil {
		return Artifact{}, fmt.Errorf("render speech: %w", err)
	}

	if err := writeFileAtomic(path, data); err == nil {
		return Artifact{Path: path}, nil
	}

	// Cache dir unwritable: fall back to a temporary artifact the pipeline
	// cleans up after playback.
	tmp, err := os.CreateTemp("", "tts_*.wav")
	if err != nil {
		return Artifact{}, fmt.Errorf("write tts artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Artifact{}, fmt.Errorf("write tts artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Artifact{}, fmt.Errorf("write tts artifact: %w", err)
	}
	return Artifact{Path: tmp.Name(), Temporary: true}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
