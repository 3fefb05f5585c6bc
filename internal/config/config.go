package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the AI dialer service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL    string
	OrganizationID string

	// Conversation budgets.
	MaxTurns            int
	TurnTimeout         time.Duration
	NoResponseLimit     int
	LowConfidenceFloor  float64
	LowConfidenceStreak int

	// Speech output.
	TTSEngine       string
	TTSURL          string
	TTSVoice        string
	TTSSpeed        int
	TTSPitch        int
	TTSVolume       int
	TTSCacheDir     string
	PlaybackTimeout time.Duration

	// Speech input. Recordings whose audio payload is shorter than MinSpeech
	// are treated as silence without a transcription round-trip.
	STTEngine         string
	STTURL            string
	RecordMaxDuration time.Duration
	MinSpeech         time.Duration

	// Knowledge base.
	KnowledgeURL       string
	KnowledgeThreshold float64

	// Campaign script API and compliance service. Empty values fall back to
	// the built-in defaults / in-process list.
	ScriptAPIURL string
	DNCURL       string

	// Warm transfer target, e.g. "PJSIP/1000@telnyx_endpoint". Empty means
	// transfers fall back to the voicemail path.
	TransferEndpoint string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "aidialer"),
		AllowAnyOrigin:      false,
		DatabaseURL:         stringsTrimSpace("DATABASE_URL"),
		OrganizationID:      envOrDefault("ORGANIZATION_ID", "default-org"),
		MaxTurns:            20,
		TurnTimeout:         45 * time.Second,
		NoResponseLimit:     3,
		LowConfidenceFloor:  0.3,
		LowConfidenceStreak: 2,
		TTSEngine:           envOrDefault("TTS_ENGINE", "auto"),
		TTSURL:              stringsTrimSpace("TTS_URL"),
		TTSVoice:            envOrDefault("TTS_VOICE", "amy"),
		TTSSpeed:            150,
		TTSPitch:            50,
		TTSVolume:           100,
		TTSCacheDir:         envOrDefault("TTS_CACHE_DIR", "cache/tts"),
		PlaybackTimeout:     30 * time.Second,
		STTEngine:           envOrDefault("STT_ENGINE", "auto"),
		STTURL:              stringsTrimSpace("STT_URL"),
		RecordMaxDuration:   30 * time.Second,
		MinSpeech:           60 * time.Millisecond,
		KnowledgeURL:        stringsTrimSpace("KNOWLEDGE_URL"),
		KnowledgeThreshold:  0.7,
		ScriptAPIURL:        stringsTrimSpace("SCRIPT_API_URL"),
		DNCURL:              stringsTrimSpace("DNC_URL"),
		TransferEndpoint:    stringsTrimSpace("TRANSFER_ENDPOINT"),
		ShutdownTimeout:     15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnTimeout, err = durationFromEnv("CALL_TURN_TIMEOUT", cfg.TurnTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PlaybackTimeout, err = durationFromEnv("TTS_PLAYBACK_TIMEOUT", cfg.PlaybackTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordMaxDuration, err = durationFromEnv("STT_RECORD_MAX_DURATION", cfg.RecordMaxDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTurns, err = intFromEnv("CALL_MAX_TURNS", cfg.MaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.NoResponseLimit, err = intFromEnv("CALL_NO_RESPONSE_LIMIT", cfg.NoResponseLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.LowConfidenceStreak, err = intFromEnv("CALL_LOW_CONFIDENCE_STREAK", cfg.LowConfidenceStreak)
	if err != nil {
		return Config{}, err
	}
	cfg.LowConfidenceFloor, err = floatFromEnv("CALL_LOW_CONFIDENCE_FLOOR", cfg.LowConfidenceFloor)
	if err != nil {
		return Config{}, err
	}
	cfg.KnowledgeThreshold, err = floatFromEnv("KNOWLEDGE_CONFIDENCE_THRESHOLD", cfg.KnowledgeThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSSpeed, err = intFromEnv("TTS_SPEED", cfg.TTSSpeed)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSPitch, err = intFromEnv("TTS_PITCH", cfg.TTSPitch)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSVolume, err = intFromEnv("TTS_VOLUME", cfg.TTSVolume)
	if err != nil {
		return Config{}, err
	}
	cfg.MinSpeech, err = durationFromEnv("STT_MIN_SPEECH", cfg.MinSpeech)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxTurns <= 0 {
		return Config{}, fmt.Errorf("CALL_MAX_TURNS must be positive")
	}
	if cfg.NoResponseLimit <= 0 {
		return Config{}, fmt.Errorf("CALL_NO_RESPONSE_LIMIT must be positive")
	}
	if cfg.LowConfidenceStreak <= 0 {
		return Config{}, fmt.Errorf("CALL_LOW_CONFIDENCE_STREAK must be positive")
	}
	if cfg.LowConfidenceFloor < 0 || cfg.LowConfidenceFloor > 1 {
		return Config{}, fmt.Errorf("CALL_LOW_CONFIDENCE_FLOOR must be in [0,1]")
	}
	if cfg.KnowledgeThreshold < 0 || cfg.KnowledgeThreshold > 1 {
		return Config{}, fmt.Errorf("KNOWLEDGE_CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if cfg.MinSpeech < 0 {
		return Config{}, fmt.Errorf("STT_MIN_SPEECH must be >= 0")
	}
	if cfg.TurnTimeout < time.Second {
		return Config{}, fmt.Errorf("CALL_TURN_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
