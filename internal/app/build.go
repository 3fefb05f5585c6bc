package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/broadcast"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/config"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/conversation"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/dialer"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/httpapi"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/knowledge"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/policy"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/response"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/script"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/store"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/stt"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/telephony"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/tts"
)

// BuildResult is the assembled service graph.
type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Manager  *dialer.Manager
	Hub      *broadcast.Hub
	Store    store.Store
	Metrics  *observability.Metrics
	Channels telephony.ChannelProvider

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build wires every collaborator from config. Engines resolve per their
// *_ENGINE setting: "http" requires the matching URL, "mock" runs fully
// in-process, and "auto" picks http when a URL is configured.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*BuildResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	baseStore, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}
	st := store.NewRetryingStore(baseStore, log)

	hub := broadcast.NewHub(metrics, log)

	ttsEngine, detail, err := resolveTTSEngine(cfg, metrics)
	if err != nil {
		_ = baseStore.Close()
		return nil, err
	}
	log.Info("tts engine selected", zap.String("engine", detail))

	cache, err := tts.NewCache(cfg.TTSCacheDir, ttsEngine)
	if err != nil {
		_ = baseStore.Close()
		return nil, fmt.Errorf("tts cache init failed: %w", err)
	}
	speaker := tts.NewPipeline(cache, tts.VoiceOptions{
		Voice:  cfg.TTSVoice,
		Speed:  cfg.TTSSpeed,
		Pitch:  cfg.TTSPitch,
		Volume: cfg.TTSVolume,
	}, cfg.PlaybackTimeout, log)

	transcriber, detail, err := resolveTranscriber(cfg, metrics)
	if err != nil {
		_ = baseStore.Close()
		return nil, err
	}
	log.Info("stt engine selected", zap.String("engine", detail))
	listener := stt.NewPipeline(transcriber, cfg.RecordMaxDuration, cfg.MinSpeech, log)

	// No knowledge service means question-shaped input goes straight to the
	// generic classifier instead of transferring every question.
	var kb knowledge.Service
	if cfg.KnowledgeURL != "" {
		kb = knowledge.NewHTTPService(cfg.KnowledgeURL, metrics)
	}

	var scripts script.Provider
	if cfg.ScriptAPIURL != "" {
		scripts = script.NewHTTPProvider(cfg.ScriptAPIURL)
	} else {
		scripts = script.NewStaticProvider()
	}

	var dnc policy.DNCRegistrar
	if cfg.DNCURL != "" {
		dnc = policy.NewHTTPDNCRegistrar(cfg.DNCURL)
	} else {
		dnc = policy.NewMemoryDNCRegistrar()
	}

	engine := response.NewEngine(response.NewRuleClassifier(), kb, response.Options{
		OrganizationID:      cfg.OrganizationID,
		KnowledgeThreshold:  cfg.KnowledgeThreshold,
		LowConfidenceFloor:  cfg.LowConfidenceFloor,
		LowConfidenceStreak: cfg.LowConfidenceStreak,
	}, log)

	manager := dialer.NewManager(func(meta conversation.Metadata, ch telephony.Channel) *conversation.Machine {
		return conversation.NewMachine(meta, conversation.Options{
			MaxTurns:           cfg.MaxTurns,
			TurnTimeout:        cfg.TurnTimeout,
			NoResponseLimit:    cfg.NoResponseLimit,
			LowConfidenceFloor: cfg.LowConfidenceFloor,
			TransferEndpoint:   cfg.TransferEndpoint,
		}, conversation.Deps{
			Channel:  ch,
			Speaker:  speaker,
			Listener: listener,
			Engine:   engine,
			Scripts:  scripts,
			Store:    st,
			DNC:      dnc,
			Hub:      hub,
			Metrics:  metrics,
			Log:      log,
		})
	}, metrics, log)

	// The control-plane bridge feeds events in over the HTTP API; channels
	// come from the provider. The in-process provider keeps the service fully
	// operable without a telephony backend attached.
	channels := telephony.NewMockProvider()

	api := httpapi.New(cfg, manager, channels, hub, st, metrics, log)

	cleanup := func() error {
		return baseStore.Close()
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Manager:  manager,
		Hub:      hub,
		Store:    st,
		Metrics:  metrics,
		Channels: channels,
		Cleanup:  cleanup,
	}, nil
}

func resolveTTSEngine(cfg config.Config, metrics *observability.Metrics) (tts.Engine, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.TTSEngine))
	switch mode {
	case "http":
		if cfg.TTSURL == "" {
			return nil, "", fmt.Errorf("TTS_ENGINE=http but TTS_URL is not set")
		}
		return tts.NewHTTPEngine(cfg.TTSURL, metrics), "http", nil
	case "mock":
		return tts.NewMockEngine(), "mock", nil
	case "", "auto":
		if cfg.TTSURL != "" {
			return tts.NewHTTPEngine(cfg.TTSURL, metrics), "http", nil
		}
		return tts.NewMockEngine(), "mock (no TTS_URL)", nil
	default:
		return nil, "", fmt.Errorf("invalid TTS_ENGINE: %q (expected auto|http|mock)", cfg.TTSEngine)
	}
}

func resolveTranscriber(cfg config.Config, metrics *observability.Metrics) (stt.Transcriber, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.STTEngine))
	switch mode {
	case "http":
		if cfg.STTURL == "" {
			return nil, "", fmt.Errorf("STT_ENGINE=http but STT_URL is not set")
		}
		return stt.NewHTTPTranscriber(cfg.STTURL, metrics), "http", nil
	case "mock":
		return stt.NewMockTranscriber(), "mock", nil
	case "", "auto":
		if cfg.STTURL != "" {
			return stt.NewHTTPTranscriber(cfg.STTURL, metrics), "http", nil
		}
		return stt.NewMockTranscriber(), "mock (no STT_URL)", nil
	default:
		return nil, "", fmt.Errorf("invalid STT_ENGINE: %q (expected auto|http|mock)", cfg.STTEngine)
	}
}
