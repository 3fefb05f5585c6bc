package stt

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/audio"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/telephony"
)

// Utterance is the result of one listening window.
type Utterance struct {
	Text       string
	Confidence float64
	// Empty marks silence, a too-short recording, or a failed transcription.
	// The conversation treats all three as "no response", never as an error.
	Empty bool
}

// Transcriber converts a recorded artifact into text.
type Transcriber interface {
	Transcribe(ctx context.Context, recordingPath string) (text string, confidence float64, err error)
}

// AwaitRecording blocks until the channel's recording completes and returns
// the final artifact reference. Supplied by the conversation task so event
// ordering stays under its control.
type AwaitRecording func(ctx context.Context) (recordingRef string, err error)

// Pipeline records the callee and produces an utterance.
type Pipeline struct {
	trans       Transcriber
	maxDuration time.Duration
	minSpeech   time.Duration
	log         *zap.Logger
}

func NewPipeline(trans Transcriber, maxDuration, minSpeech time.Duration, log *zap.Logger) *Pipeline {
	if maxDuration <= 0 {
		maxDuration = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{trans: trans, maxDuration: maxDuration, minSpeech: minSpeech, log: log}
}

// Listen records with a duration bound and `#` terminate digit, then
// transcribes. Recordings whose audio payload is shorter than the minimum
// speech duration are classified empty without invoking the transcriber;
// transcription failures degrade to empty. The recording artifact is removed
// on every path.
func (p *Pipeline) Listen(ctx context.Context, ch telephony.Channel, name string, await AwaitRecording) (Utterance, error) {
	if _, err := ch.Record(ctx, name, "wav", p.maxDuration, "#"); err != nil {
		if errors.Is(err, telephony.ErrChannelClosed) {
			return Utterance{}, err
		}
		p.log.Warn("start recording failed", zap.String("name", name), zap.Error(err))
		return Utterance{Empty: true}, nil
	}

	ref, err := await(ctx)
	if err != nil {
		if errors.Is(err, telephony.ErrChannelClosed) || ctx.Err() != nil {
			return Utterance{}, err
		}
		p.log.Warn("recording wait failed", zap.String("name", name), zap.Error(err))
		return Utterance{Empty: true}, nil
	}
	defer p.remove(ref)

	info, err := os.Stat(ref)
	if err != nil {
		return Utterance{Empty: true}, nil
	}
	pcmBytes := info.Size() - audio.WAVHeaderSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	if audio.PCM16Duration(int(pcmBytes), audio.DefaultSampleRate) < p.minSpeech {
		// Likely silence; skip the transcription round-trip entirely.
		return Utterance{Empty: true}, nil
	}

	text, confidence, err := p.trans.Transcribe(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			return Utterance{}, ctx.Err()
		}
		p.log.Warn("transcription failed, treating as no response", zap.Error(err))
		return Utterance{Empty: true}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Utterance{Empty: true}, nil
	}
	return Utterance{Text: text, Confidence: confidence}, nil
}

func (p *Pipeline) remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.log.Warn("remove recording", zap.String("path", path), zap.Error(err))
	}
}
