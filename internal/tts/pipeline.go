package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/telephony"
)

// apologyText is the fixed fallback phrase played when synthesis or playback
// keeps failing after a retry.
const apologyText = "I apologize, I'm having trouble with the audio on my end. Please bear with me."

// AwaitPlayback blocks until the playback with the given ID finishes on the
// channel. The conversation task supplies this so event ordering stays under
// its control.
type AwaitPlayback func(ctx context.Context, playbackID string) error

// Pipeline synthesizes an utterance and plays it on a channel.
type Pipeline struct {
	synth           Synthesizer
	opts            VoiceOptions
	playbackTimeout time.Duration
	log             *zap.Logger
}

func NewPipeline(synth Synthesizer, opts VoiceOptions, playbackTimeout time.Duration, log *zap.Logger) *Pipeline {
	if playbackTimeout <= 0 {
		playbackTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{synth: synth, opts: opts, playbackTimeout: playbackTimeout, log: log}
}

// Speak renders text and plays it, waiting for playback completion. A playback
// timeout is treated as transient: retried once, then the fixed apology phrase
// is played instead. Temporary artifacts are removed on every exit path.
func (p *Pipeline) Speak(ctx context.Context, ch telephony.Channel, text string, await AwaitPlayback) error {
	artifact, err := p.synth.Synthesize(ctx, text, p.opts)
	if err != nil {
		p.log.Warn("synthesis failed, playing apology", zap.Error(err))
		return p.speakApology(ctx, ch, await)
	}
	defer p.cleanup(artifact)

	err = p.playOnce(ctx, ch, artifact, await)
	if err == nil {
		return nil
	}
	if errors.Is(err, telephony.ErrChannelClosed) || ctx.Err() != nil {
		return err
	}
	if !reliability.IsTransient(err) {
		return err
	}

	p.log.Warn("playback failed, retrying once", zap.Error(err))
	err = p.playOnce(ctx, ch, artifact, await)
	if err == nil {
		return nil
	}
	if errors.Is(err, telephony.ErrChannelClosed) || ctx.Err() != nil {
		return err
	}

	p.log.Warn("playback retry failed, playing apology", zap.Error(err))
	return p.speakApology(ctx, ch, await)
}

func (p *Pipeline) playOnce(ctx context.Context, ch telephony.Channel, artifact Artifact, await AwaitPlayback) error {
	playCtx, cancel := context.WithTimeout(ctx, p.playbackTimeout)
	defer cancel()

	playbackID, err := ch.Play(playCtx, artifact.MediaRef())
	if err != nil {
		if errors.Is(err, telephony.ErrChannelClosed) {
			return err
		}
		return reliability.MarkTransient(fmt.Errorf("start playback: %w", err))
	}
	if err := await(playCtx, playbackID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return reliability.MarkTransient(fmt.Errorf("playback timed out: %w", err))
		}
		return err
	}
	return nil
}

func (p *Pipeline) speakApology(ctx context.Context, ch telephony.Channel, await AwaitPlayback) error {
	artifact, err := p.synth.Synthesize(ctx, apologyText, p.opts)
	if err != nil {
		return fmt.Errorf("synthesize apology: %w", err)
	}
	defer p.cleanup(artifact)
	return p.playOnce(ctx, ch, artifact, await)
}

func (p *Pipeline) cleanup(artifact Artifact) {
	if !artifact.Temporary || artifact.Path == "" {
		return
	}
	if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
		p.log.Warn("remove temporary artifact", zap.String("path", artifact.Path), zap.Error(err))
	}
}
