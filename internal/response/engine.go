package response

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/knowledge"
)

// Action tells the conversation loop what to do after speaking the utterance.
type Action string

const (
	ActionContinue Action = "continue"
	ActionTransfer Action = "transfer"
	ActionEnd      Action = "end"
)

// Decision is one turn's reply and its routing outcome.
type Decision struct {
	Utterance  string
	Intent     string
	Emotion    string
	Confidence float64
	Action     Action

	// ShouldFallback marks a turn the engine could not handle itself, so the
	// call is handed to a human instead of guessing.
	ShouldFallback bool
	// AddToDNC marks an explicit removal request.
	AddToDNC bool
	// Repeat asks the loop to replay the previous prompt instead of logging a
	// new AI turn.
	Repeat bool
}

// Snapshot is the slice of call state the engine needs to decide a turn.
type Snapshot struct {
	Turn int
	// LowConfidenceRuns counts consecutive prior turns below the confidence
	// floor.
	LowConfidenceRuns int
}

// dncKeywords trigger an immediate do-not-call disposition.
var dncKeywords = []string{
	"stop calling",
	"don't call",
	"do not call",
	"remove me",
	"take me off",
	"unsubscribe",
	"stop contacting",
}

var notInterestedKeywords = []string{
	"not interested",
	"no thanks",
	"no thank you",
	"don't want",
}

// Options bound the engine's knowledge and fallback behavior.
type Options struct {
	OrganizationID      string
	KnowledgeThreshold  float64
	LowConfidenceFloor  float64
	LowConfidenceStreak int
}

// Engine turns a callee utterance (or DTMF digit) into the next reply.
// DTMF quick paths win over text, explicit refusals win over the knowledge
// base, and the knowledge base wins over the generic classifier.
type Engine struct {
	classifier Classifier
	kb         knowledge.Service
	opts       Options
	log        *zap.Logger
}

func NewEngine(classifier Classifier, kb knowledge.Service, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{classifier: classifier, kb: kb, opts: opts, log: log}
}

func (e *Engine) Decide(ctx context.Context, snap Snapshot, calleeText, dtmf string) Decision {
	d := e.decide(ctx, calleeText, dtmf)

	// Two unclear turns in a row hand the call to a human.
	if d.Action == ActionContinue && d.Confidence < e.opts.LowConfidenceFloor &&
		snap.LowConfidenceRuns+1 >= e.opts.LowConfidenceStreak {
		d.Utterance = "Let me connect you with one of our specialists who can help you better."
		d.Action = ActionTransfer
		d.ShouldFallback = true
	}
	return d
}

func (e *Engine) decide(ctx context.Context, calleeText, dtmf string) Decision {
	if dtmf != "" {
		return e.decideDTMF(dtmf)
	}

	input := strings.ToLower(calleeText)

	if containsAny(input, dncKeywords) {
		return Decision{
			Utterance:  "I apologize for the inconvenience. I'm removing your number from our list right now. You won't hear from us again. Have a good day.",
			Intent:     "dnc_request",
			Emotion:    "negative",
			Confidence: 0.95,
			Action:     ActionEnd,
			AddToDNC:   true,
		}
	}

	if containsAny(input, notInterestedKeywords) {
		return Decision{
			Utterance:  "I understand, and thank you for letting me know. Have a great day!",
			Intent:     "not_interested",
			Emotion:    "negative",
			Confidence: 0.9,
			Action:     ActionEnd,
		}
	}

	if e.kb != nil && IsQuestionShaped(calleeText) {
		if d, ok := e.decideFromKnowledge(ctx, calleeText); ok {
			return d
		}
	}

	c := e.classifier.Classify(calleeText)
	d := Decision{
		Intent:     c.Intent,
		Emotion:    c.Emotion,
		Confidence: c.Confidence,
		Action:     ActionContinue,
		Utterance:  c.Suggestion,
	}

	switch {
	case c.Emotion == "frustrated":
		d.Utterance = "I'm sorry to have caught you at a bad time. Let me connect you with a colleague who can help directly."
		d.Action = ActionTransfer
	case c.Intent == "buying_signal":
		d.Intent = "schedule_meeting"
		d.Action = ActionEnd
	}

	if d.Utterance == "" {
		d.Utterance = "That's a fair point. Could you tell me a bit more about what matters most to you here?"
	}

	return d
}

func (e *Engine) decideDTMF(digit string) Decision {
	switch digit {
	case "1":
		return Decision{
			Utterance:  "Great! I'm connecting you with one of our specialists right now. Please hold.",
			Intent:     "interested",
			Emotion:    "positive",
			Confidence: 0.95,
			Action:     ActionTransfer,
		}
	case "2":
		return Decision{
			Utterance:  "No problem at all. Thank you for your time, and have a great day!",
			Intent:     "not_interested",
			Emotion:    "neutral",
			Confidence: 0.95,
			Action:     ActionEnd,
		}
	case "0":
		return Decision{
			Utterance:  "Of course, transferring you to a team member now. One moment please.",
			Intent:     "transfer_request",
			Emotion:    "neutral",
			Confidence: 0.95,
			Action:     ActionTransfer,
		}
	case "#":
		return Decision{
			Utterance:  "Sure, let me repeat that for you.",
			Intent:     "repeat_request",
			Emotion:    "neutral",
			Confidence: 0.95,
			Action:     ActionContinue,
			Repeat:     true,
		}
	default:
		return Decision{
			Utterance:  "I didn't recognize that option. You can press one if you're interested, or two if now isn't a good time.",
			Intent:     "unclear",
			Emotion:    "neutral",
			Confidence: 0.2,
			Action:     ActionContinue,
		}
	}
}

func (e *Engine) decideFromKnowledge(ctx context.Context, question string) (Decision, bool) {
	entries, err := e.kb.Query(ctx, question, e.opts.OrganizationID)
	if err != nil {
		// Degrade to the classifier rather than failing the turn.
		e.log.Warn("knowledge query failed", zap.Error(err))
		return Decision{}, false
	}

	if len(entries) > 0 && entries[0].Confidence >= e.opts.KnowledgeThreshold {
		return Decision{
			Utterance:  entries[0].Answer,
			Intent:     "question",
			Emotion:    "interested",
			Confidence: entries[0].Confidence,
			Action:     ActionContinue,
		}, true
	}

	// A question we cannot answer confidently goes to a human on this turn.
	best := 0.0
	if len(entries) > 0 {
		best = entries[0].Confidence
	}
	return Decision{
		Utterance:      "That's a great question. Let me connect you with a specialist who can give you the full details.",
		Intent:         "question",
		Emotion:        "interested",
		Confidence:     best,
		Action:         ActionTransfer,
		ShouldFallback: true,
	}, true
}

func containsAny(input string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(input, k) {
			return true
		}
	}
	return false
}
