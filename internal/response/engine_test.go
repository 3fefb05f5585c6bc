package response

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/knowledge"
)

func newTestEngine(kb knowledge.Service) *Engine {
	return NewEngine(NewRuleClassifier(), kb, Options{
		OrganizationID:      "org-1",
		KnowledgeThreshold:  0.7,
		LowConfidenceFloor:  0.3,
		LowConfidenceStreak: 2,
	}, zap.NewNop())
}

func TestDecideDNCRequestEndsCall(t *testing.T) {
	e := newTestEngine(nil)
	d := e.Decide(context.Background(), Snapshot{Turn: 2}, "I'm not interested, please remove me from your list", "")
	if !d.AddToDNC {
		t.Fatalf("AddToDNC = false, want true")
	}
	if d.Action != ActionEnd {
		t.Fatalf("Action = %q, want end", d.Action)
	}
	if d.Intent != "dnc_request" {
		t.Fatalf("Intent = %q, want dnc_request", d.Intent)
	}
}

func TestDecideNotInterestedWithoutRemovalIsNotDNC(t *testing.T) {
	e := newTestEngine(nil)
	d := e.Decide(context.Background(), Snapshot{Turn: 1}, "no thanks, I'm good", "")
	if d.AddToDNC {
		t.Fatalf("AddToDNC = true, want false")
	}
	if d.Action != ActionEnd || d.Intent != "not_interested" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestDecideDTMF(t *testing.T) {
	e := newTestEngine(nil)
	tests := []struct {
		digit  string
		action Action
		intent string
		repeat bool
	}{
		{"1", ActionTransfer, "interested", false},
		{"2", ActionEnd, "not_interested", false},
		{"0", ActionTransfer, "transfer_request", false},
		{"#", ActionContinue, "repeat_request", true},
		{"5", ActionContinue, "unclear", false},
	}
	for _, tt := range tests {
		d := e.Decide(context.Background(), Snapshot{Turn: 1}, "", tt.digit)
		if d.Action != tt.action || d.Intent != tt.intent || d.Repeat != tt.repeat {
			t.Fatalf("digit %q: got %+v", tt.digit, d)
		}
	}
}

func TestDecideDTMFWinsOverText(t *testing.T) {
	e := newTestEngine(nil)
	d := e.Decide(context.Background(), Snapshot{Turn: 1}, "stop calling me", "1")
	if d.Action != ActionTransfer || d.AddToDNC {
		t.Fatalf("digit should take priority over text, got %+v", d)
	}
}

func TestDecideAnswersQuestionFromKnowledge(t *testing.T) {
	kb := knowledge.NewStaticService(
		knowledge.Entry{Question: "How much does it cost?", Answer: "Plans start at $49 per month.", Confidence: 0.9, Category: "pricing"},
	)
	e := newTestEngine(kb)

	d := e.Decide(context.Background(), Snapshot{Turn: 1}, "how much does it cost?", "")
	if d.Action != ActionContinue {
		t.Fatalf("Action = %q, want continue", d.Action)
	}
	if d.Utterance != "Plans start at $49 per month." {
		t.Fatalf("Utterance = %q", d.Utterance)
	}
	if d.ShouldFallback {
		t.Fatalf("confident answer should not fall back")
	}
}

func TestDecideUnansweredQuestionTransfersSameTurn(t *testing.T) {
	kb := knowledge.NewStaticService(
		knowledge.Entry{Question: "How much does it cost?", Answer: "Plans start at $49.", Confidence: 0.4},
	)
	e := newTestEngine(kb)

	d := e.Decide(context.Background(), Snapshot{Turn: 1}, "how much does it cost?", "")
	if d.Action != ActionTransfer {
		t.Fatalf("Action = %q, want transfer", d.Action)
	}
	if !d.ShouldFallback {
		t.Fatalf("ShouldFallback = false, want true")
	}
}

func TestDecideKnowledgeFailureFallsBackToClassifier(t *testing.T) {
	e := newTestEngine(failingKB{})
	d := e.Decide(context.Background(), Snapshot{Turn: 1}, "what is the price of this?", "")
	if d.Action == "" || d.Utterance == "" {
		t.Fatalf("classifier fallback produced empty decision: %+v", d)
	}
	if d.Intent != "objection_price" {
		t.Fatalf("Intent = %q, want objection_price", d.Intent)
	}
}

func TestDecideObjectionContinues(t *testing.T) {
	e := newTestEngine(nil)
	d := e.Decide(context.Background(), Snapshot{Turn: 1}, "that sounds too expensive for us", "")
	if d.Action != ActionContinue {
		t.Fatalf("Action = %q, want continue", d.Action)
	}
	if d.Intent != "objection_price" {
		t.Fatalf("Intent = %q, want objection_price", d.Intent)
	}
	if d.Utterance == "" {
		t.Fatalf("objection should carry a reply")
	}
}

func TestDecideBuyingSignalSchedules(t *testing.T) {
	e := newTestEngine(nil)
	d := e.Decide(context.Background(), Snapshot{Turn: 3}, "okay let's get started, sign me up", "")
	if d.Intent != "schedule_meeting" {
		t.Fatalf("Intent = %q, want schedule_meeting", d.Intent)
	}
	if d.Action != ActionEnd {
		t.Fatalf("Action = %q, want end", d.Action)
	}
}

func TestDecideFrustrationTransfers(t *testing.T) {
	e := newTestEngine(nil)
	d := e.Decide(context.Background(), Snapshot{Turn: 2}, "this is such a waste of time", "")
	if d.Action != ActionTransfer {
		t.Fatalf("Action = %q, want transfer", d.Action)
	}
	if d.Emotion != "frustrated" {
		t.Fatalf("Emotion = %q, want frustrated", d.Emotion)
	}
}

func TestDecideLowConfidenceStreakTransfers(t *testing.T) {
	e := newTestEngine(nil)

	first := e.Decide(context.Background(), Snapshot{Turn: 1, LowConfidenceRuns: 0}, "", "9")
	if first.Action != ActionContinue || first.ShouldFallback {
		t.Fatalf("first low-confidence turn should continue, got %+v", first)
	}

	second := e.Decide(context.Background(), Snapshot{Turn: 2, LowConfidenceRuns: 1}, "", "9")
	if second.Action != ActionTransfer || !second.ShouldFallback {
		t.Fatalf("second low-confidence turn should transfer, got %+v", second)
	}
}

type failingKB struct{}

func (failingKB) Query(context.Context, string, string) ([]knowledge.Entry, error) {
	return nil, context.DeadlineExceeded
}
