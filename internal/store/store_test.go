package store

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
)

func TestInMemoryStoreTurnOrdering(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.AppendTurn(ctx, Turn{CallID: "call-1", Seq: i, AgentText: "reply"}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}
	if err := s.AppendTurn(ctx, Turn{CallID: "call-2", Seq: 0}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	turns, err := s.Turns(ctx, "call-1")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	for i, turn := range turns {
		if turn.Seq != i {
			t.Fatalf("turn %d has seq %d", i, turn.Seq)
		}
		if turn.ID == "" || turn.CreatedAt.IsZero() {
			t.Fatalf("turn %d missing id or timestamp: %+v", i, turn)
		}
	}
}

func TestInMemoryStoreDispositionExactlyOnce(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first := Disposition{CallID: "call-1", Outcome: "interested"}
	if err := s.WriteDisposition(ctx, first); err != nil {
		t.Fatalf("WriteDisposition() error = %v", err)
	}
	err := s.WriteDisposition(ctx, Disposition{CallID: "call-1", Outcome: "no_answer"})
	if !errors.Is(err, ErrDispositionExists) {
		t.Fatalf("second write error = %v, want ErrDispositionExists", err)
	}

	got, err := s.DispositionFor(ctx, "call-1")
	if err != nil {
		t.Fatalf("DispositionFor() error = %v", err)
	}
	if got.Outcome != "interested" {
		t.Fatalf("Outcome = %q, want the first write to win", got.Outcome)
	}
}

func TestDispositionForUnknownCall(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.DispositionFor(context.Background(), "missing")
	if !errors.Is(err, ErrNoDisposition) {
		t.Fatalf("DispositionFor() error = %v, want ErrNoDisposition", err)
	}
}

func TestTranscriptFormat(t *testing.T) {
	turns := []Turn{
		{Seq: 0, AgentText: "Hello John, this is Sam from Acme."},
		{Seq: 1, CustomerText: "how much does it cost?", AgentText: "Plans start at $49."},
		{Seq: 2, Digit: "1", AgentText: "Connecting you now."},
	}
	want := "AI: Hello John, this is Sam from Acme.\n" +
		"Customer: how much does it cost?\n" +
		"AI: Plans start at $49.\n" +
		"Customer: [pressed 1]\n" +
		"AI: Connecting you now.\n"
	if got := Transcript(turns); got != want {
		t.Fatalf("Transcript() = %q, want %q", got, want)
	}
}

type flakyStore struct {
	*InMemoryStore
	failures int
}

func (f *flakyStore) AppendTurn(ctx context.Context, turn Turn) error {
	if f.failures > 0 {
		f.failures--
		return reliability.MarkTransient(errors.New("connection reset"))
	}
	return f.InMemoryStore.AppendTurn(ctx, turn)
}

func TestRetryingStoreRetriesTransientOnce(t *testing.T) {
	inner := &flakyStore{InMemoryStore: NewInMemoryStore(), failures: 1}
	s := NewRetryingStore(inner, zap.NewNop())
	ctx := context.Background()

	if err := s.AppendTurn(ctx, Turn{CallID: "call-1", Seq: 0}); err != nil {
		t.Fatalf("AppendTurn() error = %v, want retry to succeed", err)
	}
	turns, err := s.Turns(ctx, "call-1")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("len(turns) = %d, want 1", len(turns))
	}
}

func TestRetryingStoreGivesUpAfterSecondFailure(t *testing.T) {
	inner := &flakyStore{InMemoryStore: NewInMemoryStore(), failures: 2}
	s := NewRetryingStore(inner, zap.NewNop())

	if err := s.AppendTurn(context.Background(), Turn{CallID: "call-1"}); err == nil {
		t.Fatalf("AppendTurn() error = nil, want failure after one retry")
	}
}
