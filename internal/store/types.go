package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDispositionExists is returned when a call already has a final outcome.
var ErrDispositionExists = errors.New("disposition already written")

// Turn records one exchange of a call: what the callee said (or pressed) and
// what the agent replied.
type Turn struct {
	ID           string    `json:"id"`
	CallID       string    `json:"call_id"`
	Seq          int       `json:"seq"`
	CustomerText string    `json:"customer_text"`
	AgentText    string    `json:"agent_text"`
	Digit        string    `json:"digit,omitempty"`
	Intent       string    `json:"intent"`
	Emotion      string    `json:"emotion"`
	Confidence   float64   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}

// Disposition is a call's single final outcome record.
type Disposition struct {
	CallID    string        `json:"call_id"`
	Outcome   string        `json:"outcome"`
	Reason    string        `json:"reason"`
	Intent    string        `json:"intent"`
	Emotion   string        `json:"emotion"`
	TurnCount int           `json:"turn_count"`
	Duration  time.Duration `json:"duration"`
	AddToDNC  bool          `json:"add_to_dnc"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists call turns and dispositions. WriteDisposition accepts at
// most one record per call and returns ErrDispositionExists afterwards.
type Store interface {
	AppendTurn(ctx context.Context, turn Turn) error
	WriteDisposition(ctx context.Context, d Disposition) error
	Turns(ctx context.Context, callID string) ([]Turn, error)
	DispositionFor(ctx context.Context, callID string) (Disposition, error)
	Close() error
}

// ErrNoDisposition is returned by DispositionFor before the call finishes.
var ErrNoDisposition = errors.New("no disposition for call")

// Transcript renders turns in the reviewer-facing format, one speaker line
// per utterance in call order.
func Transcript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.CustomerText != "" {
			fmt.Fprintf(&b, "Customer: %s\n", t.CustomerText)
		} else if t.Digit != "" {
			fmt.Fprintf(&b, "Customer: [pressed %s]\n", t.Digit)
		}
		if t.AgentText != "" {
			fmt.Fprintf(&b, "AI: %s\n", t.AgentText)
		}
	}
	return b.String()
}
