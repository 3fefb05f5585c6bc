package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
)

// RetryingStore wraps a Store and retries transient write failures once.
// A second failure is logged and returned so the caller can keep the call
// alive; persistence problems never tear down a live conversation.
type RetryingStore struct {
	inner Store
	log   *zap.Logger
}

func NewRetryingStore(inner Store, log *zap.Logger) *RetryingStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryingStore{inner: inner, log: log}
}

func (s *RetryingStore) AppendTurn(ctx context.Context, turn Turn) error {
	err := s.inner.AppendTurn(ctx, turn)
	if err != nil && reliability.IsTransient(err) {
		err = s.inner.AppendTurn(ctx, turn)
	}
	if err != nil {
		s.log.Error("append turn failed",
			zap.String("call_id", turn.CallID),
			zap.Int("seq", turn.Seq),
			zap.Error(err))
	}
	return err
}

func (s *RetryingStore) WriteDisposition(ctx context.Context, d Disposition) error {
	err := s.inner.WriteDisposition(ctx, d)
	if err != nil && reliability.IsTransient(err) {
		err = s.inner.WriteDisposition(ctx, d)
	}
	if err != nil && !errors.Is(err, ErrDispositionExists) {
		s.log.Error("write disposition failed",
			zap.String("call_id", d.CallID),
			zap.String("outcome", d.Outcome),
			zap.Error(err))
	}
	return err
}

func (s *RetryingStore) Turns(ctx context.Context, callID string) ([]Turn, error) {
	return s.inner.Turns(ctx, callID)
}

func (s *RetryingStore) DispositionFor(ctx context.Context, callID string) (Disposition, error) {
	return s.inner.DispositionFor(ctx, callID)
}

func (s *RetryingStore) Close() error { return s.inner.Close() }
