package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lifelink-api/internal/domain"
	"go.uber.org/zap"
)

type runner interface {
	Run(ctx context.Context, requestID string) (*domain.DispatchReport, error)
}

// AsyncRunner runs each dispatch in its own goroutine, bounded by timeout.
// Close stops accepting work and waits for in-flight runs.
type AsyncRunner struct {
	dispatcher runner
	timeout    time.Duration
	log        *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewAsyncRunner(d runner, timeout time.Duration, log *zap.Logger) *AsyncRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncRunner{dispatcher: d, timeout: timeout, log: log, ctx: ctx, cancel: cancel}
}

// Enqueue schedules a run for requestID. The caller's context only bounds the
// hand-off; the run itself outlives the HTTP request.
func (r *AsyncRunner) Enqueue(_ context.Context, requestID, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("dispatch runner is shutting down")
	}
	r.log.Debug("dispatch enqueued", zap.String("request_id", requestID), zap.String("trigger", trigger))
	r.wg.Add(1)
	go r.run(requestID)
	return nil
}

func (r *AsyncRunner) run(requestID string) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("dispatch panic recovered", zap.String("request_id", requestID), zap.Any("panic", p))
		}
	}()

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	if _, err := r.dispatcher.Run(ctx, requestID); err != nil {
		lvl := r.log.Error
		if errors.Is(err, domain.ErrNoEligibleDonors) || errors.Is(err, domain.ErrRequestClosed) {
			lvl = r.log.Info
		}
		lvl("dispatch run ended", zap.String("request_id", requestID), zap.Error(err))
	}
}

// Close waits for in-flight runs until ctx is done, then cancels them.
func (r *AsyncRunner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
