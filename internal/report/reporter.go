// Package report drains the sample bus and fans samples out to
// configured sinks.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"uwbd/internal/bus"
	"uwbd/internal/uwb"
)

// Sink consumes finished samples. Publish must not block for long;
// sink errors are logged by the reporter and never stop the poll loop.
type Sink interface {
	Name() string
	Publish(s uwb.Sample) error
	Close() error
}

// Reporter polls the bus at its own cadence, independent of the
// producer. An empty bus is not an error; the poll simply tries again
// next tick.
type Reporter struct {
	in     *bus.Bus[uwb.Sample]
	sinks  []Sink
	period time.Duration
	log    *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	delivered uint64
	sinkErrs  uint64
}

func NewReporter(in *bus.Bus[uwb.Sample], sinks []Sink, period time.Duration, log *zap.SugaredLogger) (*Reporter, error) {
	if in == nil {
		return nil, fmt.Errorf("report: bus is nil")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	return &Reporter{in: in, sinks: sinks, period: period, log: log}, nil
}

func (r *Reporter) Start(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("reporter is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(runCtx)
	}()
	return nil
}

// Close stops the poll loop, drains nothing further, and closes every
// sink.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			r.log.Warnw("sink close failed", "sink", s.Name(), "err", err)
		}
	}
}

// Delivered reports how many samples reached the sinks.
func (r *Reporter) Delivered() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered
}

func (r *Reporter) run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sample, ok := r.in.TryPull()
		if !ok {
			continue
		}
		r.dispatch(sample)
	}
}

func (r *Reporter) dispatch(sample uwb.Sample) {
	for _, s := range r.sinks {
		if err := s.Publish(sample); err != nil {
			r.mu.Lock()
			r.sinkErrs++
			r.mu.Unlock()
			r.log.Warnw("sample publish failed", "sink", s.Name(), "tag_id", sample.TagID, "err", err)
		}
	}
	r.mu.Lock()
	r.delivered++
	r.mu.Unlock()
}
