package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	applogger "BandPilot/pkg/logger"
)

// JournalPipeline sits between the replay loop and the decision journal.
// It validates events and buffers them while the downstream publisher fails.
// Events reach downstream in Publish order: the flusher retries the head of the
// buffer in place and Publish queues behind it while anything is buffered.
type JournalPipeline struct {
	next    domrepo.DecisionPublisher
	l       *applogger.Logger
	pubMu   sync.Mutex
	mu      sync.Mutex
	queue   []models.DecisionEvent
	size    int
	wakeCh  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool

	minBackoff time.Duration
	maxBackoff time.Duration
	dropped    int
}

var _ domrepo.DecisionPublisher = (*JournalPipeline)(nil)

type PipelineOption func(*JournalPipeline)

// WithBufferSize sets how many events are kept while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *JournalPipeline) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithBackoff sets the retry delay bounds of the flusher.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *JournalPipeline) {
		if min > 0 && max >= min {
			p.minBackoff, p.maxBackoff = min, max
		}
	}
}

// NewJournalPipeline creates a new pipeline in front of next.
func NewJournalPipeline(next domrepo.DecisionPublisher, l *applogger.Logger, opts ...PipelineOption) *JournalPipeline {
	if l == nil {
		l = applogger.Nop()
	}
	p := &JournalPipeline{
		next:       next,
		l:          l,
		size:       1000,
		wakeCh:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background flushing of buffered events.
func (p *JournalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := p.minBackoff
		for {
			ev, ok := p.head()
			if !ok {
				select {
				case <-p.stopCh:
					return
				case <-p.wakeCh:
				}
				continue
			}
			if err := p.next.Publish(ctx, ev); err != nil {
				if backoff < p.maxBackoff {
					backoff *= 2
				}
				p.l.Warn("journal flush failed", applogger.Error(err), applogger.String("ref", ev.Ref), applogger.Duration("backoff_ms", backoff))
				select {
				case <-time.After(backoff):
				case <-p.stopCh:
					return
				}
				continue
			}
			p.pop()
			backoff = p.minBackoff
		}
	}()
}

// head returns the oldest buffered event without removing it.
func (p *JournalPipeline) head() (models.DecisionEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return models.DecisionEvent{}, false
	}
	return p.queue[0], true
}

func (p *JournalPipeline) pop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) > 0 {
		p.queue[0] = models.DecisionEvent{}
		p.queue = p.queue[1:]
	}
}

func (p *JournalPipeline) enqueue(ev models.DecisionEvent) {
	p.mu.Lock()
	if len(p.queue) >= p.size {
		p.dropped++
		p.mu.Unlock()
		p.l.Warn("journal buffer full, event dropped", applogger.String("ref", ev.Ref))
		return
	}
	p.queue = append(p.queue, ev)
	p.mu.Unlock()

	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// Publish validates ev and forwards it, buffering it when downstream fails.
// Only validation errors are returned.
func (p *JournalPipeline) Publish(ctx context.Context, ev models.DecisionEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	if p.Pending() > 0 {
		p.enqueue(ev)
		return nil
	}
	if err := p.next.Publish(ctx, ev); err != nil {
		p.l.Warn("journal downstream failed, buffering", applogger.Error(err))
		p.enqueue(ev)
	}
	return nil
}

// Pending returns the number of buffered events, including one being retried.
func (p *JournalPipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Dropped returns how many events were lost to a full buffer.
func (p *JournalPipeline) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close stops the flusher, publishes what is left once and closes downstream.
func (p *JournalPipeline) Close() error {
	p.mu.Lock()
	started := p.started
	p.started = false
	p.mu.Unlock()
	if started {
		close(p.stopCh)
		<-p.doneCh
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for {
		ev, ok := p.head()
		if !ok {
			break
		}
		if err := p.next.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
		p.pop()
	}
	if len(errs) > 0 {
		p.l.Warn("journal events lost on close", applogger.Int("count", len(errs)))
	}
	return errors.Join(append(errs, p.next.Close())...)
}

func validateEvent(ev models.DecisionEvent) error {
	switch ev.Type {
	case "intent", "fill", "reject":
	default:
		return fmt.Errorf("event type %q invalid", ev.Type)
	}
	if ev.Strategy == "" {
		return fmt.Errorf("strategy empty")
	}
	if ev.Date.IsZero() {
		return fmt.Errorf("date empty")
	}
	if ev.Size < 0 || ev.Price < 0 {
		return fmt.Errorf("negative size/price")
	}
	return nil
}
