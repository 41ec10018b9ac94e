package service

import (
	"context"
	"sync"

	"github.com/quizforge/quiztaker/internal/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ViolationEvent is a detected integrity breach.
type ViolationEvent struct {
	Kind   model.EventKind
	Reason string
}

// EventSource feeds violation events into the monitor. Watch must block until
// ctx is cancelled and may deliver any number of events; the monitor only acts
// on the first one.
type EventSource interface {
	Watch(ctx context.Context, out chan<- ViolationEvent) error
}

// IntegrityMonitor observes focus-loss and blocked-input events while an
// attempt is active. It has an explicit start/stop lifecycle tied to the
// first-question-fetched -> finalized window, so listeners never leak across
// sessions. The first event wins; duplicates (hiding a window often produces
// two signals) are dropped. Fail-closed: any delivered event terminates the
// attempt.
type IntegrityMonitor struct {
	sources     []EventSource
	onViolation func(ViolationEvent)

	mu     sync.Mutex
	cancel context.CancelFunc
	fired  bool
}

func NewIntegrityMonitor(onViolation func(ViolationEvent), sources ...EventSource) *IntegrityMonitor {
	return &IntegrityMonitor{sources: sources, onViolation: onViolation}
}

// Start installs all sources. Idempotent while running.
func (m *IntegrityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	events := make(chan ViolationEvent, 4)

	g, gctx := errgroup.WithContext(watchCtx)
	for _, source := range m.sources {
		source := source
		g.Go(func() error {
			return source.Watch(gctx, events)
		})
	}

	go func() {
		if err := g.Wait(); err != nil && gctx.Err() == nil {
			log.Warn().Err(err).Msg("Integrity event source failed")
		}
	}()

	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case event := <-events:
				m.deliver(event)
			}
		}
	}()

	log.Debug().Int("sources", len(m.sources)).Msg("Integrity monitor started")
}

// Stop removes all listeners. Idempotent; always called on finalize or when
// the session tears down.
func (m *IntegrityMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		log.Debug().Msg("Integrity monitor stopped")
	}
}

func (m *IntegrityMonitor) deliver(event ViolationEvent) {
	m.mu.Lock()
	if m.fired {
		m.mu.Unlock()
		return
	}
	m.fired = true
	m.mu.Unlock()

	if m.onViolation != nil {
		m.onViolation(event)
	}
}

// ChannelSource adapts a plain channel into an EventSource, for callers that
// detect violations themselves (blocked input sequences, tests).
type ChannelSource struct {
	C chan ViolationEvent
}

func NewChannelSource() *ChannelSource {
	return &ChannelSource{C: make(chan ViolationEvent, 4)}
}

func (s *ChannelSource) Watch(ctx context.Context, out chan<- ViolationEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-s.C:
			select {
			case out <- event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
