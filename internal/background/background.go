// Package background runs the named engine services: branchtracker,
// branchupdater, reviewupdater, differenceengine, extensionhost, and
// pubsub. Each service loop blocks on its wake signal or interval
// tick; transactions wake services post-commit through the manager.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Canonical service names.
const (
	ServiceBranchTracker    = "branchtracker"
	ServiceBranchUpdater    = "branchupdater"
	ServiceReviewUpdater    = "reviewupdater"
	ServiceDifferenceEngine = "differenceengine"
	ServiceExtensionHost    = "extensionhost"
	ServicePubSub           = "pubsub"
)

// Service is one background loop. Run must return when ctx is done;
// wake carries post-commit nudges and may be drained lazily.
type Service interface {
	Name() string
	Run(ctx context.Context, wake <-chan struct{}) error
}

// Manager owns the service goroutines and the wake channels.
type Manager struct {
	logger *slog.Logger

	mu       sync.Mutex
	services []Service
	wakes    map[string]chan struct{}
	started  bool
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		wakes:  make(map[string]chan struct{}),
	}
}

// Register adds a service before Start.
func (m *Manager) Register(services ...Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("background manager already started")
	}
	for _, service := range services {
		if _, ok := m.wakes[service.Name()]; ok {
			return fmt.Errorf("background service %q registered twice", service.Name())
		}
		m.services = append(m.services, service)
		m.wakes[service.Name()] = make(chan struct{}, 1)
	}
	return nil
}

// Start launches every registered service and blocks until the first
// one fails or ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("background manager already started")
	}
	m.started = true
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	group, ctx := errgroup.WithContext(ctx)
	for _, service := range services {
		wake := m.wakes[service.Name()]
		group.Go(func() error {
			m.logger.Info("background service starting", "service", service.Name())
			err := service.Run(ctx, wake)
			if err != nil && ctx.Err() == nil {
				m.logger.Error("background service failed", "service", service.Name(), "error", err)
				return fmt.Errorf("service %s: %w", service.Name(), err)
			}
			m.logger.Info("background service stopped", "service", service.Name())
			return nil
		})
	}
	return group.Wait()
}

// Wake nudges the named services. Unknown names are ignored; a wake
// for a service whose nudge is already pending is dropped.
func (m *Manager) Wake(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		wake, ok := m.wakes[name]
		if !ok {
			continue
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// LoopFunc adapts a work function into a Service that reruns on wake
// or on interval, whichever comes first. A zero interval disables the
// tick.
type LoopFunc struct {
	ServiceName string
	Interval    time.Duration
	Work        func(ctx context.Context) error
	Logger      *slog.Logger
}

func (l LoopFunc) Name() string { return l.ServiceName }

func (l LoopFunc) Run(ctx context.Context, wake <-chan struct{}) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var tick <-chan time.Time
	var ticker *time.Ticker
	if l.Interval > 0 {
		ticker = time.NewTicker(l.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		if err := l.Work(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// One failed pass is retried on the next wake or tick.
			logger.Warn("background pass failed", "service", l.ServiceName, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-tick:
		}
	}
}
