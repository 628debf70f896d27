package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StageState is the reactive view of one pipeline stage.
type StageState[T any] struct {
	Data    *T
	Loading bool
	Err     string
}

// stage runs one debounced, cancellation-safe pipeline stage. Each
// trigger carries a request key; a trigger whose key equals the pending
// or in-flight one is a no-op, any other trigger restarts the trailing
// debounce timer. A fetch applies its result only while its generation
// is still the latest issued, so a superseded request can never
// overwrite a newer one.
type stage[K comparable, T any] struct {
	name     string
	debounce time.Duration
	logger   *zap.Logger
	notify   func()

	// invalidate clears Data as soon as the key moves away from the
	// one the current Data was computed for.
	invalidate bool

	mu          sync.Mutex
	state       StageState[T]
	timer       *time.Timer
	pendingKey  K
	hasPending  bool
	inflightKey K
	hasInflight bool
	appliedKey  K
	hasApplied  bool
	cancel      context.CancelFunc
	gen         uint64

	onApplied func(key K, data T)
}

func newStage[K comparable, T any](name string, debounce time.Duration, logger *zap.Logger, notify func()) *stage[K, T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = func() {}
	}
	return &stage[K, T]{
		name:     name,
		debounce: debounce,
		logger:   logger,
		notify:   notify,
	}
}

// trigger schedules a fetch for key after the stage debounce. fetch
// must honor ctx cancellation and must not touch shared state: every
// input it needs is captured in the closure at trigger time.
func (s *stage[K, T]) trigger(key K, fetch func(ctx context.Context, key K) (T, error)) {
	s.mu.Lock()

	if (s.hasPending && s.pendingKey == key) || (s.hasInflight && s.inflightKey == key) {
		s.mu.Unlock()
		return
	}

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pendingKey = key
	s.hasPending = true

	if s.invalidate && s.hasApplied && s.appliedKey != key && s.state.Data != nil {
		s.state.Data = nil
	}

	if s.debounce <= 0 {
		s.startLocked(key, fetch)
		return
	}

	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if !s.hasPending || s.pendingKey != key {
			s.mu.Unlock()
			return
		}
		s.startLocked(key, fetch)
	})
	s.mu.Unlock()
	s.notify()
}

// startLocked issues the fetch for key. It releases the mutex.
func (s *stage[K, T]) startLocked(key K, fetch func(ctx context.Context, key K) (T, error)) {
	s.hasPending = false
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.inflightKey = key
	s.hasInflight = true
	s.state.Loading = true
	s.state.Err = ""
	s.mu.Unlock()
	s.notify()

	go s.run(ctx, gen, key, fetch)
}

func (s *stage[K, T]) run(ctx context.Context, gen uint64, key K, fetch func(ctx context.Context, key K) (T, error)) {
	data, err := fetch(ctx, key)

	s.mu.Lock()
	if gen != s.gen {
		// Superseded while in flight; a newer request owns the state.
		s.mu.Unlock()
		return
	}
	s.hasInflight = false
	s.state.Loading = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.mu.Unlock()
			return
		}
		s.state.Data = nil
		s.state.Err = err.Error()
		s.mu.Unlock()
		s.logger.Warn("stage fetch failed", zap.String("stage", s.name), zap.Error(err))
		s.notify()
		return
	}

	s.state.Data = &data
	s.state.Err = ""
	s.appliedKey = key
	s.hasApplied = true
	cb := s.onApplied
	s.mu.Unlock()

	if cb != nil {
		cb(key, data)
	}
	s.notify()
}

// reset drops all stage state and aborts any pending or in-flight
// request, for a pool switch.
func (s *stage[K, T]) reset() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.hasPending = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.hasInflight = false
	s.hasApplied = false
	s.gen++
	s.state = StageState[T]{}
	s.mu.Unlock()
	s.notify()
}

// clearData invalidates the stage result without touching an in-flight
// request.
func (s *stage[K, T]) clearData() {
	s.mu.Lock()
	changed := s.state.Data != nil
	s.state.Data = nil
	s.hasApplied = false
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// update mutates the stage result in place when one is present.
func (s *stage[K, T]) update(fn func(*T)) bool {
	s.mu.Lock()
	if s.state.Data == nil {
		s.mu.Unlock()
		return false
	}
	fn(s.state.Data)
	s.mu.Unlock()
	s.notify()
	return true
}

// snapshot returns a copy of the reactive state. Data is copied too,
// so a held snapshot never observes a later in-place update.
func (s *stage[K, T]) snapshot() StageState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	if s.state.Data != nil {
		data := *s.state.Data
		state.Data = &data
	}
	return state
}
