package inbox

import (
	"context"
	"log"
	"sync"
	"time"
)

// SchedulerState is the reconciliation state machine's current state.
type SchedulerState int

const (
	SchedulerIdle SchedulerState = iota
	SchedulerFetching
)

// Trigger names why a reconciliation was requested.
type Trigger string

const (
	TriggerResync      Trigger = "resync"
	TriggerPanelOpened Trigger = "panel-opened"
	TriggerMarkAllRead Trigger = "mark-all-read"
	TriggerPushDelta   Trigger = "push-delta"
)

// fetchTimeout bounds a single snapshot fetch.
const fetchTimeout = 30 * time.Second

// Scheduler decides when to refresh both stores from their snapshot
// sources. Each trigger issues one independent fetch per store; they
// may complete out of order and each store reconciles itself without
// waiting on the other. Failures are logged and not retried until the
// next trigger.
type Scheduler struct {
	fetchNotifications func(ctx context.Context) error
	fetchConversations func(ctx context.Context) error
	onSettled          func()

	triggerCh chan Trigger
	stopCh    chan struct{}

	mu      sync.Mutex
	state   SchedulerState
	running bool
}

// NewScheduler creates a scheduler driving the two given snapshot
// fetch functions. onSettled, if non-nil, runs after every completed
// reconciliation pass (success or failure).
func NewScheduler(
	fetchNotifications func(ctx context.Context) error,
	fetchConversations func(ctx context.Context) error,
	onSettled func(),
) *Scheduler {
	return &Scheduler{
		fetchNotifications: fetchNotifications,
		fetchConversations: fetchConversations,
		onSettled:          onSettled,
		triggerCh:          make(chan Trigger, 1),
		stopCh:             make(chan struct{}),
	}
}

// Start launches the scheduler loop. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop halts the scheduler loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

// Trigger requests a reconciliation pass. Requests arriving while a
// pass is in flight coalesce into the single buffered slot; the next
// trigger retries naturally after a failed pass.
func (s *Scheduler) Trigger(reason Trigger) {
	select {
	case s.triggerCh <- reason:
	default:
		// A pass is already queued; this trigger folds into it.
	}
}

// State returns the current state of the state machine.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case reason := <-s.triggerCh:
			s.setState(SchedulerFetching)
			s.reconcile(ctx, reason)
			s.setState(SchedulerIdle)
			if s.onSettled != nil {
				s.onSettled()
			}
		}
	}
}

// reconcile runs both snapshot fetches concurrently and waits for both
// to settle. Each fetch failure is contained here.
func (s *Scheduler) reconcile(ctx context.Context, reason Trigger) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := s.fetchNotifications(fetchCtx); err != nil {
			log.Printf("inbox: notification snapshot fetch (%s) failed: %v", reason, err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.fetchConversations(fetchCtx); err != nil {
			log.Printf("inbox: conversation snapshot fetch (%s) failed: %v", reason, err)
		}
	}()

	wg.Wait()
}

func (s *Scheduler) setState(state SchedulerState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
