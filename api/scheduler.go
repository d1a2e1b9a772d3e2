/*
scheduler.go - Automated evaluation scheduler

PURPOSE:
  Periodically re-runs the evaluations that are safe to repeat, so the
  weekly snapshot stays current and a cycle-end day is never missed.
  Everything the scheduler triggers is idempotent, so a tick that
  overlaps a manual API call does no harm.

  Notification dispatch is deliberately NOT scheduled here. A send is
  only recorded once the delivery collaborator has picked the message
  up, so dispatch stays behind the /api/notifications endpoints that
  collaborator polls. A background tick recording sends on its own
  would burn the dedup tokens with nobody receiving the messages.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Weekly evaluation refreshes the snapshot every tick
  - Monthly evaluation is guarded by the engine's cycle-end check

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewEvaluationScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: the dispatch endpoints the delivery collaborator polls
  - notify/policy.go: the send decisions
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vantage/scoring-engine/scoring"
)

// EvaluationScheduler drives the recurring evaluations.
type EvaluationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewEvaluationScheduler creates a new scheduler.
func NewEvaluationScheduler(handler *Handler) *EvaluationScheduler {
	return &EvaluationScheduler{
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (es *EvaluationScheduler) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if !es.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	es.ticker = time.NewTicker(es.CheckInterval)
	es.wg.Add(1)

	go es.run()

	log.Printf("[Scheduler] Started with check interval: %v", es.CheckInterval)
}

// Stop stops the scheduler.
func (es *EvaluationScheduler) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker != nil {
		es.ticker.Stop()
		close(es.stop)
		es.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (es *EvaluationScheduler) run() {
	defer es.wg.Done()

	// Run immediately on start
	es.tick()

	for {
		select {
		case <-es.ticker.C:
			es.tick()
		case <-es.stop:
			return
		}
	}
}

func (es *EvaluationScheduler) tick() {
	ctx := context.Background()
	now := time.Now().UTC()

	if report, err := es.Handler.Engine.EvaluateWeekly(ctx, now); err != nil {
		log.Printf("[Scheduler] Weekly evaluation failed: %v", err)
	} else {
		observeReport(report)
	}

	// The engine ignores off-cycle dates, so this is safe every tick.
	report, err := es.Handler.Engine.EvaluateMonthly(ctx, now)
	switch {
	case scoring.IsPolicyMisuse(err):
		// Off-cycle tick, nothing to do.
	case err != nil:
		log.Printf("[Scheduler] Monthly evaluation failed: %v", err)
	default:
		observeReport(report)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (es *EvaluationScheduler) RunNow() {
	es.tick()
}
