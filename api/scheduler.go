/*
scheduler.go - Background automation sweeps

PURPOSE:
  Runs the time-based automations without an external cron: every
  CheckInterval it sweeps all workspaces and
  - generates time entries for past, uncompleted shifts,
  - scans the current week for overtime and alerts managers,
  - locks the previous payroll month once it has ended.

DESIGN:
  - Runs in a background goroutine with a ticker
  - One sweep covers every workspace; per-workspace failures are
    logged and do not stop the sweep
  - Every rule is idempotent, so an extra run is harmless
  - Graceful shutdown via stop channel

USAGE:
  scheduler := &AutomationScheduler{
      Store:         store,
      Automation:    automationService,
      CheckInterval: 15 * time.Minute,
      Enabled:       true,
  }
  scheduler.Start()
  defer scheduler.Stop()

SEE ALSO:
  - automation/: The rules this drives
  - handlers.go: The same sweeps, triggered over HTTP
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/schichtwerk/shift-engine/automation"
	"github.com/schichtwerk/shift-engine/core"
)

// =============================================================================
// SCHEDULER
// =============================================================================

// AutomationScheduler periodically runs the workspace automations.
type AutomationScheduler struct {
	Store      core.Store
	Automation *automation.Service

	// CheckInterval is how often to sweep (default: 15 minutes)
	CheckInterval time.Duration

	// Enabled controls whether the scheduler runs
	Enabled bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// Start begins the background scheduler.
func (s *AutomationScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return // already running
	}

	if s.CheckInterval == 0 {
		s.CheckInterval = 15 * time.Minute
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan bool)

	s.wg.Add(1)
	go s.run()

	log.Printf("[Scheduler] Started with check interval %v", s.CheckInterval)
}

// Stop halts the background scheduler.
func (s *AutomationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}

	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	log.Println("[Scheduler] Stopped")
}

func (s *AutomationScheduler) run() {
	defer s.wg.Done()

	// Run once on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep runs every automation for every workspace.
func (s *AutomationScheduler) sweep() {
	ctx := context.Background()

	workspaceIDs, err := s.Store.ListWorkspaceIDs(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing workspaces: %v", err)
		return
	}

	generated := 0
	alerted := 0
	locked := 0

	for _, workspaceID := range workspaceIDs {
		count, err := s.Automation.GenerateTimeEntries(ctx, workspaceID)
		if err != nil {
			log.Printf("[Scheduler] Error generating entries for %s: %v", workspaceID, err)
		}
		generated += count

		alerts, err := s.Automation.OvertimeCheck(ctx, workspaceID)
		if err != nil {
			log.Printf("[Scheduler] Error checking overtime for %s: %v", workspaceID, err)
		}
		alerted += len(alerts)

		// Previous month, once it has ended. A no-op when the month is
		// already locked or the workspace disabled auto-lock.
		result, err := s.Automation.AutoLockMonth(ctx, workspaceID)
		if err != nil {
			log.Printf("[Scheduler] Error locking payroll month for %s: %v", workspaceID, err)
		} else if !result.Already {
			locked++
		}
	}

	if generated > 0 || alerted > 0 || locked > 0 {
		log.Printf("[Scheduler] Sweep completed: %d entries generated, %d overtime alerts, %d months locked",
			generated, alerted, locked)
	}
}
