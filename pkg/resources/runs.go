// Package resources tracks the programs running on behalf of terminal
// sessions and enforces the server-wide limits on them.
package resources

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
)

// Limits bound program runs. Zero values are unlimited.
type Limits struct {
	MaxRunTime    time.Duration // wall time of one run
	MaxConcurrent int           // runs across all sessions
	MaxPerUser    int           // runs of one user
	MaxHeapMB     int64         // heap size above which Guard stops runs
}

// LimitsFromConfig reads the run limits from [Terminal].
func LimitsFromConfig() Limits {
	return Limits{
		MaxRunTime:    configuration.GetDuration("Terminal", "max_run_time", 0),
		MaxConcurrent: configuration.GetInt("Terminal", "max_concurrent_runs", 0),
		MaxPerUser:    configuration.GetInt("Terminal", "max_runs_per_user", 0),
		MaxHeapMB:     configuration.GetInt64("Terminal", "max_heap_mb", 0),
	}
}

// Execution is one running program.
type Execution struct {
	SessionID string
	Username  string
	StartTime time.Time
	Context   context.Context
	Cancel    context.CancelFunc
}

// RunManager keeps the active executions, one per session.
type RunManager struct {
	limits     Limits
	mu         sync.Mutex
	executions map[string]*Execution
}

// NewRunManager returns an empty manager enforcing limits.
func NewRunManager(limits Limits) *RunManager {
	return &RunManager{limits: limits, executions: make(map[string]*Execution)}
}

// Start registers a run for sessionID. Its context ends on Finish, on
// StopOldest or when MaxRunTime passes.
func (rm *RunManager) Start(sessionID, username string) (*Execution, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.executions[sessionID]; exists {
		return nil, fmt.Errorf("a program is already running")
	}
	if rm.limits.MaxConcurrent > 0 && len(rm.executions) >= rm.limits.MaxConcurrent {
		return nil, fmt.Errorf("server busy: %d programs running", len(rm.executions))
	}
	if rm.limits.MaxPerUser > 0 {
		n := 0
		for _, e := range rm.executions {
			if e.Username == username {
				n++
			}
		}
		if n >= rm.limits.MaxPerUser {
			return nil, fmt.Errorf("user %s already runs %d programs", username, n)
		}
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if rm.limits.MaxRunTime > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), rm.limits.MaxRunTime)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	execution := &Execution{
		SessionID: sessionID,
		Username:  username,
		StartTime: time.Now(),
		Context:   ctx,
		Cancel:    cancel,
	}
	rm.executions[sessionID] = execution
	return execution, nil
}

// Stop cancels the run of sessionID, if any. The run stays registered
// until Finish.
func (rm *RunManager) Stop(sessionID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if e, ok := rm.executions[sessionID]; ok {
		e.Cancel()
	}
}

// Finish removes the run of sessionID and returns how long it ran.
func (rm *RunManager) Finish(sessionID string) time.Duration {
	rm.mu.Lock()
	e, ok := rm.executions[sessionID]
	delete(rm.executions, sessionID)
	rm.mu.Unlock()
	if !ok {
		return 0
	}
	e.Cancel()
	d := time.Since(e.StartTime)
	logger.Debug(logger.AreaTerminal, "[RUNS] Session %s (%s) ran for %v", sessionID, e.Username, d)
	return d
}

// Running reports whether sessionID has a registered run.
func (rm *RunManager) Running(sessionID string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	_, ok := rm.executions[sessionID]
	return ok
}

// Active returns the executions, oldest first.
func (rm *RunManager) Active() []Execution {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]Execution, 0, len(rm.executions))
	for _, e := range rm.executions {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// StopOldest cancels up to count of the longest running programs and
// returns how many it stopped.
func (rm *RunManager) StopOldest(count int) int {
	stopped := 0
	for _, e := range rm.Active() {
		if stopped >= count {
			break
		}
		if e.Context.Err() != nil {
			continue
		}
		e.Cancel()
		logger.Warn(logger.AreaTerminal, "[RUNS] Stopped program of session %s due to memory pressure", e.SessionID)
		stopped++
	}
	return stopped
}

// Guard checks the heap every interval until ctx ends and stops the oldest
// run while it exceeds MaxHeapMB. It returns at once without a limit.
func (rm *RunManager) Guard(ctx context.Context, interval time.Duration) {
	if rm.limits.MaxHeapMB <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if heapMB() > rm.limits.MaxHeapMB {
				rm.StopOldest(1)
			}
		}
	}
}

func heapMB() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapAlloc / (1024 * 1024))
}
