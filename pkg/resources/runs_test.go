package resources

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestStartLimits(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		starts  [][2]string // session, user
		wantErr []bool
	}{
		{"same session", Limits{}, [][2]string{{"s1", "a"}, {"s1", "a"}}, []bool{false, true}},
		{"concurrent", Limits{MaxConcurrent: 2}, [][2]string{{"s1", "a"}, {"s2", "b"}, {"s3", "c"}}, []bool{false, false, true}},
		{"per user", Limits{MaxPerUser: 1}, [][2]string{{"s1", "a"}, {"s2", "b"}, {"s3", "a"}}, []bool{false, false, true}},
		{"unlimited", Limits{}, [][2]string{{"s1", "a"}, {"s2", "a"}, {"s3", "a"}}, []bool{false, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := NewRunManager(tt.limits)
			for i, s := range tt.starts {
				_, err := rm.Start(s[0], s[1])
				if (err != nil) != tt.wantErr[i] {
					t.Errorf("start %d: error = %v, wantErr %v", i, err, tt.wantErr[i])
				}
			}
		})
	}
}

func TestFinishFreesSlot(t *testing.T) {
	rm := NewRunManager(Limits{MaxConcurrent: 1})
	e, err := rm.Start("s1", "a")
	if err != nil {
		t.Fatal(err)
	}
	if !rm.Running("s1") {
		t.Error("s1 should be running")
	}
	rm.Finish("s1")
	if e.Context.Err() == nil {
		t.Error("Finish should cancel the context")
	}
	if rm.Running("s1") {
		t.Error("s1 should be finished")
	}
	if _, err := rm.Start("s2", "b"); err != nil {
		t.Errorf("slot not freed: %v", err)
	}
	if d := rm.Finish("nope"); d != 0 {
		t.Errorf("Finish of unknown session = %v", d)
	}
}

func TestRunTimeLimit(t *testing.T) {
	rm := NewRunManager(Limits{MaxRunTime: 10 * time.Millisecond})
	e, err := rm.Start("s1", "a")
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-e.Context.Done():
	case <-time.After(time.Second):
		t.Fatal("run time limit not applied")
	}
	if !errors.Is(e.Context.Err(), context.DeadlineExceeded) {
		t.Errorf("err = %v", e.Context.Err())
	}
}

func TestStopOldest(t *testing.T) {
	rm := NewRunManager(Limits{})
	first, _ := rm.Start("s1", "a")
	time.Sleep(2 * time.Millisecond)
	second, _ := rm.Start("s2", "b")

	active := rm.Active()
	if len(active) != 2 || active[0].SessionID != "s1" {
		t.Fatalf("Active() = %+v", active)
	}
	if n := rm.StopOldest(1); n != 1 {
		t.Errorf("StopOldest = %d", n)
	}
	if first.Context.Err() == nil || second.Context.Err() != nil {
		t.Error("the oldest run should be stopped first")
	}
	// An already stopped run is skipped.
	if n := rm.StopOldest(1); n != 1 || second.Context.Err() == nil {
		t.Error("second run should be stopped next")
	}

	rm.Stop("s2")
	rm.Finish("s1")
	rm.Finish("s2")
	if len(rm.Active()) != 0 {
		t.Error("runs left after Finish")
	}
}

func TestGuardWithoutLimitReturns(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewRunManager(Limits{}).Guard(context.Background(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Guard without a heap limit should return")
	}
}

func TestGuardStopsRuns(t *testing.T) {
	rm := NewRunManager(Limits{MaxHeapMB: 1})
	ballast := make([]byte, 4<<20)
	e, _ := rm.Start("s1", "a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rm.Guard(ctx, time.Millisecond)
	select {
	case <-e.Context.Done():
	case <-time.After(time.Second):
		t.Error("Guard did not stop the run")
	}
	runtime.KeepAlive(ballast)
}
