package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "crexbot/pkg/logx"
)

func TestAddValidatesSpec(t *testing.T) {
	t.Parallel()

	svc := New(Config{Enabled: true}, logx.Nop())

	cases := []struct {
		name    string
		jobName string
		spec    string
		wantErr bool
	}{
		{name: "five field cron", jobName: "digest", spec: "0 9 * * *"},
		{name: "descriptor", jobName: "hourly", spec: "@hourly"},
		{name: "every interval", jobName: "prune", spec: "@every 12h"},
		{name: "empty name", jobName: "", spec: "@hourly", wantErr: true},
		{name: "bad spec", jobName: "x", spec: "not a spec", wantErr: true},
		{name: "six fields rejected", jobName: "y", spec: "0 0 9 * * *", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Add(tc.jobName, tc.spec, 0, func(context.Context) error { return nil })
			if tc.wantErr && err == nil {
				t.Fatalf("Add(%q, %q) succeeded, want error", tc.jobName, tc.spec)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Add(%q, %q): %v", tc.jobName, tc.spec, err)
			}
		})
	}
}

func TestAddReplacesByName(t *testing.T) {
	t.Parallel()

	svc := New(Config{Enabled: true}, logx.Nop())
	if err := svc.Add("digest", "0 9 * * *", 0, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.Add("digest", "0 21 * * *", 0, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("re-Add: %v", err)
	}
	svc.mu.Lock()
	n := len(svc.defs)
	spec := svc.defs["digest"].spec
	svc.mu.Unlock()
	if n != 1 || spec != "0 21 * * *" {
		t.Fatalf("defs = %d, spec = %q; want 1 def with the new spec", n, spec)
	}
}

func TestDisabledServiceNeverStarts(t *testing.T) {
	t.Parallel()

	svc := New(Config{Enabled: false}, logx.Nop())
	var ran atomic.Int32
	if err := svc.Add("tick", "@every 1ms", 0, func(context.Context) error {
		ran.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	svc.Stop(context.Background())

	if got := ran.Load(); got != 0 {
		t.Fatalf("disabled service ran a job %d times", got)
	}
}

func TestStartRunsRegisteredJob(t *testing.T) {
	t.Parallel()

	svc := New(Config{Enabled: true}, logx.Nop())
	ran := make(chan struct{}, 1)
	if err := svc.Add("tick", "@every 10ms", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
