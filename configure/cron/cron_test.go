package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/logging"
)

type tickCounter struct {
	count int64
}

func (c *tickCounter) Inc() {
	atomic.AddInt64(&c.count, 1)
}

func (c *tickCounter) Value() int64 {
	return atomic.LoadInt64(&c.count)
}

func TestService_AddRemoveJob(t *testing.T) {
	svc := newService(logging.NewNopLogger(), func(o *options) {
		o.EnableSeconds = true
	})

	if err := svc.addJob("* * * * * *", "noop", func() {}); err != nil {
		t.Fatalf("addJob failed: %v", err)
	}
	if _, ok := svc.jobs["noop"]; !ok {
		t.Fatal("job 'noop' not registered")
	}

	// 非法表达式应报错
	if err := svc.addJob("not-a-spec", "bad", func() {}); err == nil {
		t.Fatal("expected error for invalid spec")
	}

	svc.removeJob("noop")
	if _, ok := svc.jobs["noop"]; ok {
		t.Fatal("job 'noop' should be removed")
	}
}

func TestService_StartStop(t *testing.T) {
	svc := newService(logging.NewNopLogger(), func(o *options) {
		o.EnableSeconds = true
	})

	fired := make(chan struct{}, 4)
	if err := svc.addJob("* * * * * *", "tick", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("addJob failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire within 3s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancel")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestBuilder_BuildService(t *testing.T) {
	container := artifact.NewContainer()
	counter := &tickCounter{}
	container.RegisterResolvableDependency(artifact.TypeOf[*tickCounter](), counter)

	builder := NewBuilder().WithSeconds()
	builder.AddJobWithDI("* * * * * *", "count", func(c *tickCounter) {
		c.Inc()
	})

	svc, err := builder.BuildService(container, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("BuildService failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)
	defer cancel()

	deadline := time.Now().Add(3 * time.Second)
	for counter.Value() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("injected job did not run within 3s")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestBuilder_InvalidHandler(t *testing.T) {
	builder := NewBuilder().WithSeconds()
	builder.AddJobWithDI("* * * * * *", "broken", 42)

	if _, err := builder.BuildService(artifact.NewContainer(), logging.NewNopLogger()); err == nil {
		t.Fatal("expected error for non-function handler")
	}
}
