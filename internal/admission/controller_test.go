package admission

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testController(t *testing.T, parallel, queueLimit int) *Controller {
	t.Helper()
	return New(zap.NewNop(), WithDefaultParallel(parallel), WithDefaultQueueLimit(queueLimit))
}

func TestExecuteRunsOperation(t *testing.T) {
	c := testController(t, 2, 4)
	result, err := c.Execute(context.Background(), "llama3", "req-1", time.Second, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if result != "ok" {
		t.Fatalf("result = %v", result)
	}
}

func TestExecuteIsolatesModels(t *testing.T) {
	c := testController(t, 1, 1)

	blockModelA := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_, _ = c.Execute(context.Background(), "model-a", "req-a", time.Second, func(ctx context.Context) (any, error) {
			<-blockModelA
			return nil, nil
		})
		close(done)
	}()

	// model-b must not be blocked by model-a's in-flight request.
	result, err := c.Execute(context.Background(), "model-b", "req-b", time.Second, func(ctx context.Context) (any, error) {
		return "b-ok", nil
	})
	close(blockModelA)
	<-done

	if err != nil {
		t.Fatal(err)
	}
	if result != "b-ok" {
		t.Fatalf("result = %v", result)
	}
}

func TestExecuteQueueFull(t *testing.T) {
	c := testController(t, 1, 1)

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = c.Execute(context.Background(), "m", "req-1", time.Second, func(ctx context.Context) (any, error) {
			close(started)
			<-block
			return nil, nil
		})
	}()
	<-started

	go func() {
		// Second caller occupies the lone queue slot while req-1 holds the semaphore.
		_, _ = c.Execute(context.Background(), "m", "req-2", time.Second, func(ctx context.Context) (any, error) {
			<-block
			return nil, nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := c.Execute(context.Background(), "m", "req-3", time.Second, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != ErrQueueFull {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	close(block)
}

func TestExecuteAdmitsFirstRequestWithZeroQueueLimit(t *testing.T) {
	c := testController(t, 1, 0)

	block := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), "m", "req-1", time.Second, func(ctx context.Context) (any, error) {
			close(started)
			<-block
			return nil, nil
		})
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first request with queue_limit=0 was never admitted")
	}

	_, err := c.Execute(context.Background(), "m", "req-2", time.Second, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != ErrQueueFull {
		t.Fatalf("second request err = %v, want ErrQueueFull", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first request err = %v, want nil", err)
	}
}

func TestStatsReportsProcessedCount(t *testing.T) {
	c := testController(t, 2, 4)
	_, _ = c.Execute(context.Background(), "m", "req-1", time.Second, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	stats := c.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(stats))
	}
	if stats[0].Processed != 1 {
		t.Fatalf("Processed = %d, want 1", stats[0].Processed)
	}
}

func TestReconfigureResetsCounters(t *testing.T) {
	c := testController(t, 2, 4)
	_, _ = c.Execute(context.Background(), "m", "req-1", time.Second, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	c.Reconfigure("m", Limits{ParallelLimit: 4, QueueLimit: 8})
	stats := c.Stats()
	if stats[0].Processed != 0 {
		t.Fatalf("Processed after reconfigure = %d, want 0", stats[0].Processed)
	}
}

func TestAutoParallelNeverZero(t *testing.T) {
	if autoParallel() <= 0 {
		t.Fatal("autoParallel must return a positive default")
	}
}

func TestSetDefaultLimitsAppliesToNewModelsOnly(t *testing.T) {
	c := testController(t, 2, 4)
	_, _ = c.Execute(context.Background(), "existing", "req-1", time.Second, func(ctx context.Context) (any, error) {
		return nil, nil
	})

	c.SetDefaultLimits(Limits{ParallelLimit: 9, QueueLimit: 99})

	q := c.queueFor("fresh-model")
	if cap(q.slots) != 99 {
		t.Fatalf("new model queue limit = %d, want 99", cap(q.slots))
	}

	existing := c.queueFor("existing")
	if cap(existing.slots) != 4 {
		t.Fatalf("existing model queue limit changed to %d, want unchanged 4", cap(existing.slots))
	}
}
