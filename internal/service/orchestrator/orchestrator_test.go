package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExecutor struct {
	err     error
	calls   int32
	blockOn chan struct{} // 非 nil 时阻塞直到 ctx 结束或通道关闭
	lastErr atomic.Value
}

func (f *fakeExecutor) ExecuteProject(ctx context.Context, projectID uint) error {
	atomic.AddInt32(&f.calls, 1)
	if f.blockOn != nil {
		select {
		case <-ctx.Done():
			f.lastErr.Store(ctx.Err())
			return ctx.Err()
		case <-f.blockOn:
		}
	}
	return f.err
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestEnqueueAndExecute(t *testing.T) {
	executor := &fakeExecutor{}
	o, err := NewOrchestrator(1, time.Minute, executor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Start()
	defer o.pool.Release()
	defer o.cancel()

	if err := o.EnqueueJob(&Job{ProjectID: 1, EnqueuedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&executor.calls) == 1
	})
}

func TestEnqueueQueueFull(t *testing.T) {
	executor := &fakeExecutor{blockOn: make(chan struct{})}
	o, err := NewOrchestrator(1, time.Minute, executor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 不启动 dispatchLoop，队列只进不出
	defer o.pool.Release()
	defer o.cancel()

	o.jobQueue.maxSize = 2
	if err := o.EnqueueJob(&Job{ProjectID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.EnqueueJob(&Job{ProjectID: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.EnqueueJob(&Job{ProjectID: 3}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	executor := &fakeExecutor{}
	o, err := NewOrchestrator(1, 10*time.Millisecond, executor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Stop()

	if err := o.EnqueueJob(&Job{ProjectID: 1}); !errors.Is(err, ErrOrchestratorStopped) {
		t.Fatalf("expected ErrOrchestratorStopped, got %v", err)
	}
}

func TestCancelProject(t *testing.T) {
	executor := &fakeExecutor{blockOn: make(chan struct{})}
	o, err := NewOrchestrator(1, time.Minute, executor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Start()
	defer o.pool.Release()
	defer o.cancel()

	if err := o.EnqueueJob(&Job{ProjectID: 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 等任务进入执行并登记取消函数
	waitFor(t, 2*time.Second, func() bool {
		o.cancelMutex.Lock()
		_, ok := o.activeCancellations[7]
		o.cancelMutex.Unlock()
		return ok
	})

	if !o.CancelProject(7) {
		t.Fatalf("expected cancel to find the running job")
	}

	waitFor(t, 2*time.Second, func() bool {
		err, _ := executor.lastErr.Load().(error)
		return errors.Is(err, context.Canceled)
	})

	// 执行结束后取消登记被清理
	waitFor(t, 2*time.Second, func() bool {
		o.cancelMutex.Lock()
		_, ok := o.activeCancellations[7]
		o.cancelMutex.Unlock()
		return !ok
	})
}

func TestCancelProjectNotRunning(t *testing.T) {
	executor := &fakeExecutor{}
	o, err := NewOrchestrator(1, time.Minute, executor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.pool.Release()
	defer o.cancel()

	if o.CancelProject(99) {
		t.Fatalf("expected cancel to report not found")
	}
}

func TestExecuteJobTimeout(t *testing.T) {
	executor := &fakeExecutor{blockOn: make(chan struct{})}
	o, err := NewOrchestrator(1, time.Minute, executor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.pool.Release()
	defer o.cancel()

	start := time.Now()
	o.executeJob(&Job{ProjectID: 5, Timeout: 50 * time.Millisecond})
	elapsed := time.Since(start)

	if atomic.LoadInt32(&executor.calls) != 1 {
		t.Fatalf("executor should be called once, got %d", executor.calls)
	}
	if elapsed > time.Second {
		t.Fatalf("executeJob took too long: %v", elapsed)
	}
	lastErr, _ := executor.lastErr.Load().(error)
	if !errors.Is(lastErr, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", lastErr)
	}
}

func TestGetQueueStatus(t *testing.T) {
	executor := &fakeExecutor{}
	o, err := NewOrchestrator(2, time.Minute, executor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.pool.Release()
	defer o.cancel()

	if err := o.EnqueueJob(&Job{ProjectID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := o.GetQueueStatus()
	if status.QueueLength != 1 {
		t.Fatalf("expected queue length 1, got %d", status.QueueLength)
	}
	if status.ActiveWorkers != 0 {
		t.Fatalf("expected 0 active workers, got %d", status.ActiveWorkers)
	}
}

func TestJobQueueFIFO(t *testing.T) {
	q := newJobQueue(10)
	for i := uint(1); i <= 3; i++ {
		if err := q.Enqueue(&Job{ProjectID: i}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i := uint(1); i <= 3; i++ {
		job, ok := q.Dequeue()
		if !ok || job.ProjectID != i {
			t.Fatalf("expected project %d, got %+v ok=%v", i, job, ok)
		}
	}
}

func TestJobQueueCloseUnblocksDequeue(t *testing.T) {
	q := newJobQueue(10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := q.Dequeue(); ok {
			t.Errorf("expected dequeue to fail after close")
		}
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("dequeue did not unblock after close")
	}

	if err := q.Enqueue(&Job{ProjectID: 1}); !errors.Is(err, ErrOrchestratorStopped) {
		t.Fatalf("expected ErrOrchestratorStopped, got %v", err)
	}
}
