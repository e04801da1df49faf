package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"
)

// Job 待执行的构建任务
type Job struct {
	ProjectID  uint
	EnqueuedAt time.Time
	Timeout    time.Duration
}

// ProjectExecutor 实际执行流水线的接口，由 pipeline 控制器适配
type ProjectExecutor interface {
	ExecuteProject(ctx context.Context, projectID uint) error
}

var (
	ErrOrchestratorStopped = errors.New("orchestrator is stopped")
	ErrQueueFull           = errors.New("job queue is full")
)

// Orchestrator 构建任务编排器
// ants 协程池 + 有界内存队列；修复重试完全由流水线内部控制，
// 编排器只负责并发上限、任务超时与取消
type Orchestrator struct {
	jobQueue *jobQueue
	pool     *ants.Pool
	executor ProjectExecutor

	defaultTimeout time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	activeCancellations map[uint]context.CancelFunc
	cancelMutex         sync.Mutex
}

func NewOrchestrator(maxWorkers int, defaultTimeout time.Duration, executor ProjectExecutor) (*Orchestrator, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pool, err := ants.NewPool(maxWorkers,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(1000),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		cancel()
		klog.Errorf("ants pool initialization failed: %v", err)
		return nil, err
	}

	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Minute
	}

	return &Orchestrator{
		jobQueue:            newJobQueue(120),
		pool:                pool,
		executor:            executor,
		defaultTimeout:      defaultTimeout,
		activeCancellations: make(map[uint]context.CancelFunc),
		ctx:                 ctx,
		cancel:              cancel,
	}, nil
}

func (o *Orchestrator) Start() {
	go o.dispatchLoop()
}

func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		klog.V(6).Infof("Orchestrator stopping...")

		o.cancel()
		o.jobQueue.Close()

		// 等待正在执行的构建收尾，上限覆盖单任务超时
		timeout := o.defaultTimeout + 5*time.Minute
		if err := o.pool.ReleaseTimeout(timeout); err != nil {
			klog.Warningf("Timeout after %v: some running builds may be forced to stop", timeout)
		}
		klog.V(6).Infof("Orchestrator stopped completely")
	})
}

// EnqueueJob 提交构建任务，队列满或已停止时返回错误
func (o *Orchestrator) EnqueueJob(job *Job) error {
	select {
	case <-o.ctx.Done():
		return ErrOrchestratorStopped
	default:
	}

	if err := o.jobQueue.Enqueue(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			klog.Warningf("Job queue full: projectID=%d", job.ProjectID)
		}
		return err
	}
	klog.V(6).Infof("Job enqueued: projectID=%d", job.ProjectID)
	return nil
}

// CancelProject 取消正在执行的构建，返回是否找到了对应任务
func (o *Orchestrator) CancelProject(projectID uint) bool {
	o.cancelMutex.Lock()
	cancel, ok := o.activeCancellations[projectID]
	o.cancelMutex.Unlock()
	if !ok {
		return false
	}

	klog.V(6).Infof("Cancelling build: projectID=%d", projectID)
	cancel()
	return true
}

func (o *Orchestrator) registerCancel(projectID uint, cancel context.CancelFunc) {
	o.cancelMutex.Lock()
	defer o.cancelMutex.Unlock()
	o.activeCancellations[projectID] = cancel
}

func (o *Orchestrator) unregisterCancel(projectID uint) {
	o.cancelMutex.Lock()
	defer o.cancelMutex.Unlock()
	delete(o.activeCancellations, projectID)
}

func (o *Orchestrator) dispatchLoop() {
	for {
		select {
		case <-o.ctx.Done():
			return
		default:
			job, ok := o.jobQueue.Dequeue()
			if !ok {
				continue
			}
			if err := o.pool.Submit(func() {
				o.executeJob(job)
			}); err != nil {
				klog.Errorf("提交任务到协程池失败: projectID=%d, err=%v", job.ProjectID, err)
			}
		}
	}
}

// executeJob 带超时与取消登记地执行单个构建任务
func (o *Orchestrator) executeJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Build panic recovered: projectID=%d, err=%v", job.ProjectID, r)
			o.unregisterCancel(job.ProjectID)
		}
	}()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(o.ctx, timeout)
	defer cancel()
	runCtx, manualCancel := context.WithCancel(ctx)
	defer manualCancel()

	o.registerCancel(job.ProjectID, manualCancel)
	defer o.unregisterCancel(job.ProjectID)

	if err := o.executor.ExecuteProject(runCtx, job.ProjectID); err != nil {
		klog.Warningf("构建任务执行失败: projectID=%d, err=%v", job.ProjectID, err)
		return
	}
	klog.V(6).Infof("Build job completed: projectID=%d", job.ProjectID)
}

// QueueStatus 编排器当前负载
type QueueStatus struct {
	QueueLength   int `json:"queue_length"`
	ActiveWorkers int `json:"active_workers"`
}

func (o *Orchestrator) GetQueueStatus() *QueueStatus {
	return &QueueStatus{
		QueueLength:   o.jobQueue.Len(),
		ActiveWorkers: o.pool.Running(),
	}
}

// -----------------------------
// JobQueue (有界 FIFO) + Reject New
// -----------------------------
type jobQueue struct {
	maxSize int
	items   []*Job
	mutex   sync.Mutex
	cond    *sync.Cond
	closed  bool
}

func newJobQueue(maxSize int) *jobQueue {
	q := &jobQueue{
		maxSize: maxSize,
		items:   make([]*Job, 0, maxSize),
	}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

func (q *jobQueue) Enqueue(job *Job) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrOrchestratorStopped
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return ErrQueueFull // Reject New
	}
	q.items = append(q.items, job)
	q.cond.Signal()
	return nil
}

func (q *jobQueue) Dequeue() (*Job, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	job := q.items[0]
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

func (q *jobQueue) Close() {
	q.mutex.Lock()
	q.closed = true
	q.mutex.Unlock()
	q.cond.Broadcast()
}
