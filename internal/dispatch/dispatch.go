// Package dispatch defines the TaskDispatcher contract — the boundary
// between this module and the physical execution engine that actually
// runs tasks — plus one reference implementation, Pool, adapted from the
// teacher's worker.TaskExecutor worker pool.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fawad-mazhar/runtimecore/internal/graph"
)

// Outcome reports how a dispatched task finished.
type Outcome struct {
	Success bool
	Reason  string
}

// DispatchInfo is returned by Dispatch to tell the caller how many
// independent completions to expect for this task before it is
// considered FINISHED — mirrors the original runtime's executionCount for
// replicated tasks.
type DispatchInfo struct {
	Handle       graph.ExecutionHandle
	ReplicaCount int
}

// Dispatcher is the external sink TaskAnalyser hands ready tasks to. TA
// calls Dispatch exactly once per task; the dispatcher is responsible for
// eventually reporting completion back through whatever callback the
// caller registered (see Pool for the reference wiring against
// accessproc.AccessProcessor.TaskEnded).
type Dispatcher interface {
	Dispatch(t *graph.Task) (DispatchInfo, error)
}

// TaskFunc is the reference execution unit run by Pool, mirroring the
// teacher's worker.TaskFunction signature.
type TaskFunc func(ctx context.Context, t *graph.Task) error

// Registry maps a task's method name to the function that implements it,
// adapted from the teacher's worker.Registry.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]TaskFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{functions: make(map[string]TaskFunc)}
}

// Register adds fn under name, failing if the name is already taken.
func (r *Registry) Register(name string, fn TaskFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("dispatch: function %q already registered", name)
	}
	r.functions[name] = fn
	return nil
}

func (r *Registry) get(name string) (TaskFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	return fn, ok
}

type work struct {
	task *graph.Task
}

// Pool is a fixed-size worker pool draining two buffered channels of
// ready tasks — one for Prioritary tasks, one for everything else —
// adapted from the teacher's worker.TaskExecutor. It is a reference sink
// usable in tests and small deployments; production systems are expected
// to supply their own Dispatcher.
type Pool struct {
	registry   *Registry
	onComplete func(graph.TaskID, Outcome)

	prioTasks chan work
	tasks     chan work
	wg        sync.WaitGroup

	timeout context.Context
	cancel  context.CancelFunc
}

// NewPool starts a Pool with the given worker count and registry. onDone
// is invoked once per completed dispatch, exactly the callback shape
// accessproc.AccessProcessor.TaskEnded expects.
func NewPool(ctx context.Context, workers, queueDepth int, registry *Registry, onDone func(graph.TaskID, Outcome)) *Pool {
	poolCtx, cancel := context.WithCancel(ctx)
	p := &Pool{
		registry:   registry,
		onComplete: onDone,
		prioTasks:  make(chan work, queueDepth),
		tasks:      make(chan work, queueDepth),
		timeout:    poolCtx,
		cancel:     cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(poolCtx)
	}
	return p
}

// Dispatch enqueues t without blocking, mirroring the teacher's
// non-blocking select/default enqueue in worker.TaskExecutor.ExecuteTask.
// A Prioritary task goes to the head-of-line queue a worker always drains
// first.
func (p *Pool) Dispatch(t *graph.Task) (DispatchInfo, error) {
	handle := graph.ExecutionHandle{ID: uuid.New().String()}
	target := p.tasks
	if t.Description.Prioritary {
		target = p.prioTasks
	}
	select {
	case target <- work{task: t}:
		return DispatchInfo{Handle: handle, ReplicaCount: t.PendingExecutions}, nil
	default:
		return DispatchInfo{}, fmt.Errorf("dispatch: pool queue full, task %d rejected", t.ID)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		// Drain the priority queue first, non-blocking, before ever
		// falling back to a fair select against the normal queue.
		select {
		case w, ok := <-p.prioTasks:
			if !ok {
				return
			}
			p.run(ctx, w.task)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case w, ok := <-p.prioTasks:
			if !ok {
				return
			}
			p.run(ctx, w.task)
		case w, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(ctx, w.task)
		}
	}
}

func (p *Pool) run(ctx context.Context, t *graph.Task) {
	fn, ok := p.registry.get(t.Description.MethodName)
	if !ok {
		p.onComplete(t.ID, Outcome{Success: false, Reason: fmt.Sprintf("no function registered for %q", t.Description.MethodName)})
		return
	}
	if err := fn(ctx, t); err != nil {
		p.onComplete(t.ID, Outcome{Success: false, Reason: err.Error()})
		return
	}
	p.onComplete(t.ID, Outcome{Success: true})
}

// Stop closes the intake channel and waits for in-flight work to drain,
// mirroring the teacher's worker.TaskExecutor.Stop.
func (p *Pool) Stop() {
	p.cancel()
	close(p.prioTasks)
	close(p.tasks)
	p.wg.Wait()
}
