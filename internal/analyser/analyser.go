// Package analyser implements the TaskAnalyser: the single goroutine that
// consumes the AccessProcessor's request queue, wires dependency edges via
// the DataInfoProvider, and hands ready tasks to the TaskDispatcher.
//
// The consumption loop is grounded on the teacher's
// Orchestrator.Start/Runner.Start select loops (internal/orchestrator,
// internal/runner in the teacher repo), generalized from "claim and run
// one job" into "apply one graph mutation," and its shutdown/fault path is
// grounded on Orchestrator.Shutdown's drain-then-stop sequence.
package analyser

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fawad-mazhar/runtimecore/internal/accessproc"
	"github.com/fawad-mazhar/runtimecore/internal/datainfo"
	"github.com/fawad-mazhar/runtimecore/internal/dispatch"
	"github.com/fawad-mazhar/runtimecore/internal/graph"
)

// ErrTasksFailed is the error a Barrier waiter observes when at least one
// task in its application failed before the barrier condition was met.
var ErrTasksFailed = errors.New("analyser: one or more tasks failed")

// ErrRuntimeAborted is delivered to every pending waiter when the
// analyser suffers an AnalyzerFault and shuts down.
var ErrRuntimeAborted = errors.New("analyser: runtime aborted")

// ErrProducerFailed is delivered to a MainAccess caller when the task it
// was waiting on to produce the referenced data failed instead of
// finishing.
var ErrProducerFailed = errors.New("analyser: data producer task failed")

// Analyser is the TaskAnalyser. Construct with New and run its loop with
// Run in a dedicated goroutine.
type Analyser struct {
	ap    *accessproc.AccessProcessor
	dip   *datainfo.Provider
	td    dispatch.Dispatcher
	graph *graph.Graph

	// barrierWaiters holds Barrier/EndOfApp requests parked on the tasks
	// that were live in their application at registration time, keyed by
	// task id — mirrors mainWaiters below, but for the barrier/end-of-app
	// completion contract instead of a single data producer.
	barrierWaiters map[graph.TaskID][]*completionWaiter
	summaries      map[graph.AppID]CompletionSummary

	// inFlight maps each dispatched, not yet completed task id to its
	// graph.Task, letting a replicated task's several completions all
	// resolve back to the same graph.Task.
	inFlight map[graph.TaskID]*graph.Task

	// mainWaiters holds MAIN_ACCESS requests parked on one or more
	// producer tasks that have not yet reached a terminal state, keyed
	// by the producer task id they are waiting on. A single waiter may
	// appear under several keys when it depends on more than one
	// producer (e.g. after a closed CONCURRENT group).
	mainWaiters map[graph.TaskID][]*mainAccessWaiter
}

// mainAccessWaiter is a MainAccessRequest parked until every task in
// pending reaches a terminal state.
type mainAccessWaiter struct {
	req     accessproc.MainAccessRequest
	pending map[graph.TaskID]struct{}
	failed  bool
}

// New wires an Analyser against its three collaborators. g is typically
// freshly created via graph.New, dip via datainfo.New.
func New(ap *accessproc.AccessProcessor, dip *datainfo.Provider, td dispatch.Dispatcher, g *graph.Graph) *Analyser {
	return &Analyser{
		ap:             ap,
		dip:            dip,
		td:             td,
		graph:          g,
		barrierWaiters: make(map[graph.TaskID][]*completionWaiter),
		summaries:      make(map[graph.AppID]CompletionSummary),
		inFlight:       make(map[graph.TaskID]*graph.Task),
		mainWaiters:    make(map[graph.TaskID][]*mainAccessWaiter),
	}
}

// Run drains the request queue until it is closed or ctx is done. It is
// meant to be the only goroutine that ever touches the Analyser's graph
// or data registry, per spec.md §5.
func (a *Analyser) Run(ctx context.Context) {
	requests := a.ap.Requests()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := a.handle(req); err != nil {
				a.fault(err)
				return
			}
		}
	}
}

func (a *Analyser) handle(req accessproc.Request) error {
	switch r := req.(type) {
	case accessproc.NewTaskRequest:
		return a.handleNewTask(r)
	case accessproc.MainAccessRequest:
		return a.handleMainAccess(r)
	case accessproc.TaskEndedRequest:
		return a.handleTaskEnded(r)
	case accessproc.BarrierRequest:
		a.registerWaiter(r.AppID, r.Done, false)
		return nil
	case accessproc.EndOfAppRequest:
		a.registerWaiter(r.AppID, r.Done, true)
		return nil
	default:
		return nil
	}
}

// handleNewTask registers a task, wires its dependency edges, and, if it
// has no unresolved predecessors, dispatches it immediately — spec.md
// §4.2's dispatch-on-ready rule.
//
// A submission arriving for an application that already called
// end_of_app is rejected outright with a SubmissionError (spec.md §7,
// §8 scenario S6) rather than silently accepted: end_of_app promises the
// caller that no further tasks remain, and honoring a late submission
// would break that promise for anyone already blocked in EndOfApp.
func (a *Analyser) handleNewTask(r accessproc.NewTaskRequest) error {
	app := a.graph.Application(r.AppID)
	if app.NoMoreTasks {
		r.Result <- accessproc.NewTaskResult{
			Err: &accessproc.SubmissionError{
				Reason: fmt.Sprintf("application %q already called end_of_app", r.AppID),
			},
		}
		return nil
	}

	t := a.graph.NewTask(r.AppID, r.Desc)
	if err := a.wireEdges(t); err != nil {
		r.Result <- accessproc.NewTaskResult{ID: t.ID, Err: err}
		return err
	}
	if a.graph.IsReady(t) {
		a.dispatchTask(t)
	}
	r.Result <- accessproc.NewTaskResult{ID: t.ID}
	return nil
}

// handleMainAccess implements spec.md §4.1's main_access contract:
// application code blocks until TA has ensured the data's producing
// task(s) are finished. If any producer is still outstanding, the
// request is parked in mainWaiters and released from completeTask once
// every producer it depends on reaches a terminal state.
func (a *Analyser) handleMainAccess(r accessproc.MainAccessRequest) error {
	access, err := a.dip.Access(r.Ref, r.Dir, 0)
	if err != nil {
		r.Done <- accessproc.Signal{Err: err}
		return nil
	}
	if access.Instance == nil || !isReadLike(r.Dir) {
		r.Done <- accessproc.Signal{}
		return nil
	}

	pending := make(map[graph.TaskID]struct{})
	failed := false
	for _, producer := range access.Producers {
		pt, ok := a.graph.Task(producer)
		if !ok {
			continue
		}
		switch pt.State {
		case graph.TaskFinished:
		case graph.TaskFailed:
			failed = true
		default:
			pending[producer] = struct{}{}
		}
	}

	if len(pending) == 0 {
		if failed {
			r.Done <- accessproc.Signal{Err: ErrProducerFailed}
			return nil
		}
		r.Done <- accessproc.Signal{}
		return nil
	}

	w := &mainAccessWaiter{req: r, pending: pending, failed: failed}
	for producer := range pending {
		a.mainWaiters[producer] = append(a.mainWaiters[producer], w)
	}
	return nil
}

func isReadLike(dir graph.Direction) bool {
	switch dir {
	case graph.DirIn, graph.DirInOut, graph.DirConcurrent, graph.DirCommutative:
		return true
	default:
		return false
	}
}

// resolveMainAccessWaiters clears taskID out of every MainAccess waiter
// parked on it, releasing a waiter once every producer it depends on has
// reached a terminal state.
func (a *Analyser) resolveMainAccessWaiters(taskID graph.TaskID, success bool) {
	waiters := a.mainWaiters[taskID]
	if len(waiters) == 0 {
		return
	}
	delete(a.mainWaiters, taskID)
	for _, w := range waiters {
		delete(w.pending, taskID)
		if !success {
			w.failed = true
		}
		if len(w.pending) > 0 {
			continue
		}
		if w.failed {
			w.req.Done <- accessproc.Signal{Err: ErrProducerFailed}
		} else {
			w.req.Done <- accessproc.Signal{}
		}
	}
}

// dispatchTask transitions t to TO_EXECUTE and hands it to the
// dispatcher. A dispatch rejection (e.g. a full worker pool) is treated
// as an immediate task failure, cascading exactly as a runtime failure
// would.
func (a *Analyser) dispatchTask(t *graph.Task) {
	t.State = graph.TaskToExecute
	a.inFlight[t.ID] = t
	info, err := a.td.Dispatch(t)
	if err != nil {
		log.Printf("analyser: dispatch of task %d failed: %v", t.ID, err)
		a.completeTask(t, false, err.Error())
		return
	}
	t.Executions = append(t.Executions, info.Handle)
	if info.ReplicaCount > 0 {
		t.PendingExecutions = info.ReplicaCount
	}
}

// handleTaskEnded implements spec.md §4.2's TASK_ENDED steps: update
// state, release or fail dependents, release read locks, and check
// whether any pending barrier/end-of-app waiter is now satisfied.
func (a *Analyser) handleTaskEnded(r accessproc.TaskEndedRequest) error {
	t, ok := a.inFlight[r.TaskID]
	if !ok {
		// Unknown or already-completed task id; nothing to do. This can
		// happen if a slow dispatcher reports completion after a fault
		// already tore the graph down.
		return nil
	}

	if r.Exception != nil {
		// A user-domain TaskException does not by itself fail the task;
		// it is only logged here (CompletionSummary does not record it),
		// and execution is still considered to have completed the step
		// the dispatcher reported.
		log.Printf("analyser: task %d raised exception: %v", r.TaskID, r.Exception)
	}

	if !r.Success {
		a.completeTask(t, false, r.Reason)
		return nil
	}

	t.PendingExecutions--
	if t.PendingExecutions > 0 {
		// Replicated task: wait for the remaining copies before treating
		// it as finished, mirroring the original runtime's isFree().
		return nil
	}
	a.completeTask(t, true, "")
	return nil
}

func (a *Analyser) completeTask(t *graph.Task, success bool, reason string) {
	delete(a.inFlight, t.ID)
	a.dip.ReleaseTaskReads(t.ID)
	a.resolveMainAccessWaiters(t.ID, success)

	if success {
		t.State = graph.TaskFinished
	} else {
		t.State = graph.TaskFailed
		t.Failed = true
		log.Printf("analyser: task %d failed: %s", t.ID, reason)
		summary := a.summaries[t.AppID]
		summary.FailedCount++
		a.summaries[t.AppID] = summary
	}
	a.resolveBarrierWaiters(t.ID)

	if success {
		ready := a.graph.ReleaseDependents(t.ID)
		for _, id := range ready {
			if rt, ok := a.graph.Task(id); ok {
				a.dispatchTask(rt)
			}
		}
	} else {
		failedIDs := a.graph.FailDependents(t.ID)
		if len(failedIDs) > 0 {
			summary := a.summaries[t.AppID]
			summary.FailedCount += len(failedIDs)
			a.summaries[t.AppID] = summary
			for _, id := range failedIDs {
				delete(a.inFlight, id)
				a.dip.ReleaseTaskReads(id)
				a.resolveMainAccessWaiters(id, false)
				a.resolveBarrierWaiters(id)
				a.graph.RemoveLiveTask(id)
			}
			a.graph.RemoveLiveTask(t.ID)
			return
		}
	}

	a.graph.RemoveLiveTask(t.ID)
}

// fault tears down the runtime after an unrecoverable analyser error
// (spec.md's AnalyzerFault): the request queue is closed and every
// pending waiter is released with ErrRuntimeAborted, mirroring the
// teacher's Orchestrator.Shutdown drain but immediate rather than
// graceful, since a fault means the graph state can no longer be trusted.
func (a *Analyser) fault(cause error) {
	log.Printf("analyser: fault, aborting runtime: %v", cause)
	sentBarrier := make(map[*completionWaiter]struct{})
	for taskID, waiters := range a.barrierWaiters {
		for _, w := range waiters {
			if _, ok := sentBarrier[w]; ok {
				continue
			}
			sentBarrier[w] = struct{}{}
			w.done <- accessproc.Signal{Err: ErrRuntimeAborted}
		}
		delete(a.barrierWaiters, taskID)
	}
	sentMain := make(map[*mainAccessWaiter]struct{})
	for taskID, waiters := range a.mainWaiters {
		for _, w := range waiters {
			if _, ok := sentMain[w]; ok {
				continue
			}
			sentMain[w] = struct{}{}
			w.req.Done <- accessproc.Signal{Err: ErrRuntimeAborted}
		}
		delete(a.mainWaiters, taskID)
	}
	a.ap.Close()
}
