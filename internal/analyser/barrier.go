package analyser

import (
	"github.com/fawad-mazhar/runtimecore/internal/accessproc"
	"github.com/fawad-mazhar/runtimecore/internal/graph"
)

// completionWaiter is the shared bookkeeping behind both Barrier and
// EndOfApp requests, mirroring the original runtime's Barrier interface
// which unifies BarrierRequest and EndOfAppRequest under one release
// contract. The two differ only in whether they also set
// Application.NoMoreTasks and in exception handling (EndOfApp never
// surfaces one, per accessproc.EndOfAppRequest's doc comment).
//
// pending is a snapshot of the application's live task ids taken at
// registration time (spec.md invariant I7: a barrier only waits on tasks
// submitted before it was requested). A task submitted afterward is never
// added to pending, so it cannot delay this waiter even though it shares
// the same Application.LiveTasks set.
type completionWaiter struct {
	appID      graph.AppID
	done       chan accessproc.Signal
	isEndOfApp bool
	pending    map[graph.TaskID]struct{}
}

// CompletionSummary is recorded per application as tasks finish, and
// consulted when a waiter's condition is finally met.
type CompletionSummary struct {
	FailedCount int
}

// registerWaiter snapshots appID's currently live tasks and parks a
// waiter on each of them (see barrierWaiters), or releases it immediately
// if none are live.
func (a *Analyser) registerWaiter(appID graph.AppID, done chan accessproc.Signal, isEndOfApp bool) {
	app := a.graph.Application(appID)
	if isEndOfApp {
		app.NoMoreTasks = true
	}
	pending := make(map[graph.TaskID]struct{}, len(app.LiveTasks))
	for id := range app.LiveTasks {
		pending[id] = struct{}{}
	}
	w := &completionWaiter{appID: appID, done: done, isEndOfApp: isEndOfApp, pending: pending}
	if len(pending) == 0 {
		a.releaseWaiter(w)
		return
	}
	for id := range pending {
		a.barrierWaiters[id] = append(a.barrierWaiters[id], w)
	}
}

func (a *Analyser) releaseWaiter(w *completionWaiter) {
	if w.isEndOfApp {
		// EndOfApp never surfaces a failure as an error; failures are
		// only counted in the analyser's internal completion summary,
		// which this signal does not carry.
		w.done <- accessproc.Signal{}
		return
	}
	summary := a.summaries[w.appID]
	if summary.FailedCount > 0 {
		w.done <- accessproc.Signal{Err: ErrTasksFailed}
		return
	}
	w.done <- accessproc.Signal{}
}

// resolveBarrierWaiters clears taskID out of every waiter parked on it,
// releasing a waiter once every task in its registration-time snapshot
// has reached a terminal state.
func (a *Analyser) resolveBarrierWaiters(taskID graph.TaskID) {
	waiters := a.barrierWaiters[taskID]
	if len(waiters) == 0 {
		return
	}
	delete(a.barrierWaiters, taskID)
	for _, w := range waiters {
		delete(w.pending, taskID)
		if len(w.pending) == 0 {
			a.releaseWaiter(w)
		}
	}
}
