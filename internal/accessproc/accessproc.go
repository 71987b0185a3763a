// Package accessproc implements the AccessProcessor: the front door
// applications and the dispatcher call into. It owns the single
// in-process request queue that internal/analyser drains from its one
// consumer goroutine.
//
// The producer side is grounded on the teacher's JobHandler/
// RabbitMQ.PublishJob role, but collapsed from an AMQP broker into a
// plain buffered Go channel — the request queue here is in-process and
// single-consumer by design (spec.md §5), not a distributed transport.
package accessproc

import (
	"context"
	"errors"
	"fmt"

	"github.com/fawad-mazhar/runtimecore/internal/graph"
)

// ErrQueueClosed is returned by any submission made after the
// AccessProcessor has been closed, either deliberately via Close or as
// the result of an AnalyzerFault.
var ErrQueueClosed = errors.New("accessproc: request queue closed")

// SubmissionError reports that a request was rejected by the analyser
// itself rather than by the queue being closed — spec.md §7's
// "queue closed, unknown appId, malformed parameters" error kind, e.g. a
// NEW_TASK submitted for an application that already called EndOfApp
// (spec.md §8 scenario S6).
type SubmissionError struct {
	Reason string
}

func (e *SubmissionError) Error() string {
	return "accessproc: submission rejected: " + e.Reason
}

// AccessProcessor is the public submission surface of the runtime core.
type AccessProcessor struct {
	queue chan Request
}

// New returns an AccessProcessor backed by a queue of the given capacity,
// mirroring the teacher's config-driven channel sizing
// (runtimeconfig.Config.Queue.Capacity).
func New(capacity int) *AccessProcessor {
	return &AccessProcessor{queue: make(chan Request, capacity)}
}

// Requests exposes the consumption side of the queue to the analyser.
// Only internal/analyser should read from it.
func (ap *AccessProcessor) Requests() <-chan Request {
	return ap.queue
}

// Close stops accepting new submissions. Safe to call once; the analyser
// calls it after draining an AnalyzerFault, and callers may call it after
// EndOfApp on every known application.
func (ap *AccessProcessor) Close() {
	close(ap.queue)
}

func (ap *AccessProcessor) enqueue(r Request) (err error) {
	defer func() {
		// Sending on a closed channel panics; recover turns it into the
		// documented error instead, matching naxos's pattern of
		// converting channel-closed panics into checked errors on the
		// submission path.
		if recover() != nil {
			err = ErrQueueClosed
		}
	}()
	select {
	case ap.queue <- r:
		return nil
	default:
	}
	// Queue is momentarily full: block, but still observe close.
	ap.queue <- r
	return nil
}

// SubmitTask registers a new task for appID and returns its assigned ID
// once the analyser has queued it for dependency analysis. It does not
// wait for the task to run.
func (ap *AccessProcessor) SubmitTask(appID graph.AppID, desc graph.TaskDescription) (graph.TaskID, error) {
	result := make(chan NewTaskResult, 1)
	if err := ap.enqueue(NewTaskRequest{AppID: appID, Desc: desc, Result: result}); err != nil {
		return 0, fmt.Errorf("accessproc: submit task: %w", ErrQueueClosed)
	}
	res, ok := <-result
	if !ok {
		return 0, fmt.Errorf("accessproc: submit task: %w", ErrQueueClosed)
	}
	return res.ID, res.Err
}

// MainAccess performs a synchronous data access from application code
// (not from within a task). It blocks until the analyser processes it or
// ctx is done.
func (ap *AccessProcessor) MainAccess(ctx context.Context, appID graph.AppID, ref graph.DataRef, dir graph.Direction) error {
	done := make(chan Signal, 1)
	if err := ap.enqueue(MainAccessRequest{AppID: appID, Ref: ref, Dir: dir, Done: done}); err != nil {
		return fmt.Errorf("accessproc: main access: %w", ErrQueueClosed)
	}
	return wait(ctx, done)
}

// TaskEnded reports that a dispatched execution of taskID finished. It is
// the callback boundary the dispatcher calls back into, matching
// spec.md §4.4.
func (ap *AccessProcessor) TaskEnded(taskID graph.TaskID, success bool, reason string, exception error) {
	// TaskEnded never blocks its caller (the dispatcher's worker
	// goroutine) on the analyser being available; if the queue is
	// closed the runtime is already shutting down and the notification
	// is simply dropped.
	_ = ap.enqueue(TaskEndedRequest{TaskID: taskID, Success: success, Reason: reason, Exception: exception})
}

// Barrier blocks the caller until every task submitted so far by appID has
// reached a terminal state.
func (ap *AccessProcessor) Barrier(ctx context.Context, appID graph.AppID) error {
	done := make(chan Signal, 1)
	if err := ap.enqueue(BarrierRequest{AppID: appID, Done: done}); err != nil {
		return fmt.Errorf("accessproc: barrier: %w", ErrQueueClosed)
	}
	return wait(ctx, done)
}

// EndOfApp marks appID as having no more tasks to submit and blocks until
// every task it has already submitted reaches a terminal state.
//
// Per the original runtime's EndOfAppRequest, this request type never
// carries a user-domain exception: even if tasks of the application
// failed, EndOfApp returns nil once they are terminal, never an error
// describing them. The analyser counts failures per application in its
// internal analyser.CompletionSummary; that count is not returned by
// this call or exposed by any other AccessProcessor method.
func (ap *AccessProcessor) EndOfApp(ctx context.Context, appID graph.AppID) error {
	done := make(chan Signal, 1)
	if err := ap.enqueue(EndOfAppRequest{AppID: appID, Done: done}); err != nil {
		return fmt.Errorf("accessproc: end of app: %w", ErrQueueClosed)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func wait(ctx context.Context, done chan Signal) error {
	select {
	case sig, ok := <-done:
		if !ok {
			return ErrQueueClosed
		}
		return sig.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
