package accessproc

import (
	"github.com/fawad-mazhar/runtimecore/internal/graph"
)

// Signal is sent on a request's completion channel. Every completion
// channel fires exactly once, mirroring the original runtime's
// single-release semaphore per request.
type Signal struct {
	Err error
}

// Request is the closed sum of everything the analyser goroutine
// consumes from the queue. isRequest is unexported, sealing the interface
// to the concrete types declared in this file, mirroring the original
// runtime's APRequest hierarchy collapsed into a Go sum type instead of a
// class hierarchy. Consumers (internal/analyser) dispatch on it with a
// type switch.
type Request interface {
	isRequest()
}

// NewTaskRequest asks the analyser to register a new task and wire its
// dependency edges.
type NewTaskRequest struct {
	AppID  graph.AppID
	Desc   graph.TaskDescription
	Result chan NewTaskResult
}

func (NewTaskRequest) isRequest() {}

// NewTaskResult is the analyser's reply to a NewTaskRequest: the assigned
// task id, or Err set to a *SubmissionError if the task was rejected
// outright (e.g. the application already called end_of_app).
type NewTaskResult struct {
	ID  graph.TaskID
	Err error
}

// MainAccessRequest is a synchronous, non-task data access performed by
// application (main) code rather than by a task, e.g. reading a result
// file after a barrier.
type MainAccessRequest struct {
	AppID graph.AppID
	Ref   graph.DataRef
	Dir   graph.Direction
	Done  chan Signal
}

func (MainAccessRequest) isRequest() {}

// TaskEndedRequest reports that a previously dispatched task execution
// finished, successfully or not. Exception, when non-nil, carries a
// user-domain TaskException distinct from outright failure.
type TaskEndedRequest struct {
	TaskID    graph.TaskID
	Success   bool
	Reason    string
	Exception error
}

func (TaskEndedRequest) isRequest() {}

// BarrierRequest asks the analyser to notify Done once every task of
// AppID that is still live when the request is handled has reached a
// terminal state. Tasks submitted afterwards, including dependents of
// those tasks, are not waited on.
type BarrierRequest struct {
	AppID graph.AppID
	Done  chan Signal
}

func (BarrierRequest) isRequest() {}

// EndOfAppRequest marks an application as having no more tasks to submit.
// Per the original runtime (EndOfAppRequest.java), it does not support
// carrying an exception: this type has no exception field, and
// AccessProcessor.EndOfApp ignores the Err of the Signal it receives.
type EndOfAppRequest struct {
	AppID graph.AppID
	Done  chan Signal
}

func (EndOfAppRequest) isRequest() {}
