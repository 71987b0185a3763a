// Package graph holds the structural task-dependency model: tasks,
// parameters, applications and the edges between them. It owns no
// behavior beyond graph bookkeeping — state transitions and dependency
// discovery live in internal/analyser.
package graph

import "sync/atomic"

// TaskID is a globally unique, densely allocated task identifier. IDs are
// handed out starting at 1 by an idAllocator, mirroring the original
// runtime's AtomicInteger-backed counter.
type TaskID int64

// AppID identifies an application session. Unlike TaskID it is opaque —
// callers may use any comparable value; the runtime never inspects it.
type AppID string

// TaskState is the task lifecycle state machine.
type TaskState int

const (
	TaskToAnalyse TaskState = iota
	TaskToExecute
	TaskFinished
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskToAnalyse:
		return "TO_ANALYSE"
	case TaskToExecute:
		return "TO_EXECUTE"
	case TaskFinished:
		return "FINISHED"
	case TaskFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Direction is a parameter's access mode, driving both dependency-edge
// wiring and data-version bumping in the analyser.
type Direction int

const (
	DirIn Direction = iota
	DirOut
	DirInOut
	DirConcurrent
	DirCommutative
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "IN"
	case DirOut:
		return "OUT"
	case DirInOut:
		return "INOUT"
	case DirConcurrent:
		return "CONCURRENT"
	case DirCommutative:
		return "COMMUTATIVE"
	default:
		return "UNKNOWN"
	}
}

// ParamType classifies what a Parameter refers to.
type ParamType int

const (
	ParamPrimitive ParamType = iota
	ParamFile
	ParamObject
	ParamStream
	ParamCollection
)

// Parameter is one entry of a task's parameter vector.
type Parameter struct {
	Type      ParamType
	Direction Direction
	// Ref identifies the data this parameter touches; the zero DataRef
	// (HasRef == false) marks a plain value with no data dependency, and
	// the analyser skips edge wiring for it.
	Ref DataRef
}

// DataRef names a piece of data by canonical file path or by an opaque
// numeric id allocated by the data registry on first observation. It is
// declared here, not in internal/datainfo, so both graph and datainfo can
// depend on it without a cycle.
type DataRef struct {
	FilePath string
	DataID   int64
	IsFile   bool
	HasRef   bool
}

// FileRef builds a DataRef identifying data by canonical path.
func FileRef(path string) DataRef {
	return DataRef{FilePath: path, IsFile: true, HasRef: true}
}

// IDRef builds a DataRef identifying data by allocated numeric id.
func IDRef(id int64) DataRef {
	return DataRef{DataID: id, HasRef: true}
}

// TaskDescription is the immutable definition of what a task invokes,
// mirroring the original runtime's TaskDescription: method identity plus
// scheduling flags.
type TaskDescription struct {
	MethodName  string
	Parameters  []Parameter
	Prioritary  bool
	Replicated  bool
	Distributed bool
	HasTarget   bool
	NumNodes    int

	// EnforcingTask, if set, names a task that must finish before this
	// one is dispatched regardless of data dependencies — a scheduler
	// hint wired unconditionally before data edges (spec.md §4.2).
	EnforcingTask *TaskID
}

// Task is one node of the dependency graph.
type Task struct {
	ID          TaskID
	AppID       AppID
	Description TaskDescription
	State       TaskState

	Predecessors []TaskID
	Successors   []TaskID

	// EnforcingTask, if set, must finish before this task is dispatched
	// regardless of data dependencies (scheduler hint).
	EnforcingTask *TaskID

	// PendingExecutions counts outstanding replica completions; a
	// replicated task reaches TaskFinished only once it drops to zero
	// with no failure recorded. Non-replicated tasks start at 1.
	PendingExecutions int
	Failed            bool

	Executions []ExecutionHandle
}

// ExecutionHandle is an opaque reference into the dispatcher, assigned
// when a task is handed off; the core never interprets its contents.
type ExecutionHandle struct {
	ID string
}

// Less orders tasks by ascending ID — mirrors the original
// Task.compareTo. dispatch.Pool does not call it: its queues are FIFO in
// dispatch order.
func (t *Task) Less(other *Task) bool {
	return t.ID < other.ID
}

// IsFree reports whether every outstanding replica of this task has
// completed, mirroring the original isFree()/executionCount pair.
func (t *Task) IsFree() bool {
	return t.PendingExecutions == 0
}

// idAllocator hands out monotonically increasing TaskIDs starting at 1.
type idAllocator struct {
	counter atomic.Int64
}

func (a *idAllocator) next() TaskID {
	return TaskID(a.counter.Add(1))
}
