package analyser

import (
	"github.com/fawad-mazhar/runtimecore/internal/graph"
)

// wireParameter applies spec.md §4.2's per-direction dependency rule to
// one parameter of a newly submitted task: it wires a predecessor edge
// onto every producer the data access reports and, for a plain
// OUT/INOUT parameter, bumps the data to a new version credited to this
// task.
//
//   - IN:          reads the current version; depends on its producer(s).
//   - OUT:         creates a new version; depends on the current
//     writer(s) AND on any task still reading that version
//     (write-after-read), since it overwrites the data those readers
//     depend on.
//   - INOUT:       same producer set as OUT (current writer(s) plus
//     current readers) AND creates a new version credited to this task,
//     at submission time, like OUT.
//   - CONCURRENT:  depends on the producer(s) that predate the access
//     group it joins, never on its own group siblings; the version does
//     not advance until the group closes (see internal/datainfo.Access).
//   - COMMUTATIVE: same as CONCURRENT for edge-wiring purposes, except
//     the runtime may reorder peers among themselves — this analyser
//     still serializes them relative to the pre-group producer and makes
//     no attempt at real commutative scheduling (spec.md's Non-goals
//     exclude that).
func (a *Analyser) wireParameter(consumer *graph.Task, p graph.Parameter) error {
	if !p.Ref.HasRef {
		return nil
	}
	access, err := a.dip.Access(p.Ref, p.Direction, consumer.ID)
	if err != nil {
		return err
	}
	if access.Instance == nil {
		return nil
	}
	for _, producer := range access.Producers {
		if producer == consumer.ID {
			continue
		}
		// A producer that already finished has released its dependents;
		// an edge added now would never be cleared from Predecessors.
		if pt, ok := a.graph.Task(producer); ok && pt.State == graph.TaskFinished {
			continue
		}
		if err := a.graph.AddEdge(producer, consumer.ID); err != nil {
			return err
		}
	}
	switch p.Direction {
	case graph.DirOut, graph.DirInOut:
		a.dip.NewVersion(access.Instance, consumer.ID)
	}
	return nil
}

// wireEdges wires every parameter dependency for a newly submitted task,
// plus its enforcing task if one was set by the scheduler, before
// checking whether the task is immediately ready.
//
// The enforcing edge is skipped when the enforcing task is unknown or
// already terminal: an unknown id has nothing to depend on, and an
// enforcing task that already finished or failed before this task was
// submitted can never fire the ReleaseDependents/FailDependents pass
// that would otherwise clear it from Predecessors, which would hang the
// task in TO_ANALYSE forever (spec.md P4).
func (a *Analyser) wireEdges(t *graph.Task) error {
	if t.EnforcingTask != nil {
		if et, ok := a.graph.Task(*t.EnforcingTask); ok && et.State != graph.TaskFinished && et.State != graph.TaskFailed {
			if err := a.graph.AddEdge(*t.EnforcingTask, t.ID); err != nil {
				return err
			}
		}
	}
	for _, p := range t.Description.Parameters {
		if err := a.wireParameter(t, p); err != nil {
			return err
		}
	}
	return nil
}
