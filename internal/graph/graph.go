package graph

import "fmt"

// Graph owns tasks and the edges between them. It is touched only from
// the analyser's single goroutine (see internal/analyser), so it carries
// no locking of its own — mirroring the original runtime's assumption
// that TaskAnalyser is the sole mutator of the dependency graph.
type Graph struct {
	ids   idAllocator
	tasks map[TaskID]*Task
	apps  map[AppID]*Application
}

// Application tracks the live tasks belonging to one application session,
// used to answer barrier and end-of-application queries.
type Application struct {
	ID          AppID
	LiveTasks   map[TaskID]struct{}
	NoMoreTasks bool
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		tasks: make(map[TaskID]*Task),
		apps:  make(map[AppID]*Application),
	}
}

// NewTask allocates a new Task, assigns it the next monotonic ID, and
// registers it against its application. It does not wire any edges —
// that is the analyser's job once dependencies are known.
func (g *Graph) NewTask(appID AppID, desc TaskDescription) *Task {
	t := &Task{
		ID:                g.ids.next(),
		AppID:             appID,
		Description:       desc,
		State:             TaskToAnalyse,
		PendingExecutions: 1,
		EnforcingTask:     desc.EnforcingTask,
	}
	if desc.Replicated && desc.NumNodes > 1 {
		t.PendingExecutions = desc.NumNodes
	}
	g.tasks[t.ID] = t

	app, ok := g.apps[appID]
	if !ok {
		app = &Application{ID: appID, LiveTasks: make(map[TaskID]struct{})}
		g.apps[appID] = app
	}
	app.LiveTasks[t.ID] = struct{}{}
	return t
}

// Task looks up a task by id.
func (g *Graph) Task(id TaskID) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Application looks up (or lazily creates) the bookkeeping record for an
// application id.
func (g *Graph) Application(id AppID) *Application {
	app, ok := g.apps[id]
	if !ok {
		app = &Application{ID: id, LiveTasks: make(map[TaskID]struct{})}
		g.apps[id] = app
	}
	return app
}

// AddEdge records that consumer depends on producer, mirroring the
// original Task.addDataDependency: producer gains consumer as a
// successor, consumer gains producer as a predecessor. A task never
// depends on itself.
func (g *Graph) AddEdge(producer, consumer TaskID) error {
	if producer == consumer {
		return fmt.Errorf("graph: task %d cannot depend on itself", producer)
	}
	p, ok := g.tasks[producer]
	if !ok {
		return fmt.Errorf("graph: unknown producer task %d", producer)
	}
	c, ok := g.tasks[consumer]
	if !ok {
		return fmt.Errorf("graph: unknown consumer task %d", consumer)
	}
	p.Successors = append(p.Successors, consumer)
	c.Predecessors = append(c.Predecessors, producer)
	return nil
}

// ReleaseDependents removes t from every successor's predecessor list and
// clears t's own successor list, mirroring the original
// Task.releaseDataDependents. It returns the successors that are now
// ready to dispatch per IsReady.
func (g *Graph) ReleaseDependents(id TaskID) []TaskID {
	t, ok := g.tasks[id]
	if !ok {
		return nil
	}
	var readied []TaskID
	for _, succID := range t.Successors {
		succ, ok := g.tasks[succID]
		if !ok {
			continue
		}
		succ.Predecessors = removeTaskID(succ.Predecessors, id)
		if g.IsReady(succ) {
			readied = append(readied, succID)
		}
	}
	t.Successors = nil
	return readied
}

// IsReady reports whether t has no unresolved dependency: an empty
// Predecessors list, and — independently of that bookkeeping — no
// enforcing task that is still outstanding. The two are checked
// separately rather than folded into one because an enforcing task that
// was already terminal at submission time never gets an edge in the
// first place (see analyser.wireEdges), so Predecessors alone cannot be
// trusted to reflect it.
func (g *Graph) IsReady(t *Task) bool {
	if len(t.Predecessors) != 0 {
		return false
	}
	if t.EnforcingTask == nil {
		return true
	}
	et, ok := g.tasks[*t.EnforcingTask]
	if !ok {
		return true
	}
	return et.State == TaskFinished || et.State == TaskFailed
}

// FailDependents transitions every direct and transitive successor of a
// failed task to TaskFailed, without dispatching them, mirroring the
// spec's cascading-failure semantics. It returns the set of tasks it
// failed so the caller can notify their applications.
func (g *Graph) FailDependents(id TaskID) []TaskID {
	var failed []TaskID
	queue := []TaskID{id}
	seen := map[TaskID]struct{}{id: {}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		t, ok := g.tasks[cur]
		if !ok {
			continue
		}
		for _, succID := range t.Successors {
			if _, dup := seen[succID]; dup {
				continue
			}
			seen[succID] = struct{}{}
			succ, ok := g.tasks[succID]
			if !ok {
				continue
			}
			succ.State = TaskFailed
			succ.Failed = true
			failed = append(failed, succID)
			queue = append(queue, succID)
		}
		t.Successors = nil
	}
	return failed
}

// RemoveLiveTask drops a task from its application's live set, returning
// true if the application has no more live tasks and has already been
// told no more will be submitted (i.e. it is complete).
func (g *Graph) RemoveLiveTask(id TaskID) (complete bool) {
	t, ok := g.tasks[id]
	if !ok {
		return false
	}
	app, ok := g.apps[t.AppID]
	if !ok {
		return false
	}
	delete(app.LiveTasks, id)
	return app.NoMoreTasks && len(app.LiveTasks) == 0
}

func removeTaskID(ids []TaskID, target TaskID) []TaskID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// TaskSnapshot is an external, read-only view of one task, exposed via
// Graph.Snapshot for observability. It carries the scheduling flags an
// external renderer would need (replicated/service/etc.) without this
// module owning any rendering itself.
type TaskSnapshot struct {
	ID           TaskID
	AppID        AppID
	State        TaskState
	Predecessors []TaskID
	Successors   []TaskID
	Prioritary   bool
	Replicated   bool
	HasTarget    bool
}

// Snapshot returns a point-in-time view of every task currently known to
// the graph. Callers must not mutate the returned slice's backing tasks.
func (g *Graph) Snapshot() []TaskSnapshot {
	out := make([]TaskSnapshot, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, TaskSnapshot{
			ID:           t.ID,
			AppID:        t.AppID,
			State:        t.State,
			Predecessors: append([]TaskID(nil), t.Predecessors...),
			Successors:   append([]TaskID(nil), t.Successors...),
			Prioritary:   t.Description.Prioritary,
			Replicated:   t.Description.Replicated,
			HasTarget:    t.Description.HasTarget,
		})
	}
	return out
}
