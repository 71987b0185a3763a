package graph

import "testing"

func TestNewTask_AssignsMonotonicIDsStartingAtOne(t *testing.T) {
	g := New()
	t1 := g.NewTask("app", TaskDescription{MethodName: "a"})
	t2 := g.NewTask("app", TaskDescription{MethodName: "b"})

	if t1.ID != 1 {
		t.Fatalf("expected first task id 1, got %d", t1.ID)
	}
	if t2.ID != 2 {
		t.Fatalf("expected second task id 2, got %d", t2.ID)
	}
}

func TestAddEdge_RejectsSelfDependency(t *testing.T) {
	g := New()
	t1 := g.NewTask("app", TaskDescription{MethodName: "a"})

	if err := g.AddEdge(t1.ID, t1.ID); err == nil {
		t.Fatalf("expected error wiring a task to itself")
	}
}

func TestAddEdge_WiresPredecessorsAndSuccessors(t *testing.T) {
	g := New()
	producer := g.NewTask("app", TaskDescription{MethodName: "produce"})
	consumer := g.NewTask("app", TaskDescription{MethodName: "consume"})

	if err := g.AddEdge(producer.ID, consumer.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(consumer.Predecessors) != 1 || consumer.Predecessors[0] != producer.ID {
		t.Fatalf("expected consumer to have producer as predecessor, got %v", consumer.Predecessors)
	}
	if len(producer.Successors) != 1 || producer.Successors[0] != consumer.ID {
		t.Fatalf("expected producer to have consumer as successor, got %v", producer.Successors)
	}
}

func TestReleaseDependents_ReturnsOnlyTasksWithNoRemainingPredecessors(t *testing.T) {
	g := New()
	producer := g.NewTask("app", TaskDescription{MethodName: "produce"})
	soleDependent := g.NewTask("app", TaskDescription{MethodName: "sole"})
	joinDependent := g.NewTask("app", TaskDescription{MethodName: "join"})
	otherProducer := g.NewTask("app", TaskDescription{MethodName: "other"})

	if err := g.AddEdge(producer.ID, soleDependent.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(producer.ID, joinDependent.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(otherProducer.ID, joinDependent.ID); err != nil {
		t.Fatal(err)
	}

	ready := g.ReleaseDependents(producer.ID)

	if len(ready) != 1 || ready[0] != soleDependent.ID {
		t.Fatalf("expected only soleDependent to be released, got %v", ready)
	}
	if len(joinDependent.Predecessors) != 1 || joinDependent.Predecessors[0] != otherProducer.ID {
		t.Fatalf("expected joinDependent to still depend on otherProducer, got %v", joinDependent.Predecessors)
	}
}

func TestFailDependents_PropagatesTransitively(t *testing.T) {
	g := New()
	a := g.NewTask("app", TaskDescription{MethodName: "a"})
	b := g.NewTask("app", TaskDescription{MethodName: "b"})
	c := g.NewTask("app", TaskDescription{MethodName: "c"})
	independent := g.NewTask("app", TaskDescription{MethodName: "independent"})

	if err := g.AddEdge(a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(b.ID, c.ID); err != nil {
		t.Fatal(err)
	}

	failed := g.FailDependents(a.ID)

	failedSet := map[TaskID]bool{}
	for _, id := range failed {
		failedSet[id] = true
	}
	if !failedSet[b.ID] || !failedSet[c.ID] {
		t.Fatalf("expected b and c to cascade-fail, got %v", failed)
	}
	if failedSet[independent.ID] {
		t.Fatalf("independent task must not be failed")
	}
	if b.State != TaskFailed || c.State != TaskFailed {
		t.Fatalf("expected b and c states to be FAILED, got %s and %s", b.State, c.State)
	}
}

func TestRemoveLiveTask_ReportsCompleteOnlyAfterNoMoreTasks(t *testing.T) {
	g := New()
	task := g.NewTask("app", TaskDescription{MethodName: "a"})

	if complete := g.RemoveLiveTask(task.ID); complete {
		t.Fatalf("expected incomplete: NoMoreTasks was never set")
	}

	app := g.Application("app")
	app.NoMoreTasks = true

	task2 := g.NewTask("app", TaskDescription{MethodName: "b"})
	if complete := g.RemoveLiveTask(task2.ID); !complete {
		t.Fatalf("expected complete once NoMoreTasks is set and live tasks empty")
	}
}

func TestSnapshot_CarriesSchedulingFlags(t *testing.T) {
	g := New()
	task := g.NewTask("app", TaskDescription{MethodName: "a", Prioritary: true, Replicated: true, HasTarget: true})

	snaps := g.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snaps))
	}
	s := snaps[0]
	if s.ID != task.ID || !s.Prioritary || !s.Replicated || !s.HasTarget {
		t.Fatalf("snapshot did not carry expected flags: %+v", s)
	}
}
