package datainfo

import (
	"testing"

	"github.com/fawad-mazhar/runtimecore/internal/graph"
)

func TestAccess_InReadsCurrentWriter(t *testing.T) {
	p := New()
	ref := graph.FileRef("/tmp/data.bin")

	writeAccess, err := p.Access(ref, graph.DirOut, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.NewVersion(writeAccess.Instance, 1)

	readAccess, err := p.Access(ref, graph.DirIn, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readAccess.Producers) != 1 || readAccess.Producers[0] != graph.TaskID(1) {
		t.Fatalf("expected reader to observe producer task 1, got %v", readAccess.Producers)
	}
}

func TestAccess_PlainValueHasNoInstance(t *testing.T) {
	p := New()
	access, err := p.Access(graph.DataRef{}, graph.DirIn, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if access.Instance != nil {
		t.Fatalf("expected no instance for a ref with HasRef == false")
	}
}

func TestNewVersion_BumpsVersionAndWriter(t *testing.T) {
	p := New()
	ref := graph.IDRef(42)

	access, _ := p.Access(ref, graph.DirOut, 1)
	if access.Instance.Version != 0 {
		t.Fatalf("expected initial version 0, got %d", access.Instance.Version)
	}

	p.NewVersion(access.Instance, 1)
	if access.Instance.Version != 1 {
		t.Fatalf("expected version 1 after NewVersion, got %d", access.Instance.Version)
	}
	if len(access.Instance.CurrentWriters) != 1 || access.Instance.CurrentWriters[0] != graph.TaskID(1) {
		t.Fatalf("expected current writer to be task 1, got %v", access.Instance.CurrentWriters)
	}
}

func TestReleaseTaskReads_FreesTrackedVersions(t *testing.T) {
	p := New()
	ref := graph.IDRef(7)

	writeAccess, _ := p.Access(ref, graph.DirOut, 1)
	p.NewVersion(writeAccess.Instance, 1)

	readAccess, err := p.Access(ref, graph.DirIn, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	readers := readAccess.Instance.readersByVer[readAccess.Version]
	if _, tracked := readers[2]; !tracked {
		t.Fatalf("expected task 2 to be tracked as a reader of version %d", readAccess.Version)
	}

	p.ReleaseTaskReads(2)

	if _, tracked := readAccess.Instance.readersByVer[readAccess.Version][2]; tracked {
		t.Fatalf("expected task 2's read to be released")
	}
}

func TestCloseGroup_BumpsVersionAndJoinsParticipantsAsWriters(t *testing.T) {
	p := New()
	ref := graph.IDRef(1)

	access, err := p.Access(ref, graph.DirConcurrent, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(access.Producers) != 0 {
		t.Fatalf("expected no producers before any prior write, got %v", access.Producers)
	}

	access2, err := p.Access(ref, graph.DirConcurrent, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(access2.Producers) != 0 {
		t.Fatalf("expected sibling participant to see no producer either, got %v", access2.Producers)
	}

	p.CloseGroup(access.Instance)

	next, err := p.Access(ref, graph.DirIn, 3)
	if err != nil {
		t.Fatalf("unexpected error accessing after close_group: %v", err)
	}
	if next.Version != 1 {
		t.Fatalf("expected version bumped to 1 after close_group, got %d", next.Version)
	}
	if len(next.Producers) != 2 {
		t.Fatalf("expected both concurrent participants as joint producers, got %v", next.Producers)
	}
	seen := map[graph.TaskID]bool{}
	for _, id := range next.Producers {
		seen[id] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected producers {1,2}, got %v", next.Producers)
	}
}

func TestAccess_ConcurrentSiblingsNeverAppearAsEachOthersProducer(t *testing.T) {
	p := New()
	ref := graph.IDRef(9)

	first, err := p.Access(ref, graph.DirConcurrent, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Access(ref, graph.DirConcurrent, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Producers) != 0 {
		t.Fatalf("expected first participant to see no producer, got %v", first.Producers)
	}
	if len(second.Producers) != 0 {
		t.Fatalf("expected second participant to see no producer (never its sibling), got %v", second.Producers)
	}
}

func TestAccess_WriteAfterReadDependsOnAllCurrentReaders(t *testing.T) {
	p := New()
	ref := graph.FileRef("/tmp/war.bin")

	// T1(OUT f), T2(IN f), T3(IN f), T4(INOUT f): T4 must depend on T1,
	// T2, and T3 — overwriting the data out from under T2/T3 before they
	// finish reading it would be a write-after-read hazard (spec scenario
	// S1, spec.md §4.2's note right after the per-direction table).
	writeAccess, err := p.Access(ref, graph.DirOut, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.NewVersion(writeAccess.Instance, 1)

	if _, err := p.Access(ref, graph.DirIn, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Access(ref, graph.DirIn, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rewriteAccess, err := p.Access(ref, graph.DirInOut, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rewriteAccess.Producers) != 3 {
		t.Fatalf("expected 3 producers (writer + 2 readers), got %v", rewriteAccess.Producers)
	}
	seen := map[graph.TaskID]bool{}
	for _, id := range rewriteAccess.Producers {
		seen[id] = true
	}
	if !seen[1] || !seen[2] || !seen[3] {
		t.Fatalf("expected producers {1,2,3}, got %v", rewriteAccess.Producers)
	}
}

func TestAccess_NonGroupAccessImplicitlyClosesOpenGroup(t *testing.T) {
	p := New()
	ref := graph.IDRef(3)

	if _, err := p.Access(ref, graph.DirConcurrent, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Access(ref, graph.DirConcurrent, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A plain IN access on the same instance must close the still-open
	// group itself, without a separate CloseGroup call, since AP exposes
	// no close_group request type.
	reader, err := p.Access(ref, graph.DirIn, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reader.Producers) != 2 {
		t.Fatalf("expected implicit close_group to join both participants as producers, got %v", reader.Producers)
	}
}
