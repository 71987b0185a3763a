// cmd/runtimecore/main.go wires an AccessProcessor, TaskAnalyser,
// DataInfoProvider and a reference dispatch.Pool together and runs a
// tiny demonstration application against them, adapted from the
// teacher's cmd/orchestrator/main.go signal-handling and graceful
// shutdown sequence.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fawad-mazhar/runtimecore/internal/accessproc"
	"github.com/fawad-mazhar/runtimecore/internal/analyser"
	"github.com/fawad-mazhar/runtimecore/internal/datainfo"
	"github.com/fawad-mazhar/runtimecore/internal/dispatch"
	"github.com/fawad-mazhar/runtimecore/internal/graph"
	"github.com/fawad-mazhar/runtimecore/internal/runtimeconfig"
)

func demoTask(ctx context.Context, t *graph.Task) error {
	log.Printf("executing task %d (%s)", t.ID, t.Description.MethodName)
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func main() {
	cfg, err := runtimeconfig.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	registry := dispatch.NewRegistry()
	for _, name := range []string{"generate", "transform", "reduce"} {
		if err := registry.Register(name, demoTask); err != nil {
			log.Fatalf("failed to register task function %s: %v", name, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ap := accessproc.New(cfg.Queue.Capacity)
	dip := datainfo.New()
	g := graph.New()

	pool := dispatch.NewPool(ctx, cfg.Dispatcher.Workers, cfg.Dispatcher.QueueDepth, registry, func(id graph.TaskID, outcome dispatch.Outcome) {
		ap.TaskEnded(id, outcome.Success, outcome.Reason, nil)
	})
	defer pool.Stop()

	an := analyser.New(ap, dip, pool, g)
	go an.Run(ctx)

	appID := graph.AppID("demo-app")
	fileRef := graph.FileRef("/tmp/runtimecore-demo.dat")

	genID, err := ap.SubmitTask(appID, graph.TaskDescription{
		MethodName: "generate",
		Parameters: []graph.Parameter{{Type: graph.ParamFile, Direction: graph.DirOut, Ref: fileRef}},
	})
	if err != nil {
		log.Fatalf("submit generate: %v", err)
	}
	log.Printf("submitted generate as task %d", genID)

	xformID, err := ap.SubmitTask(appID, graph.TaskDescription{
		MethodName: "transform",
		Parameters: []graph.Parameter{{Type: graph.ParamFile, Direction: graph.DirInOut, Ref: fileRef}},
	})
	if err != nil {
		log.Fatalf("submit transform: %v", err)
	}
	log.Printf("submitted transform as task %d", xformID)

	reduceID, err := ap.SubmitTask(appID, graph.TaskDescription{
		MethodName: "reduce",
		Parameters: []graph.Parameter{{Type: graph.ParamFile, Direction: graph.DirIn, Ref: fileRef}},
	})
	if err != nil {
		log.Fatalf("submit reduce: %v", err)
	}
	log.Printf("submitted reduce as task %d", reduceID)

	barrierCtx, barrierCancel := context.WithTimeout(ctx, time.Duration(cfg.Timeouts.BarrierSeconds)*time.Second)
	defer barrierCancel()
	if err := ap.Barrier(barrierCtx, appID); err != nil {
		log.Printf("barrier returned: %v", err)
	} else {
		log.Println("barrier satisfied: all submitted tasks reached a terminal state")
	}

	endCtx, endCancel := context.WithTimeout(ctx, time.Duration(cfg.Timeouts.EndOfAppSeconds)*time.Second)
	defer endCancel()
	if err := ap.EndOfApp(endCtx, appID); err != nil {
		log.Printf("end of app returned: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Printf("received shutdown signal: %v", sig)
	case <-time.After(200 * time.Millisecond):
	}

	log.Println("runtimecore shutdown complete")
}
