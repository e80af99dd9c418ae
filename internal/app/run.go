package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/vk/pointyflow/internal/ctxlog"
	"github.com/vk/pointyflow/internal/graphbuilder"
	"github.com/vk/pointyflow/internal/parser"
	"github.com/vk/pointyflow/internal/resultstore"
	"github.com/vk/pointyflow/internal/scheduler"
)

// Run reads the Pointy-Lang program at appConfig.SourcePath, lowers it into
// a task graph, and drives it to completion. The returned error is nil iff
// the run's Outcome.Status is scheduler.Succeeded.
func (a *App) Run(ctx context.Context, appConfig *AppConfig) (*scheduler.Outcome, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	src, err := os.ReadFile(appConfig.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("app: reading %s: %w", appConfig.SourcePath, err)
	}

	tree, err := parser.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("app: parsing %s: %w", appConfig.SourcePath, err)
	}
	logger.Debug("program parsed")

	graph, err := graphbuilder.Build(tree, a.registry)
	if err != nil {
		return nil, fmt.Errorf("app: building task graph: %w", err)
	}
	logger.Info("task graph built", "node_count", len(graph.Nodes), "root_count", len(graph.Roots))

	results := resultstore.New()
	cfg := scheduler.Config{
		Registry:    a.registry,
		Pools:       a.executorPools(),
		ResultStore: results,
		Transport:   a.remoteTransport(),
		Backoff:     a.engineCfg.Backoff.Func(),
		Deadline:    a.deadline(),
	}
	sched := scheduler.New(graph, cfg)

	// runCtx is cancelled once the scheduler returns, win or lose, so the
	// health check server's shutdown goroutine below isn't left waiting on
	// a context that only errgroup.Group cancels on error.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var group errgroup.Group
	if appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(appConfig.HealthcheckPort)
		group.Go(func() error {
			<-runCtx.Done()
			return a.stopHealthcheckServer(context.Background())
		})
	}

	var outcome *scheduler.Outcome
	group.Go(func() error {
		defer cancel()
		o, runErr := sched.Run(runCtx)
		outcome = o
		return runErr
	})

	groupErr := group.Wait()
	if outcome == nil {
		return nil, groupErr
	}

	logger.Info("run finished", "status", outcome.Status, "failed_nodes", outcome.FailedNodes)
	for id, res := range outcome.Results {
		logResult(logger, id, res, outcome.Timings[id])
	}

	// A failed health check shutdown doesn't change the run's own outcome;
	// the scheduler's error, if any, is what callers act on.
	if outcome.Status != scheduler.Succeeded {
		return outcome, fmt.Errorf("app: run did not succeed: %w", groupErr)
	}
	return outcome, nil
}

func logResult(logger *slog.Logger, id string, res resultstore.Result, timing resultstore.Timing) {
	switch {
	case res.Skipped:
		logger.Debug("node result", "node", id, "status", "skipped")
	case res.Err != nil:
		logger.Debug("node result", "node", id, "status", "failed", "error", res.Err, "attempts", timing.Attempts)
	default:
		v, _ := res.Value.ToGo()
		logger.Debug("node result", "node", id, "status", "succeeded", "value", v,
			"attempts", timing.Attempts, "duration", timing.Ended.Sub(timing.Started))
	}
}
