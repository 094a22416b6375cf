package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"
)

// beginRun starts history tracking when a history store is configured.
// Failures are logged and leave the context untouched.
func beginRun(ctx context.Context, command string, cfg *contract.Config, mgr contract.CacheManager) context.Context {
	store := historyStore(mgr)
	if store == nil {
		return ctx
	}
	runID, err := store.BeginRun(command, time.Now(), cfg.Params())
	if err != nil {
		contract.LogWarn("Run history initialization failed", err)
		return ctx
	}
	if runID <= 0 {
		return ctx
	}
	return withRunID(ctx, runID)
}

// recordRankings stores ranked impacts under the run in ctx.
func recordRankings(ctx context.Context, mgr contract.CacheManager, rankings []schema.MetricRanking) {
	store := historyStore(mgr)
	runID, ok := getRunID(ctx)
	if store == nil || !ok {
		return
	}
	for _, r := range rankings {
		if err := store.RecordImpacts(runID, r.Metric, r.Impacts); err != nil {
			logTrackingError("RecordImpacts", r.Metric, err)
		}
	}
}

// endRun finalizes the run in ctx.
func endRun(ctx context.Context, mgr contract.CacheManager, totalImpacts int) {
	store := historyStore(mgr)
	runID, ok := getRunID(ctx)
	if store == nil || !ok {
		return
	}
	if err := store.EndRun(runID, time.Now(), totalImpacts); err != nil {
		contract.LogWarn("Failed to finalize run history", err)
	}
}

func historyStore(mgr contract.CacheManager) contract.HistoryStore {
	if mgr == nil {
		return nil
	}
	return mgr.GetHistoryStore()
}

// logTrackingError logs history errors to stderr without disrupting the run.
func logTrackingError(operation, metric string, err error) {
	contract.LogWarn(fmt.Sprintf("Run history failed for %s on %s", operation, metric), err)
}
