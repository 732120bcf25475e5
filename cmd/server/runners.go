package main

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/archive"
	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/ingest"
	"github.com/aristath/sentinel/internal/jobs"
	"github.com/aristath/sentinel/internal/live"
	"github.com/aristath/sentinel/internal/queue"
	"github.com/aristath/sentinel/internal/tuning"
)

// decodePayload round-trips a job's map[string]interface{} payload into a
// concrete request type via its JSON tags, the same tags the HTTP layer
// used to build the payload when it submitted the job.
func decodePayload(payload map[string]interface{}, dst interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errkind.Wrap(errkind.Invalid, err, "failed to marshal job payload")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errkind.Wrap(errkind.Invalid, err, "failed to decode job payload")
	}
	return nil
}

type ingestPayload struct {
	Path    string `json:"path"`
	TraceID string `json:"trace_id"`
}

type technicalsPayload struct {
	Universe    []string `json:"universe"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	ShortWindow int      `json:"short_window"`
	LongWindow  int      `json:"long_window"`
	TraceID     string   `json:"trace_id"`
}

type backtestPayload struct {
	StrategyID     string                 `json:"strategy_id"`
	StrategyName   string                 `json:"strategy_name"`
	SourceCode     string                 `json:"source_code"`
	Universe       []string               `json:"universe"`
	StartDate      string                 `json:"start_date"`
	EndDate        string                 `json:"end_date"`
	InitialCapital float64                `json:"initial_capital"`
	TimeoutSeconds float64                `json:"timeout_seconds"`
	MemoryMB       int64                  `json:"memory_mb"`
	CPUSeconds     int64                  `json:"cpu_seconds"`
	TuningParams   map[string]interface{} `json:"tuning_params"`
}

func (p backtestPayload) toRequest() backtest.Request {
	return backtest.Request{
		StrategyID: p.StrategyID, StrategyName: p.StrategyName, SourceCode: p.SourceCode,
		Universe: p.Universe, StartDate: p.StartDate, EndDate: p.EndDate,
		InitialCapital: p.InitialCapital, TimeoutSeconds: p.TimeoutSeconds,
		MemoryMB: p.MemoryMB, CPUSeconds: p.CPUSeconds, TuningParams: p.TuningParams,
	}
}

type tuningPayload struct {
	StrategyID     string                 `json:"strategy_id"`
	StrategyName   string                 `json:"strategy_name"`
	SourceCode     string                 `json:"source_code"`
	Universe       []string               `json:"universe"`
	StartDate      string                 `json:"start_date"`
	EndDate        string                 `json:"end_date"`
	InitialCapital float64                `json:"initial_capital"`
	TimeoutSeconds float64                `json:"timeout_seconds"`
	MemoryMB       int64                  `json:"memory_mb"`
	CPUSeconds     int64                  `json:"cpu_seconds"`
	SearchSpace    map[string]interface{} `json:"search_space"`
	Objective      map[string]interface{} `json:"objective"`
	MaxTrials      int                    `json:"max_trials"`
	MaxLayers      int                    `json:"max_layers"`
	KeepTop        int                    `json:"keep_top"`
	MaxTrialsPerLayer int                 `json:"max_trials_per_layer"`
	Constraints    tuning.Constraints     `json:"constraints"`
	RandomSeed     *int64                 `json:"random_seed"`
	OnlyPlan       bool                   `json:"only_plan"`
}

func (p tuningPayload) toRequest() tuning.Request {
	out := tuning.Request{
		StrategyID: p.StrategyID, StrategyName: p.StrategyName, SourceCode: p.SourceCode,
		Universe: p.Universe, StartDate: p.StartDate, EndDate: p.EndDate,
		InitialCapital: p.InitialCapital, TimeoutSeconds: p.TimeoutSeconds,
		MemoryMB: p.MemoryMB, CPUSeconds: p.CPUSeconds,
		SearchSpace: p.SearchSpace, Objective: p.Objective,
		MaxTrials: p.MaxTrials, MaxLayers: p.MaxLayers, KeepTop: p.KeepTop,
		MaxTrialsPerLayer: p.MaxTrialsPerLayer, Constraints: p.Constraints, OnlyPlan: p.OnlyPlan,
	}
	if p.RandomSeed != nil {
		out.RandomSeed = *p.RandomSeed
		out.HasRandomSeed = true
	}
	return out
}

type liveSnapshotPayload struct {
	StrategyID     string  `json:"strategy_id"`
	LookbackDays   int     `json:"lookback_days"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
	MemoryMB       int64   `json:"memory_mb"`
	CPUSeconds     int64   `json:"cpu_seconds"`
}

type archivePayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Dir  string `json:"dir"`
}

// registerRunners binds every queue.JobType the job manager dispatches to a
// Runner that decodes the job's payload and invokes the matching domain
// engine, the same call the HTTP layer makes for the synchronous path.
func registerRunners(
	manager *jobs.Manager,
	ingestImporter *ingest.Importer,
	backtestEngine *backtest.Engine,
	tuningEngine *tuning.Engine,
	liveEngine *live.Engine,
	archiver *archive.Archiver,
	log zerolog.Logger,
) {
	manager.RegisterRunner(queue.JobTypeIngestOHLCV, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p ingestPayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		return ingestImporter.ImportOHLCVFile(p.Path, p.TraceID)
	})

	manager.RegisterRunner(queue.JobTypeIngestFundamentals, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p ingestPayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		return ingestImporter.ImportFundamentalsFile(p.Path, p.TraceID)
	})

	manager.RegisterRunner(queue.JobTypeIngestCorporateActions, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p ingestPayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		return ingestImporter.ImportCorporateActionsFile(p.Path, p.TraceID)
	})

	manager.RegisterRunner(queue.JobTypeIngestRatings, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p ingestPayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		return ingestImporter.ImportRatingsFile(p.Path, p.TraceID)
	})

	manager.RegisterRunner(queue.JobTypeIngestTechnicals, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p technicalsPayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		return ingestImporter.BackfillTechnicals(p.Universe, p.StartDate, p.EndDate, p.ShortWindow, p.LongWindow, p.TraceID)
	})

	manager.RegisterRunner(queue.JobTypeCodeStrategyBacktest, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p backtestPayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		result, err := backtestEngine.Run(ctx, p.toRequest())
		if err != nil {
			return nil, err
		}
		maybeArchive(ctx, archiver, "code-backtests", result.RunID, result.Artifacts.EquityCurvePath, log)
		return result, nil
	})

	manager.RegisterRunner(queue.JobTypeTuningRun, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p tuningPayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		return tuningEngine.Run(ctx, p.toRequest())
	})

	manager.RegisterRunner(queue.JobTypeLiveSnapshotRefresh, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p liveSnapshotPayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		return liveEngine.BuildSnapshot(ctx, live.Request{
			StrategyID: p.StrategyID, LookbackDays: p.LookbackDays,
			TimeoutSeconds: p.TimeoutSeconds, MemoryMB: p.MemoryMB, CPUSeconds: p.CPUSeconds,
		})
	})

	manager.RegisterRunner(queue.JobTypeArtifactArchive, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var p archivePayload
		if err := decodePayload(job.Payload, &p); err != nil {
			return nil, err
		}
		return archiver.ArchiveRun(ctx, p.Kind, p.ID, p.Dir)
	})
}

// maybeArchive runs a best-effort archive pass inline for a just-completed
// backtest run; archival failures never fail the backtest itself.
func maybeArchive(ctx context.Context, archiver *archive.Archiver, kind, runID, artifactPath string, log zerolog.Logger) {
	if archiver == nil || !archiver.Enabled() || artifactPath == "" {
		return
	}
	dir := filepath.Dir(artifactPath)
	if _, err := archiver.ArchiveRun(ctx, kind, runID, dir); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("post-run archival failed")
	}
}
