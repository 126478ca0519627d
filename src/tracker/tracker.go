package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	datasource "rank-observer/src/data_source"
	"rank-observer/src/helpers"
	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/models"
	"rank-observer/src/ranking"

	"github.com/google/uuid"
)

// Sinks receive every enriched table. Any of them may be nil.
type Sinks struct {
	Display   interfaces.IDataExchanger
	Database  interfaces.IDatabase
	Exporter  interfaces.IExporter
	Publisher interfaces.IPublisher
}

// pipeline is the per-source state: its own processor and last outcome.
type pipeline struct {
	source    interfaces.ISnapshotSource
	processor *ranking.Processor
	status    models.MSourceStatus
	latest    *models.MEnrichedTable
}

// -----------------------------------------------------------------------------

// Tracker drives fetch, rank and fan-out for every registered source.
type Tracker struct {
	Config       *models.MConfig
	Registry     *datasource.SourceRegistry
	Sinks        Sinks
	ErrorHandler *helpers.ErrorHandler
	Logger       *logger.Logger
	NewRunID     func() string
	Now          func() time.Time

	pipelines map[string]*pipeline
	tickMu    sync.Mutex   // one tick at a time
	stateMu   sync.RWMutex // guards pipelines for readers
}

// -----------------------------------------------------------------------------

func NewTracker(cfg *models.MConfig, registry *datasource.SourceRegistry, sinks Sinks, log *logger.Logger) *Tracker {
	return &Tracker{
		Config:       cfg,
		Registry:     registry,
		Sinks:        sinks,
		ErrorHandler: helpers.NewErrorHandler(log),
		Logger:       log,
		NewRunID:     uuid.NewString,
		Now:          time.Now,
		pipelines:    make(map[string]*pipeline),
	}
}

// -----------------------------------------------------------------------------

// RunTick processes one snapshot of every source, sequentially.
// It fails only when every source failed.
func (t *Tracker) RunTick(ctx context.Context) (models.MProcessingMetrics, error) {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	start := t.Now()
	var metrics models.MProcessingMetrics
	var errs []error

	sources := t.Registry.GetAllSources()
	t.prune(sources)

	for _, src := range sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		rows, err := t.runSource(ctx, t.pipelineFor(src))
		if err != nil {
			metrics.SourcesFailed++
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		metrics.SourcesProcessed++
		metrics.RowsRanked += rows
	}

	metrics.ProcessingTimeSeconds = t.Now().Sub(start).Seconds()
	if t.Sinks.Display != nil {
		t.Sinks.Display.UpdateMetrics(metrics)
	}
	if t.Sinks.Database != nil {
		if err := t.Sinks.Database.CleanupOldData(); err != nil {
			t.Logger.Warning("Archive cleanup failed: %v", err)
		}
	}

	if metrics.SourcesProcessed == 0 && len(errs) > 0 {
		err := errors.Join(errs...)
		if t.ErrorHandler.Handle(err, "tick") {
			t.Logger.Error("Every source keeps failing, check the session and network settings")
		}
		return metrics, err
	}

	t.ErrorHandler.ResetErrorCount()
	t.Logger.Info("Tick done: %d sources, %d rows in %.3fs", metrics.SourcesProcessed, metrics.RowsRanked, metrics.ProcessingTimeSeconds)
	return metrics, nil
}

// -----------------------------------------------------------------------------

func (t *Tracker) pipelineFor(src interfaces.ISnapshotSource) *pipeline {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	p, ok := t.pipelines[src.Name()]
	if !ok {
		p = &pipeline{
			source:    src,
			processor: ranking.NewProcessor(t.Logger.Named(src.Name())),
			status:    models.MSourceStatus{Name: src.Name(), Index: src.Index()},
		}
		t.pipelines[src.Name()] = p
	}
	return p
}

// -----------------------------------------------------------------------------

// prune forgets pipelines of sources no longer registered, history included.
func (t *Tracker) prune(sources []interfaces.ISnapshotSource) {
	live := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		live[src.Name()] = struct{}{}
	}

	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	for name := range t.pipelines {
		if _, ok := live[name]; !ok {
			delete(t.pipelines, name)
			t.Logger.Info("[%s] Source removed, rank history dropped", name)
		}
	}
}

// -----------------------------------------------------------------------------

func (t *Tracker) runSource(ctx context.Context, p *pipeline) (int, error) {
	name := p.source.Name()

	snapshot, err := p.source.FetchSnapshot(ctx)
	if err != nil {
		if !t.Config.DataSource.ProcessEmptyOnFailure {
			t.recordFailure(p, err)
			return 0, err
		}
		// An empty table always fails validation, so the tick is still reported
		t.Logger.Warning("[%s] Fetch failed, processing an empty snapshot: %v", name, err)
		snapshot = &models.MSnapshot{Source: name, FetchedAt: t.Now()}
	}
	if snapshot.Source == "" {
		snapshot.Source = name
	}

	table, err := p.processor.Process(snapshot)
	if err != nil {
		t.recordFailure(p, err)
		return 0, err
	}
	table.RunID = t.NewRunID()

	t.stateMu.Lock()
	p.latest = table.Clone()
	p.status.Tick = table.Tick
	p.status.Rows = len(table.Rows)
	p.status.LastRunID = table.RunID
	p.status.LastRun = t.Now()
	p.status.LastError = ""
	t.stateMu.Unlock()

	t.dispatch(ctx, table)
	return len(table.Rows), nil
}

// -----------------------------------------------------------------------------

func (t *Tracker) recordFailure(p *pipeline, err error) {
	t.stateMu.Lock()
	p.status.LastError = err.Error()
	t.stateMu.Unlock()
	t.Logger.Error("[%s] Tick failed: %v", p.source.Name(), err)
}

// -----------------------------------------------------------------------------

// dispatch fans a table out to the sinks. Sink failures never undo processing.
func (t *Tracker) dispatch(ctx context.Context, table *models.MEnrichedTable) {
	if d := t.Sinks.Display; d != nil {
		d.UpdateTable(table.Clone())
		d.Broadcast(table.Clone())
	}

	if db := t.Sinks.Database; db != nil {
		if err := db.SaveEnrichedTable(table); err != nil {
			t.Logger.Error("[%s] Archive failed: %v", table.Source, err)
		}
	}

	if e := t.Sinks.Exporter; e != nil {
		if _, err := e.Export(table); err != nil {
			t.Logger.Error("[%s] Export failed: %v", table.Source, err)
		}
	}

	if pub := t.Sinks.Publisher; pub != nil {
		if err := pub.Publish(ctx, table); err != nil {
			t.Logger.Error("[%s] Publish failed: %v", table.Source, err)
		}
	}
}

// -----------------------------------------------------------------------------

// Latest returns a copy of the last enriched table of a source.
func (t *Tracker) Latest(source string) (*models.MEnrichedTable, bool) {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()

	p, ok := t.pipelines[source]
	if !ok || p.latest == nil {
		return nil, false
	}
	return p.latest.Clone(), true
}

// -----------------------------------------------------------------------------

// Status lists every source seen so far, ordered by name.
func (t *Tracker) Status() []models.MSourceStatus {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()

	out := make([]models.MSourceStatus, 0, len(t.pipelines))
	for _, p := range t.pipelines {
		out = append(out, p.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
