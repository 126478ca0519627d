package grpc_control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rank-observer/src/config"
	datasource "rank-observer/src/data_source"
	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// TickRunner is the part of the tracker the control plane drives.
type TickRunner interface {
	RunTick(ctx context.Context) (models.MProcessingMetrics, error)
	Status() []models.MSourceStatus
}

// SourceFactory builds a snapshot source for a new index universe.
type SourceFactory func(models.MSourceConfig) interfaces.ISnapshotSource

// ControlService implements ControlServer
type ControlService struct {
	Config     *config.Config
	ConfigPath string
	Registry   *datasource.SourceRegistry
	Tracker    TickRunner
	NewSource  SourceFactory
	NextRun    func() time.Time
	Logger     *logger.Logger

	mu sync.Mutex // serializes config edits
}

// NewControlService creates a new instance of ControlService
func NewControlService(
	cfg *config.Config,
	cfgPath string,
	registry *datasource.SourceRegistry,
	tracker TickRunner,
	factory SourceFactory,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Config:     cfg,
		ConfigPath: cfgPath,
		Registry:   registry,
		Tracker:    tracker,
		NewSource:  factory,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	sources := make([]interface{}, 0)
	for _, st := range s.Tracker.Status() {
		entry := map[string]interface{}{
			"name":        st.Name,
			"index":       st.Index,
			"tick":        st.Tick,
			"rows":        st.Rows,
			"last_run_id": st.LastRunID,
			"last_error":  st.LastError,
		}
		if !st.LastRun.IsZero() {
			entry["last_run"] = st.LastRun.UTC().Format(time.RFC3339)
		}
		sources = append(sources, entry)
	}

	out := map[string]interface{}{"sources": sources}
	if s.NextRun != nil {
		if next := s.NextRun(); !next.IsZero() {
			out["next_run"] = next.UTC().Format(time.RFC3339)
		}
	}
	return newStruct(out)
}

// -----------------------------------------------------------------------------

// TriggerTick runs a tick now, outside the schedule.
func (s *ControlService) TriggerTick(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	s.Logger.Info("gRPC: manual tick requested")

	metrics, err := s.Tracker.RunTick(ctx)
	out := map[string]interface{}{
		"success":                 err == nil,
		"sources_processed":       metrics.SourcesProcessed,
		"sources_failed":          metrics.SourcesFailed,
		"rows_ranked":             metrics.RowsRanked,
		"processing_time_seconds": metrics.ProcessingTimeSeconds,
	}
	if err != nil {
		out["message"] = err.Error()
	}
	return newStruct(out)
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSources(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	sources := make([]interface{}, 0)
	for _, src := range s.Registry.GetAllSources() {
		sources = append(sources, map[string]interface{}{"name": src.Name(), "index": src.Index()})
	}
	return newStruct(map[string]interface{}{"sources": sources})
}

// -----------------------------------------------------------------------------

// AddSource registers a new index universe and persists it to the config file.
func (s *ControlService) AddSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := req.AsMap()
	name, _ := fields["name"].(string)
	index, _ := fields["index"].(string)
	if name == "" || index == "" {
		return nil, status.Error(codes.InvalidArgument, "name and index are required")
	}
	if err := config.ValidateSourceName(name); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if _, err := s.Registry.GetSource(name); err == nil {
		return nil, status.Errorf(codes.AlreadyExists, "source %s already exists", name)
	}

	sourceCfg := models.MSourceConfig{Name: name, Index: index, Columns: stringList(fields["columns"])}
	if len(sourceCfg.Columns) == 0 {
		sourceCfg.Columns = append([]string(nil), models.DefaultColumns...)
	}

	if err := s.Registry.AddSource(s.NewSource(sourceCfg)); err != nil {
		s.Logger.Error("Failed to add source: %v", err)
		return newStruct(map[string]interface{}{"success": false, "message": fmt.Sprintf("Failed to add source: %v", err)})
	}

	sources := make([]models.MSourceConfig, 0, len(s.Config.DataSource.Sources)+1)
	sources = append(sources, s.Config.DataSource.Sources...)
	s.Config.DataSource.Sources = append(sources, sourceCfg)
	s.persist()

	return newStruct(map[string]interface{}{"success": true, "message": fmt.Sprintf("Added source %s", name)})
}

// -----------------------------------------------------------------------------

func (s *ControlService) RemoveSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, _ := req.AsMap()["name"].(string)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Registry.RemoveSource(name); err != nil {
		return nil, status.Errorf(codes.NotFound, "source %s not found", name)
	}

	kept := make([]models.MSourceConfig, 0, len(s.Config.DataSource.Sources))
	for _, src := range s.Config.DataSource.Sources {
		if src.Name != name {
			kept = append(kept, src)
		}
	}
	s.Config.DataSource.Sources = kept
	s.persist()

	return newStruct(map[string]interface{}{"success": true, "message": fmt.Sprintf("Removed source %s", name)})
}

// -----------------------------------------------------------------------------

// Sources returns a copy of the configured sources, safe to read while
// AddSource and RemoveSource edit the config.
func (s *ControlService) Sources() []models.MSourceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MSourceConfig(nil), s.Config.DataSource.Sources...)
}

// -----------------------------------------------------------------------------

func (s *ControlService) persist() {
	if s.ConfigPath == "" {
		return
	}
	if err := s.Config.Save(s.ConfigPath); err != nil {
		s.Logger.Error("gRPC: failed to save config: %v", err)
	}
}

// -----------------------------------------------------------------------------

// newStruct converts ints to float64 the way structpb expects.
func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(normalize(fields).(map[string]interface{}))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return float64(val)
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
