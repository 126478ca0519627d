package grpc_control

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"rank-observer/src/config"
	datasource "rank-observer/src/data_source"
	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubSource struct{ cfg models.MSourceConfig }

func (s *stubSource) Name() string  { return s.cfg.Name }
func (s *stubSource) Index() string { return s.cfg.Index }
func (s *stubSource) FetchSnapshot(context.Context) (*models.MSnapshot, error) {
	return nil, errors.New("not used")
}

type stubTracker struct {
	ticks int
	err   error
}

func (t *stubTracker) RunTick(context.Context) (models.MProcessingMetrics, error) {
	t.ticks++
	if t.err != nil {
		return models.MProcessingMetrics{SourcesFailed: 1}, t.err
	}
	return models.MProcessingMetrics{SourcesProcessed: 1, RowsRanked: 3, ProcessingTimeSeconds: 0.5}, nil
}

func (t *stubTracker) Status() []models.MSourceStatus {
	return []models.MSourceStatus{{Name: "fo", Index: "SECURITIES IN F&O", Tick: t.ticks, Rows: 3}}
}

const testConfig = `
name: rank-observer
host: 127.0.0.1
port: 8000
network:
  base_url: https://www.nseindia.com
  api_path: /api/equity-stockIndices
data_source:
  update_interval_seconds: 120
  sources:
    - name: fo
      index: SECURITIES IN F&O
`

func startControl(t *testing.T, tracker *stubTracker) (*ControlClient, *ControlService, string) {
	t.Helper()

	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	log := logger.NewNopLogger()
	registry := datasource.NewSourceRegistry([]interfaces.ISnapshotSource{&stubSource{cfg: cfg.DataSource.Sources[0]}}, log)
	factory := func(sc models.MSourceConfig) interfaces.ISnapshotSource { return &stubSource{cfg: sc} }

	svc := NewControlService(cfg, path, registry, tracker, factory, log)
	svc.NextRun = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterControlServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewControlClient(conn), svc, path
}

func structOf(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

// -----------------------------------------------------------------------------

func TestGetStatus(t *testing.T) {
	client, _, _ := startControl(t, &stubTracker{ticks: 4})

	resp, err := client.GetStatus(context.Background())
	require.NoError(t, err)

	out := resp.AsMap()
	assert.Equal(t, "2026-03-02T10:00:00Z", out["next_run"])
	sources := out["sources"].([]interface{})
	require.Len(t, sources, 1)
	first := sources[0].(map[string]interface{})
	assert.Equal(t, "fo", first["name"])
	assert.Equal(t, float64(4), first["tick"])
}

func TestTriggerTick(t *testing.T) {
	tracker := &stubTracker{}
	client, _, _ := startControl(t, tracker)

	resp, err := client.TriggerTick(context.Background())
	require.NoError(t, err)
	out := resp.AsMap()
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(3), out["rows_ranked"])
	assert.Equal(t, 1, tracker.ticks)

	tracker.err = errors.New("all sources failed")
	resp, err = client.TriggerTick(context.Background())
	require.NoError(t, err)
	out = resp.AsMap()
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "all sources failed", out["message"])
}

func TestAddAndRemoveSource(t *testing.T) {
	client, svc, path := startControl(t, &stubTracker{})
	ctx := context.Background()

	_, err := client.AddSource(ctx, structOf(t, map[string]interface{}{
		"name":    "nifty",
		"index":   "NIFTY 50",
		"columns": []interface{}{"symbol", "pChange", "open", "dayHigh", "dayLow", "yearHigh", "yearLow"},
	}))
	require.NoError(t, err)

	list, err := client.ListSources(ctx)
	require.NoError(t, err)
	assert.Len(t, list.AsMap()["sources"], 2)

	// Persisted to disk
	saved, err := config.NewConfig(path)
	require.NoError(t, err)
	require.Len(t, saved.DataSource.Sources, 2)
	assert.Equal(t, "NIFTY 50", saved.DataSource.Sources[1].Index)
	assert.Len(t, saved.DataSource.Sources[1].Columns, 7)

	_, err = client.AddSource(ctx, structOf(t, map[string]interface{}{"name": "nifty", "index": "NIFTY 50"}))
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = client.AddSource(ctx, structOf(t, map[string]interface{}{"name": "x"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.RemoveSource(ctx, structOf(t, map[string]interface{}{"name": "nifty"}))
	require.NoError(t, err)
	assert.Len(t, svc.Config.DataSource.Sources, 1)

	_, err = client.RemoveSource(ctx, structOf(t, map[string]interface{}{"name": "nifty"}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestAddSource_RejectsPathLikeNames(t *testing.T) {
	client, svc, _ := startControl(t, &stubTracker{})
	ctx := context.Background()

	for _, name := range []string{"../x", "a/b", `a\b`, ".."} {
		_, err := client.AddSource(ctx, structOf(t, map[string]interface{}{"name": name, "index": "NIFTY 50"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err), name)
	}
	assert.Len(t, svc.Registry.GetAllSources(), 1)
	assert.Len(t, svc.Config.DataSource.Sources, 1)
}

func TestSources_ReturnsCopy(t *testing.T) {
	client, svc, _ := startControl(t, &stubTracker{})

	before := svc.Sources()
	require.Len(t, before, 1)
	before[0].Name = "changed"

	_, err := client.AddSource(context.Background(), structOf(t, map[string]interface{}{"name": "nifty", "index": "NIFTY 50"}))
	require.NoError(t, err)

	after := svc.Sources()
	require.Len(t, after, 2)
	assert.Equal(t, "fo", after[0].Name)
	assert.Equal(t, "nifty", after[1].Name)
}
