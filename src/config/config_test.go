package config

import (
	"os"
	"path/filepath"
	"testing"

	"rank-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
name: rank-observer
host: 127.0.0.1
port: 8000
network:
  base_url: https://www.nseindia.com
  api_path: /api/equity-stockIndices
data_source:
  update_interval_seconds: 60
  sources:
    - name: fo
      index: SECURITIES IN F&O
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Storage.DBType)
	assert.Equal(t, 30, cfg.Network.RequestTimeout)
	assert.Equal(t, "/", cfg.Network.BootstrapPath)
	assert.Equal(t, "xnse", cfg.DataSource.CalendarMIC)
	assert.Equal(t, "nse_fo_data_%Y%m%d_%H%M%S.csv", cfg.Export.FilePattern)
	assert.Equal(t, "rank-observer", cfg.Redis.ChannelPrefix)
	assert.Equal(t, models.DefaultColumns, cfg.DataSource.Sources[0].Columns)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvRedisAddr, "redis:6379")
	t.Setenv(EnvPort, "9100")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.GetLogLevel())
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 9100, cfg.Port)

	t.Setenv(EnvPort, "not-a-port")
	_, err = Parse([]byte(minimalYAML))
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"no sources": `
name: x
host: h
port: 8000
network: {base_url: "https://x.test", api_path: /api}
data_source: {update_interval_seconds: 5}
`,
		"bad level": minimalYAML + "log_level: LOUD\n",
		"low port": `
name: x
host: h
port: 80
network: {base_url: "https://x.test", api_path: /api}
data_source: {update_interval_seconds: 5, sources: [{name: a, index: b}]}
`,
		"sqlite without path": minimalYAML + "storage: {enabled: true, db_type: sqlite}\n",
		"postgres without dsn": minimalYAML + "storage: {enabled: true, db_type: postgres}\n",
		"redis without addr":   minimalYAML + "redis: {enabled: true}\n",
		"duplicate source": `
name: x
host: h
port: 8000
network: {base_url: "https://x.test", api_path: /api}
data_source: {update_interval_seconds: 5, sources: [{name: a, index: b}, {name: a, index: c}]}
`,
		"not yaml": "name: [",
		"source name escapes export dir": `
name: x
host: h
port: 8000
network: {base_url: "https://x.test", api_path: /api}
data_source: {update_interval_seconds: 5, sources: [{name: ../a, index: b}]}
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestValidateSourceName(t *testing.T) {
	assert.NoError(t, ValidateSourceName("fo"))
	assert.NoError(t, ValidateSourceName("nifty-50_v2"))
	for _, name := range []string{"", "  ", ".", "..", "../x", "a/b", `a\b`, "x..y"} {
		assert.Error(t, ValidateSourceName(name), name)
	}
}

func TestNewConfig_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0644))

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	cfg.DataSource.UpdateIntervalSeconds = 900

	out := filepath.Join(dir, "saved.yaml")
	require.NoError(t, cfg.Save(out))

	again, err := NewConfig(out)
	require.NoError(t, err)
	assert.Equal(t, 900, again.DataSource.UpdateIntervalSeconds)
	assert.Equal(t, "SECURITIES IN F&O", again.DataSource.Sources[0].Index)

	_, err = NewConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfigFileIsValid(t *testing.T) {
	cfg, err := NewConfig(filepath.Join("..", "..", "config", "default.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fo", cfg.DataSource.Sources[0].Name)
}
