package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinnku-archive/archivesearch/internal/config"
	"github.com/shinnku-archive/archivesearch/internal/corpus"
	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
	"github.com/shinnku-archive/archivesearch/internal/lockfile"
	"github.com/shinnku-archive/archivesearch/pkg/version"
)

const exampleSnapshot = `[
  {"file_path": "合集系列/foo bar", "file_size": 10, "upload_timestamp": 1700000000000},
  {"file_path": "合集系列/foo baz", "file_size": 20, "upload_timestamp": 1700000000000},
  {"file_path": "合集系列/qux", "file_size": 30, "upload_timestamp": 1700000000000}
]`

type project struct {
	dir        string
	snapshot   string
	configPath string
	dataDir    string
}

// setupProject writes a snapshot and a config that points at it, with the
// user config and environment isolated.
func setupProject(t *testing.T) project {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"ARCHIVESEARCH_SNAPSHOTS", "ARCHIVESEARCH_THRESHOLD", "ARCHIVESEARCH_WORKERS",
		"ARCHIVESEARCH_SUGGEST_ENDPOINT", "ARCHIVESEARCH_SUGGEST_ENABLED", "ARCHIVESEARCH_HOST",
		"ARCHIVESEARCH_PORT", "ARCHIVESEARCH_TRANSPORT", "ARCHIVESEARCH_LOG_LEVEL",
		"ARCHIVESEARCH_DATA_DIR", "ARCHIVESEARCH_TELEMETRY", "ARCHIVESEARCH_WATCH",
	} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	p := project{
		dir:        dir,
		snapshot:   filepath.Join(dir, "tree.json"),
		configPath: filepath.Join(dir, "archivesearch.yaml"),
		dataDir:    filepath.Join(dir, "data"),
	}
	require.NoError(t, os.WriteFile(p.snapshot, []byte(exampleSnapshot), 0o644))

	cfg := fmt.Sprintf(`corpus:
  sources:
    - name: main
      path: %q
  watch_debounce: 20ms
suggest:
  enabled: false
server:
  data_dir: %q
`, p.snapshot, p.dataDir)
	require.NoError(t, os.WriteFile(p.configPath, []byte(cfg), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func ids(entries []corpus.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestSearchCmd_Text(t *testing.T) {
	// Given: a project with the example snapshot
	p := setupProject(t)

	// When: searching for "foo"
	out, err := run(t, "search", "foo", "--config", p.configPath)

	// Then: both foo entries are listed and qux is not
	require.NoError(t, err)
	assert.Contains(t, out, "foo bar")
	assert.Contains(t, out, "foo baz")
	assert.NotContains(t, out, "qux")
}

func TestSearchCmd_JSON(t *testing.T) {
	p := setupProject(t)

	out, err := run(t, "search", "foo", "--config", p.configPath, "--format", "json", "-n", "1")
	require.NoError(t, err)

	var entries []corpus.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "合集系列/"+entries[0].ID, entries[0].Record.Path)
}

func TestSearchCmd_AssistedWithoutSuggestService(t *testing.T) {
	p := setupProject(t)

	out, err := run(t, "search", "foo", "--assisted", "--config", p.configPath, "--format", "json")
	require.NoError(t, err)

	var entries []corpus.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.ElementsMatch(t, []string{"foo bar", "foo baz"}, ids(entries))
}

func TestSearchCmd_ExplainJSON(t *testing.T) {
	p := setupProject(t)

	out, err := run(t, "search", "foo", "--explain", "--config", p.configPath, "--format", "json")
	require.NoError(t, err)

	var res struct {
		Query struct {
			Raw string `json:"raw"`
		} `json:"query"`
		Results []struct {
			Entry corpus.Entry `json:"entry"`
			Score *float64     `json:"score"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "foo", res.Query.Raw)
	require.NotEmpty(t, res.Results)
	assert.NotNil(t, res.Results[0].Score)
}

func TestSearchCmd_Errors(t *testing.T) {
	p := setupProject(t)
	empty := filepath.Join(p.dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte(fmt.Sprintf("suggest:\n  enabled: false\nserver:\n  data_dir: %q\n", p.dataDir)), 0o644))

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"no sources", []string{"search", "foo", "--config", empty}, apperrors.ErrCodeCorpusEmpty},
		{"bad format", []string{"search", "foo", "--config", p.configPath, "--format", "xml"}, apperrors.ErrCodeInvalidInput},
		{"negative limit", []string{"search", "foo", "--config", p.configPath, "--limit=-2"}, apperrors.ErrCodeInvalidLimit},
		{"missing config", []string{"search", "foo", "--config", filepath.Join(p.dir, "nope.yaml")}, apperrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.GetCode(err))
		})
	}
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, err := run(t, "search")

	assert.Error(t, err)
}

func TestStatsCmd_JSON(t *testing.T) {
	p := setupProject(t)

	out, err := run(t, "stats", "--json", "--config", p.configPath)
	require.NoError(t, err)

	var res statsResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Corpus.Entries)
	assert.Equal(t, int64(60), res.Corpus.TotalBytes)
	assert.Equal(t, []string{"main"}, res.Sources)
	assert.Nil(t, res.Queries)
}

func TestConfigInit_Project(t *testing.T) {
	// Given: an empty working directory
	setupProject(t)
	dir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	// When: init runs twice, then with --force
	out, err := run(t, "config", "init", "--project")
	require.NoError(t, err)
	assert.Contains(t, out, "Created configuration")

	out, err = run(t, "config", "init", "--project")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = run(t, "config", "init", "--project", "--force")
	require.NoError(t, err)

	// Then: the template parses and a backup was kept
	path := filepath.Join(dir, "archivesearch.yaml")
	assert.Contains(t, out, "Backup:")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	cfg, err := config.Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 0.78, cfg.Search.Threshold)
	assert.Equal(t, "main", cfg.Corpus.Sources[0].Name)
}

func TestConfigShow(t *testing.T) {
	p := setupProject(t)

	out, err := run(t, "config", "show", "--source", "defaults")
	require.NoError(t, err)
	assert.Contains(t, out, "threshold: 0.78")
	assert.Contains(t, out, "port: 2999")

	out, err = run(t, "config", "show", "--config", p.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, p.snapshot)

	_, err = run(t, "config", "show", "--source", "user")
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))

	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestServeOptions_Apply(t *testing.T) {
	cfg := config.NewConfig()

	require.NoError(t, serveOptions{transport: "STDIO", port: 8080, noWatch: true}.apply(cfg))
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Corpus.Watch)

	assert.Error(t, serveOptions{transport: "sse"}.apply(config.NewConfig()))
}

func TestServe_LockHeld(t *testing.T) {
	// Given: another server holds the data dir
	p := setupProject(t)
	lock, err := lockfile.Acquire(p.dataDir)
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	// When: serve starts
	_, err = run(t, "serve", "--config", p.configPath)

	// Then: it refuses
	assert.Equal(t, apperrors.ErrCodeLockHeld, apperrors.GetCode(err))
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func TestServe_HTTPEndToEnd(t *testing.T) {
	// Given: a running HTTP server over the example snapshot
	p := setupProject(t)
	cfg, err := config.Load(p.dir, p.configPath)
	require.NoError(t, err)
	port := freePort(t)
	require.NoError(t, serveOptions{port: port}.apply(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, serveOptions{requestTimeout: 5 * time.Second}) }()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	var health struct {
		Entries int `json:"entries"`
	}
	require.Eventually(t, func() bool {
		return getJSON(base+"/health", &health) == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 3, health.Entries)

	// When: searching
	var entries []corpus.Entry
	require.NoError(t, getJSON(base+"/search?q=foo&n=5", &entries))

	// Then: the example ranking comes back
	assert.ElementsMatch(t, []string{"foo bar", "foo baz"}, ids(entries))

	// When: the snapshot grows
	grown := strings.Replace(exampleSnapshot, "\n]",
		",\n  {\"file_path\": \"合集系列/foo qux\", \"file_size\": 5, \"upload_timestamp\": 1}\n]", 1)
	require.NoError(t, os.WriteFile(p.snapshot, []byte(grown), 0o644))

	// Then: the server reloads it
	assert.Eventually(t, func() bool {
		return getJSON(base+"/health", &health) == nil && health.Entries == 4
	}, 5*time.Second, 20*time.Millisecond)

	// When: the server stops
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}

	// Then: its query telemetry was persisted
	out, err := run(t, "stats", "--json", "--config", p.configPath)
	require.NoError(t, err)
	var res statsResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.Queries)
	assert.GreaterOrEqual(t, res.Queries.TotalQueries, int64(1))
}

func TestLogsCmd(t *testing.T) {
	// Given: a search has written the server log
	p := setupProject(t)
	_, err := run(t, "search", "foo", "--config", p.configPath)
	require.NoError(t, err)

	// When: viewing the log
	out, err := run(t, "logs", "--config", p.configPath, "--filter", "cli_search_started")

	// Then: the search event is shown in readable form
	require.NoError(t, err)
	assert.Contains(t, out, "cli_search_started")
	assert.Contains(t, out, "query=foo")
}

func TestLogsCmd_NoFileYet(t *testing.T) {
	out, err := run(t, "logs", "--file", filepath.Join(t.TempDir(), "server.log"))

	require.NoError(t, err)
	assert.Contains(t, out, "No log file yet")
}

func TestLogsCmd_BadLevel(t *testing.T) {
	_, err := run(t, "logs", "--file", filepath.Join(t.TempDir(), "server.log"), "--level", "loud")

	assert.Error(t, err)
}

func TestDoctorCmd(t *testing.T) {
	// Given: a healthy project
	p := setupProject(t)

	// When: running doctor
	out, err := run(t, "doctor", "--config", p.configPath)

	// Then: the snapshot and data dir pass
	require.NoError(t, err)
	assert.Contains(t, out, "[PASS] snapshot:main")
	assert.Contains(t, out, "[PASS] write_permissions")
	assert.NotContains(t, out, "suggest_service")
}

func TestDoctorCmd_MissingSnapshotFails(t *testing.T) {
	p := setupProject(t)
	require.NoError(t, os.Remove(p.snapshot))

	out, err := run(t, "doctor", "--config", p.configPath, "--json")

	require.Error(t, err)
	assert.Contains(t, out, `"status": "FAIL"`)
}
