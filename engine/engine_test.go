package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/spectrace/config"
	"github.com/c360studio/spectrace/rule"
)

const testConfigYAML = `specs:
  - name: api
    rules_file: rules.md
    include:
      - "src/**/*.go"
`

// writeProject lays out a project with two rules where only the first is
// referenced.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	cfgDir := filepath.Join(root, config.ProjectConfigDir)
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, config.ProjectConfigFile), []byte(testConfigYAML), 0o644))

	rules := "# API rules\n\nr[api.auth]\nr[api.audit] status=draft\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "rules.md"), []byte(rules), 0o644))

	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	source := "package api\n\n// [impl api.auth]\nfunc Login() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "auth.go"), []byte(source), 0o644))

	return root
}

func newTestEngine(t *testing.T, root string) *Engine {
	t.Helper()
	e, err := New(context.Background(), root, config.DefaultPath(root))
	require.NoError(t, err)
	return e
}

func TestEngine_InitialBuild(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)

	assert.Equal(t, uint64(1), e.Version())
	assert.Empty(t, e.ConfigError())

	data := e.Snapshot()
	require.NotNil(t, data)
	assert.Equal(t, uint64(1), data.Version)
	require.Len(t, data.Specs, 1)

	report := data.Specs[0].Report
	assert.Equal(t, 2, report.TotalRules)
	assert.True(t, report.CoveredRules[rule.ID("api.auth")])
	assert.True(t, report.UncoveredRules[rule.ID("api.audit")])
	assert.InDelta(t, 50.0, report.CoveragePercent(), 0.001)
}

func TestEngine_VersionMonotonic(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)

	for i := 2; i <= 5; i++ {
		version, _, err := e.Rebuild(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(i), version)
	}
	assert.Equal(t, uint64(5), e.Snapshot().Version)
}

func TestEngine_OverlayPrecedence(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	// An unsaved buffer for auth.go that also covers api.audit.
	buffer := "package api\n\n// [impl api.auth]\n// [verify api.audit]\nfunc Login() {}\n"
	e.Change(ctx, filepath.Join(root, "src", "auth.go"), buffer)

	report := e.Snapshot().Specs[0].Report
	assert.InDelta(t, 100.0, report.CoveragePercent(), 0.001)

	// Closing the buffer falls back to disk content.
	e.Close(ctx, filepath.Join(root, "src", "auth.go"))
	report = e.Snapshot().Specs[0].Report
	assert.InDelta(t, 50.0, report.CoveragePercent(), 0.001)
}

func TestEngine_OverlayOnlyFile(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)

	// A new file that exists only as an editor buffer.
	e.Open(context.Background(), filepath.Join(root, "src", "audit.go"),
		"package api\n\n// [impl api.audit]\nfunc Audit() {}\n")

	data := e.Snapshot()
	assert.Contains(t, data.Specs[0].Files, "src/audit.go")
	assert.InDelta(t, 100.0, data.Specs[0].Report.CoveragePercent(), 0.001)
}

func TestEngine_InvalidReference(t *testing.T) {
	root := writeProject(t)
	src := "package api\n\n// [impl api.nonexistent]\nfunc Bad() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "bad.go"), []byte(src), 0o644))

	e := newTestEngine(t, root)

	report := e.Snapshot().Specs[0].Report
	require.Len(t, report.InvalidReferences, 1)
	assert.Equal(t, rule.ID("api.nonexistent"), report.InvalidReferences[0].RuleID)
	assert.False(t, report.IsPassing(0))
}

func TestEngine_ConfigNotFound(t *testing.T) {
	root := t.TempDir()

	e, err := New(context.Background(), root, config.DefaultPath(root))
	require.NoError(t, err)

	assert.Empty(t, e.ConfigError())
	assert.Empty(t, e.Snapshot().Specs)
}

func TestEngine_ConfigMalformedKeepsPrevious(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	cfgPath := config.DefaultPath(root)
	require.NoError(t, os.WriteFile(cfgPath, []byte("specs: [unclosed"), 0o644))

	// Rebuild succeeds with the last-known-good config and records the error.
	version, _, err := e.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.NotEmpty(t, e.ConfigError())
	require.Len(t, e.Snapshot().Specs, 1)
	assert.Equal(t, "api", e.Snapshot().Specs[0].Name)

	// Repairing the file clears the error.
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfigYAML), 0o644))
	_, _, err = e.Rebuild(ctx)
	require.NoError(t, err)
	assert.Empty(t, e.ConfigError())
}

func TestEngine_FailedRebuildKeepsSnapshot(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)

	// Corrupt the rules document so the pipeline fails.
	rulesPath := filepath.Join(root, config.ProjectConfigDir, "rules.md")
	require.NoError(t, os.WriteFile(rulesPath, []byte("r[api.auth\n"), 0o644))

	_, _, err := e.Rebuild(context.Background())
	require.Error(t, err)

	// The published snapshot is the last successful one.
	data := e.Snapshot()
	assert.Equal(t, uint64(1), data.Version)
	assert.Equal(t, 2, data.Specs[0].Report.TotalRules)
}

func TestEngine_SubscriberCoalescing(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	id, ch := e.Subscribe()
	defer e.Unsubscribe(id)

	// Two rebuilds without draining: only the latest snapshot is pending.
	_, _, err := e.Rebuild(ctx)
	require.NoError(t, err)
	_, _, err = e.Rebuild(ctx)
	require.NoError(t, err)

	select {
	case data := <-ch:
		assert.Equal(t, uint64(3), data.Version)
	case <-time.After(time.Second):
		t.Fatal("expected a pending snapshot")
	}

	select {
	case data := <-ch:
		t.Fatalf("unexpected second snapshot, version %d", data.Version)
	default:
	}
}

func TestEngine_UnsubscribeClosesChannel(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)

	id, ch := e.Subscribe()
	e.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
}

func TestEngine_ConcurrentSnapshots(t *testing.T) {
	root := writeProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers must always observe a complete snapshot whose coverage is
	// consistent with its own manifest, regardless of concurrent rebuilds.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				data := e.Snapshot()
				if data == nil {
					t.Error("nil snapshot")
					return
				}
				for _, s := range data.Specs {
					covered := len(s.Report.CoveredRules) + len(s.Report.UncoveredRules)
					if covered != s.Report.TotalRules {
						t.Errorf("torn snapshot: %d+%d != %d",
							len(s.Report.CoveredRules), len(s.Report.UncoveredRules), s.Report.TotalRules)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 10; i++ {
		_, _, err := e.Rebuild(ctx)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestEngine_GitignoreRespected(t *testing.T) {
	root := writeProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("gen\n"), 0o644))

	genDir := filepath.Join(root, "src", "gen")
	require.NoError(t, os.MkdirAll(genDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(genDir, "gen.go"),
		[]byte("package gen\n\n// [impl api.audit]\n"), 0o644))

	e := newTestEngine(t, root)

	data := e.Snapshot()
	assert.NotContains(t, data.Specs[0].Files, "src/gen/gen.go")
	assert.True(t, data.Specs[0].Report.UncoveredRules[rule.ID("api.audit")])
}
