package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustedanalytics/platform-parent/src/build"
	_ "github.com/trustedanalytics/platform-parent/src/build/builders"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
	"github.com/trustedanalytics/platform-parent/src/source"
)

// repoFetcher fakes git: it writes a fixed tree per project and reports a
// fresh commit for every acquisition.
type repoFetcher struct {
	mu        sync.Mutex
	trees     map[string]map[string]string
	calls     int
	requested map[string]string
}

func (f *repoFetcher) Acquire(_ context.Context, req source.Request) (source.Result, error) {
	name := filepath.Base(req.Dir)
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return source.Result{}, err
	}
	for rel, content := range f.trees[name] {
		path := filepath.Join(req.Dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return source.Result{}, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return source.Result{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.requested == nil {
		f.requested = map[string]string{}
	}
	f.requested[name] = req.Ref
	return source.Result{Outcome: source.DefaultBranch, Commit: fmt.Sprintf("%s-%d", name, f.calls)}, nil
}

// failingRunner fails every command run for one project.
type failingRunner struct{ project string }

func (r failingRunner) Run(_ context.Context, c build.Command) error {
	if c.Project == r.project {
		return fmt.Errorf("build: %s failed: exit status 1", c.String())
	}
	return nil
}

type recordingPublisher struct {
	runID string
	root  string
	cats  []string
}

func (p *recordingPublisher) Publish(_ context.Context, runID, root string, categories []string) ([]string, error) {
	p.runID, p.root, p.cats = runID, root, categories
	return []string{runID + "/tools/svc-a.zip"}, nil
}

func testConfig(t *testing.T, apps ...config.Project) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Dir = t.TempDir()
	cfg.Applications = apps
	cfg.Settings.Workspace = t.TempDir()
	cfg.Settings.Output = filepath.Join(t.TempDir(), "TAP_PACKAGES")
	cfg.Settings.Workers = 2
	return cfg
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestRun_ToolProjectEndToEnd(t *testing.T) {
	cfg := testConfig(t, config.Project{
		Name:    "svc-a",
		Builder: "tool",
		URL:     "https://example/svc-a",
		Items:   []string{"bin/"},
	})
	fetcher := &repoFetcher{trees: map[string]map[string]string{
		"svc-a": {"bin/svc-a": "elf", "bin/sub/helper": "sh", "src/main.go": "package main"},
	}}

	summary, err := Run(context.Background(), cfg, Options{Fetcher: fetcher, Runner: failingRunner{}})
	require.NoError(t, err)
	require.True(t, summary.OK())

	archive := filepath.Join(cfg.Settings.Output, "tools", "svc-a.zip")
	require.FileExists(t, archive)
	names := zipNames(t, archive)
	assert.Equal(t, []string{"bin/sub/helper", "bin/svc-a"}, names)
	for _, n := range names {
		assert.False(t, filepath.IsAbs(n))
		assert.False(t, strings.HasPrefix(n, "svc-a/"))
	}

	data, err := os.ReadFile(filepath.Join(cfg.Settings.Output, "files", "refs.txt"))
	require.NoError(t, err)
	assert.Equal(t, "svc-a svc-a-1\n", string(data))
	assert.Equal(t, summary.RefsFile, filepath.Join(cfg.Settings.Output, "files", "refs.txt"))
	assert.NotEmpty(t, summary.RunID)
}

func TestRun_DuplicateNamesLastWriteWins(t *testing.T) {
	cfg := testConfig(t,
		config.Project{Name: "svc-a", Builder: "tool", Items: []string{"bin"}},
		config.Project{Name: "svc-a", Builder: "tool", Items: []string{"bin"}},
	)
	fetcher := &repoFetcher{trees: map[string]map[string]string{"svc-a": {"bin/svc-a": "elf"}}}

	summary, err := Run(context.Background(), cfg, Options{Fetcher: fetcher, Runner: failingRunner{}})
	require.NoError(t, err)
	assert.Len(t, summary.Warnings, 1)

	data, err := os.ReadFile(summary.RefsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "svc-a svc-a-"))
}

func TestRun_FailedProjectDoesNotStopOthers(t *testing.T) {
	cfg := testConfig(t,
		config.Project{Name: "svc-java", Builder: "java"},
		config.Project{Name: "svc-b", Builder: "tool"},
	)
	fetcher := &repoFetcher{trees: map[string]map[string]string{
		"svc-java": {"pom.xml": "<project><version>1.0</version></project>"},
		"svc-b":    {"run.sh": "echo"},
	}}

	var logs bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
	summary, err := Run(ctx, cfg, Options{Fetcher: fetcher, Runner: failingRunner{project: "svc-java"}})
	require.NoError(t, err)

	assert.False(t, summary.OK())
	assert.Equal(t, StatusFailed, summary.Results[0].Status)
	assert.ErrorContains(t, summary.Results[0].Err, "svc-java: build: build: mvn clean install")
	assert.Equal(t, StatusSuccess, summary.Results[1].Status)
	assert.FileExists(t, filepath.Join(cfg.Settings.Output, "tools", "svc-b.zip"))

	assert.Contains(t, logs.String(), "project failed")
	assert.Contains(t, logs.String(), "project=svc-java")

	data, err := os.ReadFile(summary.RefsFile)
	require.NoError(t, err)
	assert.Regexp(t, `^svc-b svc-b-\d\n$`, string(data))
}

func TestRun_RefPrecedence(t *testing.T) {
	cfg := testConfig(t,
		config.Project{Name: "pinned", Builder: "tool", Snapshot: "v1"},
		config.Project{Name: "cli", Builder: "tool"},
		config.Project{Name: "file", Builder: "tool"},
		config.Project{Name: "tagged", Builder: "tool"},
	)
	refsFile := filepath.Join(t.TempDir(), "refs.txt")
	require.NoError(t, os.WriteFile(refsFile, []byte("pinned aaa\ncli bbb\nfile ccc\n"), 0o644))
	fetcher := &repoFetcher{}

	_, err := Run(context.Background(), cfg, Options{
		Fetcher:      fetcher,
		Runner:       failingRunner{},
		ReleaseTag:   "v0.7",
		RefsFile:     refsFile,
		RefOverrides: map[string]string{"cli": "override"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"pinned": "v1",
		"cli":    "override",
		"file":   "ccc",
		"tagged": "v0.7",
	}, fetcher.requested)
}

func TestRun_OnlyFilter(t *testing.T) {
	cfg := testConfig(t,
		config.Project{Name: "a", Builder: "tool"},
		config.Project{Name: "b", Builder: "tool"},
	)
	fetcher := &repoFetcher{}

	summary, err := Run(context.Background(), cfg, Options{Fetcher: fetcher, Runner: failingRunner{}, Only: []string{"b"}})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "b", summary.Results[0].Project.Name)

	_, err = Run(context.Background(), cfg, Options{Fetcher: fetcher, Runner: failingRunner{}, Only: []string{"b", "zzz"}})
	assert.EqualError(t, err, "unknown project(s): zzz")
}

func TestRun_ExpandAndPublish(t *testing.T) {
	cfg := testConfig(t, config.Project{Name: "svc-a", Builder: "tool"})
	tmpl := filepath.Join(cfg.Dir, "deployment.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte(
		"release: {{ .ReleaseTag }}\n{{ range .Archives.tools }}tool: {{ . }}\n{{ end }}svc-a: {{ index .Refs \"svc-a\" }}\n"), 0o644))
	cfg.Settings.Expand.Template = "deployment.tmpl"
	cfg.Settings.ReleaseTag = "v0.7"

	pub := &recordingPublisher{}
	summary, err := Run(context.Background(), cfg, Options{
		Fetcher:   &repoFetcher{trees: map[string]map[string]string{"svc-a": {"x": "y"}}},
		Runner:    failingRunner{},
		Publisher: pub,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(summary.Descriptor)
	require.NoError(t, err)
	assert.Equal(t, "release: v0.7\ntool: svc-a.zip\nsvc-a: svc-a-1\n", string(data))
	assert.Equal(t, filepath.Join(cfg.Settings.Output, "files", "deployment.yml"), summary.Descriptor)

	assert.Equal(t, summary.RunID, pub.runID)
	assert.Equal(t, summary.Output, pub.root)
	assert.Equal(t, []string{"tools", "apps", "files"}, pub.cats)
	assert.Len(t, summary.Published, 1)
}

func TestRun_BrokenTemplateAbortsRun(t *testing.T) {
	cfg := testConfig(t, config.Project{Name: "svc-a", Builder: "tool"})
	cfg.Settings.Expand.Template = filepath.Join(cfg.Dir, "missing.tmpl")

	summary, err := Run(context.Background(), cfg, Options{Fetcher: &repoFetcher{}, Runner: failingRunner{}})
	assert.ErrorContains(t, err, "expand: reading template")
	require.NotNil(t, summary)
	assert.FileExists(t, summary.RefsFile)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	_, err := Run(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, "at least one project")

	cfg = testConfig(t, config.Project{Name: "x", Builder: "cobol"})
	_, err = Run(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, `unknown builder "cobol"`)

	cfg = testConfig(t, config.Project{Name: "x", Builder: "tool"})
	_, err = Run(context.Background(), cfg, Options{RefsFile: filepath.Join(t.TempDir(), "nope.txt")})
	assert.ErrorContains(t, err, "does not exist")
}

func TestOptionsApplyTo(t *testing.T) {
	s := Options{Output: "/out", Workspace: "/ws", ReleaseTag: "v1", CatalogVersion: "3", Workers: 7}.ApplyTo(config.DefaultSettings())
	assert.Equal(t, "/out", s.Output)
	assert.Equal(t, "/ws", s.Workspace)
	assert.Equal(t, "v1", s.ReleaseTag)
	assert.Equal(t, "3", s.Catalog.Version)
	assert.Equal(t, 7, s.Workers)

	d := Options{}.ApplyTo(config.DefaultSettings())
	assert.Equal(t, config.DefaultSettings(), d)
}
