package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustedanalytics/platform-parent/src/config"
)

type nopBuilder struct{ cat Category }

func (b nopBuilder) Category() Category { return b.cat }
func (nopBuilder) Fetch(context.Context) (Fetched, error) { return Fetched{}, nil }
func (nopBuilder) Build(context.Context) error { return nil }
func (nopBuilder) Package(context.Context, string) ([]string, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("tool", func(config.Project, *Env) Builder { return nopBuilder{cat: Tools} })
	r.Register("java", func(config.Project, *Env) Builder { return nopBuilder{cat: Apps} })

	assert.Equal(t, []string{"java", "tool"}, r.Kinds())

	b, err := r.New(config.Project{Name: "svc", Builder: "tool"}, &Env{})
	require.NoError(t, err)
	assert.Equal(t, Tools, b.Category())

	_, err = r.New(config.Project{Name: "svc", Builder: "cobol"}, &Env{})
	assert.ErrorIs(t, err, ErrUnknownBuilder)
	assert.ErrorContains(t, err, `"cobol"`)

	assert.Panics(t, func() {
		r.Register("tool", func(config.Project, *Env) Builder { return nopBuilder{} })
	})
}

func TestStageError(t *testing.T) {
	assert.NoError(t, Wrap("svc", StageBuild, nil))

	err := Wrap("svc", StagePackage, ErrAmbiguousArchive)
	assert.EqualError(t, err, "svc: package: more than one archive matched")
	assert.ErrorIs(t, err, ErrAmbiguousArchive)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "svc", se.Project)
	assert.Equal(t, StagePackage, se.Stage)
}

func TestLayoutPrepare(t *testing.T) {
	l := Layout{Root: filepath.Join(t.TempDir(), "out")}
	require.NoError(t, l.Prepare())
	for _, c := range Categories {
		assert.DirExists(t, l.Dir(c))
	}
	// idempotent
	require.NoError(t, l.Prepare())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMavenVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pom.xml"), `<?xml version="1.0"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <parent><version>0.1.0</version></parent>
  <artifactId>svc</artifactId>
  <version>0.4.2</version>
  <dependencies><dependency><version>9.9.9</version></dependency></dependencies>
</project>`)
	v, err := MavenVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.4.2", v)

	writeFile(t, filepath.Join(dir, "pom.xml"), `<project><parent><version>1.2.3</version></parent></project>`)
	v, err = MavenVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)

	_, err = MavenVersion(t.TempDir())
	assert.ErrorContains(t, err, "pom.xml")
}

func TestNodeVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{"name":"console","version":"0.9.1"}`)
	v, err := NodeVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.9.1", v)

	writeFile(t, filepath.Join(dir, "package.json"), `{"name":"console"}`)
	_, err = NodeVersion(dir)
	assert.ErrorContains(t, err, "no version")
}

func TestPythonVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pyproject.toml"), "[project]\nname = \"app\"\nversion = \"2.0.1\"\n")
	v, err := PythonVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "2.0.1", v)

	writeFile(t, filepath.Join(dir, "pyproject.toml"), "[tool.poetry]\nname = \"app\"\nversion = \"3.1.0\"\n")
	v, err = PythonVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", v)

	writeFile(t, filepath.Join(dir, "pyproject.toml"), "[project]\nname = \"app\"\n")
	_, err = PythonVersion(dir)
	assert.Error(t, err)
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "app-1.0", ExpandArchiveName("app-{version}", "1.0"))

	called := false
	name, err := ArchiveName("plain", func() (string, error) { called = true; return "x", nil })
	require.NoError(t, err)
	assert.Equal(t, "plain", name)
	assert.False(t, called)

	name, err = ArchiveName("app-{version}", func() (string, error) { return "2.0", nil })
	require.NoError(t, err)
	assert.Equal(t, "app-2.0", name)

	_, err = ArchiveName("app-{version}", func() (string, error) { return "", errors.New("no metadata") })
	assert.EqualError(t, err, "no metadata")
}

const manifest = `# deployed by platform
applications:
- name: atk
  memory: 1G
  env:
    VERSION: "0.0"
    OTHER: keep
`

func TestStampManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yml")
	writeFile(t, path, manifest)

	require.NoError(t, StampManifest(path, "VERSION", "42"))

	v, err := ManifestEnv(path, "VERSION")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
	v, err = ManifestEnv(path, "OTHER")
	require.NoError(t, err)
	assert.Equal(t, "keep", v)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# deployed by platform")
}

func TestStampManifest_CreatesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yml")
	writeFile(t, path, "applications:\n- name: console\n")

	require.NoError(t, StampManifest(path, "VERSION", "0.9.1"))
	v, err := ManifestEnv(path, "VERSION")
	require.NoError(t, err)
	assert.Equal(t, "0.9.1", v)
}

func TestStampManifest_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, StampManifest(filepath.Join(dir, "missing.yml"), "VERSION", "1"))

	path := filepath.Join(dir, "manifest.yml")
	writeFile(t, path, "applications: []\n")
	assert.ErrorContains(t, StampManifest(path, "VERSION", "1"), "no applications")

	_, err := ManifestEnv(path, "VERSION")
	assert.Error(t, err)
}

func TestExecRunner(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	work := t.TempDir()
	r := NewExecRunner(logDir)

	err := r.Run(context.Background(), Command{
		Project: "svc",
		Dir:     work,
		Args:    []string{"sh", "-c", "echo out; echo err >&2; pwd"},
	})
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(logDir, "svc-build.log"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "out")
	assert.Contains(t, string(out), filepath.Base(work))

	errOut, err := os.ReadFile(filepath.Join(logDir, "svc-err.log"))
	require.NoError(t, err)
	assert.Equal(t, "err\n", string(errOut))

	err = r.Run(context.Background(), Command{Project: "svc", Dir: work, Args: []string{"sh", "-c", "exit 3"}})
	assert.ErrorContains(t, err, "sh -c exit 3 failed")

	assert.Error(t, r.Run(context.Background(), Command{Project: "svc"}))
}

func TestExecRunner_Env(t *testing.T) {
	logDir := t.TempDir()
	r := NewExecRunner(logDir)
	require.NoError(t, r.Run(context.Background(), Command{
		Project: "gosvc",
		Dir:     t.TempDir(),
		Args:    []string{"sh", "-c", "echo $GOPATH"},
		Env:     []string{"GOPATH=/custom/gopath"},
	}))
	out, err := os.ReadFile(filepath.Join(logDir, "gosvc-build.log"))
	require.NoError(t, err)
	assert.Equal(t, "/custom/gopath\n", string(out))
}

func TestZipItemsAndExtraFiles(t *testing.T) {
	root := t.TempDir()
	cfgDir := t.TempDir()
	env := &Env{Workspace: root, ConfigDir: cfgDir}
	p := config.Project{Name: "svc", ZipName: "svc-{version}"}

	writeFile(t, filepath.Join(root, "svc", "bin", "svc"), "bin")
	writeFile(t, filepath.Join(cfgDir, "utils", "svc", "manifest.yml"), "applications: []")

	copied, err := CopyExtraFiles(env, p, []string{"utils/svc/manifest.yml"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "svc", "manifest.yml")}, copied)
	assert.True(t, env.Exists(p, "manifest.yml"))

	dest := filepath.Join(t.TempDir(), "apps")
	out, err := ZipItems(env, p, []string{"bin", "manifest.yml"}, dest, func() (string, error) { return "1.0", nil })
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "svc-1.0.zip")}, out)
	assert.FileExists(t, out[0])
}
