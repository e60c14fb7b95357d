package config

// Settings holds everything shared by all projects of a run.
type Settings struct {
	// ReposURL is the base for conventional source URLs.
	ReposURL string `yaml:"repos_url"`

	// Workspace is the parent directory of all project workspaces.
	Workspace string `yaml:"workspace"`

	// Output is the root of the tools/, apps/ and files/ tree.
	Output string `yaml:"output"`

	// ReleaseTag is the global default ref for projects with no pin.
	ReleaseTag string `yaml:"release_tag"`

	// Workers bounds concurrency. Zero means runtime.NumCPU().
	Workers int `yaml:"workers"`

	Catalog   CatalogConfig   `yaml:"catalog"`
	Gearpump  GearpumpConfig  `yaml:"gearpump"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	GoPath    GoPathConfig    `yaml:"gopath"`
	Expand    ExpandConfig    `yaml:"expand"`
	Publish   PublishConfig   `yaml:"publish"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// CatalogConfig points at the artifact catalog used by tarball builders.
type CatalogConfig struct {
	URL       string `yaml:"url"`
	Version   string `yaml:"version"`    // "latest" or a release number
	CacheSize int    `yaml:"cache_size"` // catalogs kept in memory
}

// GearpumpConfig locates the binary distribution merged into gearpump builds.
type GearpumpConfig struct {
	// BinariesURL supports {short_ver} and {long_ver}.
	BinariesURL string `yaml:"binaries_url"`
}

// ToolchainConfig holds the command vectors builders invoke.
type ToolchainConfig struct {
	Maven []string `yaml:"maven"`
	Go    []string `yaml:"go"`
	Npm   string   `yaml:"npm"`
	Pip   string   `yaml:"pip"`
	Shell string   `yaml:"shell"`
}

// GoPathConfig configures the GOPATH link made for Go projects.
type GoPathConfig struct {
	Root         string `yaml:"root"`          // default $GOPATH
	ImportPrefix string `yaml:"import_prefix"` // e.g. src/github.com/trustedanalytics
}

// ExpandConfig names the deployment descriptor template rendered after the
// build. An empty template disables expansion.
type ExpandConfig struct {
	Template string `yaml:"template"`
	Output   string `yaml:"output"` // file name inside files/
}

// PublishConfig configures the optional S3-compatible upload of the
// output tree. An empty endpoint disables publishing.
type PublishConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	UseSSL       bool   `yaml:"use_ssl"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// LogConfig selects the run logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig applies to catalog and artifact downloads.
type HTTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DefaultSettings returns sensible defaults for all settings.
func DefaultSettings() Settings {
	return Settings{
		ReposURL:  "https://github.com/trustedanalytics/",
		Workspace: ".",
		Output:    "/tmp/TAP_PACKAGES",
		Catalog:   DefaultCatalogConfig(),
		Gearpump: GearpumpConfig{
			BinariesURL: "https://github.com/gearpump/gearpump/releases/download/{short_ver}/gearpump-{long_ver}.zip",
		},
		Toolchain: DefaultToolchainConfig(),
		GoPath: GoPathConfig{
			ImportPrefix: "src/github.com/trustedanalytics",
		},
		Expand: ExpandConfig{
			Output: "deployment.yml",
		},
		Publish: PublishConfig{
			Region:       "us-east-1",
			AccessKeyEnv: "PUBLISH_ACCESS_KEY",
			SecretKeyEnv: "PUBLISH_SECRET_KEY",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 300,
		},
	}
}

// DefaultCatalogConfig returns the public analytics toolkit catalog.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		URL:       "https://analytics-tool-kit.s3-us-west-2.amazonaws.com/public/weekly/regressed/",
		Version:   "latest",
		CacheSize: 16,
	}
}

// DefaultToolchainConfig returns the stock tool invocations.
func DefaultToolchainConfig() ToolchainConfig {
	return ToolchainConfig{
		Maven: []string{"mvn", "clean", "install", "-Dmaven.test.skip=true"},
		Go:    []string{"go", "build", "./..."},
		Npm:   "npm",
		Pip:   "pip",
		Shell: "sh",
	}
}
