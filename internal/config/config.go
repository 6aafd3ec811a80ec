package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level hornflow config.
	WorkspaceDirName = ".hornflow"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the hornflow CLI.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dataflow DataflowConfig `yaml:"dataflow"`
	TupleSet TupleSetConfig `yaml:"tupleset"`
	Exploder ExploderConfig `yaml:"exploder"`
	Output   OutputConfig   `yaml:"output"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// DataflowConfig controls the root logger every pass shares.
type DataflowConfig struct {
	LogLevel string `yaml:"log_level"`
}

// TupleSetConfig is the tuple-set domain's context: the maximum row count a
// fact is allowed to carry after each prune.
type TupleSetConfig struct {
	Cutoff int `yaml:"cutoff"`
}

// ExploderConfig is the rule-exploder context: Threshold is forwarded as the
// tuple-set cutoff for the pass's own internal tuple-set run, and a value
// greater than 1 additionally enables common-tail factoring.
type ExploderConfig struct {
	Threshold int `yaml:"threshold"`
}

// OutputConfig controls how a transformed rule set (and, if a model was
// supplied, its lifted solution) is written back out.
type OutputConfig struct {
	// Format is "text" (internal/mangleio.WriteRuleSetText's labeled debug
	// form) or "mangle" (internal/mangleio.WriteRuleSet's Mangle-syntax dump).
	Format string `yaml:"format"`
	// SchemaPath is the rule-set source file the CLI reads by default.
	SchemaPath string `yaml:"schema_path"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "hornflow",
			Version: "0.1.0",
			LogFile: "hornflow.log",
		},
		Dataflow: DataflowConfig{
			LogLevel: "info",
		},
		TupleSet: TupleSetConfig{
			Cutoff: 5,
		},
		Exploder: ExploderConfig{
			Threshold: 1,
		},
		Output: OutputConfig{
			Format:     "text",
			SchemaPath: "schemas/rules.mg",
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .hornflow/config.yaml file.
// Returns the workspace root directory (parent of .hornflow/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .hornflow/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	// Layer 1: Workspace config (if not disabled)
	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			// Verify the explicit workspace dir has a config
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, wsDir)
		}
	}

	// Layer 2: Explicit config file (--config flag)
	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .hornflow/ directory with template files at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	// Check if already exists
	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	// Create directory structure
	dirs := []string{
		wsDir,
		filepath.Join(wsDir, "schemas"),
		filepath.Join(wsDir, "data"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write template config
	templateConfig := `# hornflow project-level configuration
# Values here override defaults but are overridden by --config and CLI flags.

# dataflow:
#   log_level: debug

# tupleset:
#   cutoff: 8

# exploder:
#   threshold: 2

# output:
#   format: mangle
#   schema_path: ".hornflow/schemas/project.mg"
`
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	// Write .gitignore for data directory
	gitignoreContent := "# Runtime data (logs, dumps) - do not version control\ndata/\n"
	gitignorePath := filepath.Join(wsDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against the workspace directory.
func resolveWorkspacePaths(cfg Config, wsDir string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wsDir, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Output.SchemaPath = resolve(cfg.Output.SchemaPath)
	return cfg
}

// Validate ensures required fields exist so the CLI can run deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.TupleSet.Cutoff <= 0 {
		return errors.New("tupleset.cutoff must be positive")
	}
	if c.Exploder.Threshold <= 0 {
		return errors.New("exploder.threshold must be positive")
	}
	switch c.Output.Format {
	case "text", "mangle":
	default:
		return fmt.Errorf("output.format must be \"text\" or \"mangle\", got %q", c.Output.Format)
	}
	return nil
}
