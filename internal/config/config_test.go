package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "hornflow" {
		t.Errorf("expected server name 'hornflow', got %q", cfg.Server.Name)
	}
	if cfg.Server.LogFile != "hornflow.log" {
		t.Errorf("expected log file 'hornflow.log', got %q", cfg.Server.LogFile)
	}
	if cfg.Dataflow.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %q", cfg.Dataflow.LogLevel)
	}
	if cfg.TupleSet.Cutoff != 5 {
		t.Errorf("expected tupleset cutoff 5, got %d", cfg.TupleSet.Cutoff)
	}
	if cfg.Exploder.Threshold != 1 {
		t.Errorf("expected exploder threshold 1, got %d", cfg.Exploder.Threshold)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("expected output format 'text', got %q", cfg.Output.Format)
	}
	if cfg.Output.SchemaPath != "schemas/rules.mg" {
		t.Errorf("expected schema path 'schemas/rules.mg', got %q", cfg.Output.SchemaPath)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Error("expected error for empty path")
	}
	if err.Error() != "config path is required" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  name: "test-server"
  version: "1.0.0"
  log_file: "test.log"

dataflow:
  log_level: "debug"

tupleset:
  cutoff: 8

exploder:
  threshold: 2

output:
  format: "mangle"
  schema_path: "test-schema.mg"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Name != "test-server" {
		t.Errorf("expected server name 'test-server', got %q", cfg.Server.Name)
	}
	if cfg.Server.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", cfg.Server.Version)
	}
	if cfg.Dataflow.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %q", cfg.Dataflow.LogLevel)
	}
	if cfg.TupleSet.Cutoff != 8 {
		t.Errorf("expected tupleset cutoff 8, got %d", cfg.TupleSet.Cutoff)
	}
	if cfg.Exploder.Threshold != 2 {
		t.Errorf("expected exploder threshold 2, got %d", cfg.Exploder.Threshold)
	}
	if cfg.Output.Format != "mangle" {
		t.Errorf("expected output format 'mangle', got %q", cfg.Output.Format)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: content:"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty server name",
			cfg:     Config{Server: ServerConfig{Name: ""}},
			wantErr: true,
			errMsg:  "server.name is required",
		},
		{
			name: "non-positive cutoff",
			cfg: Config{
				Server:   ServerConfig{Name: "test"},
				TupleSet: TupleSetConfig{Cutoff: 0},
			},
			wantErr: true,
			errMsg:  "tupleset.cutoff must be positive",
		},
		{
			name: "non-positive threshold",
			cfg: Config{
				Server:   ServerConfig{Name: "test"},
				TupleSet: TupleSetConfig{Cutoff: 5},
				Exploder: ExploderConfig{Threshold: -1},
			},
			wantErr: true,
			errMsg:  "exploder.threshold must be positive",
		},
		{
			name: "bad output format",
			cfg: Config{
				Server:   ServerConfig{Name: "test"},
				TupleSet: TupleSetConfig{Cutoff: 5},
				Exploder: ExploderConfig{Threshold: 1},
				Output:   OutputConfig{Format: "xml"},
			},
			wantErr: true,
			errMsg:  `output.format must be "text" or "mangle", got "xml"`,
		},
		{
			name: "valid config",
			cfg: Config{
				Server:   ServerConfig{Name: "test"},
				TupleSet: TupleSetConfig{Cutoff: 5},
				Exploder: ExploderConfig{Threshold: 1},
				Output:   OutputConfig{Format: "text"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				} else if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}
