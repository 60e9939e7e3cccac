package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Failure policies for a stage that does not succeed.
const (
	OnErrorContinue = "continue"
	OnErrorAbort    = "abort"
)

// SyncConfig holds the provider type, the target list, the CSV import and
// provider-specific connection settings.
type SyncConfig struct {
	Provider string            `yaml:"provider"`
	List     ListConfig        `yaml:"list"`
	Import   ImportConfig      `yaml:"import"`
	Sync     RunConfig         `yaml:"sync"`
	Metrics  MetricsConfig     `yaml:"metrics"`
	Settings map[string]string `yaml:"settings"`
}

// ListConfig describes the destination list that is replaced on each run.
type ListConfig struct {
	Name         string `yaml:"name"`
	Access       string `yaml:"access"`
	BundleTypeID int    `yaml:"bundle_type_id"`
	IsGlobal     bool   `yaml:"is_global"`
}

// ImportConfig locates the CSV feed. Values are sent as read unless
// Normalize is set.
type ImportConfig struct {
	Path        string `yaml:"path"`
	Column      string `yaml:"column"`
	Normalize   bool   `yaml:"normalize"`
	SkipInvalid bool   `yaml:"skip_invalid"`
}

// RunConfig controls how the pipeline reacts to failures and how many
// hostnames go into one request.
type RunConfig struct {
	OnError   string `yaml:"on_error"`
	BatchSize int    `yaml:"batch_size"`
}

// MetricsConfig points at an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// Default returns a configuration with every optional field filled in.
func Default() SyncConfig {
	return SyncConfig{
		List: ListConfig{
			Name:         "C2_Servers_Hunted_Blocklist",
			Access:       "block",
			BundleTypeID: 1,
		},
		Import:  ImportConfig{Column: "hostnames"},
		Sync:    RunConfig{OnError: OnErrorContinue, BatchSize: 1},
		Metrics: MetricsConfig{Job: "blocklist_sync"},
	}
}

// LoadSyncConfig reads the configuration from the path specified by the
// BLOCKLIST_SYNC_CONFIG environment variable, defaulting to
// "configs/blocklist-sync.yaml".
func LoadSyncConfig() (*SyncConfig, error) {
	path := os.Getenv("BLOCKLIST_SYNC_CONFIG")
	if path == "" {
		path = "configs/blocklist-sync.yaml"
	}
	return LoadSyncConfigFromPath(path)
}

// LoadSyncConfigFromPath reads the configuration from the given file path.
// Fields absent from the file keep their Default values.
func LoadSyncConfigFromPath(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sync config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing sync config file: %w", err)
	}

	if cfg.Provider == "" {
		return nil, fmt.Errorf("sync config: missing required field 'provider'")
	}

	// Expand ${ENV_VAR} references in setting values.
	for k, v := range cfg.Settings {
		cfg.Settings[k] = os.ExpandEnv(v)
	}

	return &cfg, nil
}

// Validate checks required fields and enumerations. Call it once
// command-line overrides have been applied.
func (c *SyncConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("sync config: missing required field 'provider'")
	}
	if c.List.Name == "" {
		return fmt.Errorf("sync config: missing required field 'list.name'")
	}
	if c.List.Access != "block" && c.List.Access != "allow" {
		return fmt.Errorf("sync config: list.access must be 'block' or 'allow', got %q", c.List.Access)
	}
	if c.Import.Path == "" {
		return fmt.Errorf("sync config: missing required field 'import.path'")
	}
	if c.Import.Column == "" {
		return fmt.Errorf("sync config: missing required field 'import.column'")
	}
	if c.Sync.OnError != OnErrorContinue && c.Sync.OnError != OnErrorAbort {
		return fmt.Errorf("sync config: sync.on_error must be %q or %q, got %q", OnErrorContinue, OnErrorAbort, c.Sync.OnError)
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync config: sync.batch_size must be at least 1, got %d", c.Sync.BatchSize)
	}
	return nil
}
