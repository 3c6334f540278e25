package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-viper/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrConfigInvalid wraps a ValidationErrors value so callers can
// errors.Is/errors.As it the way the teacher's core/errors.go sentinels work.
var ErrConfigInvalid = errors.New("config invalid")

// Loader owns the path to the config file on disk and the mtime baseline
// CheckChanged compares against, mirroring original_source/config.py's
// Config.check_config_changed.
type Loader struct {
	path          string
	lastLoadedMod time.Time
}

// NewLoader binds a Loader to a config file path without reading it.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the bound config file path.
func (l *Loader) Path() string { return l.path }

// Load parses path, applies defaults, applies CLI overrides, and validates
// the result per spec.md §4.1. On validation failure it returns a nil
// Config and a ValidationErrors wrapped by ErrConfigInvalid; parse errors
// (malformed YAML, unknown top-level fields) are likewise returned as
// ValidationErrors rather than bare errors, so the supervisor can always
// render field_path/message pairs in limbo's STATUS response.
func (l *Loader) Load(overrides CLIOverrides) (*Config, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, ValidationErrors{{
			Field: "<file>", Value: l.path, Message: err.Error(),
		}})
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, ValidationErrors{{
			Field: "<file>", Value: l.path, Message: "invalid YAML: " + err.Error(),
		}})
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if err != nil {
		return nil, fmt.Errorf("building config decoder: %w", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, ValidationErrors{{
			Field: "<root>", Value: nil, Message: err.Error(),
		}})
	}

	// creasty/defaults.Set only fills a field when it already holds its
	// type's zero value, so it cannot distinguish "user explicitly wrote
	// false/0" from "user omitted the key" for a field whose default is
	// non-zero (run_initial_sync_on_startup, max_cpu_usage_percent,
	// sync_jobs[].active, notify_email.smtp_port). Capture the decoded,
	// explicit values for those fields before defaults.Set runs and
	// restore them afterward whenever the raw YAML actually carried the
	// key, the way original_source/config.py keeps explicit falsy values
	// instead of coercing them back to a default.
	explicitRunInitial := cfg.RunInitialSyncOnStartup
	explicitMaxCPU := cfg.MaxCPUUsagePercent
	var explicitSMTPPort int
	if cfg.NotifyEmail != nil {
		explicitSMTPPort = cfg.NotifyEmail.SMTPPort
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	if _, present := generic["run_initial_sync_on_startup"]; present {
		cfg.RunInitialSyncOnStartup = explicitRunInitial
	}
	if _, present := generic["max_cpu_usage_percent"]; present {
		cfg.MaxCPUUsagePercent = explicitMaxCPU
	}
	if notifyRaw, ok := generic["notify_email"].(map[string]any); ok && cfg.NotifyEmail != nil {
		if _, present := notifyRaw["smtp_port"]; present {
			cfg.NotifyEmail.SMTPPort = explicitSMTPPort
		}
	}

	rawJobs, _ := generic["sync_jobs"].(map[string]any)
	for key, job := range cfg.SyncJobs {
		explicitActive := job.Active
		if err := defaults.Set(job); err != nil {
			return nil, fmt.Errorf("applying sync job defaults: %w", err)
		}
		if rawJob, ok := rawJobs[key].(map[string]any); ok {
			if _, present := rawJob["active"]; present {
				job.Active = explicitActive
			}
		}
	}

	overrides.Apply(cfg)

	if verrs := Validate(cfg); len(verrs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, verrs)
	}

	if info, err := os.Stat(l.path); err == nil {
		l.lastLoadedMod = info.ModTime()
	}
	return cfg, nil
}

// CheckChanged compares the config file's current mtime against the
// baseline recorded by the last successful Load/ResetChanged.
func (l *Loader) CheckChanged() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return info.ModTime().After(l.lastLoadedMod)
}

// ResetChanged records the file's current mtime as the new baseline,
// called after a reload succeeds or the operator acknowledges the change.
func (l *Loader) ResetChanged() {
	if info, err := os.Stat(l.path); err == nil {
		l.lastLoadedMod = info.ModTime()
	}
}

// DefaultConfigPath returns ${XDG_CONFIG_HOME:-~/.config}/rclone-bisync-manager/config.yaml
// per spec.md §6.
func DefaultConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "rclone-bisync-manager", "config.yaml")
}

// DefaultCacheDir returns ${XDG_CACHE_HOME:-~/.cache}/rclone-bisync-manager
// per spec.md §6, the directory sync_state.json, sync_errors.json, and
// .filter_md5 live under.
func DefaultCacheDir() string {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "rclone-bisync-manager")
}
