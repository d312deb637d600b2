package config

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var DefaultConfigData []byte

// LogConfig holds logging configuration.
type LogConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	Formatter string `yaml:"formatter"`
	Colors    bool   `yaml:"colors"`
	Timestamp bool   `yaml:"timestamp"`
}

// Config holds the top-level application configuration.
type Config struct {
	ListenAddress    string    `yaml:"listenAddress"`
	ClusterLocal     string    `yaml:"clusterLocal"`
	DefaultNamespace string    `yaml:"defaultNamespace"`
	ProductName      string    `yaml:"productName"`
	Kubeconfig       string    `yaml:"kubeconfig"`
	KubeContext      string    `yaml:"kubeContext"`
	Log              LogConfig `yaml:"log"`
}

// defaultKubeconfigPathFunc returns the path to the default kubeconfig file.
// overridden in tests to point at a temp file.
var defaultKubeconfigPathFunc = func() string {
	return expandTilde("~/.kube/config")
}

// LoadConfig reads a YAML config file and returns a validated Config. The
// embedded defaults.yaml is applied first, then overlaid with any values
// present in the file at path (if it exists).
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	// apply embedded defaults first
	if err := yaml.Unmarshal(DefaultConfigData, &cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if len(data) > 0 {
		// overlay user config on top of defaults
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if cfg.Kubeconfig == "" {
		cfg.Kubeconfig = resolveKubeconfigPath()
	} else {
		cfg.Kubeconfig = expandTilde(cfg.Kubeconfig)
	}

	// set up the global logger early so downstream components use the
	// configured logger before bootstrap runs.
	if err := SetupGlobalLogger(&cfg); err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the config fields are well-formed.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("invalid listenAddress %q: %w", c.ListenAddress, err)
	}

	if c.ClusterLocal == "" {
		return fmt.Errorf("clusterLocal must not be empty")
	}

	if c.DefaultNamespace == "" {
		return fmt.Errorf("defaultNamespace must not be empty")
	}

	return nil
}

// resolveKubeconfigPath follows the KUBECONFIG-env-then-default-path
// discovery order: if KUBECONFIG is set and one of its entries exists, use
// it; otherwise fall back to the conventional ~/.kube/config location. An
// empty return means "let client-go's in-cluster discovery take over" —
// the caller does not treat this as an error.
func resolveKubeconfigPath() string {
	if env := os.Getenv("KUBECONFIG"); env != "" {
		for _, p := range strings.Split(env, string(os.PathListSeparator)) {
			p = expandTilde(strings.TrimSpace(p))
			if p == "" {
				continue
			}

			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}

	defaultPath := defaultKubeconfigPathFunc()
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}

	return ""
}

func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	// only expand "~" or "~/..." — don't handle "~user" syntax
	if len(path) > 1 && path[1] != '/' && path[1] != filepath.Separator {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}

	return filepath.Join(home, path[2:])
}
