package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config is the top-level configuration for replanner.
type Config struct {
	Solver     SolverConfig     `yaml:"solver" mapstructure:"solver"`
	Durations  DurationsConfig  `yaml:"durations" mapstructure:"durations"`
	Network    NetworkConfig    `yaml:"network" mapstructure:"network"`
	Prometheus PrometheusConfig `yaml:"prometheus" mapstructure:"prometheus"`
	Kubernetes KubernetesConfig `yaml:"kubernetes" mapstructure:"kubernetes"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

type SolverConfig struct {
	TimeLimit time.Duration `yaml:"time_limit" mapstructure:"time_limit"` // 0 = none
	NodeLimit int           `yaml:"node_limit" mapstructure:"node_limit"` // 0 = none
	MaxEnd    int           `yaml:"max_end" mapstructure:"max_end"`
	Optimize  bool          `yaml:"optimize" mapstructure:"optimize"`
	Repair    bool          `yaml:"repair" mapstructure:"repair"`
	// Parallelism bounds the partitions solved at once.
	Parallelism int `yaml:"parallelism" mapstructure:"parallelism"`
	// Partitions splits the online nodes in that many groups. 0 or 1
	// solves a single instance.
	Partitions int `yaml:"partitions" mapstructure:"partitions"`
}

// DurationsConfig holds the constant duration of every action kind.
type DurationsConfig struct {
	Boot         int `yaml:"boot" mapstructure:"boot"`
	Shutdown     int `yaml:"shutdown" mapstructure:"shutdown"`
	Migrate      int `yaml:"migrate" mapstructure:"migrate"`
	Suspend      int `yaml:"suspend" mapstructure:"suspend"`
	Resume       int `yaml:"resume" mapstructure:"resume"`
	Kill         int `yaml:"kill" mapstructure:"kill"`
	Forge        int `yaml:"forge" mapstructure:"forge"`
	BootNode     int `yaml:"boot_node" mapstructure:"boot_node"`
	ShutdownNode int `yaml:"shutdown_node" mapstructure:"shutdown_node"`
}

type NetworkConfig struct {
	HotDirtySize     float64 `yaml:"hot_dirty_size" mapstructure:"hot_dirty_size"`
	HotDirtyDuration float64 `yaml:"hot_dirty_duration" mapstructure:"hot_dirty_duration"`
	ColdDirtyRate    float64 `yaml:"cold_dirty_rate" mapstructure:"cold_dirty_rate"`
	Efficiency       float64 `yaml:"efficiency" mapstructure:"efficiency"`
}

type PrometheusConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Window is the range the dirty-page rate is averaged over.
	Window time.Duration `yaml:"window" mapstructure:"window"`
}

type KubernetesConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Kubeconfig string `yaml:"kubeconfig" mapstructure:"kubeconfig"`
	Context    string `yaml:"context" mapstructure:"context"`
	Namespace  string `yaml:"namespace" mapstructure:"namespace"` // empty = all namespaces
	// Resources lists the resource names mapped from the cluster.
	Resources         []string `yaml:"resources" mapstructure:"resources"`
	ExcludeNamespaces []string `yaml:"exclude_namespaces" mapstructure:"exclude_namespaces"`
}

type MetricsConfig struct {
	// Textfile receives the solve statistics in the Prometheus text format.
	// Empty disables the export.
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Solver: SolverConfig{
			MaxEnd:      1000,
			Optimize:    true,
			Parallelism: runtime.NumCPU(),
		},
		Durations: DurationsConfig{
			Boot:         1,
			Shutdown:     1,
			Migrate:      2,
			Suspend:      1,
			Resume:       1,
			Kill:         1,
			Forge:        1,
			BootNode:     1,
			ShutdownNode: 1,
		},
		Network: NetworkConfig{
			HotDirtySize:     5,
			HotDirtyDuration: 2,
			ColdDirtyRate:    0,
			Efficiency:       9,
		},
		Prometheus: PrometheusConfig{
			Timeout: 60 * time.Second,
			Window:  10 * time.Minute,
		},
		Kubernetes: KubernetesConfig{
			Resources: []string{"cpu", "memory"},
			ExcludeNamespaces: []string{
				"kube-system",
				"kube-node-lease",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			Format: "table",
		},
	}
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if c.Solver.TimeLimit < 0 {
		return fmt.Errorf("time_limit must be non-negative, got %v", c.Solver.TimeLimit)
	}
	if c.Solver.NodeLimit < 0 {
		return fmt.Errorf("node_limit must be non-negative, got %d", c.Solver.NodeLimit)
	}
	if c.Solver.MaxEnd <= 0 {
		return fmt.Errorf("max_end must be positive, got %d", c.Solver.MaxEnd)
	}
	if c.Solver.Partitions < 0 {
		return fmt.Errorf("partitions must be non-negative, got %d", c.Solver.Partitions)
	}
	if c.Solver.Parallelism <= 0 {
		c.Solver.Parallelism = runtime.NumCPU()
	}
	for name, d := range c.Durations.byName() {
		if d < 1 {
			return fmt.Errorf("duration of %s must be at least 1, got %d", name, d)
		}
	}
	if c.Network.Efficiency <= 0 {
		return fmt.Errorf("network efficiency must be positive, got %v", c.Network.Efficiency)
	}
	if c.Network.HotDirtySize < 0 || c.Network.HotDirtyDuration < 0 || c.Network.ColdDirtyRate < 0 {
		return fmt.Errorf("network dirty-page settings must be non-negative")
	}
	if c.Prometheus.URL != "" && c.Prometheus.Window <= 0 {
		return fmt.Errorf("prometheus window must be positive, got %v", c.Prometheus.Window)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("log level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("log format must be console or json, got %q", c.Logging.Format)
	}
	validFormats := map[string]bool{"table": true, "json": true, "markdown": true}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("output format must be table, json, or markdown, got %q", c.Output.Format)
	}
	return nil
}

func (d DurationsConfig) byName() map[string]int {
	return map[string]int{
		"boot":          d.Boot,
		"shutdown":      d.Shutdown,
		"migrate":       d.Migrate,
		"suspend":       d.Suspend,
		"resume":        d.Resume,
		"kill":          d.Kill,
		"forge":         d.Forge,
		"boot_node":     d.BootNode,
		"shutdown_node": d.ShutdownNode,
	}
}
