package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/config"
	"github.com/guimove/replanner/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	verbose bool
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "replanner",
	Short: "Constraint-based reconfiguration planner for VM clusters",
	Long: `Replanner computes reconfiguration plans for a cluster of nodes hosting
VMs: the boots, migrations, suspends and shutdowns that bring the cluster
from its current state to one satisfying placement, state and resource
constraints, scheduled so that every action is feasible when it runs.

The source model comes from a scenario file or from a live Kubernetes
cluster, where pods stand for VMs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: replanner.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	// Global flags that map to config
	rootCmd.PersistentFlags().Duration("time-limit", 0, "search time limit (0 = none)")
	rootCmd.PersistentFlags().Int("partitions", 0, "split the problem into this many partitions")
	rootCmd.PersistentFlags().String("prometheus-url", "", "Prometheus/Thanos endpoint URL")
	rootCmd.PersistentFlags().String("kubeconfig", "", "path to kubeconfig file")
	rootCmd.PersistentFlags().String("kube-context", "", "Kubernetes context name")
	rootCmd.PersistentFlags().BoolP("discover", "d", false, "auto-discover Prometheus endpoint from Kubernetes")
	rootCmd.PersistentFlags().String("namespace", "", "limit pods and service discovery to a namespace")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json, markdown")

	_ = viper.BindPFlag("solver.time_limit", rootCmd.PersistentFlags().Lookup("time-limit"))
	_ = viper.BindPFlag("solver.partitions", rootCmd.PersistentFlags().Lookup("partitions"))
	_ = viper.BindPFlag("prometheus.url", rootCmd.PersistentFlags().Lookup("prometheus-url"))
	_ = viper.BindPFlag("kubernetes.kubeconfig", rootCmd.PersistentFlags().Lookup("kubeconfig"))
	_ = viper.BindPFlag("kubernetes.context", rootCmd.PersistentFlags().Lookup("kube-context"))
	_ = viper.BindPFlag("kubernetes.enabled", rootCmd.PersistentFlags().Lookup("discover"))
	_ = viper.BindPFlag("kubernetes.namespace", rootCmd.PersistentFlags().Lookup("namespace"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output"))
}

func loadConfig() error {
	// Start with defaults
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("replanner")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.replanner")
	}

	// Environment variable overrides
	viper.SetEnvPrefix("REPLANNER")
	viper.AutomaticEnv()

	// Read config file (not an error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	return nil
}
