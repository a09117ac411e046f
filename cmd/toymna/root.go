package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edp1096/toy-mna/internal/config"
	"github.com/edp1096/toy-mna/pkg/netlist"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel   string // Log verbosity level, overrides the config
	configPath string // Optional YAML config file

	cfg *config.Config
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "toymna",
	Short: "Circuit simulator built on modified nodal analysis",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
		}
		logrus.SetLevel(level)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
}

// readNetlist parses a netlist file. .yaml and .yml files use the YAML form.
func readNetlist(path string) (*netlist.NetlistData, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading netlist file: %w", err)
	}

	var data *netlist.NetlistData
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = netlist.ParseYAML(content)
	default:
		data, err = netlist.Parse(string(content))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing netlist %s: %w", path, err)
	}
	logrus.Infof("netlist %q: %d elements, analysis %v", data.Title, len(data.Elements), data.Analysis)
	return data, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
